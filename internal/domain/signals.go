package domain

import "time"

// Market positions relative to competitor quotes.
const (
	PositionBelow       = "below_market"
	PositionAbove       = "above_market"
	PositionCompetitive = "competitive"
)

// Demand trends.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendDeclining  = "declining"
	TrendStable     = "stable"
)

// CompetitorQuote is one observed competitor price.
type CompetitorQuote struct {
	Competitor   string    `json:"competitor"`
	ProductID    string    `json:"product_id"`
	Price        float64   `json:"price"`
	Availability string    `json:"availability"`
	ObservedAt   time.Time `json:"observed_at"`
}

// MarketPosition is our price relative to the competitor spread for one product.
type MarketPosition struct {
	ProductID      string  `json:"product_id"`
	OurPrice       float64 `json:"our_price"`
	MinCompetitor  float64 `json:"min_competitor"`
	MaxCompetitor  float64 `json:"max_competitor"`
	AvgCompetitor  float64 `json:"avg_competitor"`
	Position       string  `json:"position"`
	GapVsMin       float64 `json:"gap_vs_min"`
	GapVsAvg       float64 `json:"gap_vs_avg"`
	CompetitorSeen int     `json:"competitors"`
}

// PriceMove is a significant competitor price change between two observations.
type PriceMove struct {
	Competitor    string  `json:"competitor"`
	ProductID     string  `json:"product_id"`
	OldPrice      float64 `json:"old_price"`
	NewPrice      float64 `json:"new_price"`
	ChangePercent float64 `json:"change_percent"`
	Significance  Level   `json:"significance"`
}

// DemandPattern summarises recent sales for one product.
type DemandPattern struct {
	ProductID   string  `json:"product_id"`
	Velocity    float64 `json:"velocity"`
	Trend       string  `json:"trend"`
	Seasonality float64 `json:"seasonality"`
}

// AssociationRule is a mined co-purchase rule A -> B.
type AssociationRule struct {
	Antecedent string  `json:"antecedent"`
	Consequent string  `json:"consequent"`
	Support    float64 `json:"support"`
	Confidence float64 `json:"confidence"`
	Lift       float64 `json:"lift"`
}

// Opportunity types carried on signal reports.
const (
	OpportunityPriceReduction      = "price_reduction"
	OpportunityPremiumPricing      = "premium_pricing"
	OpportunityCompetitiveResponse = "competitive_response"
	OpportunityBundleAnchor        = "bundle_anchor"
	OpportunityClearance           = "clearance_pricing"
	OpportunityBundle              = "bundle_recommendation"
)

// Opportunity is a derived, agent-specific action hint carried on signal reports.
type Opportunity struct {
	Type       string  `json:"type"`
	ProductID  string  `json:"product_id"`
	RelatedID  string  `json:"related_product_id,omitempty"`
	Confidence float64 `json:"confidence"`
	Impact     Level   `json:"impact"`
	Urgency    Level   `json:"urgency"`
	Detail     string  `json:"detail"`
}

// StockForecast projects stock exhaustion for one product.
type StockForecast struct {
	ProductID         string  `json:"product_id"`
	DaysUntilStockout float64 `json:"days_until_stockout"`
	ForecastDemand    float64 `json:"forecast_demand"`
	ReorderNeeded     bool    `json:"reorder_needed"`
}

// InventoryReport is the payload of TopicInventoryUpdate.
type InventoryReport struct {
	StockLevels   map[string]StockLevel    `json:"stock_levels"`
	LowStock      []string                 `json:"low_stock_items"`
	HighStock     []string                 `json:"high_stock_items"`
	FastMovers    []string                 `json:"fast_movers"`
	SlowMovers    []string                 `json:"slow_movers"`
	Demand        map[string]DemandPattern `json:"demand"`
	Forecasts     map[string]StockForecast `json:"forecasts"`
	Opportunities []Opportunity            `json:"opportunities"`
	GeneratedAt   time.Time                `json:"generated_at"`
}

// CompetitorReport is the payload of TopicCompetitorUpdate.
type CompetitorReport struct {
	Positions     map[string]MarketPosition `json:"positions"`
	Changes       []PriceMove               `json:"changes"`
	Trends        map[string]string         `json:"trends"`
	Volatility    map[string]float64        `json:"volatility"`
	Leaders       map[string]string         `json:"market_leaders"`
	Availability  map[string]float64        `json:"availability"`
	Opportunities []Opportunity             `json:"opportunities"`
	GeneratedAt   time.Time                 `json:"generated_at"`
}

// BehaviorReport is the payload of TopicCartInsight.
type BehaviorReport struct {
	AbandonmentRate  float64             `json:"abandonment_rate"`
	AbandonedByRange map[string]int      `json:"abandoned_by_value"`
	MostAbandoned    []string            `json:"most_abandoned"`
	AvgHoursInCart   float64             `json:"avg_hours_in_cart"`
	RiskFactors      []string            `json:"risk_factors"`
	Associations     []AssociationRule   `json:"associations"`
	BundleHints      map[string][]string `json:"bundle_hints"`
	PriceSensitivity map[string]float64  `json:"price_sensitivity"`
	OptimalBrackets  []string            `json:"optimal_brackets"`
	PeakDay          string              `json:"peak_day"`
	PeakHour         int                 `json:"peak_hour"`
	GeneratedAt      time.Time           `json:"generated_at"`
}
