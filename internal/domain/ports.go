package domain

import (
	"context"
	"time"
)

// RecommendationSink persists recommendations. Callers log failures and never retry.
type RecommendationSink interface {
	Record(ctx context.Context, rec Recommendation) (string, error)
}

// ProductSource is the read side of the external product store.
type ProductSource interface {
	Products(ctx context.Context) ([]Product, error)
	CurrentPrice(ctx context.Context, productID string) (float64, error)
	StockStatus(ctx context.Context, productID string) (StockLevel, error)
}

// Forecast is a demand projection over a horizon.
type Forecast struct {
	ProductID   string  `json:"product_id"`
	HorizonDays int     `json:"horizon_days"`
	Units       float64 `json:"units"`
	Seasonality float64 `json:"seasonality"`
	Confidence  float64 `json:"confidence"`
}

// ForecastSource is the optional model-backed signal source.
type ForecastSource interface {
	Elasticity(ctx context.Context, productID string) (float64, error)
	DemandForecast(ctx context.Context, productID string, horizonDays int) (Forecast, error)
}

// Applier forwards an accepted recommendation to the e-commerce side.
type Applier interface {
	Apply(ctx context.Context, rec Recommendation) error
}

// CompetitorFeed supplies observed competitor quotes.
type CompetitorFeed interface {
	Quotes(ctx context.Context) ([]CompetitorQuote, error)
}

// CartItem is one line of a cart.
type CartItem struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// Cart is a customer cart session; CompletedAt is nil for carts that never checked out.
type Cart struct {
	ID          string     `json:"id"`
	Items       []CartItem `json:"items"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Total is the sum of line values.
func (c Cart) Total() float64 {
	var t float64
	for _, it := range c.Items {
		t += float64(it.Quantity) * it.UnitPrice
	}
	return t
}

// CartFeed supplies cart sessions.
type CartFeed interface {
	Carts(ctx context.Context, since time.Time) ([]Cart, error)
}

// Sale is the units of one product sold on one day.
type Sale struct {
	ProductID string    `json:"product_id"`
	Day       time.Time `json:"day"`
	Units     int       `json:"units"`
}

// SalesFeed supplies daily unit sales.
type SalesFeed interface {
	Sales(ctx context.Context, since time.Time) ([]Sale, error)
}

// PerformanceSource supplies view and conversion counts for active bundles.
type PerformanceSource interface {
	BundleStats(ctx context.Context, bundleID string) (BundleStats, error)
}
