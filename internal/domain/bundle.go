package domain

import (
	"slices"
	"strings"
	"time"
)

// Bundle types, one per candidate generator.
const (
	BundleAssociation   = "association_based"
	BundleInventory     = "inventory_optimization"
	BundlePriceTier     = "price_optimization"
	BundleComplementary = "complementary"
)

// Bundle strategies.
const (
	StrategyFrequentTogether = "frequent_together"
	StrategyClearSlowMoving  = "clear_slow_moving"
	StrategyClearExcessStock = "clear_excess_stock"
	StrategyValueBundle      = "value_bundle"
	StrategyPremiumBundle    = "premium_bundle"
	StrategyCrossCategory    = "cross_category"
)

// BundlePricing is the priced offer for a bundle.
type BundlePricing struct {
	IndividualPrice float64 `json:"individual_price"`
	BundlePrice     float64 `json:"bundle_price"`
	DiscountPercent float64 `json:"discount_percent"`
	Savings         float64 `json:"savings"`
}

// BundleCandidate moves through generated, scored and priced stages within one cycle.
type BundleCandidate struct {
	Items          []string           `json:"items"`
	PrimaryItem    string             `json:"primary_item,omitempty"`
	Type           string             `json:"type"`
	Strategy       string             `json:"strategy"`
	BaseConfidence float64            `json:"base_confidence"`
	Components     map[string]float64 `json:"score_components,omitempty"`
	FinalScore     float64            `json:"final_score"`
	Confidence     float64            `json:"confidence"`
	Pricing        BundlePricing      `json:"pricing"`
	Reason         string             `json:"reason"`
}

// Key identifies the candidate by its sorted item-set.
func (c BundleCandidate) Key() string {
	return ItemKey(c.Items)
}

// ItemKey returns an order-independent key for a set of product ids.
func ItemKey(items []string) string {
	sorted := slices.Clone(items)
	slices.Sort(sorted)
	return strings.Join(sorted, "+")
}

// ActiveBundle is a selected bundle currently on offer.
type ActiveBundle struct {
	BundleCandidate
	ID        string    `json:"bundle_id"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`
}

// BundleStats are the view/conversion counters for one active bundle.
type BundleStats struct {
	Views       int64 `json:"views"`
	Conversions int64 `json:"conversions"`
}

// ConversionRate is conversions over views, 0 with no views.
func (s BundleStats) ConversionRate() float64 {
	if s.Views == 0 {
		return 0
	}
	return float64(s.Conversions) / float64(s.Views)
}
