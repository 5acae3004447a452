package domain

import "time"

// Level grades the impact or urgency of a recommendation.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Recommendation types emitted by the agents.
const (
	RecPriceChangeExecuted  = "price_change_executed"
	RecPricingStrategy      = "pricing_strategy_adjustment"
	RecBundleCreation       = "bundle_creation"
	RecBundleDiscontinue    = "bundle_discontinuation"
	RecAbandonmentReduction = "abandonment_reduction"
	RecBundleOpportunity    = "bundle_opportunity"
	RecClearancePricing     = "clearance_pricing"
	RecRestock              = "restock"
	RecCompetitiveResponse  = "competitive_response"
)

// Recommendation is an immutable, confidence-scored suggestion produced by an agent.
// Status transitions (pending, accepted, implemented) belong to the external store.
type Recommendation struct {
	ID         string         `json:"id"`
	Agent      string         `json:"agent"`
	Type       string         `json:"type"`
	ProductID  string         `json:"product_id,omitempty"`
	Text       string         `json:"text"`
	Confidence float64        `json:"confidence"`
	Impact     Level          `json:"impact"`
	Urgency    Level          `json:"urgency"`
	Rationale  string         `json:"rationale"`
	Timestamp  time.Time      `json:"timestamp"`
	Details    map[string]any `json:"details,omitempty"`
}

// ClampConfidence bounds c to [0,1].
func ClampConfidence(c float64) float64 {
	return Clamp(c, 0, 1)
}

// Clamp bounds v to [lo,hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
