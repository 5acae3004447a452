package pricing

// Config holds every threshold the pricing engine reads. It is treated as
// immutable for the duration of one cycle.
type Config struct {
	MaxIncrease              float64
	MaxDecrease              float64
	ChangeThreshold          float64
	CompetitorResponseFactor float64
	DefaultElasticity        float64
	HistoryCap               int
	Weights                  Weights
}

// Weights are the per-strategy default weights and the strong-signal overrides.
type Weights struct {
	Competitor        float64
	CompetitorStrong  float64
	Inventory         float64
	InventoryCritical float64
	InventoryExcess   float64
	Demand            float64
	DemandHigh        float64
	DemandLow         float64
	Elasticity        float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxIncrease:              0.20,
		MaxDecrease:              0.30,
		ChangeThreshold:          0.02,
		CompetitorResponseFactor: 0.8,
		DefaultElasticity:        -1.5,
		HistoryCap:               1000,
		Weights: Weights{
			Competitor:        0.3,
			CompetitorStrong:  0.4,
			Inventory:         0.25,
			InventoryCritical: 0.4,
			InventoryExcess:   0.35,
			Demand:            0.2,
			DemandHigh:        0.3,
			DemandLow:         0.25,
			Elasticity:        0.25,
		},
	}
}
