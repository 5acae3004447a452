package bundling

import (
	"math"

	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

// Score component names and their weights in the final score.
const (
	componentBase        = "base_confidence"
	componentInventory   = "inventory_impact"
	componentRevenue     = "revenue_potential"
	componentCompetitive = "competitive_advantage"
	componentComposition = "composition_score"
)

var scoreWeights = []struct {
	component string
	weight    float64
}{
	{componentBase, 0.25},
	{componentInventory, 0.20},
	{componentRevenue, 0.25},
	{componentCompetitive, 0.15},
	{componentComposition, 0.15},
}

// revenueNormaliser is the bundle value at which the price part of revenue potential saturates.
const revenueNormaliser = 200.0

// score fills the score components, the final score and the confidence of c.
func score(c domain.BundleCandidate, v view) domain.BundleCandidate {
	c.Components = map[string]float64{
		componentBase:        c.BaseConfidence,
		componentInventory:   inventoryImpact(c, v),
		componentRevenue:     revenuePotential(c, v),
		componentCompetitive: competitiveAdvantage(c, v),
		componentComposition: compositionScore(c),
	}
	var final float64
	for _, sw := range scoreWeights {
		final += c.Components[sw.component] * sw.weight
	}
	c.FinalScore = final
	c.Confidence = math.Min(final, 1)
	return c
}

func count(items []string, set map[string]bool) int {
	n := 0
	for _, id := range items {
		if set[id] {
			n++
		}
	}
	return n
}

func inventoryImpact(c domain.BundleCandidate, v view) float64 {
	s := 0.5
	s += 0.2 * float64(count(c.Items, v.slowSet))
	s += 0.15 * float64(count(c.Items, v.highSet))
	s -= 0.3 * float64(count(c.Items, v.lowSet))
	return domain.Clamp(s, 0, 1)
}

func revenuePotential(c domain.BundleCandidate, v view) float64 {
	if len(c.Items) == 0 {
		return 0
	}
	var total, margin float64
	for _, id := range c.Items {
		p := v.catalog[id]
		total += p.CurrentPrice
		margin += p.Margin()
	}
	priceScore := math.Min(total/revenueNormaliser, 1)
	return priceScore*0.6 + margin/float64(len(c.Items))*0.4
}

func competitiveAdvantage(c domain.BundleCandidate, v view) float64 {
	s := 0.5
	s += 0.25 * float64(count(c.Items, v.belowSet))
	s -= 0.1 * float64(count(c.Items, v.aboveSet))
	if c.Strategy == domain.StrategyCrossCategory || c.Strategy == domain.StrategyPremiumBundle {
		s += 0.15
	}
	return domain.Clamp(s, 0, 1)
}

func compositionScore(c domain.BundleCandidate) float64 {
	s := 0.5
	switch n := len(c.Items); {
	case n >= 2 && n <= 3:
		s += 0.3
	case n == 4:
		s += 0.1
	default:
		s -= 0.1
	}
	if c.PrimaryItem != "" {
		s += 0.1
	}
	if c.Strategy == domain.StrategyFrequentTogether || c.Strategy == domain.StrategyValueBundle {
		s += 0.15
	}
	return domain.Clamp(s, 0, 1)
}
