package bundling

import (
	"math"

	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

const baseDiscount = 0.10

// strategyBonus is the extra discount a bundle earns on top of baseDiscount.
func strategyBonus(c domain.BundleCandidate) float64 {
	switch {
	case c.Type == domain.BundleInventory:
		return 0.08
	case c.Type == domain.BundleAssociation:
		return 0.05
	case c.Strategy == domain.StrategyPremiumBundle:
		return 0.03
	default:
		return 0
	}
}

// discount scales the strategy discount by confidence and clamps it to the configured range.
func discount(c domain.BundleCandidate, cfg Config) float64 {
	d := (baseDiscount + strategyBonus(c)) * (0.7 + 0.6*c.Confidence)
	return domain.Clamp(d, cfg.MinDiscount, cfg.MaxDiscount)
}

// price sets the bundle offer from the catalog's current prices.
func price(c domain.BundleCandidate, v view, cfg Config) domain.BundleCandidate {
	var individual float64
	for _, id := range c.Items {
		individual += v.catalog[id].CurrentPrice
	}
	individual = domain.RoundCents(individual)
	d := discount(c, cfg)
	bundlePrice := domain.RoundCents(individual * (1 - d))
	c.Pricing = domain.BundlePricing{
		IndividualPrice: individual,
		BundlePrice:     bundlePrice,
		DiscountPercent: math.Round(d*1000) / 10,
		Savings:         domain.RoundCents(individual - bundlePrice),
	}
	return c
}
