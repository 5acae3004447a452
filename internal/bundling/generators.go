package bundling

import (
	"fmt"
	"slices"

	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

// view is the per-cycle input to candidate generation: the catalog plus the
// latest signal snapshots, already reduced to sorted id lists and sets.
type view struct {
	catalog map[string]domain.Product
	ids     []string

	low, high, fast, slow []string
	below, above          []string
	rules                 []domain.AssociationRule

	lowSet, highSet, slowSet map[string]bool
	belowSet, aboveSet       map[string]bool
}

func newView(products []domain.Product, inv *domain.InventoryReport, comp *domain.CompetitorReport, beh *domain.BehaviorReport) view {
	v := view{catalog: make(map[string]domain.Product, len(products))}
	for _, p := range products {
		v.catalog[p.ID] = p
		v.ids = append(v.ids, p.ID)
	}
	slices.Sort(v.ids)

	if inv != nil {
		v.low, v.high = slices.Clone(inv.LowStock), slices.Clone(inv.HighStock)
		v.fast, v.slow = slices.Clone(inv.FastMovers), slices.Clone(inv.SlowMovers)
	}
	if comp != nil {
		for id, pos := range comp.Positions {
			switch pos.Position {
			case domain.PositionBelow:
				v.below = append(v.below, id)
			case domain.PositionAbove:
				v.above = append(v.above, id)
			}
		}
		slices.Sort(v.below)
		slices.Sort(v.above)
	}
	if beh != nil {
		v.rules = slices.Clone(beh.Associations)
	}

	v.lowSet, v.highSet, v.slowSet = setOf(v.low), setOf(v.high), setOf(v.slow)
	v.belowSet, v.aboveSet = setOf(v.below), setOf(v.above)
	return v
}

func setOf(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func newCandidate(typ, strategy, primary string, base float64, reason string, items ...string) domain.BundleCandidate {
	sorted := slices.Clone(items)
	slices.Sort(sorted)
	return domain.BundleCandidate{
		Items:          sorted,
		PrimaryItem:    primary,
		Type:           typ,
		Strategy:       strategy,
		BaseConfidence: base,
		Reason:         reason,
	}
}

// generate runs every generator and drops candidates that cannot be offered:
// wrong size, repeated items or items missing from the catalog.
func generate(v view, cfg Config) []domain.BundleCandidate {
	var all []domain.BundleCandidate
	all = append(all, associationCandidates(v, cfg)...)
	all = append(all, inventoryCandidates(v)...)
	all = append(all, priceTierCandidates(v)...)
	all = append(all, complementaryCandidates(v, cfg)...)

	return slices.DeleteFunc(all, func(c domain.BundleCandidate) bool {
		if len(c.Items) < cfg.MinSize || len(c.Items) > cfg.MaxSize {
			return true
		}
		for i, id := range c.Items {
			if _, ok := v.catalog[id]; !ok {
				return true
			}
			if i > 0 && c.Items[i-1] == id {
				return true
			}
		}
		return false
	})
}

func associationCandidates(v view, cfg Config) []domain.BundleCandidate {
	var out []domain.BundleCandidate
	for _, r := range v.rules {
		if r.Confidence < cfg.AssociationMinConfidence || r.Lift < cfg.AssociationMinLift {
			continue
		}
		if v.lowSet[r.Antecedent] || v.lowSet[r.Consequent] {
			continue
		}
		out = append(out, newCandidate(domain.BundleAssociation, domain.StrategyFrequentTogether, r.Antecedent, r.Confidence,
			fmt.Sprintf("frequently bought together (confidence %.2f, lift %.2f)", r.Confidence, r.Lift),
			r.Antecedent, r.Consequent))
	}
	return out
}

func inventoryCandidates(v view) []domain.BundleCandidate {
	var out []domain.BundleCandidate
	for _, slow := range v.slow {
		for _, fast := range v.fast {
			if slow == fast {
				continue
			}
			out = append(out, newCandidate(domain.BundleInventory, domain.StrategyClearSlowMoving, fast, 0.7,
				fmt.Sprintf("clear slow-moving %s with popular %s", slow, fast),
				fast, slow))
		}
	}
	for i, a := range v.high {
		for _, b := range v.high[i+1:] {
			out = append(out, newCandidate(domain.BundleInventory, domain.StrategyClearExcessStock, a, 0.6,
				fmt.Sprintf("clear excess inventory of %s and %s", a, b),
				a, b))
		}
	}
	return out
}

func priceTierCandidates(v view) []domain.BundleCandidate {
	var out []domain.BundleCandidate
	for _, anchor := range v.below {
		for _, other := range v.ids {
			if other == anchor {
				continue
			}
			out = append(out, newCandidate(domain.BundlePriceTier, domain.StrategyValueBundle, anchor, 0.75,
				fmt.Sprintf("value bundle anchored by competitively priced %s", anchor),
				anchor, other))
		}
	}
	for _, premium := range v.above {
		var others []string
		for _, id := range v.ids {
			if id != premium {
				others = append(others, id)
			}
			if len(others) == 2 {
				break
			}
		}
		if len(others) == 0 {
			continue
		}
		out = append(out, newCandidate(domain.BundlePriceTier, domain.StrategyPremiumBundle, premium, 0.6,
			fmt.Sprintf("premium bundle supporting the higher price of %s", premium),
			append([]string{premium}, others...)...))
	}
	return out
}

func complementaryCandidates(v view, cfg Config) []domain.BundleCandidate {
	var out []domain.BundleCandidate
	for _, pair := range cfg.CategoryPairs {
		for _, a := range v.ids {
			if v.catalog[a].Category != pair.Primary {
				continue
			}
			for _, b := range v.ids {
				if b == a || v.catalog[b].Category != pair.Secondary {
					continue
				}
				out = append(out, newCandidate(domain.BundleComplementary, domain.StrategyCrossCategory, a, pair.Confidence,
					fmt.Sprintf("complementary %s and %s", pair.Primary, pair.Secondary),
					a, b))
			}
		}
	}
	return out
}
