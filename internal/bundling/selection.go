package bundling

import (
	"cmp"
	"slices"

	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

// selectBundles filters by confidence, orders by score, drops repeated
// item-sets, caps the total and then limits each bundle type.
func selectBundles(cands []domain.BundleCandidate, cfg Config) []domain.BundleCandidate {
	qualified := make([]domain.BundleCandidate, 0, len(cands))
	for _, c := range cands {
		if c.Confidence >= cfg.ConfidenceThreshold {
			qualified = append(qualified, c)
		}
	}
	slices.SortStableFunc(qualified, func(a, b domain.BundleCandidate) int {
		return cmp.Compare(b.FinalScore, a.FinalScore)
	})

	seen := make(map[string]bool, len(qualified))
	unique := qualified[:0]
	for _, c := range qualified {
		key := c.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, c)
	}
	if len(unique) > cfg.MaxSelected {
		unique = unique[:cfg.MaxSelected]
	}

	perType := make(map[string]int)
	var out []domain.BundleCandidate
	for _, c := range unique {
		if perType[c.Type] >= cfg.MaxPerType {
			continue
		}
		perType[c.Type]++
		out = append(out, c)
	}
	return out
}
