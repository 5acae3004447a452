package pricing

import (
	"math"

	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

// noSignalConfidence is reported when no strategy fired.
const noSignalConfidence = 0.3

// fuse combines signals into one adjustment by weight-normalised averaging and
// scores the agreement between them.
func fuse(signals []StrategySignal) (adjustment, confidence float64) {
	if len(signals) == 0 {
		return 0, noSignalConfidence
	}

	var totalWeight, weighted float64
	var ups, downs int
	for _, s := range signals {
		totalWeight += s.Weight
		weighted += s.Adjustment * s.Weight
		switch s.Direction {
		case Increase:
			ups++
		case Decrease:
			downs++
		}
	}
	if totalWeight > 0 {
		adjustment = weighted / totalWeight
	}

	confidence = math.Min(0.2*float64(len(signals)), 0.8)
	if ups > 0 && downs > 0 {
		confidence -= 0.3
	} else {
		confidence += 0.2
	}
	confidence += math.Min(totalWeight, 0.2)
	return adjustment, domain.Clamp(confidence, 0.1, 1.0)
}

// primarySignal is the signal with the largest weighted magnitude; it names the rationale.
func primarySignal(signals []StrategySignal) *StrategySignal {
	var best *StrategySignal
	var bestScore float64
	for i := range signals {
		score := signals[i].Weight * math.Abs(signals[i].Adjustment)
		if best == nil || score > bestScore {
			best, bestScore = &signals[i], score
		}
	}
	return best
}

// constrain applies the hard price bounds and the per-change magnitude limits, then
// rejects changes below the threshold. ok is false when the change must not be applied.
func constrain(st domain.PriceState, adjustment float64, cfg Config) (price float64, ok bool) {
	cur := st.CurrentPrice
	if cur <= 0 || adjustment == 0 {
		return cur, false
	}

	target := domain.Clamp(cur+adjustment, st.MinPrice, st.MaxPrice)
	target = domain.Clamp(target, cur*(1-cfg.MaxDecrease), cur*(1+cfg.MaxIncrease))
	target = domain.Clamp(domain.RoundCents(target), st.MinPrice, st.MaxPrice)

	if math.Abs(target-cur)/cur < cfg.ChangeThreshold {
		return cur, false
	}
	return target, true
}
