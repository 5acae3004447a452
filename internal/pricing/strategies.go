package pricing

import (
	"fmt"
	"math"

	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

// Direction is the sign a strategy proposes.
type Direction string

const (
	Increase Direction = "increase"
	Decrease Direction = "decrease"
	NoChange Direction = "none"
)

// Strategy names.
const (
	StrategyCompetitor = "competitor_based"
	StrategyInventory  = "inventory_based"
	StrategyDemand     = "demand_based"
	StrategyElasticity = "elasticity_based"
)

// Elasticity classes.
const (
	FocusVolume   = "focus_on_volume"
	FocusBalanced = "balanced_approach"
	FocusMargin   = "focus_on_margin"
)

const (
	aboveMarketGap  = 5.0
	belowMarketGap  = 2.0
	significantMove = 0.05
	highVelocity    = 10.0
	lowVelocity     = 3.0
)

// StrategySignal is one strategy's opinion for one product within one cycle.
type StrategySignal struct {
	Type       string    `json:"type"`
	Direction  Direction `json:"recommendation"`
	Weight     float64   `json:"weight"`
	Adjustment float64   `json:"price_adjustment"`
	Rationale  string    `json:"rationale"`
}

func directionOf(adj float64) Direction {
	switch {
	case adj > 0:
		return Increase
	case adj < 0:
		return Decrease
	default:
		return NoChange
	}
}

// competitorSignal reacts to our market position and to significant competitor moves.
func competitorSignal(price float64, pos *domain.MarketPosition, moves []domain.PriceMove, cfg Config) *StrategySignal {
	var sig *StrategySignal
	if pos != nil {
		gap := pos.GapVsAvg
		switch {
		case pos.Position == domain.PositionAbove && gap > aboveMarketGap:
			sig = &StrategySignal{
				Type:       StrategyCompetitor,
				Direction:  Decrease,
				Weight:     cfg.Weights.CompetitorStrong,
				Adjustment: -math.Min(gap*0.5, price*0.1),
				Rationale:  fmt.Sprintf("priced $%.2f above market average", gap),
			}
		case pos.Position == domain.PositionBelow && math.Abs(gap) > belowMarketGap:
			sig = &StrategySignal{
				Type:       StrategyCompetitor,
				Direction:  Increase,
				Weight:     cfg.Weights.Competitor,
				Adjustment: math.Min(math.Abs(gap)*0.3, price*0.05),
				Rationale:  fmt.Sprintf("priced $%.2f below market average", math.Abs(gap)),
			}
		}
	}

	for _, mv := range moves {
		if math.Abs(mv.ChangePercent) <= significantMove {
			continue
		}
		react := mv.ChangePercent * cfg.CompetitorResponseFactor * price
		if sig == nil {
			sig = &StrategySignal{
				Type:       StrategyCompetitor,
				Direction:  directionOf(react),
				Weight:     cfg.Weights.Competitor,
				Adjustment: react,
				Rationale:  fmt.Sprintf("%s moved price %+.1f%%", mv.Competitor, mv.ChangePercent*100),
			}
			continue
		}
		sig.Adjustment += react * 0.5
		sig.Direction = directionOf(sig.Adjustment)
		sig.Rationale += fmt.Sprintf("; %s moved price %+.1f%%", mv.Competitor, mv.ChangePercent*100)
	}
	if sig != nil && sig.Direction == NoChange {
		return nil
	}
	return sig
}

// inventorySignal raises prices on scarce stock and clears excess stock.
func inventorySignal(price float64, lvl *domain.StockLevel, cfg Config) *StrategySignal {
	if lvl == nil {
		return nil
	}
	switch lvl.Status {
	case domain.StockCritical:
		return &StrategySignal{
			Type:       StrategyInventory,
			Direction:  Increase,
			Weight:     cfg.Weights.InventoryCritical,
			Adjustment: price * 0.15,
			Rationale:  fmt.Sprintf("critical stock (%d units)", lvl.Current),
		}
	case domain.StockLow:
		return &StrategySignal{
			Type:       StrategyInventory,
			Direction:  Increase,
			Weight:     cfg.Weights.Inventory,
			Adjustment: price * 0.08,
			Rationale:  fmt.Sprintf("low stock (%d units)", lvl.Current),
		}
	case domain.StockExcess:
		if lvl.Target <= 0 || lvl.Current <= lvl.Target {
			return nil
		}
		ratio := float64(lvl.Current-lvl.Target) / float64(lvl.Target)
		return &StrategySignal{
			Type:       StrategyInventory,
			Direction:  Decrease,
			Weight:     cfg.Weights.InventoryExcess,
			Adjustment: -math.Min(price*0.12, price*0.2*ratio),
			Rationale:  fmt.Sprintf("excess stock, %.0f%% over target", ratio*100),
		}
	}
	return nil
}

// demandSignal follows sales velocity and folds in seasonality.
func demandSignal(price float64, d *domain.DemandPattern, cfg Config) *StrategySignal {
	if d == nil {
		return nil
	}
	var sig *StrategySignal
	switch {
	case d.Velocity > highVelocity && d.Trend == domain.TrendIncreasing:
		sig = &StrategySignal{
			Type:       StrategyDemand,
			Direction:  Increase,
			Weight:     cfg.Weights.DemandHigh,
			Adjustment: price * 0.08,
			Rationale:  fmt.Sprintf("high demand, %.1f units/day and rising", d.Velocity),
		}
	case d.Velocity < lowVelocity && isFlatOrFalling(d.Trend):
		sig = &StrategySignal{
			Type:       StrategyDemand,
			Direction:  Decrease,
			Weight:     cfg.Weights.DemandLow,
			Adjustment: -price * 0.10,
			Rationale:  fmt.Sprintf("low demand, %.1f units/day", d.Velocity),
		}
	}

	if s := d.Seasonality; s > 0 && math.Abs(s-1) > 1e-9 {
		seasonal := price * (s - 1) * 0.5
		if sig == nil {
			sig = &StrategySignal{
				Type:       StrategyDemand,
				Direction:  directionOf(seasonal),
				Weight:     cfg.Weights.Demand,
				Adjustment: seasonal,
				Rationale:  fmt.Sprintf("seasonal factor %.2f", s),
			}
		} else {
			sig.Adjustment += seasonal
			sig.Direction = directionOf(sig.Adjustment)
			sig.Rationale += fmt.Sprintf("; seasonal factor %.2f", s)
		}
	}
	if sig != nil && sig.Direction == NoChange {
		return nil
	}
	return sig
}

func isFlatOrFalling(trend string) bool {
	return trend == domain.TrendStable || trend == domain.TrendDeclining || trend == domain.TrendDecreasing
}

// classifyElasticity buckets an elasticity coefficient.
func classifyElasticity(e float64) string {
	switch {
	case e < -2.0:
		return FocusVolume
	case e < -1.0:
		return FocusBalanced
	default:
		return FocusMargin
	}
}

// elasticitySignal nudges inelastic products up and elastic products down while near base price.
func elasticitySignal(st domain.PriceState, elasticity float64, cfg Config) *StrategySignal {
	switch classifyElasticity(elasticity) {
	case FocusMargin:
		if st.CurrentPrice < st.BasePrice*1.1 {
			return &StrategySignal{
				Type:       StrategyElasticity,
				Direction:  Increase,
				Weight:     cfg.Weights.Elasticity,
				Adjustment: st.CurrentPrice * 0.05,
				Rationale:  fmt.Sprintf("inelastic demand (%.2f), room for margin", elasticity),
			}
		}
	case FocusVolume:
		if st.CurrentPrice > st.BasePrice*0.9 {
			return &StrategySignal{
				Type:       StrategyElasticity,
				Direction:  Decrease,
				Weight:     cfg.Weights.Elasticity,
				Adjustment: -st.CurrentPrice * 0.08,
				Rationale:  fmt.Sprintf("elastic demand (%.2f), favour volume", elasticity),
			}
		}
	}
	return nil
}

// priceSensitivity labels an elasticity coefficient for recommendation details.
func priceSensitivity(e float64) string {
	switch {
	case e < -1.5:
		return "high"
	case e < -0.8:
		return "medium"
	default:
		return "low"
	}
}
