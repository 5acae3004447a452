package signals

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/ramiqadoumi/go-pricing-agents/internal/agent"
	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

// Competitor quote availability values.
const (
	AvailabilityInStock    = "in_stock"
	AvailabilityLowStock   = "low_stock"
	AvailabilityOutOfStock = "out_of_stock"
)

// CompetitorConfig tunes the competitor monitor.
type CompetitorConfig struct {
	ChangeThreshold float64
	HistoryCap      int
	TrendWindow     int
	MarketWindow    int
}

func DefaultCompetitorConfig() CompetitorConfig {
	return CompetitorConfig{
		ChangeThreshold: 0.05,
		HistoryCap:      1000,
		TrendWindow:     50,
		MarketWindow:    100,
	}
}

// CompetitorMonitor reads competitor quotes, positions our prices against them
// and publishes a CompetitorReport.
type CompetitorMonitor struct {
	base
	cfg      CompetitorConfig
	feed     domain.CompetitorFeed
	products domain.ProductSource

	mu      sync.Mutex
	history []domain.CompetitorQuote
}

func NewCompetitorMonitor(cfg CompetitorConfig, feed domain.CompetitorFeed, products domain.ProductSource, emit *agent.Emitter, opts ...Option) *CompetitorMonitor {
	return &CompetitorMonitor{
		base:     newBase(domain.AgentCompetitor, emit, opts),
		cfg:      cfg,
		feed:     feed,
		products: products,
	}
}

func (m *CompetitorMonitor) Name() string { return domain.AgentCompetitor }

func (m *CompetitorMonitor) Execute(ctx context.Context) (agent.Result, error) {
	quotes, err := m.feed.Quotes(ctx)
	if err != nil {
		return agent.Result{}, fmt.Errorf("fetch competitor quotes: %w", err)
	}
	products, err := m.products.Products(ctx)
	if err != nil {
		return agent.Result{}, fmt.Errorf("load products: %w", err)
	}

	history := m.record(quotes)
	report := m.analyze(products, quotes, history)
	m.emit.Publish(ctx, domain.TopicCompetitorUpdate, report)
	n := m.emitOpportunities(ctx, report.Opportunities)

	m.logger.Info("competitor analysis complete",
		slog.Int("quotes", len(quotes)),
		slog.Int("positions", len(report.Positions)),
		slog.Int("significant_changes", len(report.Changes)),
		slog.Int("opportunities", n),
	)
	return agent.Result{Recommendations: n}, nil
}

// record appends quotes to the capped history and returns a copy of it.
func (m *CompetitorMonitor) record(quotes []domain.CompetitorQuote) []domain.CompetitorQuote {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, quotes...)
	if over := len(m.history) - m.cfg.HistoryCap; m.cfg.HistoryCap > 0 && over > 0 {
		m.history = slices.Delete(m.history, 0, over)
	}
	return slices.Clone(m.history)
}

func (m *CompetitorMonitor) analyze(products []domain.Product, quotes, history []domain.CompetitorQuote) domain.CompetitorReport {
	report := domain.CompetitorReport{
		Positions:    positions(products, quotes),
		Trends:       make(map[string]string),
		Volatility:   make(map[string]float64),
		Leaders:      make(map[string]string),
		Availability: make(map[string]float64),
		GeneratedAt:  m.now(),
	}
	report.Changes = m.moves(history)

	trendWindow := tail(history, m.cfg.TrendWindow)
	for id, series := range groupBy(trendWindow) {
		var changes []float64
		for _, qs := range series {
			if len(qs) >= 2 && qs[0].Price > 0 {
				changes = append(changes, (qs[len(qs)-1].Price-qs[0].Price)/qs[0].Price)
			}
		}
		if len(changes) > 0 {
			report.Trends[id] = priceTrend(mean(changes))
		}
	}

	marketWindow := tail(history, m.cfg.MarketWindow)
	for id, series := range groupBy(marketWindow) {
		var prices []float64
		var available float64
		var total int
		leader, leaderAvg := "", math.Inf(1)
		for _, comp := range slices.Sorted(maps.Keys(series)) {
			var cp []float64
			for _, q := range series[comp] {
				cp = append(cp, q.Price)
				total++
				switch q.Availability {
				case AvailabilityInStock:
					available++
				case AvailabilityLowStock:
					available += 0.5
				}
			}
			prices = append(prices, cp...)
			if avg := mean(cp); avg < leaderAvg {
				leader, leaderAvg = comp, avg
			}
		}
		if len(prices) > 1 {
			if mu := mean(prices); mu > 0 {
				report.Volatility[id] = stddev(prices) / mu
			}
		}
		report.Leaders[id] = leader
		report.Availability[id] = available / float64(total)
	}

	report.Opportunities = opportunities(report)
	return report
}

// moves compares the last two observations of every product and competitor pair.
func (m *CompetitorMonitor) moves(history []domain.CompetitorQuote) []domain.PriceMove {
	var out []domain.PriceMove
	groups := groupBy(history)
	for _, id := range slices.Sorted(maps.Keys(groups)) {
		for _, comp := range slices.Sorted(maps.Keys(groups[id])) {
			qs := groups[id][comp]
			if len(qs) < 2 {
				continue
			}
			prev, last := qs[len(qs)-2], qs[len(qs)-1]
			if prev.Price <= 0 {
				continue
			}
			pct := (last.Price - prev.Price) / prev.Price
			if math.Abs(pct) < m.cfg.ChangeThreshold {
				continue
			}
			sig := domain.LevelMedium
			if math.Abs(pct) > 0.1 {
				sig = domain.LevelHigh
			}
			out = append(out, domain.PriceMove{
				Competitor:    comp,
				ProductID:     id,
				OldPrice:      prev.Price,
				NewPrice:      last.Price,
				ChangePercent: pct,
				Significance:  sig,
			})
		}
	}
	return out
}

// positions places each product against the competitor spread in the current batch.
func positions(products []domain.Product, quotes []domain.CompetitorQuote) map[string]domain.MarketPosition {
	latest := make(map[string]map[string]domain.CompetitorQuote)
	for _, q := range quotes {
		if latest[q.ProductID] == nil {
			latest[q.ProductID] = make(map[string]domain.CompetitorQuote)
		}
		if cur, ok := latest[q.ProductID][q.Competitor]; !ok || !q.ObservedAt.Before(cur.ObservedAt) {
			latest[q.ProductID][q.Competitor] = q
		}
	}

	out := make(map[string]domain.MarketPosition)
	for _, p := range products {
		byComp := latest[p.ID]
		if len(byComp) == 0 {
			continue
		}
		var prices []float64
		for _, q := range byComp {
			prices = append(prices, q.Price)
		}
		lo, hi, avg := slices.Min(prices), slices.Max(prices), mean(prices)
		pos := domain.PositionCompetitive
		switch {
		case p.CurrentPrice < lo:
			pos = domain.PositionBelow
		case p.CurrentPrice > hi:
			pos = domain.PositionAbove
		}
		out[p.ID] = domain.MarketPosition{
			ProductID:      p.ID,
			OurPrice:       p.CurrentPrice,
			MinCompetitor:  lo,
			MaxCompetitor:  hi,
			AvgCompetitor:  avg,
			Position:       pos,
			GapVsMin:       p.CurrentPrice - lo,
			GapVsAvg:       p.CurrentPrice - avg,
			CompetitorSeen: len(byComp),
		}
	}
	return out
}

func opportunities(r domain.CompetitorReport) []domain.Opportunity {
	var out []domain.Opportunity
	ids := slices.Sorted(maps.Keys(r.Positions))

	for _, id := range ids {
		pos := r.Positions[id]
		if pos.Position != domain.PositionAbove || pos.GapVsMin <= 5 {
			continue
		}
		urgency := domain.LevelMedium
		if pos.GapVsMin > 10 {
			urgency = domain.LevelHigh
		}
		out = append(out, domain.Opportunity{
			Type:       domain.OpportunityPriceReduction,
			ProductID:  id,
			Confidence: 0.8,
			Impact:     domain.LevelHigh,
			Urgency:    urgency,
			Detail: fmt.Sprintf("priced $%.2f above the cheapest competitor, consider $%.2f",
				pos.GapVsMin, pos.MinCompetitor+0.99),
		})
	}

	for _, id := range ids {
		pos := r.Positions[id]
		if r.Availability[id] <= 0.8 || pos.Position == domain.PositionAbove {
			continue
		}
		out = append(out, domain.Opportunity{
			Type:       domain.OpportunityPremiumPricing,
			ProductID:  id,
			Confidence: 0.7,
			Impact:     domain.LevelMedium,
			Urgency:    domain.LevelLow,
			Detail:     fmt.Sprintf("competitors broadly in stock, room for $%.2f", pos.OurPrice*1.05),
		})
	}

	for _, mv := range r.Changes {
		if mv.Significance != domain.LevelHigh {
			continue
		}
		if _, ok := r.Positions[mv.ProductID]; !ok {
			continue
		}
		o := domain.Opportunity{
			Type:       domain.OpportunityCompetitiveResponse,
			ProductID:  mv.ProductID,
			Confidence: 0.7,
			Impact:     domain.LevelHigh,
			Urgency:    domain.LevelHigh,
			Detail:     fmt.Sprintf("%s cut price by %.1f%%, consider matching", mv.Competitor, -mv.ChangePercent*100),
		}
		if mv.ChangePercent > 0 {
			o.Confidence, o.Impact, o.Urgency = 0.6, domain.LevelMedium, domain.LevelMedium
			o.Detail = fmt.Sprintf("%s raised price by %.1f%%, consider a moderate increase", mv.Competitor, mv.ChangePercent*100)
		}
		out = append(out, o)
	}

	for _, id := range ids {
		if r.Positions[id].Position != domain.PositionBelow {
			continue
		}
		out = append(out, domain.Opportunity{
			Type:       domain.OpportunityBundleAnchor,
			ProductID:  id,
			Confidence: 0.8,
			Impact:     domain.LevelHigh,
			Urgency:    domain.LevelLow,
			Detail:     "price advantage makes this a bundle anchor",
		})
	}
	return out
}

func priceTrend(change float64) string {
	switch {
	case change > 0.02:
		return domain.TrendIncreasing
	case change < -0.02:
		return domain.TrendDecreasing
	default:
		return domain.TrendStable
	}
}

// groupBy indexes quotes by product then competitor, each series oldest first.
func groupBy(quotes []domain.CompetitorQuote) map[string]map[string][]domain.CompetitorQuote {
	out := make(map[string]map[string][]domain.CompetitorQuote)
	for _, q := range quotes {
		if out[q.ProductID] == nil {
			out[q.ProductID] = make(map[string][]domain.CompetitorQuote)
		}
		out[q.ProductID][q.Competitor] = append(out[q.ProductID][q.Competitor], q)
	}
	for _, byComp := range out {
		for _, qs := range byComp {
			slices.SortStableFunc(qs, func(a, b domain.CompetitorQuote) int {
				return a.ObservedAt.Compare(b.ObservedAt)
			})
		}
	}
	return out
}

func tail[T any](xs []T, n int) []T {
	if n <= 0 || len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}
