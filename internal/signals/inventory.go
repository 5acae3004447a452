package signals

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/ramiqadoumi/go-pricing-agents/internal/agent"
	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

// InventoryConfig tunes the inventory monitor.
type InventoryConfig struct {
	LowStockThreshold  int
	HighStockThreshold int
	ForecastDays       int
	LookbackDays       int
	FastVelocity       float64
	SlowVelocity       float64
	UrgentStock        int
}

func DefaultInventoryConfig() InventoryConfig {
	return InventoryConfig{
		LowStockThreshold:  10,
		HighStockThreshold: 100,
		ForecastDays:       7,
		LookbackDays:       30,
		FastVelocity:       10,
		SlowVelocity:       3,
		UrgentStock:        5,
	}
}

// InventoryMonitor classifies stock, measures sales velocity and publishes an InventoryReport.
type InventoryMonitor struct {
	base
	cfg      InventoryConfig
	products domain.ProductSource
	sales    domain.SalesFeed
}

// NewInventoryMonitor creates the monitor. sales may be nil, in which case
// reports carry stock levels only.
func NewInventoryMonitor(cfg InventoryConfig, products domain.ProductSource, sales domain.SalesFeed, emit *agent.Emitter, opts ...Option) *InventoryMonitor {
	return &InventoryMonitor{
		base:     newBase(domain.AgentInventory, emit, opts),
		cfg:      cfg,
		products: products,
		sales:    sales,
	}
}

func (m *InventoryMonitor) Name() string { return domain.AgentInventory }

func (m *InventoryMonitor) Execute(ctx context.Context) (agent.Result, error) {
	products, err := m.products.Products(ctx)
	if err != nil {
		return agent.Result{}, fmt.Errorf("load products: %w", err)
	}
	now := m.now()
	var sales []domain.Sale
	if m.sales != nil {
		sales, err = m.sales.Sales(ctx, now.AddDate(0, 0, -m.cfg.LookbackDays))
		if err != nil {
			return agent.Result{}, fmt.Errorf("fetch sales: %w", err)
		}
	}

	report := m.analyze(products, sales, m.sales != nil, now)
	m.emit.Publish(ctx, domain.TopicInventoryUpdate, report)

	n := m.emitOpportunities(ctx, report.Opportunities)
	for _, id := range slices.Sorted(maps.Keys(report.Forecasts)) {
		f := report.Forecasts[id]
		if !f.ReorderNeeded {
			continue
		}
		m.emit.Emit(ctx, "", domain.Recommendation{
			Type:       domain.RecRestock,
			ProductID:  id,
			Text:       fmt.Sprintf("Reorder %s, stock runs out in %.1f days", id, f.DaysUntilStockout),
			Confidence: 0.85,
			Impact:     domain.LevelHigh,
			Urgency:    domain.LevelHigh,
			Rationale:  fmt.Sprintf("projected demand of %.0f units over %d days", f.ForecastDemand, m.cfg.ForecastDays),
			Details: map[string]any{
				"days_until_stockout": f.DaysUntilStockout,
				"forecast_demand":     f.ForecastDemand,
			},
		})
		n++
	}

	m.logger.Info("inventory analysis complete",
		slog.Int("products", len(products)),
		slog.Int("low_stock", len(report.LowStock)),
		slog.Int("high_stock", len(report.HighStock)),
		slog.Int("recommendations", n),
	)
	return agent.Result{Recommendations: n}, nil
}

// analyze builds the report. Without sales history only stock is classified:
// demand stays unknown rather than reading as zero velocity.
func (m *InventoryMonitor) analyze(products []domain.Product, sales []domain.Sale, withDemand bool, now time.Time) domain.InventoryReport {
	r := domain.InventoryReport{
		StockLevels: make(map[string]domain.StockLevel, len(products)),
		Demand:      make(map[string]domain.DemandPattern, len(products)),
		Forecasts:   make(map[string]domain.StockForecast),
		GeneratedAt: now,
	}

	// Sales split into the first and second half of the lookback window.
	days := max(m.cfg.LookbackDays, 1)
	start := now.AddDate(0, 0, -days)
	mid := start.Add(now.Sub(start) / 2)
	firstHalf, secondHalf := make(map[string]int), make(map[string]int)
	for _, s := range sales {
		if s.Day.Before(start) {
			continue
		}
		if s.Day.Before(mid) {
			firstHalf[s.ProductID] += s.Units
		} else {
			secondHalf[s.ProductID] += s.Units
		}
	}

	sorted := slices.Clone(products)
	slices.SortFunc(sorted, func(a, b domain.Product) int { return cmp.Compare(a.ID, b.ID) })

	for _, p := range sorted {
		lvl := domain.NewStockLevel(p, m.cfg.LowStockThreshold, m.cfg.HighStockThreshold)
		r.StockLevels[p.ID] = lvl
		switch lvl.Status {
		case domain.StockOut, domain.StockCritical, domain.StockLow:
			r.LowStock = append(r.LowStock, p.ID)
		case domain.StockExcess:
			r.HighStock = append(r.HighStock, p.ID)
		}
		if !withDemand {
			continue
		}

		units := firstHalf[p.ID] + secondHalf[p.ID]
		velocity := float64(units) / float64(days)
		r.Demand[p.ID] = domain.DemandPattern{
			ProductID: p.ID,
			Velocity:  velocity,
			Trend:     demandTrend(firstHalf[p.ID], secondHalf[p.ID]),
		}
		switch {
		case velocity > m.cfg.FastVelocity:
			r.FastMovers = append(r.FastMovers, p.ID)
		case velocity < m.cfg.SlowVelocity:
			r.SlowMovers = append(r.SlowMovers, p.ID)
		}

		if velocity > 0 {
			daysLeft := float64(p.Stock) / velocity
			r.Forecasts[p.ID] = domain.StockForecast{
				ProductID:         p.ID,
				DaysUntilStockout: daysLeft,
				ForecastDemand:    velocity * float64(m.cfg.ForecastDays),
				ReorderNeeded:     daysLeft <= float64(m.cfg.ForecastDays),
			}
		}
	}

	r.Opportunities = m.opportunities(r)
	return r
}

func (m *InventoryMonitor) opportunities(r domain.InventoryReport) []domain.Opportunity {
	var out []domain.Opportunity
	for _, id := range r.HighStock {
		lvl := r.StockLevels[id]
		urgency := domain.LevelLow
		if lvl.Current-lvl.Max >= 50 {
			urgency = domain.LevelMedium
		}
		out = append(out, domain.Opportunity{
			Type:       domain.OpportunityClearance,
			ProductID:  id,
			Confidence: 0.8,
			Impact:     domain.LevelMedium,
			Urgency:    urgency,
			Detail:     fmt.Sprintf("discount to clear %d excess units", lvl.Current-lvl.Max),
		})
	}
	for _, slow := range r.SlowMovers {
		for _, fast := range r.FastMovers {
			out = append(out, domain.Opportunity{
				Type:       domain.OpportunityBundle,
				ProductID:  fast,
				RelatedID:  slow,
				Confidence: 0.7,
				Impact:     domain.LevelHigh,
				Urgency:    domain.LevelMedium,
				Detail:     fmt.Sprintf("bundle slow-moving %s with popular %s", slow, fast),
			})
		}
	}
	for _, id := range r.LowStock {
		lvl := r.StockLevels[id]
		if lvl.Current <= 0 || lvl.Current >= m.cfg.UrgentStock {
			continue
		}
		out = append(out, domain.Opportunity{
			Type:       domain.OpportunityPremiumPricing,
			ProductID:  id,
			Confidence: 0.9,
			Impact:     domain.LevelHigh,
			Urgency:    domain.LevelHigh,
			Detail:     fmt.Sprintf("only %d units left", lvl.Current),
		})
	}
	return out
}

// demandTrend compares the two halves of the lookback window with a 10% dead band.
func demandTrend(first, second int) string {
	switch {
	case float64(second) > float64(first)*1.1:
		return domain.TrendIncreasing
	case float64(second) < float64(first)*0.9:
		return domain.TrendDeclining
	default:
		return domain.TrendStable
	}
}
