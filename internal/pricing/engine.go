package pricing

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ramiqadoumi/go-pricing-agents/internal/agent"
	"github.com/ramiqadoumi/go-pricing-agents/internal/bus"
	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
	"github.com/ramiqadoumi/go-pricing-agents/pkg/telemetry"
)

// oscillationWindow is how many recent changes the strategy review inspects.
const oscillationWindow = 20

// Engine is the dynamic pricing agent. It is the only writer of its price table.
type Engine struct {
	cfg      Config
	products domain.ProductSource
	forecast domain.ForecastSource
	emit     *agent.Emitter
	logger   *slog.Logger

	mu        sync.Mutex
	prices    map[string]*domain.PriceState
	history   []domain.PriceChange
	positions map[string]domain.MarketPosition
	moves     []domain.PriceMove
	stock     map[string]domain.StockLevel
	demand    map[string]domain.DemandPattern
}

// Option configures an Engine.
type Option func(*Engine)

func WithForecast(f domain.ForecastSource) Option { return func(e *Engine) { e.forecast = f } }
func WithLogger(l *slog.Logger) Option           { return func(e *Engine) { e.logger = l } }

// New creates the pricing engine.
func New(cfg Config, products domain.ProductSource, emit *agent.Emitter, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		products:  products,
		emit:      emit,
		logger:    slog.Default(),
		prices:    make(map[string]*domain.PriceState),
		positions: make(map[string]domain.MarketPosition),
		stock:     make(map[string]domain.StockLevel),
		demand:    make(map[string]domain.DemandPattern),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.emit == nil {
		e.emit = agent.NewEmitter(domain.AgentPricing, nil, nil, e.logger)
	}
	e.logger = e.logger.With(slog.String("agent", domain.AgentPricing))
	return e
}

func (e *Engine) Name() string { return domain.AgentPricing }

// OnCompetitorUpdate replaces the market snapshot from a competitor report.
// Its price moves wait for the next cycle.
func (e *Engine) OnCompetitorUpdate(_ context.Context, msg bus.Message) error {
	report, ok := asCompetitorReport(msg.Payload)
	if !ok {
		return fmt.Errorf("unexpected payload %T on %s", msg.Payload, msg.Topic)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.positions = maps.Clone(report.Positions)
	e.moves = slices.Clone(report.Changes)
	return nil
}

// OnInventoryUpdate replaces the stock and demand snapshot from an inventory report.
func (e *Engine) OnInventoryUpdate(_ context.Context, msg bus.Message) error {
	report, ok := asInventoryReport(msg.Payload)
	if !ok {
		return fmt.Errorf("unexpected payload %T on %s", msg.Payload, msg.Topic)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stock = maps.Clone(report.StockLevels)
	e.demand = maps.Clone(report.Demand)
	return nil
}

// snapshot is one cycle's consistent copy of state and signals.
type snapshot struct {
	prices    map[string]domain.PriceState
	positions map[string]domain.MarketPosition
	moves     map[string][]domain.PriceMove
	stock     map[string]domain.StockLevel
	demand    map[string]domain.DemandPattern
}

// Competitor moves are taken, not copied: each move feeds exactly one cycle.
func (e *Engine) snapshot() snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := snapshot{
		prices:    make(map[string]domain.PriceState, len(e.prices)),
		positions: maps.Clone(e.positions),
		moves:     make(map[string][]domain.PriceMove),
		stock:     maps.Clone(e.stock),
		demand:    maps.Clone(e.demand),
	}
	for id, st := range e.prices {
		s.prices[id] = *st
	}
	for _, mv := range e.moves {
		s.moves[mv.ProductID] = append(s.moves[mv.ProductID], mv)
	}
	e.moves = nil
	return s
}

// Proposal is the evaluated decision for one product.
type Proposal struct {
	ProductID  string
	Signals    []StrategySignal
	Adjustment float64
	Confidence float64
	OldPrice   float64
	NewPrice   float64
	Apply      bool
	Elasticity float64
}

// Execute runs one pricing cycle over every tracked product.
func (e *Engine) Execute(ctx context.Context) (agent.Result, error) {
	ctx, span := otel.Tracer("pricing").Start(ctx, "pricing.execute")
	defer span.End()

	if err := e.syncCatalog(ctx); err != nil {
		return agent.Result{}, err
	}
	snap := e.snapshot()
	if e.forecast == nil {
		e.logger.Info("forecast source unavailable, using default elasticity",
			slog.Float64("elasticity", e.cfg.DefaultElasticity))
	}

	ids := slices.Sorted(maps.Keys(snap.prices))
	var changed, discarded, failed int
	var totalChange float64
	for _, id := range ids {
		p, err := e.evaluateSafe(ctx, snap, id)
		if err != nil {
			failed++
			e.logger.Error("product evaluation failed",
				slog.String("product_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !p.Apply {
			if len(p.Signals) > 0 {
				discarded++
				telemetry.PriceChangesDiscarded.Inc()
			}
			continue
		}
		change := e.commit(p)
		e.emitChange(ctx, p, change)
		changed++
		totalChange += math.Abs(change.ChangePercent)
	}

	recs := changed
	if changed > 0 && e.reviewStrategy(ctx) {
		recs++
	}

	span.SetAttributes(
		attribute.Int("pricing.products", len(ids)),
		attribute.Int("pricing.changed", changed),
	)
	avg := 0.0
	if changed > 0 {
		avg = totalChange / float64(changed)
	}
	e.logger.Info("pricing cycle complete",
		slog.Int("products", len(ids)),
		slog.Int("changed", changed),
		slog.Int("discarded", discarded),
		slog.Int("failed", failed),
		slog.Float64("avg_change_pct", avg*100),
	)
	return agent.Result{Recommendations: recs}, nil
}

// syncCatalog adds newly listed products and refreshes bounds of known ones.
// The current price of a known product stays authoritative here.
func (e *Engine) syncCatalog(ctx context.Context) error {
	products, err := e.products.Products(ctx)
	if err != nil {
		e.mu.Lock()
		known := len(e.prices)
		e.mu.Unlock()
		if known == 0 {
			return fmt.Errorf("load products: %w", err)
		}
		e.logger.Warn("product source unavailable, pricing known products",
			slog.String("error", err.Error()))
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range products {
		fresh := domain.NewPriceState(p)
		st, ok := e.prices[p.ID]
		if !ok {
			e.prices[p.ID] = &fresh
			continue
		}
		st.BasePrice, st.MinPrice, st.MaxPrice = fresh.BasePrice, fresh.MinPrice, fresh.MaxPrice
		st.CurrentPrice = domain.Clamp(st.CurrentPrice, st.MinPrice, st.MaxPrice)
	}
	return nil
}

func (e *Engine) evaluateSafe(ctx context.Context, snap snapshot, id string) (p Proposal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic evaluating %s: %v", id, r)
		}
	}()
	return e.evaluate(ctx, snap, id), nil
}

// evaluate builds, fuses and constrains the strategy signals for one product.
func (e *Engine) evaluate(ctx context.Context, snap snapshot, id string) Proposal {
	st := snap.prices[id]
	price := st.CurrentPrice

	var pos *domain.MarketPosition
	if v, ok := snap.positions[id]; ok {
		pos = &v
	}
	var lvl *domain.StockLevel
	if v, ok := snap.stock[id]; ok {
		lvl = &v
	}
	dem := e.demandFor(ctx, snap, id)
	elasticity := e.elasticityFor(ctx, id)

	var signals []StrategySignal
	for _, s := range []*StrategySignal{
		competitorSignal(price, pos, snap.moves[id], e.cfg),
		inventorySignal(price, lvl, e.cfg),
		demandSignal(price, dem, e.cfg),
		elasticitySignal(st, elasticity, e.cfg),
	} {
		if s != nil {
			signals = append(signals, *s)
			telemetry.PricingSignals.WithLabelValues(s.Type).Inc()
		}
	}

	adj, conf := fuse(signals)
	newPrice, ok := constrain(st, adj, e.cfg)
	return Proposal{
		ProductID:  id,
		Signals:    signals,
		Adjustment: adj,
		Confidence: conf,
		OldPrice:   price,
		NewPrice:   newPrice,
		Apply:      ok,
		Elasticity: elasticity,
	}
}

// demandFor returns the demand pattern, filling an unknown seasonality from the forecast source.
func (e *Engine) demandFor(ctx context.Context, snap snapshot, id string) *domain.DemandPattern {
	d, ok := snap.demand[id]
	if !ok {
		return nil
	}
	if d.Seasonality == 0 && e.forecast != nil {
		if f, err := e.forecast.DemandForecast(ctx, id, 7); err == nil {
			d.Seasonality = f.Seasonality
		}
	}
	return &d
}

func (e *Engine) elasticityFor(ctx context.Context, id string) float64 {
	if e.forecast == nil {
		return e.cfg.DefaultElasticity
	}
	v, err := e.forecast.Elasticity(ctx, id)
	if err != nil {
		var unavailable *domain.SignalUnavailableError
		if !errors.As(err, &unavailable) {
			e.logger.Warn("forecast elasticity failed, using default",
				slog.String("product_id", id),
				slog.String("error", err.Error()),
			)
		}
		return e.cfg.DefaultElasticity
	}
	return v
}

// commit writes the new price into the table and appends the history record.
func (e *Engine) commit(p Proposal) domain.PriceChange {
	primary := primarySignal(p.Signals)
	change := domain.PriceChange{
		ProductID:     p.ProductID,
		OldPrice:      p.OldPrice,
		NewPrice:      p.NewPrice,
		ChangePercent: (p.NewPrice - p.OldPrice) / p.OldPrice,
		Confidence:    p.Confidence,
		Strategy:      primary.Type,
		Rationale:     primary.Rationale,
		At:            time.Now().UTC(),
	}

	e.mu.Lock()
	e.prices[p.ProductID].CurrentPrice = p.NewPrice
	e.history = append(e.history, change)
	if over := len(e.history) - e.cfg.HistoryCap; e.cfg.HistoryCap > 0 && over > 0 {
		e.history = slices.Delete(e.history, 0, over)
	}
	e.mu.Unlock()

	telemetry.PriceChanges.WithLabelValues(string(directionOf(change.ChangePercent))).Inc()
	return change
}

func (e *Engine) emitChange(ctx context.Context, p Proposal, change domain.PriceChange) {
	impact := domain.LevelMedium
	if math.Abs(change.ChangePercent) > 0.1 {
		impact = domain.LevelHigh
	}
	types := make([]string, len(p.Signals))
	for i, s := range p.Signals {
		types[i] = s.Type
	}
	e.emit.Emit(ctx, domain.TopicPriceRecommended, domain.Recommendation{
		Type:      domain.RecPriceChangeExecuted,
		ProductID: p.ProductID,
		Text: fmt.Sprintf("Price of %s changed from $%.2f to $%.2f (%+.1f%%)",
			p.ProductID, change.OldPrice, change.NewPrice, change.ChangePercent*100),
		Confidence: p.Confidence,
		Impact:     impact,
		Urgency:    domain.LevelHigh,
		Rationale:  change.Rationale,
		Details: map[string]any{
			"old_price":         change.OldPrice,
			"new_price":         change.NewPrice,
			"change_percent":    change.ChangePercent,
			"primary_strategy":  change.Strategy,
			"strategies":        types,
			"price_sensitivity": priceSensitivity(p.Elasticity),
			"revenue_impact":    1 + p.Elasticity,
		},
	})
}

// reviewStrategy flags oscillation: more than half of the recent changes reversing
// the previous change on the same product.
func (e *Engine) reviewStrategy(ctx context.Context) bool {
	e.mu.Lock()
	recent := e.history[max(len(e.history)-oscillationWindow, 0):]
	last := make(map[string]float64)
	var considered, reversals int
	for _, c := range recent {
		if prev, ok := last[c.ProductID]; ok {
			considered++
			if prev*c.ChangePercent < 0 {
				reversals++
			}
		}
		last[c.ProductID] = c.ChangePercent
	}
	e.mu.Unlock()

	if considered < 4 || reversals*2 <= considered {
		return false
	}
	e.emit.Emit(ctx, "", domain.Recommendation{
		Type:       domain.RecPricingStrategy,
		Text:       "Price changes are oscillating; consider raising the change threshold",
		Confidence: 0.7,
		Impact:     domain.LevelMedium,
		Urgency:    domain.LevelMedium,
		Rationale:  fmt.Sprintf("%d of %d consecutive changes reversed direction", reversals, considered),
		Details: map[string]any{
			"reversals":        reversals,
			"considered":       considered,
			"change_threshold": e.cfg.ChangeThreshold,
		},
	})
	return true
}

// Prices returns a copy of the price table sorted by product id.
func (e *Engine) Prices() []domain.PriceState {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.PriceState, 0, len(e.prices))
	for _, st := range e.prices {
		out = append(out, *st)
	}
	slices.SortFunc(out, func(a, b domain.PriceState) int {
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	return out
}

// History returns a copy of the executed change log, oldest first.
func (e *Engine) History() []domain.PriceChange {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.history)
}

func asCompetitorReport(v any) (domain.CompetitorReport, bool) {
	switch r := v.(type) {
	case domain.CompetitorReport:
		return r, true
	case *domain.CompetitorReport:
		if r != nil {
			return *r, true
		}
	}
	return domain.CompetitorReport{}, false
}

func asInventoryReport(v any) (domain.InventoryReport, bool) {
	switch r := v.(type) {
	case domain.InventoryReport:
		return r, true
	case *domain.InventoryReport:
		if r != nil {
			return *r, true
		}
	}
	return domain.InventoryReport{}, false
}
