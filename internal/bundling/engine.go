package bundling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ramiqadoumi/go-pricing-agents/internal/agent"
	"github.com/ramiqadoumi/go-pricing-agents/internal/bus"
	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
	"github.com/ramiqadoumi/go-pricing-agents/pkg/telemetry"
)

// Engine is the dynamic bundling agent. It owns the active bundle set.
type Engine struct {
	cfg      Config
	products domain.ProductSource
	perf     domain.PerformanceSource
	emit     *agent.Emitter
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.Mutex
	inventory  *domain.InventoryReport
	competitor *domain.CompetitorReport
	behavior   *domain.BehaviorReport
	catalog    []domain.Product
	active     *activeSet
}

// Option configures an Engine.
type Option func(*Engine)

func WithPerformance(p domain.PerformanceSource) Option { return func(e *Engine) { e.perf = p } }
func WithLogger(l *slog.Logger) Option                  { return func(e *Engine) { e.logger = l } }
func WithClock(now func() time.Time) Option             { return func(e *Engine) { e.now = now } }

// New creates the bundling engine.
func New(cfg Config, products domain.ProductSource, emit *agent.Emitter, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		products: products,
		emit:     emit,
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
		active:   newActiveSet(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.emit == nil {
		e.emit = agent.NewEmitter(domain.AgentBundler, nil, nil, e.logger)
	}
	e.logger = e.logger.With(slog.String("agent", domain.AgentBundler))
	return e
}

func (e *Engine) Name() string { return domain.AgentBundler }

func (e *Engine) OnInventoryUpdate(_ context.Context, msg bus.Message) error {
	var r *domain.InventoryReport
	switch p := msg.Payload.(type) {
	case domain.InventoryReport:
		r = &p
	case *domain.InventoryReport:
		r = p
	}
	if r == nil {
		return fmt.Errorf("unexpected payload %T on %s", msg.Payload, msg.Topic)
	}
	e.mu.Lock()
	e.inventory = r
	e.mu.Unlock()
	return nil
}

func (e *Engine) OnCompetitorUpdate(_ context.Context, msg bus.Message) error {
	var r *domain.CompetitorReport
	switch p := msg.Payload.(type) {
	case domain.CompetitorReport:
		r = &p
	case *domain.CompetitorReport:
		r = p
	}
	if r == nil {
		return fmt.Errorf("unexpected payload %T on %s", msg.Payload, msg.Topic)
	}
	e.mu.Lock()
	e.competitor = r
	e.mu.Unlock()
	return nil
}

func (e *Engine) OnCartInsight(_ context.Context, msg bus.Message) error {
	var r *domain.BehaviorReport
	switch p := msg.Payload.(type) {
	case domain.BehaviorReport:
		r = &p
	case *domain.BehaviorReport:
		r = p
	}
	if r == nil {
		return fmt.Errorf("unexpected payload %T on %s", msg.Payload, msg.Topic)
	}
	e.mu.Lock()
	e.behavior = r
	e.mu.Unlock()
	return nil
}

// Execute runs one bundling cycle: generate, score, price, select, activate,
// review performance and emit.
func (e *Engine) Execute(ctx context.Context) (agent.Result, error) {
	ctx, span := otel.Tracer("bundling").Start(ctx, "bundling.execute")
	defer span.End()

	v, err := e.view(ctx)
	if err != nil {
		return agent.Result{}, err
	}

	cands := generate(v, e.cfg)
	for i := range cands {
		cands[i] = price(score(cands[i], v), v, e.cfg)
	}
	selected := selectBundles(cands, e.cfg)

	now := e.now()
	activated := make([]domain.ActiveBundle, 0, len(selected))
	e.mu.Lock()
	for _, c := range selected {
		b, _ := e.active.upsert(c, now)
		activated = append(activated, b)
	}
	evicted := e.active.evict(e.cfg.MaxActive)
	current := e.active.list()
	e.mu.Unlock()

	for _, b := range activated {
		telemetry.BundlesSelected.WithLabelValues(b.Type).Inc()
		e.emitCreation(ctx, b)
	}
	telemetry.BundlesActive.Set(float64(len(current)))
	telemetry.BundlesEvicted.Add(float64(evicted))

	discontinued := e.reviewPerformance(ctx, current)

	span.SetAttributes(
		attribute.Int("bundling.candidates", len(cands)),
		attribute.Int("bundling.selected", len(selected)),
	)
	sum := summarize(current)
	e.logger.Info("bundling cycle complete",
		slog.Int("candidates", len(cands)),
		slog.Int("selected", len(selected)),
		slog.Int("evicted", evicted),
		slog.Int("discontinue_suggested", discontinued),
		slog.Int("active", sum.Active),
		slog.Float64("avg_size", sum.AvgSize),
		slog.Float64("avg_discount_pct", sum.AvgDiscountPercent),
	)
	return agent.Result{Recommendations: len(activated) + discontinued}, nil
}

// view loads the catalog and copies the signal snapshots. A catalog outage falls
// back to the last catalog seen.
func (e *Engine) view(ctx context.Context) (view, error) {
	products, err := e.products.Products(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		if e.catalog == nil {
			return view{}, fmt.Errorf("load products: %w", err)
		}
		e.logger.Warn("product source unavailable, using cached catalog",
			slog.String("error", err.Error()))
		products = e.catalog
	}
	e.catalog = products
	return newView(products, e.inventory, e.competitor, e.behavior), nil
}

func (e *Engine) emitCreation(ctx context.Context, b domain.ActiveBundle) {
	impact := domain.LevelMedium
	if b.FinalScore > 0.8 {
		impact = domain.LevelHigh
	}
	urgency := domain.LevelMedium
	if b.Strategy == domain.StrategyClearSlowMoving {
		urgency = domain.LevelHigh
	}
	e.emit.Emit(ctx, domain.TopicBundleRecommended, domain.Recommendation{
		Type:       domain.RecBundleCreation,
		ProductID:  b.PrimaryItem,
		Text:       "Create bundle: " + strings.Join(b.Items, ", "),
		Confidence: b.Confidence,
		Impact:     impact,
		Urgency:    urgency,
		Rationale:  b.Reason,
		Details: map[string]any{
			"bundle_id":    b.ID,
			"items":        b.Items,
			"primary_item": b.PrimaryItem,
			"bundle_type":  b.Type,
			"strategy":     b.Strategy,
			"final_score":  b.FinalScore,
			"pricing":      b.Pricing,
		},
	})
}

// reviewPerformance suggests discontinuing active bundles that convert poorly.
// Bundles are never removed here.
func (e *Engine) reviewPerformance(ctx context.Context, active []domain.ActiveBundle) int {
	if e.perf == nil {
		return 0
	}
	n := 0
	for _, b := range active {
		stats, err := e.perf.BundleStats(ctx, b.ID)
		if err != nil {
			var unavailable *domain.SignalUnavailableError
			if !errors.As(err, &unavailable) {
				e.logger.Warn("bundle stats unavailable",
					slog.String("bundle_id", b.ID),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		rate := stats.ConversionRate()
		if stats.Views == 0 || rate >= e.cfg.DiscontinueBelow {
			continue
		}
		e.emit.Emit(ctx, "", domain.Recommendation{
			Type:       domain.RecBundleDiscontinue,
			ProductID:  b.PrimaryItem,
			Text:       "Discontinue underperforming bundle: " + strings.Join(b.Items, ", "),
			Confidence: 0.8,
			Impact:     domain.LevelMedium,
			Urgency:    domain.LevelLow,
			Rationale:  fmt.Sprintf("conversion rate %.2f%% over %d views", rate*100, stats.Views),
			Details: map[string]any{
				"bundle_id":       b.ID,
				"views":           stats.Views,
				"conversions":     stats.Conversions,
				"conversion_rate": rate,
			},
		})
		n++
	}
	return n
}

// Summary describes the active bundle set.
type Summary struct {
	Active             int            `json:"active_bundles"`
	ByType             map[string]int `json:"bundle_types"`
	AvgSize            float64        `json:"avg_bundle_size"`
	AvgDiscountPercent float64        `json:"avg_discount_percent"`
}

func summarize(active []domain.ActiveBundle) Summary {
	s := Summary{Active: len(active), ByType: make(map[string]int)}
	if len(active) == 0 {
		return s
	}
	var size, disc float64
	for _, b := range active {
		s.ByType[b.Type]++
		size += float64(len(b.Items))
		disc += b.Pricing.DiscountPercent
	}
	s.AvgSize = math.Round(size/float64(len(active))*10) / 10
	s.AvgDiscountPercent = math.Round(disc/float64(len(active))*10) / 10
	return s
}

// Active returns copies of the active bundles, oldest first.
func (e *Engine) Active() []domain.ActiveBundle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active.list()
}

// Summary reports counts by type, average size and average discount of the active set.
func (e *Engine) Summary() Summary {
	return summarize(e.Active())
}
