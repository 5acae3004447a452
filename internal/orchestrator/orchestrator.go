// Package orchestrator composes the agent runtimes, wires their bus
// subscriptions and runs the coordination loop that auto-applies
// high-confidence recommendations.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/ramiqadoumi/go-pricing-agents/internal/agent"
	"github.com/ramiqadoumi/go-pricing-agents/internal/bus"
	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
	"github.com/ramiqadoumi/go-pricing-agents/pkg/telemetry"
)

// relayTimeout bounds a republish from inside a bus handler so a full queue
// cannot wedge the dispatcher.
const relayTimeout = time.Second

// Worker pairs a task with its schedule.
type Worker struct {
	Task   agent.Task
	Config agent.Config
}

// Config controls the coordination loop.
type Config struct {
	CoordinationInterval time.Duration
	BundleThreshold      float64
	PriceThreshold       float64
}

func DefaultConfig() Config {
	return Config{
		CoordinationInterval: 5 * time.Minute,
		BundleThreshold:      0.8,
		PriceThreshold:       0.85,
	}
}

// StatusStore mirrors status snapshots to an external store.
type StatusStore interface {
	SaveStatus(ctx context.Context, st domain.SystemStatus) error
}

// Limiter gates auto-applies. Errors fail open.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Limit() int
}

// Optimizer looks across agent statuses for coordinated actions.
type Optimizer interface {
	Analyze(ctx context.Context, st domain.SystemStatus) []domain.Recommendation
}

// The handler sets engines expose; the orchestrator subscribes whichever a task implements.
type (
	inventoryConsumer interface {
		OnInventoryUpdate(ctx context.Context, msg bus.Message) error
	}
	competitorConsumer interface {
		OnCompetitorUpdate(ctx context.Context, msg bus.Message) error
	}
	cartConsumer interface {
		OnCartInsight(ctx context.Context, msg bus.Message) error
	}
)

type pendingRec struct {
	topic string
	rec   domain.Recommendation
}

// Orchestrator owns the runtimes, the bus dispatcher and the coordination loop.
type Orchestrator struct {
	bus       *bus.Bus
	cfg       Config
	runtimes  map[string]*agent.Runtime
	order     []string
	applier   domain.Applier
	status    StatusStore
	limiter   Limiter
	optimizer Optimizer
	emit      *agent.Emitter
	sink      domain.RecommendationSink
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	pending []pendingRec

	lifecycle  sync.Mutex
	started    bool
	loopCancel context.CancelFunc
	loopDone   chan struct{}
	busCancel  context.CancelFunc
	busDone    chan struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithApplier(a domain.Applier) Option         { return func(o *Orchestrator) { o.applier = a } }
func WithStatusStore(s StatusStore) Option        { return func(o *Orchestrator) { o.status = s } }
func WithLimiter(l Limiter) Option                { return func(o *Orchestrator) { o.limiter = l } }
func WithOptimizer(opt Optimizer) Option          { return func(o *Orchestrator) { o.optimizer = opt } }
func WithSink(s domain.RecommendationSink) Option { return func(o *Orchestrator) { o.sink = s } }
func WithLogger(l *slog.Logger) Option            { return func(o *Orchestrator) { o.logger = l } }
func WithClock(now func() time.Time) Option       { return func(o *Orchestrator) { o.now = now } }

// New builds one runtime per worker and wires every subscription on b.
// Worker names must be unique.
func New(b *bus.Bus, workers []Worker, cfg Config, opts ...Option) (*Orchestrator, error) {
	if cfg.CoordinationInterval <= 0 {
		return nil, &domain.ConfigInvalidError{Field: "coordination_interval", Reason: "must be positive"}
	}
	o := &Orchestrator{
		bus:      b,
		cfg:      cfg,
		runtimes: make(map[string]*agent.Runtime, len(workers)),
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(slog.String("agent", domain.AgentCoordinator))
	o.emit = agent.NewEmitter(domain.AgentCoordinator, o.sink, b, o.logger)

	for _, w := range workers {
		name := w.Task.Name()
		if _, dup := o.runtimes[name]; dup {
			return nil, fmt.Errorf("duplicate agent %q", name)
		}
		rt, err := agent.New(w.Task, w.Config, agent.WithLogger(o.logger))
		if err != nil {
			return nil, err
		}
		o.runtimes[name] = rt
		o.order = append(o.order, name)
	}

	o.subscribe(workers)
	return o, nil
}

func (o *Orchestrator) subscribe(workers []Worker) {
	for _, w := range workers {
		if c, ok := w.Task.(inventoryConsumer); ok {
			o.bus.Subscribe(domain.TopicInventoryUpdate, c.OnInventoryUpdate)
		}
		if c, ok := w.Task.(cartConsumer); ok {
			o.bus.Subscribe(domain.TopicCartInsight, c.OnCartInsight)
		}
		if c, ok := w.Task.(competitorConsumer); ok {
			o.bus.Subscribe(domain.TopicCompetitorUpdate, c.OnCompetitorUpdate)
		}
	}

	o.bus.Subscribe(domain.TopicInventoryUpdate, o.relayLowStock)
	o.bus.Subscribe(domain.TopicCartInsight, o.relay(domain.TopicBehaviorShared))
	o.bus.Subscribe(domain.TopicCompetitorUpdate, o.relay(domain.TopicCompetitorShared))
	o.bus.Subscribe(domain.TopicBundleRecommended, o.enqueue)
	o.bus.Subscribe(domain.TopicPriceRecommended, o.enqueue)
}

func (o *Orchestrator) relayLowStock(ctx context.Context, msg bus.Message) error {
	var low []string
	switch r := msg.Payload.(type) {
	case domain.InventoryReport:
		low = r.LowStock
	case *domain.InventoryReport:
		low = r.LowStock
	default:
		return fmt.Errorf("unexpected %s payload %T", msg.Topic, msg.Payload)
	}
	if len(low) == 0 {
		return nil
	}
	return o.republish(ctx, domain.TopicLowStockAlert, msg.Payload)
}

func (o *Orchestrator) relay(topic string) bus.Handler {
	return func(ctx context.Context, msg bus.Message) error {
		return o.republish(ctx, topic, msg.Payload)
	}
}

func (o *Orchestrator) republish(ctx context.Context, topic string, payload any) error {
	ctx, cancel := context.WithTimeout(ctx, relayTimeout)
	defer cancel()
	return o.bus.Publish(ctx, topic, payload, domain.AgentCoordinator)
}

func (o *Orchestrator) enqueue(_ context.Context, msg bus.Message) error {
	var rec domain.Recommendation
	switch r := msg.Payload.(type) {
	case domain.Recommendation:
		rec = r
	case *domain.Recommendation:
		rec = *r
	default:
		return fmt.Errorf("unexpected %s payload %T", msg.Topic, msg.Payload)
	}
	o.mu.Lock()
	o.pending = append(o.pending, pendingRec{topic: msg.Topic, rec: rec})
	o.mu.Unlock()
	return nil
}

// Start launches the bus dispatcher, every runtime and the coordination loop.
func (o *Orchestrator) Start(ctx context.Context) {
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()
	if o.started {
		o.logger.Warn("orchestrator already started")
		return
	}
	o.started = true

	busCtx, busCancel := context.WithCancel(context.WithoutCancel(ctx))
	o.busCancel, o.busDone = busCancel, make(chan struct{})
	go func(done chan<- struct{}) {
		defer close(done)
		o.bus.Run(busCtx)
	}(o.busDone)

	for _, name := range o.order {
		o.runtimes[name].Start()
	}

	loopCtx, loopCancel := context.WithCancel(ctx)
	o.loopCancel, o.loopDone = loopCancel, make(chan struct{})
	go o.run(loopCtx, o.loopDone)

	o.logger.Info("orchestrator started",
		slog.Int("agents", len(o.order)),
		slog.Duration("coordination_interval", o.cfg.CoordinationInterval),
	)
}

// Shutdown stops the coordination loop, then every runtime concurrently, then
// closes the bus and waits for the dispatcher to drain.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()
	if !o.started {
		return nil
	}
	o.started = false

	o.loopCancel()
	<-o.loopDone

	var g errgroup.Group
	for _, name := range o.order {
		rt := o.runtimes[name]
		g.Go(func() error {
			rt.Stop()
			return nil
		})
	}
	stopped := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		return fmt.Errorf("stop agents: %w", ctx.Err())
	}

	o.bus.Close()
	o.busCancel()
	select {
	case <-o.busDone:
	case <-ctx.Done():
		return fmt.Errorf("drain bus: %w", ctx.Err())
	}

	o.logger.Info("orchestrator stopped")
	return nil
}

// run is the coordination loop. It ticks once immediately.
func (o *Orchestrator) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(o.cfg.CoordinationInterval)
	defer ticker.Stop()

	o.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

func (o *Orchestrator) tick(ctx context.Context) {
	telemetry.CoordinationCycles.Inc()
	st := o.Status()

	if o.status != nil {
		if err := o.status.SaveStatus(ctx, st); err != nil {
			o.logger.Warn("failed to mirror status", slog.String("error", err.Error()))
		}
	}

	for _, rec := range o.analyzeOptimizations(ctx, st) {
		o.emit.Emit(ctx, "", rec)
	}

	applied := o.drain(ctx)
	o.logger.Debug("coordination cycle complete",
		slog.Int("active_agents", st.ActiveAgents),
		slog.Int("applied", applied),
	)
}

func (o *Orchestrator) analyzeOptimizations(ctx context.Context, st domain.SystemStatus) []domain.Recommendation {
	if o.optimizer == nil {
		return nil
	}
	return o.optimizer.Analyze(ctx, st)
}

// drain takes every pending recommendation and auto-applies those above their threshold.
func (o *Orchestrator) drain(ctx context.Context) int {
	o.mu.Lock()
	batch := o.pending
	o.pending = nil
	o.mu.Unlock()

	applied := 0
	for _, p := range batch {
		if ctx.Err() != nil {
			return applied
		}
		if o.autoApply(ctx, p) {
			applied++
		}
	}
	return applied
}

func (o *Orchestrator) threshold(topic string) float64 {
	if topic == domain.TopicBundleRecommended {
		return o.cfg.BundleThreshold
	}
	return o.cfg.PriceThreshold
}

func (o *Orchestrator) autoApply(ctx context.Context, p pendingRec) bool {
	rec := p.rec
	log := o.logger.With(
		slog.String("recommendation_id", rec.ID),
		slog.String("type", rec.Type),
		slog.String("source_agent", rec.Agent),
	)

	if rec.Confidence <= o.threshold(p.topic) {
		telemetry.AutoApply.WithLabelValues(rec.Type, "below_threshold").Inc()
		return false
	}
	if o.applier == nil {
		telemetry.AutoApply.WithLabelValues(rec.Type, "no_applier").Inc()
		log.Info("recommendation eligible for auto-apply, no applier configured")
		return false
	}

	if o.limiter != nil {
		ok, err := o.limiter.Allow(ctx, rec.Type)
		switch {
		case err != nil:
			log.Warn("rate limiter unavailable, allowing", slog.String("error", err.Error()))
		case !ok:
			limitErr := &domain.RateLimitExceededError{Key: rec.Type, Limit: o.limiter.Limit()}
			telemetry.AutoApply.WithLabelValues(rec.Type, "rate_limited").Inc()
			log.Warn("auto-apply denied", slog.String("error", limitErr.Error()))
			return false
		}
	}

	ctx, span := otel.Tracer("orchestrator").Start(ctx, "orchestrator.apply")
	defer span.End()
	span.SetAttributes(
		attribute.String("recommendation.id", rec.ID),
		attribute.String("recommendation.type", rec.Type),
	)

	if err := o.applier.Apply(ctx, rec); err != nil {
		telemetry.AutoApply.WithLabelValues(rec.Type, "failure").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply failed")
		var unknown *domain.UnknownRecommendationTypeError
		if errors.As(err, &unknown) {
			log.Warn("no applier for recommendation type")
			return false
		}
		log.Error("auto-apply failed", slog.String("error", err.Error()))
		return false
	}

	telemetry.AutoApply.WithLabelValues(rec.Type, "applied").Inc()
	if rt, ok := o.runtimes[rec.Agent]; ok {
		rt.MarkAccepted(1)
	}
	log.Info("recommendation auto-applied", slog.Float64("confidence", rec.Confidence))
	return true
}

// Pending returns the number of queued recommendations awaiting the next tick.
func (o *Orchestrator) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}
