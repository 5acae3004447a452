// Package agents composes the agent runtimes, the bus and the orchestrator
// from configuration and whichever stores are available.
package agents

import (
	"errors"
	"log/slog"

	"github.com/ramiqadoumi/go-pricing-agents/internal/agent"
	"github.com/ramiqadoumi/go-pricing-agents/internal/apply"
	"github.com/ramiqadoumi/go-pricing-agents/internal/bundling"
	"github.com/ramiqadoumi/go-pricing-agents/internal/bus"
	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
	"github.com/ramiqadoumi/go-pricing-agents/internal/orchestrator"
	"github.com/ramiqadoumi/go-pricing-agents/internal/pricing"
	"github.com/ramiqadoumi/go-pricing-agents/internal/signals"
	"github.com/ramiqadoumi/go-pricing-agents/services/agents/config"
)

// Deps are the external collaborators. Only Products is required; a nil
// feed disables the agent that reads it.
type Deps struct {
	Products    domain.ProductSource
	Competitors domain.CompetitorFeed
	Carts       domain.CartFeed
	Sales       domain.SalesFeed
	Forecast    domain.ForecastSource
	Performance domain.PerformanceSource
	Sink        domain.RecommendationSink
	Applier     domain.Applier
	Status      orchestrator.StatusStore
	Limiter     orchestrator.Limiter
	Forwarders  []bus.Forwarder
}

// Build wires every agent the deps can feed and returns the orchestrator
// that owns them. Nothing is started.
func Build(cfg config.Config, deps Deps, logger *slog.Logger) (*orchestrator.Orchestrator, error) {
	if deps.Products == nil {
		return nil, errors.New("agents: product source is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Sink == nil {
		deps.Sink = agent.NewLogSink(logger)
	}
	if deps.Limiter == nil {
		deps.Limiter = apply.NewLocalLimiter(cfg.AutoApply.Limit, cfg.AutoApply.Window)
	}

	busOpts := []bus.Option{bus.WithLogger(logger)}
	for _, f := range deps.Forwarders {
		busOpts = append(busOpts, bus.WithForwarder(f))
	}
	b := bus.New(busOpts...)

	emitter := func(name string) *agent.Emitter {
		return agent.NewEmitter(name, deps.Sink, b, logger.With(slog.String("agent", name)))
	}
	agentLogger := func(name string) *slog.Logger {
		return logger.With(slog.String("agent", name))
	}

	tasks := make(map[string]agent.Task, len(config.AgentNames))
	if deps.Sales == nil {
		logger.Info("no sales feed configured, inventory reports carry stock levels only")
	}
	tasks[domain.AgentInventory] = signals.NewInventoryMonitor(cfg.Inventory, deps.Products, deps.Sales,
		emitter(domain.AgentInventory), signals.WithLogger(agentLogger(domain.AgentInventory)))
	if deps.Carts != nil {
		tasks[domain.AgentCart] = signals.NewCartAnalyzer(cfg.Cart, deps.Carts,
			emitter(domain.AgentCart), signals.WithLogger(agentLogger(domain.AgentCart)))
	}
	if deps.Competitors != nil {
		tasks[domain.AgentCompetitor] = signals.NewCompetitorMonitor(signals.DefaultCompetitorConfig(), deps.Competitors, deps.Products,
			emitter(domain.AgentCompetitor), signals.WithLogger(agentLogger(domain.AgentCompetitor)))
	}

	bundleOpts := []bundling.Option{bundling.WithLogger(agentLogger(domain.AgentBundler))}
	if deps.Performance != nil {
		bundleOpts = append(bundleOpts, bundling.WithPerformance(deps.Performance))
	}
	tasks[domain.AgentBundler] = bundling.New(cfg.Bundling, deps.Products, emitter(domain.AgentBundler), bundleOpts...)

	priceOpts := []pricing.Option{pricing.WithLogger(agentLogger(domain.AgentPricing))}
	if deps.Forecast != nil {
		priceOpts = append(priceOpts, pricing.WithForecast(deps.Forecast))
	}
	tasks[domain.AgentPricing] = pricing.New(cfg.Pricing, deps.Products, emitter(domain.AgentPricing), priceOpts...)

	var workers []orchestrator.Worker
	for _, name := range config.AgentNames {
		task, ok := tasks[name]
		if !ok {
			logger.Warn("agent has no feed configured, skipping", slog.String("agent", name))
			continue
		}
		workers = append(workers, orchestrator.Worker{Task: task, Config: cfg.Agents[name]})
	}

	opts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithSink(deps.Sink),
		orchestrator.WithLimiter(deps.Limiter),
	}
	if deps.Applier != nil {
		opts = append(opts, orchestrator.WithApplier(deps.Applier))
	}
	if deps.Status != nil {
		opts = append(opts, orchestrator.WithStatusStore(deps.Status))
	}
	return orchestrator.New(b, workers, cfg.Orchestrator(), opts...)
}

// Appliers are the per-type appliers that act on accepted recommendations.
type Appliers struct {
	Price   domain.Applier
	Bundle  domain.Applier
	Webhook domain.Applier
	Alert   domain.Applier
}

// NewApplier chains, for each auto-applied type, the store applier, then the
// webhook, then the alert. Nil entries are skipped. It returns nil when no
// applier is set at all.
func NewApplier(a Appliers) domain.Applier {
	reg := apply.NewRegistry()
	n := 0
	for recType, primary := range map[string]domain.Applier{
		domain.RecPriceChangeExecuted: a.Price,
		domain.RecBundleCreation:      a.Bundle,
	} {
		var chain apply.Chain
		for _, ap := range []domain.Applier{primary, a.Webhook, a.Alert} {
			if ap != nil {
				chain = append(chain, ap)
			}
		}
		if len(chain) > 0 {
			reg.Register(recType, chain)
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return reg
}
