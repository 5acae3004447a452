package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pricingagents"

var (
	// ─── Agents ──────────────────────────────────────────────────────────────────

	AgentExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "executions_total",
		Help:      "Agent cycles executed, labelled by agent and outcome (success | failure).",
	}, []string{"agent", "outcome"})

	AgentExecutionSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "execution_duration_seconds",
		Help:      "Wall time of one agent cycle in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"agent"})

	AgentRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "cycles_inflight",
		Help:      "Agent cycles currently executing.",
	}, []string{"agent"})

	AgentRecommendations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "recommendations_total",
		Help:      "Recommendations emitted by each agent.",
	}, []string{"agent"})

	AgentAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "recommendations_accepted_total",
		Help:      "Recommendations auto-applied for each agent.",
	}, []string{"agent"})

	SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "sink_errors_total",
		Help:      "Failed recommendation sink writes.",
	}, []string{"agent"})

	// ─── Bus ─────────────────────────────────────────────────────────────────────

	BusPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bus",
		Name:      "messages_published_total",
		Help:      "Messages accepted by the bus.",
	}, []string{"topic"})

	BusHandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bus",
		Name:      "handler_errors_total",
		Help:      "Subscriber callbacks that returned an error or panicked.",
	}, []string{"topic"})

	BusForwardErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bus",
		Name:      "forward_errors_total",
		Help:      "Messages an external forwarder failed to mirror.",
	}, []string{"forwarder"})

	BusQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "bus",
		Name:      "queue_depth",
		Help:      "Messages waiting for the dispatcher.",
	})

	// ─── Pricing ─────────────────────────────────────────────────────────────────

	PriceChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pricing",
		Name:      "changes_total",
		Help:      "Executed price changes by direction.",
	}, []string{"direction"})

	PriceChangesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pricing",
		Name:      "changes_discarded_total",
		Help:      "Proposed changes dropped below the change threshold.",
	})

	PricingSignals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pricing",
		Name:      "signals_total",
		Help:      "Strategy signals fired, by strategy.",
	}, []string{"strategy"})

	// ─── Bundling ────────────────────────────────────────────────────────────────

	BundlesSelected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bundling",
		Name:      "selected_total",
		Help:      "Bundles selected, by bundle type.",
	}, []string{"type"})

	BundlesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "bundling",
		Name:      "active",
		Help:      "Bundles currently in the active set.",
	})

	BundlesEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bundling",
		Name:      "evicted_total",
		Help:      "Active bundles evicted by the cap.",
	})

	// ─── Coordination ────────────────────────────────────────────────────────────

	AutoApply = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "coordinator",
		Name:      "auto_apply_total",
		Help:      "Auto-apply decisions, labelled by recommendation type and outcome.",
	}, []string{"type", "outcome"})

	CoordinationCycles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "coordinator",
		Name:      "cycles_total",
		Help:      "Coordination loop ticks.",
	})
)
