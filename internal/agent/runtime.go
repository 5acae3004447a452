package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
	"github.com/ramiqadoumi/go-pricing-agents/pkg/telemetry"
)

// Result is what a single Task cycle reports back to its runtime.
type Result struct {
	Recommendations int
}

// Task is one unit of periodic agent work.
type Task interface {
	Name() string
	Execute(ctx context.Context) (Result, error)
}

// Config is the per-agent schedule, assembled once at composition time.
type Config struct {
	Enabled  bool
	Interval time.Duration
	// Schedule is an optional standard cron expression. When set it replaces Interval.
	Schedule string
	// Timeout bounds one cycle. Zero means no bound.
	Timeout time.Duration
}

// Runtime runs a Task periodically in its own goroutine and owns its status and metrics.
type Runtime struct {
	task     Task
	cfg      Config
	schedule cron.Schedule
	logger   *slog.Logger

	lifecycle sync.Mutex
	stop      chan struct{}
	done      chan struct{}

	mu      sync.RWMutex
	state   domain.WorkerState
	metrics domain.WorkerMetrics
}

// Option configures a Runtime.
type Option func(*Runtime)

func WithLogger(l *slog.Logger) Option { return func(r *Runtime) { r.logger = l } }

// New wraps task. It fails only on an unparsable cron schedule.
func New(task Task, cfg Config, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		task:   task,
		cfg:    cfg,
		logger: slog.Default(),
		state:  domain.StateIdle,
	}
	if !cfg.Enabled {
		r.state = domain.StateDisabled
	}
	if cfg.Schedule != "" {
		s, err := cron.ParseStandard(cfg.Schedule)
		if err != nil {
			return nil, fmt.Errorf("parse schedule %q for agent %s: %w", cfg.Schedule, task.Name(), err)
		}
		r.schedule = s
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(slog.String("agent", task.Name()))
	return r, nil
}

// Name returns the wrapped task's name.
func (r *Runtime) Name() string { return r.task.Name() }

// Start launches the execution loop. Starting a running or disabled runtime is a logged no-op.
func (r *Runtime) Start() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	if !r.cfg.Enabled {
		r.logger.Info("agent disabled, not starting")
		r.setState(domain.StateDisabled)
		return
	}
	if r.stop != nil {
		r.logger.Warn("agent already running")
		return
	}

	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go r.loop(r.stop, r.done)

	r.logger.Info("agent started",
		slog.Duration("interval", r.cfg.Interval),
		slog.String("schedule", r.cfg.Schedule),
	)
}

// Stop signals the loop and blocks until the in-flight cycle, if any, completes.
func (r *Runtime) Stop() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	if r.stop == nil {
		return
	}
	close(r.stop)
	<-r.done
	r.stop, r.done = nil, nil

	r.mu.Lock()
	if r.state != domain.StateDisabled {
		r.state = domain.StateIdle
	}
	r.mu.Unlock()
	r.logger.Info("agent stopped")
}

// Status returns a snapshot of the runtime's status.
func (r *Runtime) Status() domain.WorkerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return domain.WorkerStatus{
		Name:              r.task.Name(),
		State:             r.state,
		Enabled:           r.cfg.Enabled,
		ExecutionInterval: r.cfg.Interval,
		Schedule:          r.cfg.Schedule,
	}
}

// Metrics returns a snapshot of the runtime's counters.
func (r *Runtime) Metrics() domain.WorkerMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.metrics
	if m.LastExecutionAt != nil {
		t := *m.LastExecutionAt
		m.LastExecutionAt = &t
	}
	return m
}

// View combines status and metrics for the status surface.
func (r *Runtime) View() domain.AgentView {
	st, m := r.Status(), r.Metrics()
	return domain.AgentView{
		Name:           st.Name,
		Status:         st.State,
		Enabled:        st.Enabled,
		Metrics:        m,
		SuccessRate:    m.SuccessRate(),
		AcceptanceRate: m.AcceptanceRate(),
	}
}

// MarkAccepted records n recommendations from this agent as applied.
func (r *Runtime) MarkAccepted(n int) {
	r.mu.Lock()
	r.metrics.AcceptedRecommendations += int64(n)
	r.mu.Unlock()
	telemetry.AgentAccepted.WithLabelValues(r.task.Name()).Add(float64(n))
}

func (r *Runtime) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}

		r.runCycle()

		timer := time.NewTimer(r.nextDelay(time.Now()))
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (r *Runtime) nextDelay(now time.Time) time.Duration {
	if r.schedule != nil {
		return max(r.schedule.Next(now).Sub(now), 0)
	}
	return r.cfg.Interval
}

// runCycle executes the task once. The cycle context is detached from Stop so a
// cycle is never interrupted mid-way; only Config.Timeout bounds it.
func (r *Runtime) runCycle() {
	name := r.task.Name()
	ctx, span := otel.Tracer("agent").Start(context.Background(), "agent.cycle")
	defer span.End()
	span.SetAttributes(attribute.String("agent.name", name))

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	r.setState(domain.StateRunning)
	telemetry.AgentRunning.WithLabelValues(name).Inc()
	start := time.Now()

	res, err := r.execute(ctx)

	elapsed := time.Since(start)
	telemetry.AgentRunning.WithLabelValues(name).Dec()
	telemetry.AgentExecutionSeconds.WithLabelValues(name).Observe(elapsed.Seconds())

	r.mu.Lock()
	r.metrics.Executions++
	r.metrics.LastExecutionAt = &start
	if err != nil {
		r.metrics.Failures++
		r.metrics.LastError = err.Error()
		r.state = domain.StateErrored
	} else {
		n := r.metrics.Successes + 1
		r.metrics.Successes = n
		r.metrics.AvgExecutionTime = (r.metrics.AvgExecutionTime*time.Duration(n-1) + elapsed) / time.Duration(n)
		r.metrics.TotalRecommendations += int64(res.Recommendations)
		r.state = domain.StateIdle
	}
	r.mu.Unlock()

	if err != nil {
		execErr := &domain.ExecutionError{Worker: name, Err: err}
		telemetry.AgentExecutions.WithLabelValues(name, "failure").Inc()
		span.RecordError(execErr)
		span.SetStatus(codes.Error, "cycle failed")
		r.logger.Error("agent cycle failed",
			slog.String("error", execErr.Error()),
			slog.Int64("duration_ms", elapsed.Milliseconds()),
		)
		return
	}

	telemetry.AgentExecutions.WithLabelValues(name, "success").Inc()
	telemetry.AgentRecommendations.WithLabelValues(name).Add(float64(res.Recommendations))
	span.SetAttributes(attribute.Int("agent.recommendations", res.Recommendations))
	r.logger.Debug("agent cycle completed",
		slog.Int64("duration_ms", elapsed.Milliseconds()),
		slog.Int("recommendations", res.Recommendations),
	)
}

func (r *Runtime) execute(ctx context.Context) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.task.Execute(ctx)
}

func (r *Runtime) setState(s domain.WorkerState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}
