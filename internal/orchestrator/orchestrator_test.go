package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ramiqadoumi/go-pricing-agents/internal/agent"
	"github.com/ramiqadoumi/go-pricing-agents/internal/bus"
	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ── mocks ────────────────────────────────────────────────────────────────────

type fakeTask struct {
	name  string
	calls atomic.Int64
}

func (t *fakeTask) Name() string { return t.name }
func (t *fakeTask) Execute(context.Context) (agent.Result, error) {
	t.calls.Add(1)
	return agent.Result{Recommendations: 1}, nil
}

// consumerTask also takes inventory updates, like the engines do.
type consumerTask struct {
	fakeTask
	mu   sync.Mutex
	seen []string
}

func (t *consumerTask) OnInventoryUpdate(_ context.Context, msg bus.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen = append(t.seen, msg.Topic)
	return nil
}

func (t *consumerTask) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}

type fakeApplier struct {
	mu      sync.Mutex
	applied []string
	failOn  map[string]error
}

func (a *fakeApplier) Apply(_ context.Context, rec domain.Recommendation) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.failOn[rec.ID]; err != nil {
		return err
	}
	a.applied = append(a.applied, rec.ID)
	return nil
}

func (a *fakeApplier) ids() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.applied...)
}

type fakeLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (l *fakeLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allow, l.err
}
func (l *fakeLimiter) Limit() int { return 1 }

type fakeStatusStore struct {
	mu    sync.Mutex
	saved []domain.SystemStatus
}

func (s *fakeStatusStore) SaveStatus(_ context.Context, st domain.SystemStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, st)
	return nil
}

func (s *fakeStatusStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type recordingSink struct {
	mu   sync.Mutex
	recs []domain.Recommendation
}

func (s *recordingSink) Record(_ context.Context, rec domain.Recommendation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return rec.ID, nil
}

type staticOptimizer struct{ recs []domain.Recommendation }

func (o staticOptimizer) Analyze(context.Context, domain.SystemStatus) []domain.Recommendation {
	return o.recs
}

// ── helpers ───────────────────────────────────────────────────────────────────

func disabled(name string) Worker {
	return Worker{Task: &fakeTask{name: name}, Config: agent.Config{Interval: time.Hour}}
}

func rec(id, agentName, typ string, conf float64) domain.Recommendation {
	return domain.Recommendation{ID: id, Agent: agentName, Type: typ, Confidence: conf}
}

func newTestOrchestrator(t *testing.T, workers []Worker, opts ...Option) (*Orchestrator, *bus.Bus) {
	t.Helper()
	b := bus.New()
	o, err := New(b, workers, DefaultConfig(), opts...)
	require.NoError(t, err)
	return o, b
}

// ── tests ─────────────────────────────────────────────────────────────────────

func TestNew_Validation(t *testing.T) {
	_, err := New(bus.New(), []Worker{disabled("a"), disabled("a")}, DefaultConfig())
	require.Error(t, err)

	cfg := DefaultConfig()
	cfg.CoordinationInterval = 0
	_, err = New(bus.New(), nil, cfg)
	var cfgErr *domain.ConfigInvalidError
	require.ErrorAs(t, err, &cfgErr)

	_, err = New(bus.New(), []Worker{{
		Task:   &fakeTask{name: "bad"},
		Config: agent.Config{Enabled: true, Schedule: "not a cron"},
	}}, DefaultConfig())
	require.Error(t, err)
}

func TestAutoApply_Thresholds(t *testing.T) {
	applier := &fakeApplier{}
	o, _ := newTestOrchestrator(t, []Worker{disabled(domain.AgentBundler), disabled(domain.AgentPricing)}, WithApplier(applier))
	ctx := context.Background()

	msgs := []bus.Message{
		{Topic: domain.TopicBundleRecommended, Payload: rec("b-high", domain.AgentBundler, domain.RecBundleCreation, 0.81)},
		{Topic: domain.TopicBundleRecommended, Payload: rec("b-edge", domain.AgentBundler, domain.RecBundleCreation, 0.8)},
		{Topic: domain.TopicPriceRecommended, Payload: rec("p-low", domain.AgentPricing, domain.RecPriceChangeExecuted, 0.84)},
		{Topic: domain.TopicPriceRecommended, Payload: ptr(rec("p-high", domain.AgentPricing, domain.RecPriceChangeExecuted, 0.9))},
	}
	for _, m := range msgs {
		require.NoError(t, o.enqueue(ctx, m))
	}
	assert.Equal(t, 4, o.Pending())

	assert.Equal(t, 2, o.drain(ctx))
	assert.Equal(t, []string{"b-high", "p-high"}, applier.ids())
	assert.Zero(t, o.Pending())

	st := o.Status()
	assert.EqualValues(t, 1, st.Agents[domain.AgentBundler].Metrics.AcceptedRecommendations)
	assert.EqualValues(t, 1, st.Agents[domain.AgentPricing].Metrics.AcceptedRecommendations)
}

func ptr[T any](v T) *T { return &v }

func TestAutoApply_FailureIsolated(t *testing.T) {
	applier := &fakeApplier{failOn: map[string]error{"first": errors.New("endpoint down")}}
	o, _ := newTestOrchestrator(t, []Worker{disabled(domain.AgentBundler)}, WithApplier(applier))
	ctx := context.Background()

	for _, id := range []string{"first", "second"} {
		require.NoError(t, o.enqueue(ctx, bus.Message{
			Topic:   domain.TopicBundleRecommended,
			Payload: rec(id, domain.AgentBundler, domain.RecBundleCreation, 0.95),
		}))
	}

	assert.Equal(t, 1, o.drain(ctx))
	assert.Equal(t, []string{"second"}, applier.ids())
	assert.EqualValues(t, 1, o.Status().Agents[domain.AgentBundler].Metrics.AcceptedRecommendations)
}

func TestAutoApply_Limiter(t *testing.T) {
	ctx := context.Background()
	high := bus.Message{Topic: domain.TopicPriceRecommended, Payload: rec("p", domain.AgentPricing, domain.RecPriceChangeExecuted, 0.99)}

	t.Run("denied", func(t *testing.T) {
		applier := &fakeApplier{}
		limiter := &fakeLimiter{allow: false}
		o, _ := newTestOrchestrator(t, nil, WithApplier(applier), WithLimiter(limiter))
		require.NoError(t, o.enqueue(ctx, high))

		assert.Zero(t, o.drain(ctx))
		assert.Empty(t, applier.ids())
		assert.Equal(t, []string{domain.RecPriceChangeExecuted}, limiter.keys)
	})

	t.Run("error fails open", func(t *testing.T) {
		applier := &fakeApplier{}
		o, _ := newTestOrchestrator(t, nil, WithApplier(applier), WithLimiter(&fakeLimiter{err: errors.New("redis down")}))
		require.NoError(t, o.enqueue(ctx, high))

		assert.Equal(t, 1, o.drain(ctx))
		assert.Equal(t, []string{"p"}, applier.ids())
	})

	t.Run("below threshold skips limiter", func(t *testing.T) {
		limiter := &fakeLimiter{allow: true}
		o, _ := newTestOrchestrator(t, nil, WithApplier(&fakeApplier{}), WithLimiter(limiter))
		require.NoError(t, o.enqueue(ctx, bus.Message{
			Topic:   domain.TopicPriceRecommended,
			Payload: rec("p", domain.AgentPricing, domain.RecPriceChangeExecuted, 0.5),
		}))

		o.drain(ctx)
		assert.Empty(t, limiter.keys)
	})
}

func TestAutoApply_NoApplier(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	ctx := context.Background()
	require.NoError(t, o.enqueue(ctx, bus.Message{
		Topic:   domain.TopicBundleRecommended,
		Payload: rec("b", domain.AgentBundler, domain.RecBundleCreation, 0.99),
	}))
	assert.Zero(t, o.drain(ctx))
}

func TestEnqueue_RejectsForeignPayload(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	err := o.enqueue(context.Background(), bus.Message{Topic: domain.TopicBundleRecommended, Payload: "nope"})
	require.Error(t, err)
	assert.Zero(t, o.Pending())
}

func TestStatus(t *testing.T) {
	now := time.Date(2025, 6, 11, 15, 0, 0, 0, time.UTC)
	workers := []Worker{
		{Task: &fakeTask{name: domain.AgentInventory}, Config: agent.Config{Enabled: true, Interval: time.Hour}},
		disabled(domain.AgentCart),
	}
	o, _ := newTestOrchestrator(t, workers, WithClock(func() time.Time { return now }))

	st := o.Status()
	assert.Equal(t, now, st.Timestamp)
	assert.Equal(t, 2, st.TotalAgents)
	assert.Equal(t, 1, st.ActiveAgents)
	assert.Equal(t, domain.StateIdle, st.Agents[domain.AgentInventory].Status)
	assert.Equal(t, domain.StateDisabled, st.Agents[domain.AgentCart].Status)

	v, ok := o.Agent(domain.AgentCart)
	require.True(t, ok)
	assert.Equal(t, domain.AgentCart, v.(domain.AgentView).Name)
	_, ok = o.Agent("ghost")
	assert.False(t, ok)

	snap, ok := o.Snapshot().(domain.SystemStatus)
	require.True(t, ok)
	assert.Equal(t, 2, snap.TotalAgents)
}

func TestTick_MirrorsStatusAndRecordsOptimizations(t *testing.T) {
	store := &fakeStatusStore{}
	sink := &recordingSink{}
	opt := staticOptimizer{recs: []domain.Recommendation{{Type: "coordinated_markdown", Confidence: 0.7}}}
	o, _ := newTestOrchestrator(t, []Worker{disabled(domain.AgentInventory)},
		WithStatusStore(store), WithSink(sink), WithOptimizer(opt))

	o.tick(context.Background())

	assert.Equal(t, 1, store.count())
	require.Len(t, sink.recs, 1)
	assert.Equal(t, domain.AgentCoordinator, sink.recs[0].Agent)
}

func TestRunning_RelaysAndAppliesEndToEnd(t *testing.T) {
	consumer := &consumerTask{fakeTask: fakeTask{name: domain.AgentPricing}}
	workers := []Worker{
		{Task: &fakeTask{name: domain.AgentInventory}, Config: agent.Config{Enabled: true, Interval: 10 * time.Millisecond}},
		{Task: consumer, Config: agent.Config{Interval: time.Hour}},
		disabled(domain.AgentBundler),
	}
	applier := &fakeApplier{}
	store := &fakeStatusStore{}
	b := bus.New()
	cfg := DefaultConfig()
	cfg.CoordinationInterval = 10 * time.Millisecond
	o, err := New(b, workers, cfg, WithApplier(applier), WithStatusStore(store))
	require.NoError(t, err)

	var mu sync.Mutex
	relayed := map[string]int{}
	probe := func(_ context.Context, msg bus.Message) error {
		mu.Lock()
		defer mu.Unlock()
		relayed[msg.Topic]++
		return nil
	}
	for _, topic := range []string{domain.TopicLowStockAlert, domain.TopicBehaviorShared, domain.TopicCompetitorShared} {
		b.Subscribe(topic, probe)
	}
	relayedCount := func(topic string) int {
		mu.Lock()
		defer mu.Unlock()
		return relayed[topic]
	}

	ctx := context.Background()
	o.Start(ctx)

	require.NoError(t, b.Publish(ctx, domain.TopicInventoryUpdate, domain.InventoryReport{LowStock: []string{"P1"}}, domain.AgentInventory))
	require.NoError(t, b.Publish(ctx, domain.TopicInventoryUpdate, domain.InventoryReport{}, domain.AgentInventory))
	require.NoError(t, b.Publish(ctx, domain.TopicCartInsight, domain.BehaviorReport{}, domain.AgentCart))
	require.NoError(t, b.Publish(ctx, domain.TopicCompetitorUpdate, domain.CompetitorReport{}, domain.AgentCompetitor))
	require.NoError(t, b.Publish(ctx, domain.TopicBundleRecommended,
		rec("b1", domain.AgentBundler, domain.RecBundleCreation, 0.9), domain.AgentBundler))

	require.Eventually(t, func() bool { return len(applier.ids()) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return store.count() >= 2 }, 2*time.Second, 5*time.Millisecond)

	shutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, o.Shutdown(shutCtx))

	assert.Equal(t, 1, relayedCount(domain.TopicLowStockAlert), "empty low-stock reports are not relayed")
	assert.Equal(t, 1, relayedCount(domain.TopicBehaviorShared))
	assert.Equal(t, 1, relayedCount(domain.TopicCompetitorShared))
	assert.Equal(t, 2, consumer.count())
	assert.EqualValues(t, 1, o.Status().Agents[domain.AgentBundler].Metrics.AcceptedRecommendations)
	assert.Positive(t, workers[0].Task.(*fakeTask).calls.Load())

	require.ErrorIs(t, b.Publish(ctx, domain.TopicInventoryUpdate, domain.InventoryReport{}, "late"), bus.ErrClosed)
}

func TestShutdown_Idempotent(t *testing.T) {
	o, _ := newTestOrchestrator(t, []Worker{
		{Task: &fakeTask{name: domain.AgentCart}, Config: agent.Config{Enabled: true, Interval: 5 * time.Millisecond}},
	})
	ctx := context.Background()
	require.NoError(t, o.Shutdown(ctx), "shutdown before start is a no-op")

	o.Start(ctx)
	o.Start(ctx)
	require.NoError(t, o.Shutdown(ctx))
	require.NoError(t, o.Shutdown(ctx))
	assert.Equal(t, domain.StateIdle, o.Status().Agents[domain.AgentCart].Status)
}
