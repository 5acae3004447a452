package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

// ── mocks ────────────────────────────────────────────────────────────────────

type fakeSink struct {
	recs []domain.Recommendation
	err  error
}

func (s *fakeSink) Record(_ context.Context, rec domain.Recommendation) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.recs = append(s.recs, rec)
	return rec.ID, nil
}

type published struct {
	topic  string
	sender string
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, _ any, sender string) error {
	p.msgs = append(p.msgs, published{topic, sender})
	return p.err
}

// ── tests ─────────────────────────────────────────────────────────────────────

func TestEmitter_StampsAndRecords(t *testing.T) {
	sink := &fakeSink{}
	pub := &fakePublisher{}
	e := NewEmitter("dynamic_pricing", sink, pub, nil)

	rec := e.Emit(context.Background(), domain.TopicPriceRecommended, domain.Recommendation{
		Type:       domain.RecPriceChangeExecuted,
		Confidence: 1.4,
	})

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "dynamic_pricing", rec.Agent)
	assert.False(t, rec.Timestamp.IsZero())
	assert.Equal(t, 1.0, rec.Confidence, "confidence is clamped to [0,1]")
	require.Len(t, sink.recs, 1)
	assert.Equal(t, rec.ID, sink.recs[0].ID)
	assert.Equal(t, []published{{domain.TopicPriceRecommended, "dynamic_pricing"}}, pub.msgs)
}

func TestEmitter_SinkFailureStillPublishes(t *testing.T) {
	sink := &fakeSink{err: errors.New("db down")}
	pub := &fakePublisher{}
	e := NewEmitter("dynamic_bundler", sink, pub, nil)

	e.Emit(context.Background(), domain.TopicBundleRecommended, domain.Recommendation{Type: domain.RecBundleCreation})

	assert.Len(t, pub.msgs, 1, "a sink failure is logged and does not block publication")
}

func TestEmitter_NoTopicNoPublish(t *testing.T) {
	pub := &fakePublisher{}
	e := NewEmitter("cart_behavior", nil, pub, nil)

	e.Emit(context.Background(), "", domain.Recommendation{Type: domain.RecAbandonmentReduction})
	assert.Empty(t, pub.msgs)
}
