package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/ramiqadoumi/go-pricing-agents/internal/bus"
)

// ── mocks ─────────────────────────────────────────────────────────────────────

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

func headerValue(hs []kafka.Header, key string) string {
	for _, h := range hs {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// ── tests ─────────────────────────────────────────────────────────────────────

func TestForwarder_Forward(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	w := &fakeWriter{}
	f := newForwarder(w, WithTopicPrefix("shop"))
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	err := f.Forward(ctx, bus.Message{Topic: "price_update", Payload: map[string]any{"product_id": "P1"}, Sender: "DynamicPricingAgent", Timestamp: ts})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	got := w.msgs[0]
	assert.Equal(t, "shop.price_update", got.Topic)
	assert.Equal(t, "DynamicPricingAgent", string(got.Key))
	assert.Equal(t, ts, got.Time)

	var decoded struct {
		Topic   string         `json:"topic"`
		Payload map[string]any `json:"payload"`
		Sender  string         `json:"sender"`
	}
	require.NoError(t, json.Unmarshal(got.Value, &decoded))
	assert.Equal(t, "price_update", decoded.Topic)
	assert.Equal(t, "P1", decoded.Payload["product_id"])

	assert.Contains(t, headerValue(got.Headers, "traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")
	assert.Equal(t, "DynamicPricingAgent", headerValue(got.Headers, "sender"))
}

func TestForwarder_WriteError(t *testing.T) {
	f := newForwarder(&fakeWriter{err: errors.New("leader not available")})

	err := f.Forward(context.Background(), bus.Message{Topic: "bundle_update", Payload: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pricing-agents.bundle_update")
}

func TestForwarder_EncodeError(t *testing.T) {
	w := &fakeWriter{}
	f := newForwarder(w)

	err := f.Forward(context.Background(), bus.Message{Topic: "x", Payload: make(chan int)})
	require.Error(t, err)
	assert.Empty(t, w.msgs)
}

func TestForwarder_TopicWithoutPrefix(t *testing.T) {
	f := newForwarder(&fakeWriter{}, WithTopicPrefix(""))
	assert.Equal(t, "inventory_update", f.Topic("inventory_update"))
}

func TestForwarder_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newForwarder(w).Close())
	assert.True(t, w.closed)
}

func TestHeaders_SortedByKey(t *testing.T) {
	got := headers(map[string]string{"traceparent": "00-abc", "sender": "InventoryMonitorAgent", "baggage": "k=v"})

	keys := make([]string, len(got))
	for i, h := range got {
		keys[i] = h.Key
	}
	assert.Equal(t, []string{"baggage", "sender", "traceparent"}, keys)
	assert.Equal(t, "InventoryMonitorAgent", headerValue(got, "sender"))
}

func TestForwarder_NoTraceWithoutSpan(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	w := &fakeWriter{}
	require.NoError(t, newForwarder(w).Forward(context.Background(), bus.Message{Topic: "cart_insight", Sender: "cart"}))

	require.Len(t, w.msgs, 1)
	require.Len(t, w.msgs[0].Headers, 1)
	assert.Equal(t, "sender", w.msgs[0].Headers[0].Key)
}
