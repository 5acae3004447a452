// Package kafka mirrors bus traffic to Kafka so other systems can follow
// agent output without joining the process.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/ramiqadoumi/go-pricing-agents/internal/bus"
)

// DefaultTopicPrefix is prepended to every bus topic.
const DefaultTopicPrefix = "pricing-agents"

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Forwarder is a bus.Forwarder that writes each message as JSON to
// "<prefix>.<topic>", keyed by sender.
type Forwarder struct {
	w      writer
	prefix string
}

// ForwarderOption configures a Forwarder.
type ForwarderOption func(*Forwarder)

func WithTopicPrefix(p string) ForwarderOption { return func(f *Forwarder) { f.prefix = p } }

// NewForwarder creates a Forwarder connected to the given brokers.
// Writes are async: the bus dispatcher must never wait on the broker.
func NewForwarder(brokers []string, opts ...ForwarderOption) *Forwarder {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		Async:                  true,
		AllowAutoTopicCreation: true,
	}
	return newForwarder(w, opts...)
}

func newForwarder(w writer, opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{w: w, prefix: DefaultTopicPrefix}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *Forwarder) Name() string { return "kafka" }

// Forward encodes msg and hands it to the writer with the active trace
// context in the headers.
func (f *Forwarder) Forward(ctx context.Context, msg bus.Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Topic, err)
	}

	meta := propagation.MapCarrier{"sender": msg.Sender}
	otel.GetTextMapPropagator().Inject(ctx, meta)

	topic := f.Topic(msg.Topic)
	err = f.w.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(msg.Sender),
		Value:   value,
		Headers: headers(meta),
		Time:    msg.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("kafka publish to %s: %w", topic, err)
	}
	return nil
}

// headers turns message metadata into Kafka headers, ordered by key.
func headers(meta map[string]string) []kafka.Header {
	out := make([]kafka.Header, 0, len(meta))
	for _, k := range slices.Sorted(maps.Keys(meta)) {
		out = append(out, kafka.Header{Key: k, Value: []byte(meta[k])})
	}
	return out
}

// Topic maps a bus topic to its Kafka topic.
func (f *Forwarder) Topic(busTopic string) string {
	if f.prefix == "" {
		return busTopic
	}
	return f.prefix + "." + busTopic
}

// Close flushes pending async writes.
func (f *Forwarder) Close() error {
	return f.w.Close()
}
