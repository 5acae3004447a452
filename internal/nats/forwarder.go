// Package nats mirrors bus traffic onto NATS subjects.
package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/ramiqadoumi/go-pricing-agents/internal/bus"
)

// DefaultPrefix is the subject root used when none is configured.
const DefaultPrefix = "pricing"

// Forwarder publishes every bus message on "<prefix>.<topic>".
type Forwarder struct {
	nc     *nats.Conn
	prefix string
}

// Connect dials url and returns a Forwarder owning the connection.
func Connect(url, prefix, name string) (*Forwarder, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url, nats.Name(name))
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return NewForwarder(nc, prefix), nil
}

// NewForwarder wraps an existing connection.
func NewForwarder(nc *nats.Conn, prefix string) *Forwarder {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Forwarder{nc: nc, prefix: prefix}
}

func (f *Forwarder) Name() string { return "nats" }

// Subject maps a bus topic to its NATS subject.
func (f *Forwarder) Subject(topic string) string { return f.prefix + "." + topic }

func (f *Forwarder) Forward(ctx context.Context, msg bus.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Topic, err)
	}
	out := &nats.Msg{
		Subject: f.Subject(msg.Topic),
		Data:    data,
		Header:  nats.Header{},
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(out.Header))
	out.Header.Set("Sender", msg.Sender)

	if err := f.nc.PublishMsg(out); err != nil {
		return fmt.Errorf("nats publish %s: %w", out.Subject, err)
	}
	return nil
}

// Close drains buffered publishes and closes the connection.
func (f *Forwarder) Close() error {
	return f.nc.Drain()
}
