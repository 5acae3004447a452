package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ramiqadoumi/go-pricing-agents/pkg/telemetry"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("bus closed")

// Message is one published event. It is immutable once published.
type Message struct {
	Topic     string    `json:"topic"`
	Payload   any       `json:"payload"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler consumes one message. Returned errors are logged, never propagated.
type Handler func(ctx context.Context, msg Message) error

// Forwarder mirrors dispatched messages to an external broker.
type Forwarder interface {
	Name() string
	Forward(ctx context.Context, msg Message) error
}

// Bus is an in-process topic bus with a single FIFO dispatcher.
// Handlers for a topic run sequentially in registration order.
type Bus struct {
	mu         sync.RWMutex
	handlers   map[string][]Handler
	forwarders []Forwarder

	queue  chan Message
	closed atomic.Bool
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Bus.
type Option func(*Bus)

func WithLogger(l *slog.Logger) Option      { return func(b *Bus) { b.logger = l } }
func WithQueueSize(n int) Option            { return func(b *Bus) { b.queue = make(chan Message, n) } }
func WithForwarder(f Forwarder) Option      { return func(b *Bus) { b.forwarders = append(b.forwarders, f) } }
func WithClock(now func() time.Time) Option { return func(b *Bus) { b.now = now } }

// New creates a Bus. Call Run to start dispatching.
func New(opts ...Option) *Bus {
	b := &Bus{
		handlers: make(map[string][]Handler),
		queue:    make(chan Message, 1024),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h for topic. Registration is append-only.
func (b *Bus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Publish enqueues a message. It blocks only while the queue is full.
func (b *Bus) Publish(ctx context.Context, topic string, payload any, sender string) error {
	if b.closed.Load() {
		return ErrClosed
	}
	msg := Message{Topic: topic, Payload: payload, Sender: sender, Timestamp: b.now().UTC()}
	select {
	case b.queue <- msg:
		telemetry.BusPublished.WithLabelValues(topic).Inc()
		telemetry.BusQueueDepth.Set(float64(len(b.queue)))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", topic, ctx.Err())
	}
}

// Close rejects further publishes. Messages already queued are still delivered by Run.
func (b *Bus) Close() { b.closed.Store(true) }

// Pending returns the number of queued, undelivered messages.
func (b *Bus) Pending() int { return len(b.queue) }

// Run dispatches messages until ctx is cancelled, then drains what is already queued.
func (b *Bus) Run(ctx context.Context) {
	// Handlers outlive the dispatcher context so the drain below can still deliver.
	hctx := context.WithoutCancel(ctx)
	for {
		select {
		case msg := <-b.queue:
			b.dispatch(hctx, msg)
		case <-ctx.Done():
			for {
				select {
				case msg := <-b.queue:
					b.dispatch(hctx, msg)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, msg Message) {
	telemetry.BusQueueDepth.Set(float64(len(b.queue)))

	b.mu.RLock()
	handlers := b.handlers[msg.Topic]
	b.mu.RUnlock()

	for i, h := range handlers {
		if err := b.invoke(ctx, h, msg); err != nil {
			telemetry.BusHandlerErrors.WithLabelValues(msg.Topic).Inc()
			b.logger.Error("bus handler failed",
				slog.String("topic", msg.Topic),
				slog.String("sender", msg.Sender),
				slog.Int("handler", i),
				slog.String("error", err.Error()),
			)
		}
	}

	for _, f := range b.forwarders {
		if err := f.Forward(ctx, msg); err != nil {
			telemetry.BusForwardErrors.WithLabelValues(f.Name()).Inc()
			b.logger.Warn("bus forward failed",
				slog.String("forwarder", f.Name()),
				slog.String("topic", msg.Topic),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (b *Bus) invoke(ctx context.Context, h Handler, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, msg)
}
