package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
	"github.com/ramiqadoumi/go-pricing-agents/pkg/telemetry"
)

// Publisher is the bus side an agent needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any, sender string) error
}

// Emitter stamps, records and publishes recommendations on behalf of one agent.
// Sink and bus failures are logged and never retried.
type Emitter struct {
	agent  string
	sink   domain.RecommendationSink
	pub    Publisher
	logger *slog.Logger
}

// NewEmitter creates an Emitter. sink and pub may be nil.
func NewEmitter(agent string, sink domain.RecommendationSink, pub Publisher, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{agent: agent, sink: sink, pub: pub, logger: logger}
}

// Emit records rec and, when topic is non-empty, publishes it. It returns the stamped recommendation.
func (e *Emitter) Emit(ctx context.Context, topic string, rec domain.Recommendation) domain.Recommendation {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.Agent = e.agent
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	rec.Confidence = domain.ClampConfidence(rec.Confidence)

	if e.sink != nil {
		if _, err := e.sink.Record(ctx, rec); err != nil {
			telemetry.SinkErrors.WithLabelValues(e.agent).Inc()
			sinkErr := &domain.SinkError{Op: "record recommendation", Err: err}
			e.logger.Error("failed to record recommendation",
				slog.String("recommendation_id", rec.ID),
				slog.String("type", rec.Type),
				slog.String("error", sinkErr.Error()),
			)
		}
	}
	if topic != "" {
		e.Publish(ctx, topic, rec)
	}
	return rec
}

// Publish sends payload on topic, logging failures.
func (e *Emitter) Publish(ctx context.Context, topic string, payload any) {
	if e.pub == nil {
		return
	}
	if err := e.pub.Publish(ctx, topic, payload, e.agent); err != nil {
		e.logger.Error("failed to publish",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
	}
}
