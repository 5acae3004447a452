package agent

import (
	"context"
	"log/slog"

	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

// LogSink records recommendations as log lines. It is the sink used when no
// database is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(ctx context.Context, rec domain.Recommendation) (string, error) {
	s.logger.InfoContext(ctx, "recommendation",
		slog.String("recommendation_id", rec.ID),
		slog.String("agent", rec.Agent),
		slog.String("type", rec.Type),
		slog.String("product_id", rec.ProductID),
		slog.Float64("confidence", rec.Confidence),
		slog.String("urgency", string(rec.Urgency)),
		slog.String("text", rec.Text),
	)
	return rec.ID, nil
}
