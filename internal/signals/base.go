// Package signals holds the producer agents that turn raw feeds into the
// reports the pricing and bundling engines consume.
package signals

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/ramiqadoumi/go-pricing-agents/internal/agent"
	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

// base carries what every producer shares.
type base struct {
	emit   *agent.Emitter
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a producer.
type Option func(*base)

func WithLogger(l *slog.Logger) Option      { return func(b *base) { b.logger = l } }
func WithClock(now func() time.Time) Option { return func(b *base) { b.now = now } }

func newBase(name string, emit *agent.Emitter, opts []Option) base {
	b := base{
		emit:   emit,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&b)
	}
	if b.emit == nil {
		b.emit = agent.NewEmitter(name, nil, nil, b.logger)
	}
	b.logger = b.logger.With(slog.String("agent", name))
	return b
}

// emitOpportunities records every opportunity as a recommendation and returns how many were emitted.
func (b base) emitOpportunities(ctx context.Context, opps []domain.Opportunity) int {
	for _, o := range opps {
		typ := o.Type
		if typ == domain.OpportunityBundle {
			typ = domain.RecBundleOpportunity
		}
		details := map[string]any{"opportunity": o.Type}
		if o.RelatedID != "" {
			details["related_product_id"] = o.RelatedID
		}
		b.emit.Emit(ctx, "", domain.Recommendation{
			Type:       typ,
			ProductID:  o.ProductID,
			Text:       o.Detail,
			Confidence: o.Confidence,
			Impact:     o.Impact,
			Urgency:    o.Urgency,
			Rationale:  o.Detail,
			Details:    details,
		})
	}
	return len(opps)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// stddev is the population standard deviation.
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var s float64
	for _, x := range xs {
		s += (x - m) * (x - m)
	}
	return math.Sqrt(s / float64(len(xs)))
}
