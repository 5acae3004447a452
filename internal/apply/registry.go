// Package apply routes accepted recommendations to the systems that act on them.
package apply

import (
	"context"
	"sync"

	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

// Registry maps recommendation types to appliers. It implements domain.Applier.
type Registry struct {
	mu       sync.RWMutex
	appliers map[string]domain.Applier
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{appliers: make(map[string]domain.Applier)}
}

// Register binds a to recType, replacing any earlier binding. Safe to call concurrently.
func (r *Registry) Register(recType string, a domain.Applier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appliers[recType] = a
}

// Get returns the applier for recType.
// Returns UnknownRecommendationTypeError if none is registered.
func (r *Registry) Get(recType string) (domain.Applier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appliers[recType]
	if !ok {
		return nil, &domain.UnknownRecommendationTypeError{Type: recType}
	}
	return a, nil
}

// Apply dispatches rec by its type.
func (r *Registry) Apply(ctx context.Context, rec domain.Recommendation) error {
	a, err := r.Get(rec.Type)
	if err != nil {
		return err
	}
	return a.Apply(ctx, rec)
}

// Chain applies rec through every applier in order, stopping at the first error.
type Chain []domain.Applier

func (c Chain) Apply(ctx context.Context, rec domain.Recommendation) error {
	for _, a := range c {
		if err := a.Apply(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
