package bundling

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

const statusActive = "active"

// activeSet holds the bundles on offer. No two entries share an item-set.
type activeSet struct {
	byID  map[string]*domain.ActiveBundle
	byKey map[string]string
}

func newActiveSet() *activeSet {
	return &activeSet{
		byID:  make(map[string]*domain.ActiveBundle),
		byKey: make(map[string]string),
	}
}

// upsert activates c, refreshing the existing entry in place when the same
// item-set is already on offer. Items are stored sorted.
func (s *activeSet) upsert(c domain.BundleCandidate, now time.Time) (domain.ActiveBundle, bool) {
	c.Items = slices.Sorted(slices.Values(c.Items))
	key := c.Key()
	if id, ok := s.byKey[key]; ok {
		b := s.byID[id]
		b.BundleCandidate = c
		b.CreatedAt = now
		return *b, true
	}
	b := &domain.ActiveBundle{
		BundleCandidate: c,
		ID:              uuid.New().String(),
		CreatedAt:       now,
		Status:          statusActive,
	}
	s.byID[b.ID] = b
	s.byKey[key] = b.ID
	return *b, false
}

// evict drops the oldest bundles until at most limit remain and returns how many went.
func (s *activeSet) evict(limit int) int {
	over := len(s.byID) - limit
	if limit <= 0 || over <= 0 {
		return 0
	}
	for _, b := range s.list()[:over] {
		delete(s.byID, b.ID)
		delete(s.byKey, b.Key())
	}
	return over
}

// list returns copies ordered oldest first.
func (s *activeSet) list() []domain.ActiveBundle {
	out := make([]domain.ActiveBundle, 0, len(s.byID))
	for _, b := range s.byID {
		out = append(out, *b)
	}
	slices.SortFunc(out, func(a, b domain.ActiveBundle) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
