package apply

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalLimiter is an in-process token bucket per key, used when no Redis is configured.
// Each key may spend limit tokens per window.
type LocalLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func NewLocalLimiter(limit int, window time.Duration) *LocalLimiter {
	return &LocalLimiter{limit: limit, window: window, buckets: make(map[string]*rate.Limiter)}
}

func (l *LocalLimiter) Limit() int { return l.limit }

// Allow never fails.
func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(rate.Every(l.window/time.Duration(max(l.limit, 1))), l.limit)
		l.buckets[key] = b
	}
	l.mu.Unlock()
	return b.Allow(), nil
}
