package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter allows at most limit auto-applies per key in a sliding window, shared
// by every process pointed at the same Redis.
type Limiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewLimiter(client *redis.Client, limit int, window time.Duration) *Limiter {
	return &Limiter{client: client, limit: limit, window: window, now: time.Now}
}

func (l *Limiter) Limit() int { return l.limit }

// Allow records the attempt in a sorted set scored by time. A denied attempt is
// removed again so it does not consume budget.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.now().UnixNano()
	windowStart := now - l.window.Nanoseconds()
	rkey := "autoapply:ratelimit:" + key
	member := strconv.FormatInt(now, 10) + "-" + uuid.NewString()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, rkey, "0", strconv.FormatInt(windowStart, 10))
	pipe.ZAdd(ctx, rkey, redis.Z{Score: float64(now), Member: member})
	count := pipe.ZCard(ctx, rkey)
	pipe.Expire(ctx, rkey, l.window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limiter pipeline for %q: %w", key, err)
	}

	if count.Val() <= int64(l.limit) {
		return true, nil
	}
	if err := l.client.ZRem(ctx, rkey, member).Err(); err != nil {
		return false, fmt.Errorf("rate limiter release for %q: %w", key, err)
	}
	return false, nil
}
