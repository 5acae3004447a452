package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

func bundleStatsKey(bundleID string) string { return "bundle:stats:" + bundleID }

// PerformanceSource reads bundle view and conversion counters maintained by the storefront.
type PerformanceSource struct {
	client *redis.Client
}

func NewPerformanceSource(client *redis.Client) *PerformanceSource {
	return &PerformanceSource{client: client}
}

// BundleStats returns zero counters for a bundle nobody has seen yet.
func (p *PerformanceSource) BundleStats(ctx context.Context, bundleID string) (domain.BundleStats, error) {
	var stats struct {
		Views       int64 `redis:"views"`
		Conversions int64 `redis:"conversions"`
	}
	if err := p.client.HGetAll(ctx, bundleStatsKey(bundleID)).Scan(&stats); err != nil {
		return domain.BundleStats{}, fmt.Errorf("redis bundle stats for %s: %w", bundleID, err)
	}
	return domain.BundleStats{Views: stats.Views, Conversions: stats.Conversions}, nil
}

// RecordView counts one impression.
func (p *PerformanceSource) RecordView(ctx context.Context, bundleID string) error {
	return p.incr(ctx, bundleID, "views")
}

// RecordConversion counts one purchase.
func (p *PerformanceSource) RecordConversion(ctx context.Context, bundleID string) error {
	return p.incr(ctx, bundleID, "conversions")
}

func (p *PerformanceSource) incr(ctx context.Context, bundleID, field string) error {
	if err := p.client.HIncrBy(ctx, bundleStatsKey(bundleID), field, 1).Err(); err != nil {
		return fmt.Errorf("redis incr %s for %s: %w", field, bundleID, err)
	}
	return nil
}
