package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

// Apply writes an accepted price change or bundle creation to the catalog.
// Other recommendation types return UnknownRecommendationTypeError.
func (r *Repository) Apply(ctx context.Context, rec domain.Recommendation) error {
	var fn func(context.Context, pgx.Tx, domain.Recommendation) error
	switch rec.Type {
	case domain.RecPriceChangeExecuted:
		fn = r.applyPrice
	case domain.RecBundleCreation:
		fn = r.applyBundle
	default:
		return &domain.UnknownRecommendationTypeError{Type: rec.Type}
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := fn(ctx, tx, rec); err != nil {
			return err
		}
		return markImplemented(ctx, tx, rec.ID)
	})
}

func (r *Repository) applyPrice(ctx context.Context, tx pgx.Tx, rec domain.Recommendation) error {
	newPrice, ok := detailFloat(rec.Details, "new_price")
	if !ok || rec.ProductID == "" {
		return fmt.Errorf("apply price %s: %w: new_price", rec.ID, errMissingDetail)
	}

	var oldPrice float64
	err := tx.QueryRow(ctx, `SELECT current_price FROM products WHERE id = $1 FOR UPDATE`, rec.ProductID).Scan(&oldPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.ProductNotFoundError{ProductID: rec.ProductID}
	}
	if err != nil {
		return fmt.Errorf("lock product %s: %w", rec.ProductID, err)
	}

	var applied float64
	if err := tx.QueryRow(ctx, `
		UPDATE products
		SET current_price = LEAST(GREATEST($2, min_price), max_price), updated_at = NOW()
		WHERE id = $1
		RETURNING current_price
	`, rec.ProductID, newPrice).Scan(&applied); err != nil {
		return fmt.Errorf("update price for %s: %w", rec.ProductID, err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO price_history (product_id, old_price, new_price, recommendation_id)
		VALUES ($1, $2, $3, $4)
	`, rec.ProductID, oldPrice, applied, rec.ID); err != nil {
		return fmt.Errorf("record price history for %s: %w", rec.ProductID, err)
	}
	return nil
}

func (r *Repository) applyBundle(ctx context.Context, tx pgx.Tx, rec domain.Recommendation) error {
	id, _ := rec.Details["bundle_id"].(string)
	items := detailStrings(rec.Details, "items")
	if id == "" || len(items) < 2 {
		return fmt.Errorf("apply bundle %s: %w: bundle_id/items", rec.ID, errMissingDetail)
	}
	primary, _ := rec.Details["primary_item"].(string)
	bundleType, _ := rec.Details["bundle_type"].(string)
	strategy, _ := rec.Details["strategy"].(string)
	score, _ := detailFloat(rec.Details, "final_score")
	pricing, err := json.Marshal(rec.Details["pricing"])
	if err != nil {
		return fmt.Errorf("encode bundle pricing %s: %w", id, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO bundles (id, items, primary_item, bundle_type, strategy, final_score, pricing)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			items = EXCLUDED.items, primary_item = EXCLUDED.primary_item,
			final_score = EXCLUDED.final_score, pricing = EXCLUDED.pricing,
			status = 'active', updated_at = NOW()
	`, id, items, primary, bundleType, strategy, score, pricing)
	if err != nil {
		return fmt.Errorf("upsert bundle %s: %w", id, err)
	}
	return nil
}

// detailFloat reads a number that may be typed in-process or decoded from JSON.
func detailFloat(d map[string]any, key string) (float64, bool) {
	switch v := d[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func detailStrings(d map[string]any, key string) []string {
	switch v := d[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
