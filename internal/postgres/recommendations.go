package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

// Recommendation statuses in the store.
const (
	StatusPending     = "pending"
	StatusImplemented = "implemented"
)

// Record stores rec as pending.
func (r *Repository) Record(ctx context.Context, rec domain.Recommendation) (string, error) {
	details, err := json.Marshal(rec.Details)
	if err != nil {
		return "", fmt.Errorf("encode details for %s: %w", rec.ID, err)
	}
	if rec.Details == nil {
		details = []byte("{}")
	}
	var productID *string
	if rec.ProductID != "" {
		productID = &rec.ProductID
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO recommendations
			(id, agent, type, product_id, text, confidence, impact, urgency, rationale, details, status, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		rec.ID, rec.Agent, rec.Type, productID, rec.Text, rec.Confidence,
		string(rec.Impact), string(rec.Urgency), rec.Rationale, details, StatusPending, rec.Timestamp,
	)
	if err != nil {
		return "", fmt.Errorf("insert recommendation %s: %w", rec.ID, err)
	}
	return rec.ID, nil
}

// StoredRecommendation is a recommendation row with its store status.
type StoredRecommendation struct {
	domain.Recommendation
	Status    string     `json:"status"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}

// ListRecommendations returns the newest recommendations in status, or all when status is empty.
func (r *Repository) ListRecommendations(ctx context.Context, status string, limit int) ([]StoredRecommendation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, agent, type, COALESCE(product_id, ''), text, confidence, impact, urgency,
		       rationale, details, status, created_at, applied_at
		FROM recommendations
		WHERE $1 = '' OR status = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	defer rows.Close()

	var out []StoredRecommendation
	for rows.Next() {
		var s StoredRecommendation
		var impact, urgency string
		var details []byte
		if err := rows.Scan(
			&s.ID, &s.Agent, &s.Type, &s.ProductID, &s.Text, &s.Confidence, &impact, &urgency,
			&s.Rationale, &details, &s.Status, &s.Timestamp, &s.AppliedAt,
		); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		s.Impact, s.Urgency = domain.Level(impact), domain.Level(urgency)
		if err := json.Unmarshal(details, &s.Details); err != nil {
			return nil, fmt.Errorf("decode details for %s: %w", s.ID, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// markImplemented flips a stored recommendation to implemented. Recommendations that were
// never recorded (sink failures) are ignored.
func markImplemented(ctx context.Context, tx pgx.Tx, id string) error {
	_, err := tx.Exec(ctx, `
		UPDATE recommendations SET status = $1, applied_at = NOW() WHERE id = $2
	`, StatusImplemented, id)
	if err != nil {
		return fmt.Errorf("mark recommendation %s implemented: %w", id, err)
	}
	return nil
}

// errMissingDetail reports a recommendation that lacks a field the applier needs.
var errMissingDetail = errors.New("recommendation detail missing")
