// Package postgres is the relational store: the product catalog, the signal
// feeds, the recommendation sink and the price/bundle applier.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

// Repository implements domain.ProductSource, the three signal feeds,
// domain.RecommendationSink and domain.Applier over one pool.
type Repository struct {
	pool          *pgxpool.Pool
	lowThreshold  int
	highThreshold int
}

// Option configures a Repository.
type Option func(*Repository)

// WithStockThresholds sets the fallback thresholds for products without min/max stock.
func WithStockThresholds(low, high int) Option {
	return func(r *Repository) { r.lowThreshold, r.highThreshold = low, high }
}

// NewRepository wraps a pgxpool.
func NewRepository(pool *pgxpool.Pool, opts ...Option) *Repository {
	r := &Repository{pool: pool, lowThreshold: 10, highThreshold: 100}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

const productColumns = `id, name, category, base_price, current_price, min_price, max_price,
		       cost, stock, min_stock, max_stock`

func (r *Repository) Products(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) product(ctx context.Context, id string) (domain.Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, &domain.ProductNotFoundError{ProductID: id}
	}
	return p, err
}

func (r *Repository) CurrentPrice(ctx context.Context, id string) (float64, error) {
	p, err := r.product(ctx, id)
	if err != nil {
		return 0, err
	}
	return p.CurrentPrice, nil
}

func (r *Repository) StockStatus(ctx context.Context, id string) (domain.StockLevel, error) {
	p, err := r.product(ctx, id)
	if err != nil {
		return domain.StockLevel{}, err
	}
	return domain.NewStockLevel(p, r.lowThreshold, r.highThreshold), nil
}

// UpsertProduct inserts or replaces a catalog row. Used by seeding and tests.
func (r *Repository) UpsertProduct(ctx context.Context, p domain.Product) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO products
			(id, name, category, base_price, current_price, min_price, max_price, cost, stock, min_stock, max_stock)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, category = EXCLUDED.category, base_price = EXCLUDED.base_price,
			current_price = EXCLUDED.current_price, min_price = EXCLUDED.min_price,
			max_price = EXCLUDED.max_price, cost = EXCLUDED.cost, stock = EXCLUDED.stock,
			min_stock = EXCLUDED.min_stock, max_stock = EXCLUDED.max_stock, updated_at = NOW()
	`,
		p.ID, p.Name, p.Category, p.BasePrice, p.CurrentPrice, p.MinPrice, p.MaxPrice,
		p.Cost, p.Stock, p.MinStock, p.MaxStock,
	)
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	return nil
}

// Quotes returns the latest quote per competitor and product.
func (r *Repository) Quotes(ctx context.Context) ([]domain.CompetitorQuote, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (competitor, product_id)
		       competitor, product_id, price, availability, observed_at
		FROM competitor_quotes
		ORDER BY competitor, product_id, observed_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list competitor quotes: %w", err)
	}
	defer rows.Close()

	var out []domain.CompetitorQuote
	for rows.Next() {
		var q domain.CompetitorQuote
		if err := rows.Scan(&q.Competitor, &q.ProductID, &q.Price, &q.Availability, &q.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan competitor quote: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// Carts returns carts touched since the given time with their items.
func (r *Repository) Carts(ctx context.Context, since time.Time) ([]domain.Cart, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.created_at, c.updated_at, c.completed_at,
		       i.product_id, i.quantity, i.unit_price
		FROM carts c
		LEFT JOIN cart_items i ON i.cart_id = c.id
		WHERE c.updated_at >= $1
		ORDER BY c.id, i.product_id
	`, since)
	if err != nil {
		return nil, fmt.Errorf("list carts since %s: %w", since.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var out []domain.Cart
	for rows.Next() {
		var c domain.Cart
		var productID *string
		var qty *int
		var price *float64
		if err := rows.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt, &c.CompletedAt, &productID, &qty, &price); err != nil {
			return nil, fmt.Errorf("scan cart: %w", err)
		}
		if n := len(out); n == 0 || out[n-1].ID != c.ID {
			out = append(out, c)
		}
		if productID != nil {
			last := &out[len(out)-1]
			last.Items = append(last.Items, domain.CartItem{ProductID: *productID, Quantity: *qty, UnitPrice: *price})
		}
	}
	return out, rows.Err()
}

// Sales returns daily unit sales since the given day.
func (r *Repository) Sales(ctx context.Context, since time.Time) ([]domain.Sale, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT product_id, day, units
		FROM daily_sales
		WHERE day >= $1::date
		ORDER BY day, product_id
	`, since)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	var out []domain.Sale
	for rows.Next() {
		var s domain.Sale
		if err := rows.Scan(&s.ProductID, &s.Day, &s.Units); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// scanProduct reads a product row from any pgx row type.
func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Category, &p.BasePrice, &p.CurrentPrice, &p.MinPrice, &p.MaxPrice,
		&p.Cost, &p.Stock, &p.MinStock, &p.MaxStock,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("scan product: %w", err)
	}
	return p, nil
}
