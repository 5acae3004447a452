//go:build integration

package postgres_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
	"github.com/ramiqadoumi/go-pricing-agents/internal/postgres"
)

var testDSN string

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()
	ctr, err := tcPostgres.Run(ctx, "postgres:16-alpine",
		tcPostgres.WithDatabase("agents"),
		tcPostgres.WithUsername("agents"),
		tcPostgres.WithPassword("agents"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("start postgres container: %v", err)
	}
	defer ctr.Terminate(ctx) //nolint:errcheck

	testDSN, err = ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("postgres connection string: %v", err)
	}

	pool, err := postgres.NewPool(ctx, testDSN)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	applied, err := postgres.Migrate(ctx, pool)
	pool.Close()
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if len(applied) == 0 {
		log.Fatal("no migrations applied")
	}
	return m.Run()
}

func newRepo(t *testing.T) (*postgres.Repository, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, testDSN)
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Exec(ctx, "TRUNCATE products, competitor_quotes, carts, cart_items, daily_sales, recommendations, price_history, bundles CASCADE") //nolint:errcheck
		pool.Close()
	})
	return postgres.NewRepository(pool), pool
}

func headphones() domain.Product {
	return domain.Product{
		ID: "P1", Name: "Headphones", Category: "audio",
		BasePrice: 100, CurrentPrice: 100, MinPrice: 80, MaxPrice: 110,
		Cost: 70, Stock: 3,
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	_, pool := newRepo(t)
	applied, err := postgres.Migrate(context.Background(), pool)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestRepository_ProductSource(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.UpsertProduct(ctx, headphones()))

	products, err := repo.Products(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, headphones(), products[0])

	price, err := repo.CurrentPrice(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, price)

	lvl, err := repo.StockStatus(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, domain.StockCritical, lvl.Status)

	_, err = repo.CurrentPrice(ctx, "ghost")
	var notFound *domain.ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestRepository_Feeds(t *testing.T) {
	repo, pool := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.UpsertProduct(ctx, headphones()))

	now := time.Now().UTC().Truncate(time.Second)
	_, err := pool.Exec(ctx, `
		INSERT INTO competitor_quotes (competitor, product_id, price, observed_at) VALUES
			('acme', 'P1', 100, $1), ('acme', 'P1', 85, $2), ('bolt', 'P1', 110, $2)
	`, now.Add(-time.Hour), now)
	require.NoError(t, err)

	quotes, err := repo.Quotes(ctx)
	require.NoError(t, err)
	require.Len(t, quotes, 2, "only the latest quote per competitor")
	assert.Equal(t, 85.0, quotes[0].Price)

	_, err = pool.Exec(ctx, `
		INSERT INTO carts (id, created_at, updated_at, completed_at) VALUES
			('c1', $1, $1, $1), ('c2', $1, $1, NULL), ('old', $2, $2, NULL);
	`, now, now.AddDate(0, -2, 0))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
		INSERT INTO cart_items (cart_id, product_id, quantity, unit_price) VALUES
			('c1', 'P1', 1, 100), ('c1', 'P2', 2, 10)
	`)
	require.NoError(t, err)

	carts, err := repo.Carts(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	require.Len(t, carts, 2)
	assert.Equal(t, "c1", carts[0].ID)
	assert.Len(t, carts[0].Items, 2)
	assert.NotNil(t, carts[0].CompletedAt)
	assert.Empty(t, carts[1].Items)
	assert.Nil(t, carts[1].CompletedAt)

	_, err = pool.Exec(ctx, `INSERT INTO daily_sales (product_id, day, units) VALUES ('P1', CURRENT_DATE, 4)`)
	require.NoError(t, err)
	sales, err := repo.Sales(ctx, now.AddDate(0, 0, -1))
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, 4, sales[0].Units)
}

func TestRepository_RecordAndApplyPrice(t *testing.T) {
	repo, pool := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.UpsertProduct(ctx, headphones()))

	rec := domain.Recommendation{
		ID:         uuid.New().String(),
		Agent:      domain.AgentPricing,
		Type:       domain.RecPriceChangeExecuted,
		ProductID:  "P1",
		Text:       "Raise P1",
		Confidence: 0.9,
		Impact:     domain.LevelHigh,
		Urgency:    domain.LevelHigh,
		Timestamp:  time.Now().UTC(),
		Details:    map[string]any{"old_price": 100.0, "new_price": 115.0},
	}
	id, err := repo.Record(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, id)

	require.NoError(t, repo.Apply(ctx, rec))

	price, err := repo.CurrentPrice(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 110.0, price, "clamped to max_price")

	var oldPrice, newPrice float64
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT old_price, new_price FROM price_history WHERE product_id = 'P1'`).Scan(&oldPrice, &newPrice))
	assert.Equal(t, 100.0, oldPrice)
	assert.Equal(t, 110.0, newPrice)

	stored, err := repo.ListRecommendations(ctx, postgres.StatusImplemented, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, rec.ID, stored[0].ID)
	assert.NotNil(t, stored[0].AppliedAt)
	assert.Equal(t, 115.0, stored[0].Details["new_price"])
}

func TestRepository_ApplyBundle(t *testing.T) {
	repo, pool := newRepo(t)
	ctx := context.Background()
	bundleID := uuid.New().String()
	rec := domain.Recommendation{
		ID:   uuid.New().String(),
		Type: domain.RecBundleCreation,
		Details: map[string]any{
			"bundle_id":    bundleID,
			"items":        []string{"P1", "P2"},
			"primary_item": "P1",
			"bundle_type":  domain.BundleAssociation,
			"strategy":     domain.StrategyFrequentTogether,
			"final_score":  0.82,
			"pricing":      domain.BundlePricing{IndividualPrice: 150, BundlePrice: 125.07, DiscountPercent: 16.6, Savings: 24.93},
		},
	}

	require.NoError(t, repo.Apply(ctx, rec))
	require.NoError(t, repo.Apply(ctx, rec), "re-applying refreshes in place")

	var n int
	var items []string
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*), max(items) FROM bundles`).Scan(&n, &items))
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"P1", "P2"}, items)
}

func TestRepository_ApplyErrors(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	err := repo.Apply(ctx, domain.Recommendation{Type: domain.RecRestock})
	var unknown *domain.UnknownRecommendationTypeError
	require.ErrorAs(t, err, &unknown)

	err = repo.Apply(ctx, domain.Recommendation{
		ID: uuid.New().String(), Type: domain.RecPriceChangeExecuted, ProductID: "ghost",
		Details: map[string]any{"new_price": 10.0},
	})
	var notFound *domain.ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
}
