package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramiqadoumi/go-pricing-agents/internal/catalog"
	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

const sample = `
products:
  - id: P1
    name: Wireless Headphones
    category: audio
    base_price: 100
    min_price: 80
    max_price: 130
    cost: 55
    stock: 4
  - id: P2
    name: Phone Case
    category: accessories
    base_price: 20
    current_price: 18.5
    stock: 250
    min_stock: 20
    max_stock: 200
`

func load(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Decode(strings.NewReader(sample), 10, 100)
	require.NoError(t, err)
	return c
}

func TestDecode_Products(t *testing.T) {
	c := load(t)
	ctx := context.Background()

	products, err := c.Products(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "P1", products[0].ID)
	assert.Equal(t, 100.0, products[0].CurrentPrice, "current price defaults to base price")
	assert.Equal(t, 18.5, products[1].CurrentPrice)

	price, err := c.CurrentPrice(ctx, "P2")
	require.NoError(t, err)
	assert.Equal(t, 18.5, price)
}

func TestStockStatus(t *testing.T) {
	c := load(t)
	ctx := context.Background()

	lvl, err := c.StockStatus(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, domain.StockCritical, lvl.Status)
	assert.Equal(t, 10, lvl.Min)

	lvl, err = c.StockStatus(ctx, "P2")
	require.NoError(t, err)
	assert.Equal(t, domain.StockExcess, lvl.Status)
	assert.Equal(t, 200, lvl.Max)
}

func TestUnknownProduct(t *testing.T) {
	c := load(t)

	_, err := c.CurrentPrice(context.Background(), "nope")
	var nf *domain.ProductNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "nope", nf.ProductID)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"missing id", "products:\n  - name: x\n", "missing id"},
		{"duplicate", "products:\n  - id: A\n  - id: A\n", "duplicate"},
		{"inverted bounds", "products:\n  - id: A\n    min_price: 10\n    max_price: 5\n", "above max_price"},
		{"bad yaml", "products: [", "decode catalog"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := catalog.Decode(strings.NewReader(tc.doc), 10, 100)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestDecode_Empty(t *testing.T) {
	c, err := catalog.Decode(strings.NewReader(""), 10, 100)
	require.NoError(t, err)
	products, _ := c.Products(context.Background())
	assert.Empty(t, products)
}

func TestApply_PriceChange(t *testing.T) {
	c := load(t)
	ctx := context.Background()

	rec := domain.Recommendation{ID: "r1", Type: domain.RecPriceChangeExecuted, ProductID: "P1", Details: map[string]any{"new_price": 150.0}}
	require.NoError(t, c.Apply(ctx, rec))

	price, _ := c.CurrentPrice(ctx, "P1")
	assert.Equal(t, 130.0, price, "clamped to max_price")

	rec.Details["new_price"] = 91.237
	require.NoError(t, c.Apply(ctx, rec))
	price, _ = c.CurrentPrice(ctx, "P1")
	assert.Equal(t, 91.24, price)
}

func TestApply_Errors(t *testing.T) {
	c := load(t)
	ctx := context.Background()

	var unknown *domain.UnknownRecommendationTypeError
	err := c.Apply(ctx, domain.Recommendation{Type: domain.RecBundleCreation})
	assert.True(t, errors.As(err, &unknown))

	err = c.Apply(ctx, domain.Recommendation{Type: domain.RecPriceChangeExecuted, ProductID: "P1"})
	assert.ErrorContains(t, err, "missing new_price")

	var nf *domain.ProductNotFoundError
	err = c.Apply(ctx, domain.Recommendation{Type: domain.RecPriceChangeExecuted, ProductID: "Z", Details: map[string]any{"new_price": 5.0}})
	assert.True(t, errors.As(err, &nf))
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	c, err := catalog.Load(path, 10, 100)
	require.NoError(t, err)
	products, _ := c.Products(context.Background())
	assert.Len(t, products, 2)

	_, err = catalog.Load(filepath.Join(t.TempDir(), "missing.yaml"), 10, 100)
	assert.Error(t, err)
}
