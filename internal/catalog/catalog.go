// Package catalog serves products from a YAML file when no database is
// configured. Accepted price changes are kept in memory only.
package catalog

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

type file struct {
	Products []domain.Product `yaml:"products"`
}

// Catalog is an in-memory ProductSource.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	order    []string

	lowThreshold  int
	highThreshold int
}

// Load reads a catalog file from path.
func Load(path string, lowThreshold, highThreshold int) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Decode(f, lowThreshold, highThreshold)
}

// Decode parses a catalog document. Product IDs must be unique and
// non-empty, and price bounds must be consistent.
func Decode(r io.Reader, lowThreshold, highThreshold int) (*Catalog, error) {
	var doc file
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{
		products:      make(map[string]domain.Product, len(doc.Products)),
		lowThreshold:  lowThreshold,
		highThreshold: highThreshold,
	}
	for i, p := range doc.Products {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog product %d: missing id", i)
		}
		if _, dup := c.products[p.ID]; dup {
			return nil, fmt.Errorf("catalog product %s: duplicate id", p.ID)
		}
		if p.CurrentPrice == 0 {
			p.CurrentPrice = p.BasePrice
		}
		if p.MinPrice > 0 && p.MaxPrice > 0 && p.MinPrice > p.MaxPrice {
			return nil, fmt.Errorf("catalog product %s: min_price %.2f above max_price %.2f", p.ID, p.MinPrice, p.MaxPrice)
		}
		c.products[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c, nil
}

// Products returns the catalog in file order.
func (c *Catalog) Products(_ context.Context) ([]domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.products[id])
	}
	return out, nil
}

func (c *Catalog) CurrentPrice(_ context.Context, productID string) (float64, error) {
	p, err := c.get(productID)
	if err != nil {
		return 0, err
	}
	return p.CurrentPrice, nil
}

func (c *Catalog) StockStatus(_ context.Context, productID string) (domain.StockLevel, error) {
	p, err := c.get(productID)
	if err != nil {
		return domain.StockLevel{}, err
	}
	return domain.NewStockLevel(p, c.lowThreshold, c.highThreshold), nil
}

// Apply handles price_change_executed by moving the product's current
// price inside its bounds.
func (c *Catalog) Apply(_ context.Context, rec domain.Recommendation) error {
	if rec.Type != domain.RecPriceChangeExecuted {
		return &domain.UnknownRecommendationTypeError{Type: rec.Type}
	}
	price, ok := rec.Details["new_price"].(float64)
	if !ok || price <= 0 {
		return fmt.Errorf("apply %s: missing new_price", rec.ID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[rec.ProductID]
	if !ok {
		return &domain.ProductNotFoundError{ProductID: rec.ProductID}
	}
	if p.MinPrice > 0 {
		price = max(price, p.MinPrice)
	}
	if p.MaxPrice > 0 {
		price = min(price, p.MaxPrice)
	}
	p.CurrentPrice = domain.RoundCents(price)
	c.products[p.ID] = p
	return nil
}

func (c *Catalog) get(id string) (domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return domain.Product{}, &domain.ProductNotFoundError{ProductID: id}
	}
	return p, nil
}
