package domain

import (
	"math"
	"time"
)

// Product is a catalog row read from the product state source.
type Product struct {
	ID           string  `json:"id" yaml:"id"`
	Name         string  `json:"name" yaml:"name"`
	Category     string  `json:"category" yaml:"category"`
	BasePrice    float64 `json:"base_price" yaml:"base_price"`
	CurrentPrice float64 `json:"current_price" yaml:"current_price"`
	MinPrice     float64 `json:"min_price" yaml:"min_price"`
	MaxPrice     float64 `json:"max_price" yaml:"max_price"`
	Cost         float64 `json:"cost" yaml:"cost"`
	Stock        int     `json:"stock" yaml:"stock"`
	MinStock     int     `json:"min_stock" yaml:"min_stock"`
	MaxStock     int     `json:"max_stock" yaml:"max_stock"`
}

// Margin returns (price-cost)/price, or 0 when the price is unknown.
func (p Product) Margin() float64 {
	if p.CurrentPrice <= 0 {
		return 0
	}
	return (p.CurrentPrice - p.Cost) / p.CurrentPrice
}

// PriceState is the pricing engine's authoritative view of one product's price.
// MinPrice <= CurrentPrice <= MaxPrice always holds.
type PriceState struct {
	ProductID    string  `json:"product_id"`
	BasePrice    float64 `json:"base_price"`
	CurrentPrice float64 `json:"current_price"`
	MinPrice     float64 `json:"min_price"`
	MaxPrice     float64 `json:"max_price"`
}

// NewPriceState builds a state from a catalog product, clamping the current price into bounds.
func NewPriceState(p Product) PriceState {
	lo, hi := p.MinPrice, p.MaxPrice
	if lo <= 0 {
		lo = p.CurrentPrice
	}
	if hi <= 0 || hi < lo {
		hi = math.Max(lo, p.CurrentPrice)
	}
	base := p.BasePrice
	if base <= 0 {
		base = p.CurrentPrice
	}
	return PriceState{
		ProductID:    p.ID,
		BasePrice:    base,
		CurrentPrice: Clamp(p.CurrentPrice, lo, hi),
		MinPrice:     lo,
		MaxPrice:     hi,
	}
}

// PriceChange records one executed price change.
type PriceChange struct {
	ProductID     string    `json:"product_id"`
	OldPrice      float64   `json:"old_price"`
	NewPrice      float64   `json:"new_price"`
	ChangePercent float64   `json:"change_percent"`
	Confidence    float64   `json:"confidence"`
	Strategy      string    `json:"strategy"`
	Rationale     string    `json:"rationale"`
	At            time.Time `json:"at"`
}

// StockStatus classifies a stock level.
type StockStatus string

const (
	StockOut      StockStatus = "out_of_stock"
	StockCritical StockStatus = "critical"
	StockLow      StockStatus = "low"
	StockNormal   StockStatus = "normal"
	StockExcess   StockStatus = "excess"
)

// StockLevel is the inventory view of one product.
type StockLevel struct {
	ProductID string      `json:"product_id"`
	Current   int         `json:"current"`
	Min       int         `json:"min"`
	Max       int         `json:"max"`
	Target    int         `json:"target"`
	Status    StockStatus `json:"status"`
}

// ClassifyStock maps a stock count onto a StockStatus given low and high thresholds.
// Critical is the band below half the low threshold. Excess starts above high,
// so a product held exactly at its target is normal.
func ClassifyStock(current, low, high int) StockStatus {
	switch {
	case current <= 0:
		return StockOut
	case current*2 < low:
		return StockCritical
	case current <= low:
		return StockLow
	case high > 0 && current > high:
		return StockExcess
	default:
		return StockNormal
	}
}

// NewStockLevel classifies a product, falling back to the given thresholds when
// the product carries no min/max stock of its own.
func NewStockLevel(p Product, lowThreshold, highThreshold int) StockLevel {
	lo, hi := p.MinStock, p.MaxStock
	if lo <= 0 {
		lo = lowThreshold
	}
	if hi <= 0 {
		hi = highThreshold
	}
	return StockLevel{
		ProductID: p.ID,
		Current:   p.Stock,
		Min:       lo,
		Max:       hi,
		Target:    hi,
		Status:    ClassifyStock(p.Stock, lo, hi),
	}
}

// RoundCents rounds a price to two decimals.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
