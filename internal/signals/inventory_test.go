package signals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

func sale(id string, day time.Time, units int) domain.Sale {
	return domain.Sale{ProductID: id, Day: day, Units: units}
}

func TestDemandTrend(t *testing.T) {
	tests := []struct {
		name          string
		first, second int
		want          string
	}{
		{"rising", 10, 12, domain.TrendIncreasing},
		{"inside band", 10, 10, domain.TrendStable},
		{"falling", 10, 8, domain.TrendDeclining},
		{"no history", 0, 0, domain.TrendStable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, demandTrend(tc.first, tc.second))
		})
	}
}

func TestInventoryMonitor_Report(t *testing.T) {
	early := time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC)
	late := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	products := &fakeProducts{products: []domain.Product{
		{ID: "FAST", Stock: 40},
		{ID: "SLOW", Stock: 160},
		{ID: "SCARCE", Stock: 3},
	}}
	sales := &fakeSales{sales: []domain.Sale{
		sale("FAST", late, 330),
		sale("SLOW", early, 30),
		sale("SCARCE", early, 45),
		sale("SCARCE", late, 45),
		sale("FAST", testNow.AddDate(0, -3, 0), 999),
	}}
	emit, sink, pub := newEmitter(domain.AgentInventory)
	m := NewInventoryMonitor(DefaultInventoryConfig(), products, sales, emit, WithClock(fixedClock))

	res, err := m.Execute(context.Background())
	require.NoError(t, err)

	require.Len(t, pub.payloads, 1)
	assert.Equal(t, domain.TopicInventoryUpdate, pub.topics[0])
	r, ok := pub.payloads[0].(domain.InventoryReport)
	require.True(t, ok)

	assert.Equal(t, []string{"SCARCE"}, r.LowStock)
	assert.Equal(t, domain.StockCritical, r.StockLevels["SCARCE"].Status)
	assert.Equal(t, []string{"SLOW"}, r.HighStock)
	assert.Equal(t, []string{"FAST"}, r.FastMovers)
	assert.Equal(t, []string{"SLOW"}, r.SlowMovers)

	assert.InDelta(t, 11, r.Demand["FAST"].Velocity, 1e-9, "sales older than the lookback are ignored")
	assert.Equal(t, domain.TrendIncreasing, r.Demand["FAST"].Trend)
	assert.Equal(t, domain.TrendDeclining, r.Demand["SLOW"].Trend)
	assert.Equal(t, domain.TrendStable, r.Demand["SCARCE"].Trend)

	assert.True(t, r.Forecasts["FAST"].ReorderNeeded)
	assert.InDelta(t, 40.0/11.0, r.Forecasts["FAST"].DaysUntilStockout, 1e-9)
	assert.InDelta(t, 77, r.Forecasts["FAST"].ForecastDemand, 1e-9)
	assert.False(t, r.Forecasts["SLOW"].ReorderNeeded)

	clearance := sink.byType(domain.OpportunityClearance)
	require.Len(t, clearance, 1)
	assert.Equal(t, "SLOW", clearance[0].ProductID)
	assert.Equal(t, domain.LevelMedium, clearance[0].Urgency, "60 units over the ceiling")

	bundles := sink.byType(domain.RecBundleOpportunity)
	require.Len(t, bundles, 1)
	assert.Equal(t, "FAST", bundles[0].ProductID)
	assert.Equal(t, "SLOW", bundles[0].Details["related_product_id"])

	premium := sink.byType(domain.OpportunityPremiumPricing)
	require.Len(t, premium, 1)
	assert.Equal(t, "SCARCE", premium[0].ProductID)

	restock := sink.byType(domain.RecRestock)
	require.Len(t, restock, 2)
	assert.Equal(t, "FAST", restock[0].ProductID)
	assert.Equal(t, "SCARCE", restock[1].ProductID)

	assert.Equal(t, 5, res.Recommendations)
}

func TestInventoryMonitor_OutOfStockIsNotPremium(t *testing.T) {
	products := &fakeProducts{products: []domain.Product{{ID: "GONE", Stock: 0, MinStock: 4, MaxStock: 40}}}
	emit, sink, _ := newEmitter(domain.AgentInventory)
	m := NewInventoryMonitor(DefaultInventoryConfig(), products, &fakeSales{}, emit, WithClock(fixedClock))

	_, err := m.Execute(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sink.byType(domain.OpportunityPremiumPricing))
}

func TestInventoryMonitor_WithoutSalesFeed(t *testing.T) {
	products := &fakeProducts{products: []domain.Product{
		{ID: "SCARCE", Stock: 2},
		{ID: "PILED", Stock: 180},
	}}
	emit, sink, pub := newEmitter(domain.AgentInventory)
	m := NewInventoryMonitor(DefaultInventoryConfig(), products, nil, emit, WithClock(fixedClock))

	_, err := m.Execute(context.Background())
	require.NoError(t, err)

	require.Len(t, pub.payloads, 1)
	r := pub.payloads[0].(domain.InventoryReport)
	assert.Equal(t, domain.StockCritical, r.StockLevels["SCARCE"].Status)
	assert.Equal(t, []string{"SCARCE"}, r.LowStock)
	assert.Equal(t, []string{"PILED"}, r.HighStock)
	assert.Empty(t, r.Demand, "demand is unknown, not zero")
	assert.Empty(t, r.SlowMovers)
	assert.Empty(t, r.Forecasts)

	assert.Len(t, sink.byType(domain.OpportunityPremiumPricing), 1)
	assert.Len(t, sink.byType(domain.OpportunityClearance), 1)
	assert.Empty(t, sink.byType(domain.RecRestock))
}

func TestInventoryMonitor_ProductFailure(t *testing.T) {
	emit, _, pub := newEmitter(domain.AgentInventory)
	m := NewInventoryMonitor(DefaultInventoryConfig(), &fakeProducts{err: errors.New("db down")}, &fakeSales{}, emit)

	_, err := m.Execute(context.Background())
	require.Error(t, err)
	assert.Empty(t, pub.payloads)
}
