package domain_test

import (
	"testing"

	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

func TestClassifyStock(t *testing.T) {
	tests := []struct {
		name    string
		current int
		want    domain.StockStatus
	}{
		{"empty", 0, domain.StockOut},
		{"negative", -3, domain.StockOut},
		{"critical", 4, domain.StockCritical},
		{"low boundary", 5, domain.StockLow},
		{"low", 10, domain.StockLow},
		{"normal", 50, domain.StockNormal},
		{"at high threshold", 100, domain.StockNormal},
		{"excess boundary", 101, domain.StockExcess},
		{"excess", 250, domain.StockExcess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := domain.ClassifyStock(tt.current, 10, 100); got != tt.want {
				t.Errorf("ClassifyStock(%d) = %q, want %q", tt.current, got, tt.want)
			}
		})
	}
}

func TestNewStockLevel_FallsBackToThresholds(t *testing.T) {
	lvl := domain.NewStockLevel(domain.Product{ID: "P-1", Stock: 150}, 10, 100)
	if lvl.Min != 10 || lvl.Max != 100 || lvl.Target != 100 {
		t.Errorf("thresholds not applied: %+v", lvl)
	}
	if lvl.Status != domain.StockExcess {
		t.Errorf("Status = %q, want excess", lvl.Status)
	}
}

func TestNewPriceState_ClampsCurrent(t *testing.T) {
	st := domain.NewPriceState(domain.Product{ID: "P-1", BasePrice: 100, CurrentPrice: 140, MinPrice: 80, MaxPrice: 120})
	if st.CurrentPrice != 120 {
		t.Errorf("CurrentPrice = %v, want 120", st.CurrentPrice)
	}
	if st.MinPrice > st.CurrentPrice || st.CurrentPrice > st.MaxPrice {
		t.Errorf("bounds violated: %+v", st)
	}
}

func TestNewPriceState_MissingBounds(t *testing.T) {
	st := domain.NewPriceState(domain.Product{ID: "P-1", CurrentPrice: 50})
	if st.BasePrice != 50 || st.MinPrice != 50 || st.MaxPrice != 50 {
		t.Errorf("missing bounds should collapse onto current price: %+v", st)
	}
}

func TestItemKey_OrderIndependent(t *testing.T) {
	if domain.ItemKey([]string{"B", "A"}) != domain.ItemKey([]string{"A", "B"}) {
		t.Errorf("ItemKey must not depend on order")
	}
}

func TestWorkerMetrics_Rates(t *testing.T) {
	var m domain.WorkerMetrics
	if m.SuccessRate() != 0 || m.AcceptanceRate() != 0 {
		t.Errorf("zero metrics should give zero rates")
	}
	m = domain.WorkerMetrics{Executions: 4, Successes: 3, TotalRecommendations: 10, AcceptedRecommendations: 5}
	if m.SuccessRate() != 0.75 {
		t.Errorf("SuccessRate = %v, want 0.75", m.SuccessRate())
	}
	if m.AcceptanceRate() != 0.5 {
		t.Errorf("AcceptanceRate = %v, want 0.5", m.AcceptanceRate())
	}
}
