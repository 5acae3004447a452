package postgres

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetailFloat(t *testing.T) {
	var decoded map[string]any
	d := json.NewDecoder(strings.NewReader(`{"n": 12.5}`))
	d.UseNumber()
	_ = d.Decode(&decoded)

	tests := []struct {
		name    string
		details map[string]any
		want    float64
		ok      bool
	}{
		{"float64", map[string]any{"new_price": 115.0}, 115, true},
		{"int", map[string]any{"new_price": 7}, 7, true},
		{"json number", map[string]any{"new_price": decoded["n"]}, 12.5, true},
		{"missing", map[string]any{}, 0, false},
		{"wrong type", map[string]any{"new_price": "115"}, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := detailFloat(tc.details, "new_price")
			assert.Equal(t, tc.ok, ok)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestDetailStrings(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, detailStrings(map[string]any{"items": []string{"A", "B"}}, "items"))
	assert.Equal(t, []string{"A", "B"}, detailStrings(map[string]any{"items": []any{"A", 3, "B"}}, "items"))
	assert.Nil(t, detailStrings(map[string]any{}, "items"))
}
