package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAverageRating(t *testing.T) {
	tests := []struct {
		sum   int64
		count int
		want  string
	}{
		{0, 0, "0"},
		{5, 1, "5"},
		{9, 2, "4.5"},
		{13, 3, "4.3"},
		{14, 3, "4.7"},
		{7, 2, "3.5"},
		{11, 4, "2.8"},
	}
	for _, tt := range tests {
		got := AverageRating(tt.sum, tt.count)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "%d/%d = %s", tt.sum, tt.count, got)
	}
}

func TestProduct_EffectivePrice(t *testing.T) {
	sale := decimal.NewFromInt(899)
	p := Product{Price: decimal.NewFromInt(999)}
	assert.True(t, p.EffectivePrice().Equal(decimal.NewFromInt(999)))

	p.SalePrice = &sale
	assert.True(t, p.EffectivePrice().Equal(sale))
}
