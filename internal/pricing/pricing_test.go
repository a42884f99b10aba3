package pricing_test

import (
	"testing"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/pricing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCurrentPrice(t *testing.T) {
	tests := []struct {
		name      string
		basePrice string
		inventory int
		want      string
	}{
		{name: "below threshold gets surcharge", basePrice: "10.00", inventory: 3, want: "12.00"},
		{name: "zero inventory gets surcharge", basePrice: "10.00", inventory: 0, want: "12.00"},
		{name: "last unit before threshold", basePrice: "19.99", inventory: 4, want: "23.99"},
		{name: "rounded to cents", basePrice: "0.01", inventory: 1, want: "0.01"},
		{name: "rounded up to cents", basePrice: "9.99", inventory: 2, want: "11.99"},
		{name: "at threshold unchanged", basePrice: "10.00", inventory: 5, want: "10.00"},
		{name: "plenty of stock unchanged", basePrice: "7.35", inventory: 100, want: "7.35"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &models.Product{
				BasePrice: decimal.RequireFromString(tt.basePrice),
				Inventory: tt.inventory,
			}
			got := pricing.CurrentPrice(p)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "expected %s, got %s", tt.want, got)
		})
	}
}

func TestCurrentPrice_NotCached(t *testing.T) {
	p := &models.Product{BasePrice: decimal.RequireFromString("10.00"), Inventory: 10}
	assert.Equal(t, "10", pricing.CurrentPrice(p).String())

	// цена должна отражать изменение остатка сразу же
	p.Inventory = 2
	assert.Equal(t, "12", pricing.CurrentPrice(p).String())
}

func TestLineTotal(t *testing.T) {
	got := pricing.LineTotal(decimal.RequireFromString("12.00"), 2)
	assert.True(t, decimal.RequireFromString("24.00").Equal(got))
}
