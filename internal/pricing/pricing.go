// Package pricing считает текущую цену товара.
// Цена всегда вычисляется заново и нигде не кэшируется.
package pricing

import (
	"github.com/linemk/storefront/internal/domain/models"
	"github.com/shopspring/decimal"
)

// ScarcityThreshold - при остатке ниже порога действует наценка
const ScarcityThreshold = 5

var scarcitySurcharge = decimal.RequireFromString("1.20")

// CurrentPrice возвращает цену товара с учётом наценки за дефицит
func CurrentPrice(p *models.Product) decimal.Decimal {
	return PriceFor(p.BasePrice, p.Inventory)
}

// PriceFor - то же правило для произвольных базовой цены и остатка
func PriceFor(basePrice decimal.Decimal, inventory int) decimal.Decimal {
	if inventory < ScarcityThreshold {
		return basePrice.Mul(scarcitySurcharge).Round(2)
	}
	return basePrice
}

// LineTotal стоимость строки
func LineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}
