package models

import "github.com/shopspring/decimal"

// SellerSummary итоги продаж продавца по оплаченным заказам
type SellerSummary struct {
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalItems   int             `json:"total_items"`
	TotalOrders  int             `json:"total_orders"`
}

// ProductSales продажи одного товара
type ProductSales struct {
	ProductID int64           `json:"product_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"total_quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// SellerAnalytics сводка продавца и разбивка по товарам
type SellerAnalytics struct {
	Summary  *SellerSummary  `json:"summary"`
	Products []*ProductSales `json:"products"`
}
