package models

import "github.com/shopspring/decimal"

// CartItem строка постоянной корзины покупателя, пара (user, product) уникальна
type CartItem struct {
	UserID    int64 `json:"user_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// CartLine строка корзины или явного списка товаров для оформления заказа
type CartLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// PricedLine строка корзины с текущей ценой, только для отображения
type PricedLine struct {
	ProductID int64           `json:"product_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
}

type CartView struct {
	Items []PricedLine    `json:"items"`
	Total decimal.Decimal `json:"total"`
}
