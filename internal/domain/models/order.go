package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus статус заказа
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// Order представляет заказ покупателя.
// TotalPrice фиксируется при создании и никогда не пересчитывается по живым ценам.
type Order struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Status     OrderStatus     `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	Items      []*OrderItem    `json:"items,omitempty"`
}

// OrderItem строка заказа. SellerID и PriceAtPurchase - снимки на момент покупки.
type OrderItem struct {
	ID              int64           `json:"id"`
	OrderID         int64           `json:"order_id"`
	ProductID       int64           `json:"product_id"`
	ProductTitle    string          `json:"product_title,omitempty"` // заполняется через JOIN с products
	SellerID        int64           `json:"seller_id"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	Status          ItemStatus      `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}

// LineTotal возвращает стоимость строки по цене покупки
func (i *OrderItem) LineTotal() decimal.Decimal {
	return i.PriceAtPurchase.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
