package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus статус платежа
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Payment представляет платёж по заказу, не больше одного на заказ
type Payment struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	PaymentID string          `json:"payment_id"` // идентификатор от платёжного провайдера
	Amount    decimal.Decimal `json:"amount"`
	Status    PaymentStatus   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// MockPaymentID синтетический идентификатор платежа по id заказа
func MockPaymentID(orderID int64) string {
	return fmt.Sprintf("MOCK-%d", orderID)
}
