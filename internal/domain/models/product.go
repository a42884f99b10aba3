package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product представляет товар продавца.
// Текущая цена не хранится, она вычисляется пакетом pricing.
type Product struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	BasePrice   decimal.Decimal `json:"base_price"`
	Inventory   int             `json:"inventory"`
	Available   bool            `json:"available"`
	SellerID    int64           `json:"seller_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Listing товар в каталоге с текущей ценой
type Listing struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Inventory int             `json:"inventory"`
	Available bool            `json:"available"`
}

// ProductInput поля товара, которые задаёт продавец
type ProductInput struct {
	Title       string
	Description string
	BasePrice   decimal.Decimal
	Inventory   int
	Available   bool
}
