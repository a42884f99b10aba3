package models

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidState      = errors.New("invalid order state")
	ErrForbidden         = errors.New("forbidden")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrNotFound          = errors.New("not found")
	ErrPaymentDeclined   = errors.New("payment declined")
	ErrInvalidPrice      = errors.New("price must be positive")
)

// InsufficientStockError указывает товар, которого не хватает
type InsufficientStockError struct {
	ProductID int64
	Title     string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (%s): requested %d, available %d",
		e.ProductID, e.Title, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// IllegalTransitionError недопустимый переход статуса строки заказа
type IllegalTransitionError struct {
	From ItemStatus
	To   ItemStatus
}

func (e *IllegalTransitionError) Error() string {
	if e.From == "" {
		return fmt.Sprintf("unknown item status %q", e.To)
	}
	return fmt.Sprintf("cannot change status from %q to %q", e.From, e.To)
}

func (e *IllegalTransitionError) Unwrap() error {
	return ErrIllegalTransition
}
