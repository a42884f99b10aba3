package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/storage"
)

// InventoryLedger резервирует и возвращает остатки товаров.
// Все операции выполняются в транзакции вызывающего кода.
type InventoryLedger struct {
	products storage.ProductStorage
}

func NewInventoryLedger(products storage.ProductStorage) *InventoryLedger {
	return &InventoryLedger{products: products}
}

// Check проверяет остаток по заблокированной строке товара без изменений
func (l *InventoryLedger) Check(product *models.Product, quantity int) error {
	if quantity <= 0 {
		return models.ErrInvalidQuantity
	}
	if quantity > product.Inventory {
		return insufficient(product, quantity)
	}
	return nil
}

// Reserve списывает quantity с остатка товара.
// product должен быть прочитан через LockProductByIDTx в той же транзакции,
// его Inventory обновляется после успешного списания.
func (l *InventoryLedger) Reserve(ctx context.Context, tx *sql.Tx, product *models.Product, quantity int) error {
	if err := l.Check(product, quantity); err != nil {
		return err
	}

	if err := l.products.DecrementInventory(ctx, tx, product.ID, quantity); err != nil {
		if errors.Is(err, storage.ErrStockNotDecremented) {
			return insufficient(product, quantity)
		}
		return fmt.Errorf("failed to reserve product %d: %w", product.ID, err)
	}

	product.Inventory -= quantity
	return nil
}

// Release возвращает quantity на остаток, симметрично Reserve
func (l *InventoryLedger) Release(ctx context.Context, tx *sql.Tx, productID int64, quantity int) error {
	if quantity <= 0 {
		return models.ErrInvalidQuantity
	}
	if err := l.products.IncrementInventory(ctx, tx, productID, quantity); err != nil {
		return fmt.Errorf("failed to release product %d: %w", productID, err)
	}
	return nil
}

func insufficient(product *models.Product, requested int) error {
	return &models.InsufficientStockError{
		ProductID: product.ID,
		Title:     product.Title,
		Requested: requested,
		Available: product.Inventory,
	}
}
