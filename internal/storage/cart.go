package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/linemk/storefront/internal/domain/models"
)

// CartStorage описывает методы для работы с постоянной корзиной покупателя.
type CartStorage interface {
	GetCartItems(ctx context.Context, userID int64) ([]*models.CartItem, error)
	// LockCartItemsTx читает корзину с блокировкой строк, упорядоченно по товару.
	LockCartItemsTx(ctx context.Context, tx *sql.Tx, userID int64) ([]*models.CartItem, error)
	// AddCartItemTx прибавляет количество к строке корзины (или создаёт её) и возвращает итог.
	AddCartItemTx(ctx context.Context, tx *sql.Tx, userID, productID int64, quantity int) (int, error)
	// DecrementCartItemTx уменьшает количество на 1 и удаляет строку, если оно дошло до нуля.
	DecrementCartItemTx(ctx context.Context, tx *sql.Tx, userID, productID int64) error
	RemoveCartItem(ctx context.Context, userID, productID int64) (bool, error)
	DeleteCartItemsTx(ctx context.Context, tx *sql.Tx, userID int64, productIDs []int64) error
}

type cartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) CartStorage {
	return &cartRepository{db: db}
}

func collectCartItems(rows *sql.Rows) ([]*models.CartItem, error) {
	defer rows.Close()

	var items []*models.CartItem
	for rows.Next() {
		item := &models.CartItem{}
		if err := rows.Scan(&item.UserID, &item.ProductID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *cartRepository) GetCartItems(ctx context.Context, userID int64) ([]*models.CartItem, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT user_id, product_id, quantity FROM cart_items WHERE user_id = $1 ORDER BY product_id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	return collectCartItems(rows)
}

func (r *cartRepository) LockCartItemsTx(ctx context.Context, tx *sql.Tx, userID int64) ([]*models.CartItem, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT user_id, product_id, quantity FROM cart_items WHERE user_id = $1 ORDER BY product_id FOR UPDATE", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock cart items: %w", err)
	}
	return collectCartItems(rows)
}

func (r *cartRepository) AddCartItemTx(ctx context.Context, tx *sql.Tx, userID, productID int64, quantity int) (int, error) {
	query := `INSERT INTO cart_items (user_id, product_id, quantity)
	          VALUES ($1, $2, $3)
	          ON CONFLICT (user_id, product_id) DO UPDATE
	          SET quantity = cart_items.quantity + EXCLUDED.quantity
	          RETURNING quantity`
	var total int
	if err := tx.QueryRowContext(ctx, query, userID, productID, quantity).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to add cart item: %w", err)
	}
	return total, nil
}

func (r *cartRepository) DecrementCartItemTx(ctx context.Context, tx *sql.Tx, userID, productID int64) error {
	// строка с количеством 1 удаляется, иначе сработает CHECK (quantity > 0)
	res, err := tx.ExecContext(ctx,
		"DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2 AND quantity <= 1", userID, productID)
	if err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE cart_items SET quantity = quantity - 1 WHERE user_id = $1 AND product_id = $2", userID, productID); err != nil {
		return fmt.Errorf("failed to decrement cart item: %w", err)
	}
	return nil
}

func (r *cartRepository) RemoveCartItem(ctx context.Context, userID, productID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2", userID, productID)
	if err != nil {
		return false, fmt.Errorf("failed to remove cart item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *cartRepository) DeleteCartItemsTx(ctx context.Context, tx *sql.Tx, userID int64, productIDs []int64) error {
	if len(productIDs) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		"DELETE FROM cart_items WHERE user_id = $1 AND product_id = ANY($2)", userID, pq.Array(productIDs))
	if err != nil {
		return fmt.Errorf("failed to delete cart items: %w", err)
	}
	return nil
}
