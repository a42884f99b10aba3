package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/storefront/internal/domain/models"
)

var (
	ErrOrderNotFound     = fmt.Errorf("order %w", models.ErrNotFound)
	ErrOrderItemNotFound = fmt.Errorf("order item %w", models.ErrNotFound)
)

const itemColumns = "oi.id, oi.order_id, oi.product_id, p.title, oi.seller_id, oi.quantity, oi.price_at_purchase, oi.status, oi.created_at"

// OrderStorage описывает методы для работы с заказами и их строками.
type OrderStorage interface {
	// CreateOrder вставляет заказ и заполняет ID и CreatedAt.
	CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error
	// CreateOrderItem вставляет строку заказа и заполняет ID и CreatedAt.
	CreateOrderItem(ctx context.Context, tx *sql.Tx, item *models.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error)
	// LockOrderByItemIDTx блокирует заказ, которому принадлежит строка itemID.
	LockOrderByItemIDTx(ctx context.Context, tx *sql.Tx, itemID int64) (*models.Order, error)
	// GetOrdersByUserID возвращает заказы пользователя, новые первыми.
	GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error)
	UpdateOrderStatus(ctx context.Context, tx *sql.Tx, id int64, status models.OrderStatus) error

	GetItemsByOrderID(ctx context.Context, orderID int64) ([]*models.OrderItem, error)
	GetItemsByOrderIDTx(ctx context.Context, tx *sql.Tx, orderID int64) ([]*models.OrderItem, error)
	GetItemsBySellerID(ctx context.Context, sellerID int64) ([]*models.OrderItem, error)
	LockOrderItemByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.OrderItem, error)
	UpdateOrderItemStatus(ctx context.Context, tx *sql.Tx, id int64, status models.ItemStatus) error
	// CountUndeliveredItemsTx считает строки заказа, ещё не дошедшие до delivered.
	CountUndeliveredItemsTx(ctx context.Context, tx *sql.Tx, orderID int64) (int, error)
}

type orderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

func (r *orderRepository) CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	query := `INSERT INTO orders (user_id, total_price, status, created_at)
	          VALUES ($1, $2, $3, NOW())
	          RETURNING id, created_at`
	err := tx.QueryRowContext(ctx, query, order.UserID, order.TotalPrice, order.Status).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *orderRepository) CreateOrderItem(ctx context.Context, tx *sql.Tx, item *models.OrderItem) error {
	query := `INSERT INTO order_items (order_id, product_id, seller_id, quantity, price_at_purchase, status, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW())
	          RETURNING id, created_at`
	err := tx.QueryRowContext(ctx, query,
		item.OrderID, item.ProductID, item.SellerID, item.Quantity, item.PriceAtPurchase, item.Status,
	).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order item: %w", err)
	}
	return nil
}

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	if err := row.Scan(&order.ID, &order.UserID, &order.TotalPrice, &order.Status, &order.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT id, user_id, total_price, status, created_at FROM orders WHERE id = $1", id)
	return scanOrder(row)
}

func (r *orderRepository) LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	row := tx.QueryRowContext(ctx, "SELECT id, user_id, total_price, status, created_at FROM orders WHERE id = $1 FOR UPDATE", id)
	return scanOrder(row)
}

func (r *orderRepository) LockOrderByItemIDTx(ctx context.Context, tx *sql.Tx, itemID int64) (*models.Order, error) {
	query := `
		SELECT o.id, o.user_id, o.total_price, o.status, o.created_at
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		WHERE oi.id = $1
		FOR UPDATE OF o`
	order, err := scanOrder(tx.QueryRowContext(ctx, query, itemID))
	if errors.Is(err, ErrOrderNotFound) {
		return nil, ErrOrderItemNotFound
	}
	return order, err
}

func (r *orderRepository) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	query := `
		SELECT id, user_id, total_price, status, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) UpdateOrderStatus(ctx context.Context, tx *sql.Tx, id int64, status models.OrderStatus) error {
	res, err := tx.ExecContext(ctx, "UPDATE orders SET status = $1 WHERE id = $2", status, id)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func scanItem(row rowScanner) (*models.OrderItem, error) {
	item := &models.OrderItem{}
	if err := row.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductTitle, &item.SellerID,
		&item.Quantity, &item.PriceAtPurchase, &item.Status, &item.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderItemNotFound
		}
		return nil, err
	}
	return item, nil
}

func collectItems(rows *sql.Rows) ([]*models.OrderItem, error) {
	defer rows.Close()

	var items []*models.OrderItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// GetItemsByOrderID возвращает строки заказа с JOIN, чтобы получить название товара.
func (r *orderRepository) GetItemsByOrderID(ctx context.Context, orderID int64) ([]*models.OrderItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM order_items oi
		JOIN products p ON oi.product_id = p.id
		WHERE oi.order_id = $1
		ORDER BY oi.id`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	return collectItems(rows)
}

func (r *orderRepository) GetItemsByOrderIDTx(ctx context.Context, tx *sql.Tx, orderID int64) ([]*models.OrderItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM order_items oi
		JOIN products p ON oi.product_id = p.id
		WHERE oi.order_id = $1
		ORDER BY oi.product_id`
	rows, err := tx.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	return collectItems(rows)
}

func (r *orderRepository) GetItemsBySellerID(ctx context.Context, sellerID int64) ([]*models.OrderItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM order_items oi
		JOIN products p ON oi.product_id = p.id
		WHERE oi.seller_id = $1
		ORDER BY oi.created_at DESC, oi.id DESC`
	rows, err := r.db.QueryContext(ctx, query, sellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query seller items: %w", err)
	}
	return collectItems(rows)
}

// LockOrderItemByIDTx блокирует только строку order_items (FOR UPDATE OF oi).
func (r *orderRepository) LockOrderItemByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.OrderItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM order_items oi
		JOIN products p ON oi.product_id = p.id
		WHERE oi.id = $1
		FOR UPDATE OF oi`
	return scanItem(tx.QueryRowContext(ctx, query, id))
}

func (r *orderRepository) UpdateOrderItemStatus(ctx context.Context, tx *sql.Tx, id int64, status models.ItemStatus) error {
	res, err := tx.ExecContext(ctx, "UPDATE order_items SET status = $1 WHERE id = $2", status, id)
	if err != nil {
		return fmt.Errorf("failed to update order item status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderItemNotFound
	}
	return nil
}

func (r *orderRepository) CountUndeliveredItemsTx(ctx context.Context, tx *sql.Tx, orderID int64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM order_items WHERE order_id = $1 AND status <> $2",
		orderID, models.ItemStatusDelivered,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count undelivered items: %w", err)
	}
	return n, nil
}
