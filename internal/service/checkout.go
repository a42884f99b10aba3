package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/lib/metrics"
	"github.com/linemk/storefront/internal/pricing"
	"github.com/linemk/storefront/internal/storage"
)

type OrderEngine interface {
	// Checkout превращает корзину покупателя в заказ в статусе pending.
	Checkout(ctx context.Context, buyerID int64) (*models.Order, error)
	// CreateOrder оформляет заказ по явному списку позиций, корзина не затрагивается.
	CreateOrder(ctx context.Context, buyerID int64, lines []models.CartLine) (*models.Order, error)
	// CancelOrder отменяет неоплаченный заказ и возвращает остатки.
	CancelOrder(ctx context.Context, buyerID, orderID int64) (*models.Order, error)
	ListOrders(ctx context.Context, buyerID int64) ([]*models.Order, error)
	GetOrder(ctx context.Context, buyerID, orderID int64) (*models.Order, error)
}

type orderEngine struct {
	log      *slog.Logger
	tx       storage.TxRunner
	products storage.ProductStorage
	orders   storage.OrderStorage
	carts    storage.CartStorage
	ledger   *InventoryLedger
	metrics  *metrics.Metrics
}

func NewOrderEngine(
	log *slog.Logger,
	tx storage.TxRunner,
	products storage.ProductStorage,
	orders storage.OrderStorage,
	carts storage.CartStorage,
	ledger *InventoryLedger,
	m *metrics.Metrics,
) OrderEngine {
	return &orderEngine{
		log:      log,
		tx:       tx,
		products: products,
		orders:   orders,
		carts:    carts,
		ledger:   ledger,
		metrics:  m,
	}
}

func (e *orderEngine) Checkout(ctx context.Context, buyerID int64) (*models.Order, error) {
	const op = "service.OrderEngine.Checkout"
	logger := e.log.With(slog.String("op", op), slog.Int64("buyerID", buyerID))
	logger.Info("starting checkout")

	var order *models.Order
	err := e.tx.InTx(ctx, func(tx *sql.Tx) error {
		cart, err := e.carts.LockCartItemsTx(ctx, tx, buyerID)
		if err != nil {
			return fmt.Errorf("failed to lock cart: %w", err)
		}

		lines := lo.Map(cart, func(item *models.CartItem, _ int) models.CartLine {
			return models.CartLine{ProductID: item.ProductID, Quantity: item.Quantity}
		})

		order, err = e.placeOrder(ctx, tx, buyerID, lines)
		if err != nil {
			return err
		}

		consumed := lo.Map(order.Items, func(item *models.OrderItem, _ int) int64 {
			return item.ProductID
		})
		if err := e.carts.DeleteCartItemsTx(ctx, tx, buyerID, consumed); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		e.metrics.Checkout(checkoutResult(err), 0)
		logger.Warn("checkout failed", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	e.metrics.Checkout(checkoutResult(nil), totalUnits(order))
	logger.Info("order created", slog.Int64("orderID", order.ID), slog.String("total", order.TotalPrice.StringFixed(2)))
	return order, nil
}

func (e *orderEngine) CreateOrder(ctx context.Context, buyerID int64, lines []models.CartLine) (*models.Order, error) {
	const op = "service.OrderEngine.CreateOrder"
	logger := e.log.With(slog.String("op", op), slog.Int64("buyerID", buyerID))
	logger.Info("creating order", slog.Int("lines", len(lines)))

	var order *models.Order
	err := e.tx.InTx(ctx, func(tx *sql.Tx) error {
		var err error
		order, err = e.placeOrder(ctx, tx, buyerID, lines)
		return err
	})
	if err != nil {
		e.metrics.Checkout(checkoutResult(err), 0)
		logger.Warn("order creation failed", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	e.metrics.Checkout(checkoutResult(nil), totalUnits(order))
	logger.Info("order created", slog.Int64("orderID", order.ID), slog.String("total", order.TotalPrice.StringFixed(2)))
	return order, nil
}

// placeOrder резервирует остатки и записывает заказ со строками.
// Сначала проверяются все позиции, списание начинается только если хватает всего.
func (e *orderEngine) placeOrder(ctx context.Context, tx *sql.Tx, buyerID int64, lines []models.CartLine) (*models.Order, error) {
	lines, err := normalizeLines(lines)
	if err != nil {
		return nil, err
	}

	// блокировки берутся в порядке возрастания id товара
	locked := make([]*models.Product, 0, len(lines))
	for _, line := range lines {
		product, err := e.products.LockProductByIDTx(ctx, tx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to lock product %d: %w", line.ProductID, err)
		}
		if !product.Available {
			return nil, fmt.Errorf("product %d is withdrawn: %w", product.ID, storage.ErrProductNotFound)
		}
		locked = append(locked, product)
	}

	for i, line := range lines {
		if err := e.ledger.Check(locked[i], line.Quantity); err != nil {
			return nil, err
		}
	}

	order := &models.Order{
		UserID: buyerID,
		Status: models.OrderStatusPending,
	}
	items := make([]*models.OrderItem, 0, len(lines))
	total := decimal.Zero
	for i, line := range lines {
		product := locked[i]
		// цена фиксируется по остатку до резервирования
		price := pricing.CurrentPrice(product)
		if err := e.ledger.Reserve(ctx, tx, product, line.Quantity); err != nil {
			return nil, err
		}
		items = append(items, &models.OrderItem{
			ProductID:       product.ID,
			ProductTitle:    product.Title,
			SellerID:        product.SellerID,
			Quantity:        line.Quantity,
			PriceAtPurchase: price,
			Status:          models.ItemStatusPending,
		})
		total = total.Add(pricing.LineTotal(price, line.Quantity))
	}
	order.TotalPrice = total

	if err := e.orders.CreateOrder(ctx, tx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	for _, item := range items {
		item.OrderID = order.ID
		if err := e.orders.CreateOrderItem(ctx, tx, item); err != nil {
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}
	}
	order.Items = items
	return order, nil
}

func (e *orderEngine) CancelOrder(ctx context.Context, buyerID, orderID int64) (*models.Order, error) {
	const op = "service.OrderEngine.CancelOrder"
	logger := e.log.With(slog.String("op", op), slog.Int64("buyerID", buyerID), slog.Int64("orderID", orderID))
	logger.Info("cancelling order")

	var order *models.Order
	err := e.tx.InTx(ctx, func(tx *sql.Tx) error {
		var err error
		order, err = e.orders.LockOrderByIDTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != buyerID {
			return storage.ErrOrderNotFound
		}
		if order.Status != models.OrderStatusPending {
			return models.ErrInvalidState
		}

		items, err := e.orders.GetItemsByOrderIDTx(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("failed to get order items: %w", err)
		}
		for _, item := range items {
			if err := e.ledger.Release(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		if err := e.orders.UpdateOrderStatus(ctx, tx, orderID, models.OrderStatusCancelled); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		order.Status = models.OrderStatusCancelled
		order.Items = items
		return nil
	})
	if err != nil {
		logger.Warn("cancel failed", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("order cancelled")
	return order, nil
}

func (e *orderEngine) ListOrders(ctx context.Context, buyerID int64) ([]*models.Order, error) {
	const op = "service.OrderEngine.ListOrders"

	orders, err := e.orders.GetOrdersByUserID(ctx, buyerID)
	if err != nil {
		e.log.Error("failed to list orders", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, order := range orders {
		order.Items, err = e.orders.GetItemsByOrderID(ctx, order.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to get items of order %d: %w", op, order.ID, err)
		}
	}
	return orders, nil
}

// GetOrder возвращает заказ покупателя, чужой заказ выглядит как несуществующий
func (e *orderEngine) GetOrder(ctx context.Context, buyerID, orderID int64) (*models.Order, error) {
	const op = "service.OrderEngine.GetOrder"

	order, err := e.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if order.UserID != buyerID {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrOrderNotFound)
	}
	order.Items, err = e.orders.GetItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get items: %w", op, err)
	}
	return order, nil
}

// normalizeLines объединяет повторы товара и сортирует позиции по id товара
func normalizeLines(lines []models.CartLine) ([]models.CartLine, error) {
	merged := make(map[int64]int, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, models.ErrInvalidQuantity
		}
		merged[line.ProductID] += line.Quantity
	}
	if len(merged) == 0 {
		return nil, models.ErrEmptyCart
	}

	out := make([]models.CartLine, 0, len(merged))
	for productID, qty := range merged {
		out = append(out, models.CartLine{ProductID: productID, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func totalUnits(order *models.Order) int {
	return lo.SumBy(order.Items, func(item *models.OrderItem) int { return item.Quantity })
}

func checkoutResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, models.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, models.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
