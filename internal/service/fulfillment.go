package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/lib/metrics"
	"github.com/linemk/storefront/internal/storage"
)

type FulfillmentService interface {
	// AdvanceStatus двигает строку заказа по цепочке pending -> shipped -> delivered.
	AdvanceStatus(ctx context.Context, sellerID, itemID int64, status models.ItemStatus) (*models.OrderItem, error)
	ListSellerItems(ctx context.Context, sellerID int64) ([]*models.OrderItem, error)
}

type fulfillmentService struct {
	log     *slog.Logger
	tx      storage.TxRunner
	orders  storage.OrderStorage
	metrics *metrics.Metrics
}

func NewFulfillmentService(log *slog.Logger, tx storage.TxRunner, orders storage.OrderStorage, m *metrics.Metrics) FulfillmentService {
	return &fulfillmentService{
		log:     log,
		tx:      tx,
		orders:  orders,
		metrics: m,
	}
}

// AdvanceStatus меняет статус строки заказа от имени продавца.
// Повторная установка текущего статуса ничего не меняет.
// Когда доставлены все строки, заказ получает статус delivered.
func (s *fulfillmentService) AdvanceStatus(ctx context.Context, sellerID, itemID int64, status models.ItemStatus) (*models.OrderItem, error) {
	const op = "service.FulfillmentService.AdvanceStatus"
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("sellerID", sellerID),
		slog.Int64("itemID", itemID),
		slog.String("status", string(status)),
	)

	var (
		item    *models.OrderItem
		changed bool
	)
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		// заказ блокируется раньше строки, в том же порядке, что и при отмене
		order, err := s.orders.LockOrderByItemIDTx(ctx, tx, itemID)
		if err != nil {
			return err
		}
		item, err = s.orders.LockOrderItemByIDTx(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if item.SellerID != sellerID {
			return models.ErrForbidden
		}
		if order.Status == models.OrderStatusCancelled {
			return fmt.Errorf("order %d is cancelled: %w", order.ID, models.ErrInvalidState)
		}
		if item.Status == status {
			return nil
		}
		if !models.CanTransition(item.Status, status) {
			return &models.IllegalTransitionError{From: item.Status, To: status}
		}

		if err := s.orders.UpdateOrderItemStatus(ctx, tx, item.ID, status); err != nil {
			return fmt.Errorf("failed to update item status: %w", err)
		}
		item.Status = status
		changed = true

		undelivered, err := s.orders.CountUndeliveredItemsTx(ctx, tx, order.ID)
		if err != nil {
			return fmt.Errorf("failed to count undelivered items: %w", err)
		}
		if undelivered == 0 && order.Status != models.OrderStatusDelivered {
			if err := s.orders.UpdateOrderStatus(ctx, tx, order.ID, models.OrderStatusDelivered); err != nil {
				return fmt.Errorf("failed to update order status: %w", err)
			}
			logger.Info("order delivered", slog.Int64("orderID", order.ID))
		}
		return nil
	})
	if err != nil {
		logger.Warn("status change rejected", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if changed {
		s.metrics.ItemTransition(string(status))
		logger.Info("item status changed")
	}
	return item, nil
}

func (s *fulfillmentService) ListSellerItems(ctx context.Context, sellerID int64) ([]*models.OrderItem, error) {
	const op = "service.FulfillmentService.ListSellerItems"

	items, err := s.orders.GetItemsBySellerID(ctx, sellerID)
	if err != nil {
		s.log.Error("failed to list seller items", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return items, nil
}
