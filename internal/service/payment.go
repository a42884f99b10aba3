package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/lib/metrics"
	"github.com/linemk/storefront/internal/payment"
	"github.com/linemk/storefront/internal/storage"
)

type PaymentService interface {
	// Pay списывает деньги через провайдера и завершает оплату заказа.
	Pay(ctx context.Context, buyerID, orderID int64) (*models.Order, error)
	// FinalizeOrderPayment переводит заказ в paid после успешного платежа.
	FinalizeOrderPayment(ctx context.Context, orderID int64, paymentID string) (*models.Order, error)
	// ConfirmPayment отмечает заказ оплаченным без обращения к провайдеру и складу.
	ConfirmPayment(ctx context.Context, buyerID, orderID int64) (*models.Order, error)
}

type paymentService struct {
	log      *slog.Logger
	tx       storage.TxRunner
	orders   storage.OrderStorage
	products storage.ProductStorage
	payments storage.PaymentStorage
	provider payment.Provider
	metrics  *metrics.Metrics
}

func NewPaymentService(
	log *slog.Logger,
	tx storage.TxRunner,
	orders storage.OrderStorage,
	products storage.ProductStorage,
	payments storage.PaymentStorage,
	provider payment.Provider,
	m *metrics.Metrics,
) PaymentService {
	return &paymentService{
		log:      log,
		tx:       tx,
		orders:   orders,
		products: products,
		payments: payments,
		provider: provider,
		metrics:  m,
	}
}

func (s *paymentService) Pay(ctx context.Context, buyerID, orderID int64) (*models.Order, error) {
	const op = "service.PaymentService.Pay"
	logger := s.log.With(slog.String("op", op), slog.Int64("buyerID", buyerID), slog.Int64("orderID", orderID))
	logger.Info("paying order")

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if order.UserID != buyerID {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrOrderNotFound)
	}
	if order.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("%s: order is %s: %w", op, order.Status, models.ErrInvalidState)
	}

	// провайдер вызывается вне транзакции
	charge, err := s.provider.Charge(ctx, order)
	if err != nil {
		s.metrics.Payment("pay", "error")
		logger.Error("payment provider failed", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to charge: %w", op, err)
	}

	if charge.Status != models.PaymentStatusSuccess {
		err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
			return s.payments.UpsertPayment(ctx, tx, &models.Payment{
				OrderID:   order.ID,
				PaymentID: charge.PaymentID,
				Amount:    order.TotalPrice,
				Status:    models.PaymentStatusFailed,
			})
		})
		if err != nil {
			logger.Error("failed to record declined payment", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to record payment: %w", op, err)
		}
		s.metrics.Payment("pay", "declined")
		logger.Warn("payment declined", slog.String("paymentID", charge.PaymentID))
		return nil, fmt.Errorf("%s: %w", op, models.ErrPaymentDeclined)
	}

	paid, err := s.FinalizeOrderPayment(ctx, order.ID, charge.PaymentID)
	if err != nil {
		s.metrics.Payment("pay", "error")
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.Payment("pay", "ok")
	return paid, nil
}

func (s *paymentService) FinalizeOrderPayment(ctx context.Context, orderID int64, paymentID string) (*models.Order, error) {
	const op = "service.PaymentService.FinalizeOrderPayment"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID))

	var order *models.Order
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		var err error
		order, err = s.orders.LockOrderByIDTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != models.OrderStatusPending {
			return fmt.Errorf("order is %s: %w", order.Status, models.ErrInvalidState)
		}

		items, err := s.orders.GetItemsByOrderIDTx(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("failed to get order items: %w", err)
		}
		// остатки списаны при оформлении и не уходят в минус (CHECK inventory >= 0),
		// здесь строки товаров только блокируются и проверяется, что они на месте
		for _, item := range items {
			if _, err := s.products.LockProductByIDTx(ctx, tx, item.ProductID); err != nil {
				return fmt.Errorf("failed to lock product %d: %w", item.ProductID, err)
			}
		}

		if paymentID == "" {
			paymentID = models.MockPaymentID(order.ID)
		}
		if err := s.payments.UpsertPayment(ctx, tx, &models.Payment{
			OrderID:   order.ID,
			PaymentID: paymentID,
			Amount:    order.TotalPrice,
			Status:    models.PaymentStatusSuccess,
		}); err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}

		if err := s.orders.UpdateOrderStatus(ctx, tx, order.ID, models.OrderStatusPaid); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		order.Status = models.OrderStatusPaid
		order.Items = items
		return nil
	})
	if err != nil {
		logger.Warn("finalize failed", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("order paid", slog.String("paymentID", paymentID))
	return order, nil
}

func (s *paymentService) ConfirmPayment(ctx context.Context, buyerID, orderID int64) (*models.Order, error) {
	const op = "service.PaymentService.ConfirmPayment"
	logger := s.log.With(slog.String("op", op), slog.Int64("buyerID", buyerID), slog.Int64("orderID", orderID))

	var order *models.Order
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		var err error
		order, err = s.orders.LockOrderByIDTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != buyerID {
			return storage.ErrOrderNotFound
		}
		if order.Status != models.OrderStatusPending {
			return fmt.Errorf("order is %s: %w", order.Status, models.ErrInvalidState)
		}

		if err := s.payments.UpsertPayment(ctx, tx, &models.Payment{
			OrderID:   order.ID,
			PaymentID: models.MockPaymentID(order.ID),
			Amount:    order.TotalPrice,
			Status:    models.PaymentStatusSuccess,
		}); err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}
		if err := s.orders.UpdateOrderStatus(ctx, tx, order.ID, models.OrderStatusPaid); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		order.Status = models.OrderStatusPaid
		return nil
	})
	if err != nil {
		s.metrics.Payment("confirm", paymentResult(err))
		logger.Warn("confirm failed", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.Payment("confirm", "ok")
	logger.Info("payment confirmed")
	return order, nil
}

func paymentResult(err error) string {
	switch {
	case errors.Is(err, models.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
