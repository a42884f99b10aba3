package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/storefront/internal/domain/models"
)

var ErrPaymentNotFound = fmt.Errorf("payment %w", models.ErrNotFound)

// PaymentStorage описывает методы для работы с платежами.
type PaymentStorage interface {
	// UpsertPayment создаёт платёж заказа или обновляет существующий, заказ имеет не больше одного платежа.
	UpsertPayment(ctx context.Context, tx *sql.Tx, payment *models.Payment) error
	GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error)
}

type paymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) PaymentStorage {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) UpsertPayment(ctx context.Context, tx *sql.Tx, payment *models.Payment) error {
	query := `INSERT INTO payments (order_id, payment_id, amount, status, created_at)
	          VALUES ($1, $2, $3, $4, NOW())
	          ON CONFLICT (order_id) DO UPDATE
	          SET payment_id = EXCLUDED.payment_id, amount = EXCLUDED.amount, status = EXCLUDED.status
	          RETURNING id, created_at`
	err := tx.QueryRowContext(ctx, query,
		payment.OrderID, payment.PaymentID, payment.Amount, payment.Status,
	).Scan(&payment.ID, &payment.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	p := &models.Payment{}
	row := r.db.QueryRowContext(ctx,
		"SELECT id, order_id, payment_id, amount, status, created_at FROM payments WHERE order_id = $1", orderID)
	if err := row.Scan(&p.ID, &p.OrderID, &p.PaymentID, &p.Amount, &p.Status, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return p, nil
}
