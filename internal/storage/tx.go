package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// TxRunner выполняет функцию в транзакции.
// Транзакция коммитится, только если fn вернула nil, во всех остальных случаях
// (ошибка, паника) выполняется откат.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type txRunner struct {
	db *sql.DB
}

func NewTxRunner(db *sql.DB) TxRunner {
	return &txRunner{db: db}
}

func (r *txRunner) InTx(ctx context.Context, fn func(tx *sql.Tx) error) (txErr error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				txErr = errors.Join(txErr, fmt.Errorf("transaction rollback failed: %w", rbErr))
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
