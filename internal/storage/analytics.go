package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/linemk/storefront/internal/domain/models"
)

// AnalyticsStorage агрегаты продаж продавца по оплаченным заказам.
type AnalyticsStorage interface {
	GetSellerSummary(ctx context.Context, sellerID int64) (*models.SellerSummary, error)
	GetSellerProductSales(ctx context.Context, sellerID int64) ([]*models.ProductSales, error)
}

type analyticsRepository struct {
	db *sql.DB
}

// paidStatuses статусы заказов, по которым оплата уже прошла
var paidStatuses = []string{
	string(models.OrderStatusPaid),
	string(models.OrderStatusShipped),
	string(models.OrderStatusOutForDelivery),
	string(models.OrderStatusDelivered),
}

func NewAnalyticsRepository(db *sql.DB) AnalyticsStorage {
	return &analyticsRepository{db: db}
}

func (r *analyticsRepository) GetSellerSummary(ctx context.Context, sellerID int64) (*models.SellerSummary, error) {
	query := `
		SELECT COALESCE(SUM(oi.price_at_purchase * oi.quantity), 0),
		       COALESCE(SUM(oi.quantity), 0),
		       COUNT(DISTINCT oi.order_id)
		FROM order_items oi
		JOIN orders o ON oi.order_id = o.id
		WHERE oi.seller_id = $1 AND o.status = ANY($2)`
	s := &models.SellerSummary{}
	if err := r.db.QueryRowContext(ctx, query, sellerID, pq.Array(paidStatuses)).
		Scan(&s.TotalRevenue, &s.TotalItems, &s.TotalOrders); err != nil {
		return nil, fmt.Errorf("failed to query seller summary: %w", err)
	}
	return s, nil
}

func (r *analyticsRepository) GetSellerProductSales(ctx context.Context, sellerID int64) ([]*models.ProductSales, error) {
	query := `
		SELECT p.id, p.title, COALESCE(SUM(oi.quantity), 0), COALESCE(SUM(oi.quantity * oi.price_at_purchase), 0)
		FROM order_items oi
		JOIN orders o ON oi.order_id = o.id
		JOIN products p ON oi.product_id = p.id
		WHERE oi.seller_id = $1 AND o.status = ANY($2)
		GROUP BY p.id, p.title
		ORDER BY 4 DESC`
	rows, err := r.db.QueryContext(ctx, query, sellerID, pq.Array(paidStatuses))
	if err != nil {
		return nil, fmt.Errorf("failed to query product sales: %w", err)
	}
	defer rows.Close()

	var sales []*models.ProductSales
	for rows.Next() {
		s := &models.ProductSales{}
		if err := rows.Scan(&s.ProductID, &s.Title, &s.Quantity, &s.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan product sales: %w", err)
		}
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}
