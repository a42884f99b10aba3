package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/storefront/internal/domain/models"
)

var (
	ErrProductNotFound = fmt.Errorf("product %w", models.ErrNotFound)
	// ErrStockNotDecremented - условное списание не нашло строку с достаточным остатком
	ErrStockNotDecremented = errors.New("inventory not decremented")
)

const productColumns = "id, title, description, base_price, inventory, available, seller_id, created_at, updated_at"

// ProductStorage описывает методы для работы с товарами и их остатками.
type ProductStorage interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	// LockProductByIDTx читает товар с блокировкой строки до конца транзакции.
	LockProductByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error)
	ListAvailableProducts(ctx context.Context) ([]*models.Product, error)
	ListProductsBySeller(ctx context.Context, sellerID int64) ([]*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, product *models.Product) error
	// DecrementInventory списывает остаток, только если его хватает.
	DecrementInventory(ctx context.Context, tx *sql.Tx, id int64, quantity int) error
	IncrementInventory(ctx context.Context, tx *sql.Tx, id int64, quantity int) error
}

type productRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) ProductStorage {
	return &productRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	p := &models.Product{}
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.BasePrice, &p.Inventory, &p.Available, &p.SellerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *productRepository) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	return scanProduct(row)
}

func (r *productRepository) LockProductByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1 FOR UPDATE", id)
	return scanProduct(row)
}

func (r *productRepository) ListAvailableProducts(ctx context.Context) ([]*models.Product, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+productColumns+" FROM products WHERE available = TRUE ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	return collectProducts(rows)
}

func (r *productRepository) ListProductsBySeller(ctx context.Context, sellerID int64) ([]*models.Product, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+productColumns+" FROM products WHERE seller_id = $1 ORDER BY id", sellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query seller products: %w", err)
	}
	return collectProducts(rows)
}

func collectProducts(rows *sql.Rows) ([]*models.Product, error) {
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	query := `INSERT INTO products (title, description, base_price, inventory, available, seller_id, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	          RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		product.Title, product.Description, product.BasePrice, product.Inventory, product.Available, product.SellerID,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return product, nil
}

func (r *productRepository) UpdateProduct(ctx context.Context, product *models.Product) error {
	query := `UPDATE products
	          SET title = $1, description = $2, base_price = $3, inventory = $4, available = $5, updated_at = NOW()
	          WHERE id = $6`
	res, err := r.db.ExecContext(ctx, query,
		product.Title, product.Description, product.BasePrice, product.Inventory, product.Available, product.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// DecrementInventory - сравнение и списание одним запросом, остаток не может уйти в минус
func (r *productRepository) DecrementInventory(ctx context.Context, tx *sql.Tx, id int64, quantity int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE products SET inventory = inventory - $1, updated_at = NOW() WHERE id = $2 AND inventory >= $1",
		quantity, id,
	)
	if err != nil {
		return fmt.Errorf("failed to decrement inventory: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStockNotDecremented
	}
	return nil
}

func (r *productRepository) IncrementInventory(ctx context.Context, tx *sql.Tx, id int64, quantity int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE products SET inventory = inventory + $1, updated_at = NOW() WHERE id = $2",
		quantity, id,
	)
	if err != nil {
		return fmt.Errorf("failed to increment inventory: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}
