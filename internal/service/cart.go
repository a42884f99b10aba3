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
	"github.com/linemk/storefront/internal/pricing"
	"github.com/linemk/storefront/internal/session"
	"github.com/linemk/storefront/internal/storage"
)

// Cart корзина покупателя: постоянная (в БД) или анонимная (в сессии)
type Cart interface {
	Lines(ctx context.Context) ([]models.CartLine, error)
	// Add прибавляет quantity и возвращает новое количество товара в корзине.
	Add(ctx context.Context, productID int64, quantity int) (int, error)
	Decrease(ctx context.Context, productID int64) error
	Remove(ctx context.Context, productID int64) (bool, error)
}

type CartService interface {
	// For выбирает корзину: buyerID > 0 означает вошедшего покупателя, иначе используется сессия.
	For(buyerID int64, sessionID string) Cart
	View(ctx context.Context, cart Cart) (*models.CartView, error)
	// Merge переносит анонимную корзину сессии в корзину покупателя.
	Merge(ctx context.Context, sessionID string, buyerID int64) error
}

type cartService struct {
	log      *slog.Logger
	tx       storage.TxRunner
	products storage.ProductStorage
	carts    storage.CartStorage
	sessions *session.Store
}

func NewCartService(log *slog.Logger, tx storage.TxRunner, products storage.ProductStorage, carts storage.CartStorage, sessions *session.Store) CartService {
	return &cartService{
		log:      log,
		tx:       tx,
		products: products,
		carts:    carts,
		sessions: sessions,
	}
}

func (s *cartService) For(buyerID int64, sessionID string) Cart {
	if buyerID > 0 {
		return &storeCart{svc: s, userID: buyerID}
	}
	return &sessionCart{svc: s, sessionID: sessionID}
}

func (s *cartService) View(ctx context.Context, cart Cart) (*models.CartView, error) {
	const op = "service.CartService.View"

	lines, err := cart.Lines(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	view := &models.CartView{Items: make([]models.PricedLine, 0, len(lines)), Total: decimal.Zero}
	for _, line := range lines {
		product, err := s.products.GetProductByID(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("%s: failed to get product %d: %w", op, line.ProductID, err)
		}
		price := pricing.CurrentPrice(product)
		total := pricing.LineTotal(price, line.Quantity)
		view.Items = append(view.Items, models.PricedLine{
			ProductID: product.ID,
			Title:     product.Title,
			Quantity:  line.Quantity,
			Price:     price,
			Total:     total,
		})
		view.Total = view.Total.Add(total)
	}
	return view, nil
}

func (s *cartService) Merge(ctx context.Context, sessionID string, buyerID int64) error {
	const op = "service.CartService.Merge"
	logger := s.log.With(slog.String("op", op), slog.Int64("buyerID", buyerID))

	items := s.sessions.Items(sessionID)
	if len(items) == 0 {
		return nil
	}
	productIDs := lo.Keys(items)
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		for _, productID := range productIDs {
			if _, err := s.products.GetProductByID(ctx, productID); err != nil {
				if errors.Is(err, models.ErrNotFound) {
					logger.Warn("dropping unknown product from session cart", slog.Int64("productID", productID))
					continue
				}
				return fmt.Errorf("failed to get product %d: %w", productID, err)
			}
			if _, err := s.carts.AddCartItemTx(ctx, tx, buyerID, productID, items[productID]); err != nil {
				return fmt.Errorf("failed to merge product %d: %w", productID, err)
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("cart merge failed", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}

	s.sessions.Clear(sessionID)
	logger.Info("session cart merged", slog.Int("products", len(productIDs)))
	return nil
}

// availableProduct возвращает товар, который можно положить в корзину
func (s *cartService) availableProduct(ctx context.Context, productID int64) (*models.Product, error) {
	product, err := s.products.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Available {
		return nil, fmt.Errorf("product %d is withdrawn: %w", productID, storage.ErrProductNotFound)
	}
	return product, nil
}

type storeCart struct {
	svc    *cartService
	userID int64
}

func (c *storeCart) Lines(ctx context.Context) ([]models.CartLine, error) {
	items, err := c.svc.carts.GetCartItems(ctx, c.userID)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(item *models.CartItem, _ int) models.CartLine {
		return models.CartLine{ProductID: item.ProductID, Quantity: item.Quantity}
	}), nil
}

func (c *storeCart) Add(ctx context.Context, productID int64, quantity int) (int, error) {
	const op = "service.storeCart.Add"
	if quantity <= 0 {
		return 0, models.ErrInvalidQuantity
	}
	product, err := c.svc.availableProduct(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var total int
	err = c.svc.tx.InTx(ctx, func(tx *sql.Tx) error {
		total, err = c.svc.carts.AddCartItemTx(ctx, tx, c.userID, productID, quantity)
		if err != nil {
			return err
		}
		if total > product.Inventory {
			return insufficient(product, total)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return total, nil
}

func (c *storeCart) Decrease(ctx context.Context, productID int64) error {
	return c.svc.tx.InTx(ctx, func(tx *sql.Tx) error {
		return c.svc.carts.DecrementCartItemTx(ctx, tx, c.userID, productID)
	})
}

func (c *storeCart) Remove(ctx context.Context, productID int64) (bool, error) {
	return c.svc.carts.RemoveCartItem(ctx, c.userID, productID)
}

type sessionCart struct {
	svc       *cartService
	sessionID string
}

func (c *sessionCart) Lines(_ context.Context) ([]models.CartLine, error) {
	items := c.svc.sessions.Items(c.sessionID)
	lines := make([]models.CartLine, 0, len(items))
	for productID, qty := range items {
		lines = append(lines, models.CartLine{ProductID: productID, Quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

func (c *sessionCart) Add(ctx context.Context, productID int64, quantity int) (int, error) {
	const op = "service.sessionCart.Add"
	if quantity <= 0 {
		return 0, models.ErrInvalidQuantity
	}
	product, err := c.svc.availableProduct(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	total, ok := c.svc.sessions.AddIfWithin(c.sessionID, productID, quantity, product.Inventory)
	if !ok {
		return 0, fmt.Errorf("%s: %w", op, insufficient(product, total+quantity))
	}
	return total, nil
}

func (c *sessionCart) Decrease(_ context.Context, productID int64) error {
	c.svc.sessions.Decrease(c.sessionID, productID)
	return nil
}

func (c *sessionCart) Remove(_ context.Context, productID int64) (bool, error) {
	return c.svc.sessions.Remove(c.sessionID, productID), nil
}
