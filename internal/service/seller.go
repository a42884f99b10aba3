package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/storage"
)

type SellerService interface {
	AddProduct(ctx context.Context, sellerID int64, in models.ProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, sellerID, productID int64, in models.ProductInput) (*models.Product, error)
	// DeleteProduct снимает товар с продажи, строка остаётся ради истории заказов.
	DeleteProduct(ctx context.Context, sellerID, productID int64) error
	ListProducts(ctx context.Context, sellerID int64) ([]*models.Product, error)
	Analytics(ctx context.Context, sellerID int64) (*models.SellerAnalytics, error)
}

type sellerService struct {
	log       *slog.Logger
	products  storage.ProductStorage
	analytics storage.AnalyticsStorage
}

func NewSellerService(log *slog.Logger, products storage.ProductStorage, analytics storage.AnalyticsStorage) SellerService {
	return &sellerService{
		log:       log,
		products:  products,
		analytics: analytics,
	}
}

func validateInput(in models.ProductInput) error {
	if !in.BasePrice.IsPositive() {
		return models.ErrInvalidPrice
	}
	if in.Inventory < 0 {
		return models.ErrInvalidQuantity
	}
	return nil
}

func (s *sellerService) AddProduct(ctx context.Context, sellerID int64, in models.ProductInput) (*models.Product, error) {
	const op = "service.SellerService.AddProduct"
	logger := s.log.With(slog.String("op", op), slog.Int64("sellerID", sellerID))

	if err := validateInput(in); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	product, err := s.products.CreateProduct(ctx, &models.Product{
		Title:       in.Title,
		Description: in.Description,
		BasePrice:   in.BasePrice.Round(2),
		Inventory:   in.Inventory,
		Available:   in.Available,
		SellerID:    sellerID,
	})
	if err != nil {
		logger.Error("failed to create product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("product created", slog.Int64("productID", product.ID))
	return product, nil
}

// ownedProduct возвращает товар продавца, чужой товар даёт ErrForbidden
func (s *sellerService) ownedProduct(ctx context.Context, sellerID, productID int64) (*models.Product, error) {
	product, err := s.products.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.SellerID != sellerID {
		return nil, models.ErrForbidden
	}
	return product, nil
}

func (s *sellerService) UpdateProduct(ctx context.Context, sellerID, productID int64, in models.ProductInput) (*models.Product, error) {
	const op = "service.SellerService.UpdateProduct"
	logger := s.log.With(slog.String("op", op), slog.Int64("sellerID", sellerID), slog.Int64("productID", productID))

	if err := validateInput(in); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	product, err := s.ownedProduct(ctx, sellerID, productID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	product.Title = in.Title
	product.Description = in.Description
	product.BasePrice = in.BasePrice.Round(2)
	product.Inventory = in.Inventory
	product.Available = in.Available
	if err := s.products.UpdateProduct(ctx, product); err != nil {
		logger.Error("failed to update product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("product updated")
	return product, nil
}

func (s *sellerService) DeleteProduct(ctx context.Context, sellerID, productID int64) error {
	const op = "service.SellerService.DeleteProduct"
	logger := s.log.With(slog.String("op", op), slog.Int64("sellerID", sellerID), slog.Int64("productID", productID))

	product, err := s.ownedProduct(ctx, sellerID, productID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	product.Available = false
	if err := s.products.UpdateProduct(ctx, product); err != nil {
		logger.Error("failed to withdraw product", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("product withdrawn")
	return nil
}

func (s *sellerService) ListProducts(ctx context.Context, sellerID int64) ([]*models.Product, error) {
	const op = "service.SellerService.ListProducts"

	products, err := s.products.ListProductsBySeller(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return products, nil
}

// Analytics считает выручку продавца по оплаченным заказам
func (s *sellerService) Analytics(ctx context.Context, sellerID int64) (*models.SellerAnalytics, error) {
	const op = "service.SellerService.Analytics"

	var (
		summary *models.SellerSummary
		sales   []*models.ProductSales
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summary, err = s.analytics.GetSellerSummary(gctx, sellerID)
		return err
	})
	g.Go(func() error {
		var err error
		sales, err = s.analytics.GetSellerProductSales(gctx, sellerID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.Error("failed to build analytics", slog.String("op", op), slog.Int64("sellerID", sellerID), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if sales == nil {
		sales = []*models.ProductSales{}
	}
	return &models.SellerAnalytics{Summary: summary, Products: sales}, nil
}
