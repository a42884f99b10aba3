package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/pricing"
	"github.com/linemk/storefront/internal/storage"
)

type CatalogService interface {
	ListProducts(ctx context.Context) ([]models.Listing, error)
}

type catalogService struct {
	log      *slog.Logger
	products storage.ProductStorage
}

func NewCatalogService(log *slog.Logger, products storage.ProductStorage) CatalogService {
	return &catalogService{log: log, products: products}
}

// ListProducts возвращает доступные товары с ценой на момент запроса
func (s *catalogService) ListProducts(ctx context.Context) ([]models.Listing, error) {
	const op = "service.CatalogService.ListProducts"

	products, err := s.products.ListAvailableProducts(ctx)
	if err != nil {
		s.log.Error("failed to list products", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return lo.Map(products, func(p *models.Product, _ int) models.Listing {
		return models.Listing{
			ID:        p.ID,
			Title:     p.Title,
			Price:     pricing.CurrentPrice(p),
			Inventory: p.Inventory,
			Available: p.Available,
		}
	}), nil
}
