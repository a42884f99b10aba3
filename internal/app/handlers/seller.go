package handlers

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/service"
)

type AdvanceStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type AdvanceStatusResponse struct {
	ItemID int64             `json:"item_id"`
	Status models.ItemStatus `json:"status"`
}

// ProductRequest тело создания и изменения товара; available по умолчанию true
type ProductRequest struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	BasePrice   decimal.Decimal `json:"base_price"`
	Inventory   int             `json:"inventory" validate:"gte=0"`
	Available   *bool           `json:"available"`
}

func (req ProductRequest) input() models.ProductInput {
	available := true
	if req.Available != nil {
		available = *req.Available
	}
	return models.ProductInput{
		Title:       req.Title,
		Description: req.Description,
		BasePrice:   req.BasePrice,
		Inventory:   req.Inventory,
		Available:   available,
	}
}

// SellerItemsHandler обрабатывает GET /api/seller/items
func SellerItemsHandler(log *slog.Logger, fulfillment service.FulfillmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.SellerItemsHandler"))

		sellerID, ok := principalID(w, r, logger)
		if !ok {
			return
		}
		items, err := fulfillment.ListSellerItems(r.Context(), sellerID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if items == nil {
			items = []*models.OrderItem{}
		}
		writeJSON(w, logger, http.StatusOK, items)
	}
}

// AdvanceStatusHandler обрабатывает POST /api/seller/items/{itemID}/status
func AdvanceStatusHandler(log *slog.Logger, fulfillment service.FulfillmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.AdvanceStatusHandler"))

		sellerID, ok := principalID(w, r, logger)
		if !ok {
			return
		}
		itemID, ok := idParam(w, r, "itemID")
		if !ok {
			return
		}
		var req AdvanceStatusRequest
		if !decode(w, r, logger, &req) {
			return
		}
		status, err := models.ToItemStatus(req.Status)
		if err != nil {
			logger.Warn("unknown status", slog.String("status", req.Status))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		item, err := fulfillment.AdvanceStatus(r.Context(), sellerID, itemID, status)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, AdvanceStatusResponse{ItemID: item.ID, Status: item.Status})
	}
}

// AddProductHandler обрабатывает POST /api/seller/products
func AddProductHandler(log *slog.Logger, seller service.SellerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.AddProductHandler"))

		sellerID, ok := principalID(w, r, logger)
		if !ok {
			return
		}
		var req ProductRequest
		if !decode(w, r, logger, &req) {
			return
		}
		product, err := seller.AddProduct(r.Context(), sellerID, req.input())
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusCreated, product)
	}
}

// UpdateProductHandler обрабатывает PUT /api/seller/products/{id}
func UpdateProductHandler(log *slog.Logger, seller service.SellerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.UpdateProductHandler"))

		sellerID, ok := principalID(w, r, logger)
		if !ok {
			return
		}
		productID, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		var req ProductRequest
		if !decode(w, r, logger, &req) {
			return
		}
		product, err := seller.UpdateProduct(r.Context(), sellerID, productID, req.input())
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, product)
	}
}

// DeleteProductHandler обрабатывает DELETE /api/seller/products/{id}
func DeleteProductHandler(log *slog.Logger, seller service.SellerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.DeleteProductHandler"))

		sellerID, ok := principalID(w, r, logger)
		if !ok {
			return
		}
		productID, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		if err := seller.DeleteProduct(r.Context(), sellerID, productID); err != nil {
			writeError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// SellerProductsHandler обрабатывает GET /api/seller/products
func SellerProductsHandler(log *slog.Logger, seller service.SellerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.SellerProductsHandler"))

		sellerID, ok := principalID(w, r, logger)
		if !ok {
			return
		}
		products, err := seller.ListProducts(r.Context(), sellerID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if products == nil {
			products = []*models.Product{}
		}
		writeJSON(w, logger, http.StatusOK, products)
	}
}

// AnalyticsHandler обрабатывает GET /api/seller/analytics
func AnalyticsHandler(log *slog.Logger, seller service.SellerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.AnalyticsHandler"))

		sellerID, ok := principalID(w, r, logger)
		if !ok {
			return
		}
		analytics, err := seller.Analytics(r.Context(), sellerID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, analytics)
	}
}
