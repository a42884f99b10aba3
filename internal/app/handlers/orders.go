package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/storefront/internal/service"
)

// OrderCreatedResponse ответ на оформление заказа
type OrderCreatedResponse struct {
	OrderID    int64              `json:"order_id"`
	TotalPrice string             `json:"total_price"`
	Status     models.OrderStatus `json:"status"`
}

type OrderItemResponse struct {
	ID              int64             `json:"id"`
	ProductID       int64             `json:"product_id"`
	ProductTitle    string            `json:"product_title,omitempty"`
	SellerID        int64             `json:"seller_id"`
	Quantity        int               `json:"quantity"`
	PriceAtPurchase string            `json:"price_at_purchase"`
	Status          models.ItemStatus `json:"status"`
}

type OrderResponse struct {
	ID         int64               `json:"id"`
	TotalPrice string              `json:"total_price"`
	Status     models.OrderStatus  `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	Items      []OrderItemResponse `json:"items"`
}

// money сумма в ответе всегда с двумя знаками: 24.00, а не 24
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func orderResponse(o *models.Order) OrderResponse {
	return OrderResponse{
		ID:         o.ID,
		TotalPrice: money(o.TotalPrice),
		Status:     o.Status,
		CreatedAt:  o.CreatedAt,
		Items: lo.Map(o.Items, func(it *models.OrderItem, _ int) OrderItemResponse {
			return OrderItemResponse{
				ID:              it.ID,
				ProductID:       it.ProductID,
				ProductTitle:    it.ProductTitle,
				SellerID:        it.SellerID,
				Quantity:        it.Quantity,
				PriceAtPurchase: money(it.PriceAtPurchase),
				Status:          it.Status,
			}
		}),
	}
}

type OrderLineRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type CreateOrderRequest struct {
	Items []OrderLineRequest `json:"items" validate:"required,min=1,dive"`
}

type OrderStatusResponse struct {
	OrderID int64              `json:"order_id"`
	Status  models.OrderStatus `json:"status"`
}

// principalID достаёт пользователя, установленного JWT middleware
func principalID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (int64, bool) {
	userID, ok := jwtmiddleware.FromContext(r.Context())
	if !ok {
		logger.Error("userID not found in context")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return 0, false
	}
	return userID, true
}

// CheckoutHandler обрабатывает POST /api/checkout
func CheckoutHandler(log *slog.Logger, engine service.OrderEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.CheckoutHandler"))

		userID, ok := principalID(w, r, logger)
		if !ok {
			return
		}
		order, err := engine.Checkout(r.Context(), userID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusCreated, OrderCreatedResponse{
			OrderID:    order.ID,
			TotalPrice: money(order.TotalPrice),
			Status:     order.Status,
		})
	}
}

// CreateOrderHandler обрабатывает POST /api/orders с явным списком товаров
func CreateOrderHandler(log *slog.Logger, engine service.OrderEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.CreateOrderHandler"))

		userID, ok := principalID(w, r, logger)
		if !ok {
			return
		}
		var req CreateOrderRequest
		if !decode(w, r, logger, &req) {
			return
		}

		lines := make([]models.CartLine, 0, len(req.Items))
		for _, it := range req.Items {
			lines = append(lines, models.CartLine{ProductID: it.ProductID, Quantity: it.Quantity})
		}
		order, err := engine.CreateOrder(r.Context(), userID, lines)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusCreated, OrderCreatedResponse{
			OrderID:    order.ID,
			TotalPrice: money(order.TotalPrice),
			Status:     order.Status,
		})
	}
}

// ListOrdersHandler обрабатывает GET /api/orders
func ListOrdersHandler(log *slog.Logger, engine service.OrderEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.ListOrdersHandler"))

		userID, ok := principalID(w, r, logger)
		if !ok {
			return
		}
		orders, err := engine.ListOrders(r.Context(), userID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, lo.Map(orders, func(o *models.Order, _ int) OrderResponse {
			return orderResponse(o)
		}))
	}
}

// GetOrderHandler обрабатывает GET /api/orders/{id}
func GetOrderHandler(log *slog.Logger, engine service.OrderEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.GetOrderHandler"))

		userID, ok := principalID(w, r, logger)
		if !ok {
			return
		}
		orderID, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		order, err := engine.GetOrder(r.Context(), userID, orderID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, orderResponse(order))
	}
}

// CancelOrderHandler обрабатывает POST /api/orders/{id}/cancel
func CancelOrderHandler(log *slog.Logger, engine service.OrderEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.CancelOrderHandler"))

		userID, ok := principalID(w, r, logger)
		if !ok {
			return
		}
		orderID, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		order, err := engine.CancelOrder(r.Context(), userID, orderID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, OrderStatusResponse{OrderID: order.ID, Status: order.Status})
	}
}
