package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/service"
)

type PayRequest struct {
	OrderID int64 `json:"order_id" validate:"required,gt=0"`
}

type PayResponse struct {
	Message string             `json:"message"`
	OrderID int64              `json:"order_id"`
	Status  models.OrderStatus `json:"status"`
}

type ConfirmPaymentResponse struct {
	OrderID     int64              `json:"order_id"`
	OrderStatus models.OrderStatus `json:"order_status"`
}

// PayHandler обрабатывает POST /api/pay
func PayHandler(log *slog.Logger, payments service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.PayHandler"))

		userID, ok := principalID(w, r, logger)
		if !ok {
			return
		}
		var req PayRequest
		if !decode(w, r, logger, &req) {
			return
		}

		order, err := payments.Pay(r.Context(), userID, req.OrderID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, PayResponse{
			Message: "Payment successful",
			OrderID: order.ID,
			Status:  order.Status,
		})
	}
}

// ConfirmPaymentHandler обрабатывает POST /api/payments/confirm
func ConfirmPaymentHandler(log *slog.Logger, payments service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.ConfirmPaymentHandler"))

		userID, ok := principalID(w, r, logger)
		if !ok {
			return
		}
		var req PayRequest
		if !decode(w, r, logger, &req) {
			return
		}

		order, err := payments.ConfirmPayment(r.Context(), userID, req.OrderID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, ConfirmPaymentResponse{OrderID: order.ID, OrderStatus: order.Status})
	}
}
