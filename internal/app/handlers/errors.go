package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/service"
)

// statusFor сопоставляет доменную ошибку HTTP-коду
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrEmptyCart),
		errors.Is(err, models.ErrInvalidQuantity),
		errors.Is(err, models.ErrInvalidPrice):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrPaymentDeclined):
		return http.StatusPaymentRequired
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInsufficientStock),
		errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrIllegalTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError отвечает кодом по виду ошибки, внутренние детали наружу не отдаются
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logger.Error("request failed", slog.Any("error", err))
		http.Error(w, "internal server error", code)
		return
	}
	logger.Warn("request rejected", slog.Int("status", code), slog.Any("error", err))
	http.Error(w, publicMessage(err), code)
}

func publicMessage(err error) string {
	var stockErr *models.InsufficientStockError
	if errors.As(err, &stockErr) {
		return stockErr.Error()
	}
	var transitionErr *models.IllegalTransitionError
	if errors.As(err, &transitionErr) {
		return transitionErr.Error()
	}
	for _, kind := range []error{
		models.ErrEmptyCart, models.ErrInvalidQuantity, models.ErrInvalidPrice,
		service.ErrInvalidCredentials, models.ErrPaymentDeclined, models.ErrForbidden,
		models.ErrInvalidState, models.ErrNotFound,
	} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return http.StatusText(statusFor(err))
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

// decode читает тело запроса и проверяет теги validate
func decode(w http.ResponseWriter, r *http.Request, logger *slog.Logger, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.Error("invalid request: decoding error", slog.Any("error", err))
		http.Error(w, "invalid request", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		logger.Error("invalid request: validation error", slog.Any("error", err))
		http.Error(w, "validation error", http.StatusBadRequest)
		return false
	}
	return true
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, name+" must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
