package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/storefront/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/storefront/internal/service"
	"github.com/linemk/storefront/internal/session"
)

// SessionHeader идентификатор анонимной корзины
const SessionHeader = "X-Cart-Session"

type AddToCartRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

// cartFor выбирает корзину запроса: вошедший покупатель работает с корзиной в БД,
// аноним с корзиной сессии. Новая сессия возвращается в заголовке ответа.
func cartFor(w http.ResponseWriter, r *http.Request, carts service.CartService) service.Cart {
	if userID, ok := jwtmiddleware.FromContext(r.Context()); ok {
		return carts.For(userID, "")
	}
	sessionID := r.Header.Get(SessionHeader)
	if !session.ValidSessionID(sessionID) {
		sessionID = session.NewSessionID()
	}
	w.Header().Set(SessionHeader, sessionID)
	return carts.For(0, sessionID)
}

// CartHandler обрабатывает GET /api/cart
func CartHandler(log *slog.Logger, carts service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.CartHandler"))

		view, err := carts.View(r.Context(), cartFor(w, r, carts))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, view)
	}
}

// AddToCartHandler обрабатывает POST /api/cart/items
func AddToCartHandler(log *slog.Logger, carts service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.AddToCartHandler"))

		var req AddToCartRequest
		if !decode(w, r, logger, &req) {
			return
		}
		if _, err := cartFor(w, r, carts).Add(r.Context(), req.ProductID, req.Quantity); err != nil {
			writeError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// DecreaseCartItemHandler обрабатывает POST /api/cart/items/{productID}/decrease
func DecreaseCartItemHandler(log *slog.Logger, carts service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.DecreaseCartItemHandler"))

		productID, ok := idParam(w, r, "productID")
		if !ok {
			return
		}
		if err := cartFor(w, r, carts).Decrease(r.Context(), productID); err != nil {
			writeError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// RemoveCartItemHandler обрабатывает DELETE /api/cart/items/{productID}
func RemoveCartItemHandler(log *slog.Logger, carts service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.RemoveCartItemHandler"))

		productID, ok := idParam(w, r, "productID")
		if !ok {
			return
		}
		if _, err := cartFor(w, r, carts).Remove(r.Context(), productID); err != nil {
			writeError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
