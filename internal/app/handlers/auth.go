package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/linemk/storefront/internal/service"
	"github.com/linemk/storefront/internal/session"
)

// AuthRequest представляет структуру запроса для аутентификации с тегами валидации
type AuthRequest struct {
	Username string `json:"username" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Seller   bool   `json:"seller"`
}

// AuthResponse представляет структуру ответа с JWT-токеном
type AuthResponse struct {
	Token string `json:"token"`
}

var validate = validator.New()

// AuthHandler – HTTP-обработчик для аутентификации.
// Анонимная корзина из заголовка X-Cart-Session переносится в корзину пользователя.
func AuthHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AuthHandler"
		logger := log.With(slog.String("op", op))

		var req AuthRequest
		if !decode(w, r, logger, &req) {
			return
		}

		sessionID := r.Header.Get(SessionHeader)
		if !session.ValidSessionID(sessionID) {
			sessionID = ""
		}

		token, err := authService.Login(r.Context(), req.Username, req.Password, req.Seller, sessionID)
		if err != nil {
			logger.Error("login failed", slog.Any("error", err))
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}

		writeJSON(w, logger, http.StatusOK, AuthResponse{Token: token})
	}
}
