package jwtmiddleware

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	UserIDKey    contextKey = "userID"
	PrincipalKey contextKey = "principal"
)

// Principal вошедший пользователь
type Principal struct {
	UserID   int64
	IsSeller bool
}

// NewJWTMiddleware создаёт middleware для проверки JWT, секрет берётся из переменной окружения.
func NewJWTMiddleware() func(http.Handler) http.Handler {
	return newMiddleware(false)
}

// NewOptionalJWTMiddleware пропускает запросы без заголовка Authorization,
// но отклоняет запросы с неверным токеном.
func NewOptionalJWTMiddleware() func(http.Handler) http.Handler {
	return newMiddleware(true)
}

func newMiddleware(optional bool) func(http.Handler) http.Handler {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		panic("JWT_SECRET is not set")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем токен из заголовка Authorization (формат: "Bearer <token>")
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				if optional {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "missing token", http.StatusUnauthorized)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid token format", http.StatusUnauthorized)
				return
			}

			principal, err := parse(parts[1], secret)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, principal.UserID)
			ctx = context.WithValue(ctx, PrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parse(tokenStr, secret string) (Principal, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return Principal{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, errors.New("invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return Principal{}, errors.New("invalid token claims: sub not found")
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return Principal{}, errors.New("invalid token claims: invalid user id")
	}

	// отсутствующий claim seller означает покупателя
	seller, _ := claims["seller"].(bool)
	return Principal{UserID: userID, IsSeller: seller}, nil
}

// RequireSeller пропускает только продавцов, ставится после NewJWTMiddleware
func RequireSeller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsSeller(r.Context()) {
			http.Error(w, "seller account required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FromContext извлекает userID из контекста.
func FromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserIDKey).(int64)
	return id, ok
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(Principal)
	return p, ok
}

func IsSeller(ctx context.Context) bool {
	p, ok := PrincipalFromContext(ctx)
	return ok && p.IsSeller
}
