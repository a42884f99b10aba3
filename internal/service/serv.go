package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/linemk/storefront/internal/domain/models"
	security "github.com/linemk/storefront/internal/jwt-new"
	"github.com/linemk/storefront/internal/storage"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type AuthService struct {
	log      *slog.Logger
	userRepo storage.UserStorage
	carts    CartService
	tokenTTL time.Duration
}

func NewAuthService(log *slog.Logger, userRepo storage.UserStorage, carts CartService, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		log:      log,
		userRepo: userRepo,
		carts:    carts,
		tokenTTL: tokenTTL,
	}
}

type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string, asSeller bool, sessionID string) (string, error)
}

// Login осуществляет аутентификацию пользователя.
// Если пользователь не найден, он создаётся (пароль хэшируется через bcrypt, признак продавца берётся из запроса).
// Если пользователь найден, введённый пароль сравнивается с сохранённым хэшем.
// Если передан идентификатор сессии, анонимная корзина переносится в корзину пользователя.
func (a *AuthService) Login(ctx context.Context, email, password string, asSeller bool, sessionID string) (string, error) {
	const op = "auth.Login"
	logger := a.log.With(
		slog.String("op", op),
		slog.String("email", email),
	)
	logger.Info("checking user")

	user, err := a.userRepo.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		logger.Info("user not found, creating new user")
		passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			logger.Error("failed to hash password", slog.Any("error", err))
			return "", fmt.Errorf("%s: failed to hash password: %w", op, err)
		}
		user, err = a.userRepo.CreateUser(ctx, &models.User{
			Email:    email,
			PassHash: passHash,
			IsSeller: asSeller,
		})
		if err != nil {
			logger.Error("failed to create user", slog.Any("error", err))
			return "", fmt.Errorf("%s: failed to create user: %w", op, err)
		}
	case err != nil:
		logger.Error("failed to get user", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to get user: %w", op, err)
	default:
		if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
			logger.Warn("invalid password")
			return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
	}

	if sessionID != "" && a.carts != nil {
		// ошибка переноса корзины не прерывает вход
		if err := a.carts.Merge(ctx, sessionID, user.ID); err != nil {
			logger.Error("failed to merge session cart", slog.Any("error", err))
		}
	}

	// JWT_SECRET читается внутри security.NewToken
	token, err := security.NewToken(ctx, user, a.tokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("user logged in successfully", slog.Int64("userID", user.ID), slog.Bool("seller", user.IsSeller))
	return token, nil
}
