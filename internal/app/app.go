package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/linemk/storefront/internal/config"
	"github.com/linemk/storefront/internal/lib/metrics"
	"github.com/linemk/storefront/internal/payment"
	"github.com/linemk/storefront/internal/service"
	"github.com/linemk/storefront/internal/session"
	"github.com/linemk/storefront/internal/storage"
)

type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       *sql.DB
	Metrics  *metrics.Metrics
	Services *Services
}

// Services сервисный слой, собранный поверх репозиториев
type Services struct {
	Auth        service.AuthServiceInterface
	Catalog     service.CatalogService
	Carts       service.CartService
	Orders      service.OrderEngine
	Payments    service.PaymentService
	Fulfillment service.FulfillmentService
	Seller      service.SellerService
}

// NewApp создаёт новый экземпляр App: подключение к БД и все сервисы
func NewApp(log *slog.Logger, cfg *config.Config) (*App, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	provider, err := payment.NewProvider(cfg.Payment.Provider)
	if err != nil {
		db.Close()
		return nil, err
	}

	m := metrics.New()
	return &App{
		Config:   cfg,
		Logger:   log,
		DB:       db,
		Metrics:  m,
		Services: NewServices(log, db, provider, m, session.NewStore(cfg.Cart.SessionTTL), time.Duration(cfg.JWT.TokenTTL)*time.Minute),
	}, nil
}

// NewServices связывает репозитории и сервисы
func NewServices(
	log *slog.Logger,
	db *sql.DB,
	provider payment.Provider,
	m *metrics.Metrics,
	sessions *session.Store,
	tokenTTL time.Duration,
) *Services {
	tx := storage.NewTxRunner(db)
	userRepo := storage.NewUserRepository(db)
	productRepo := storage.NewProductRepository(db)
	orderRepo := storage.NewOrderRepository(db)
	paymentRepo := storage.NewPaymentRepository(db)
	cartRepo := storage.NewCartRepository(db)
	analyticsRepo := storage.NewAnalyticsRepository(db)

	ledger := service.NewInventoryLedger(productRepo)
	carts := service.NewCartService(log, tx, productRepo, cartRepo, sessions)

	return &Services{
		Auth:        service.NewAuthService(log, userRepo, carts, tokenTTL),
		Catalog:     service.NewCatalogService(log, productRepo),
		Carts:       carts,
		Orders:      service.NewOrderEngine(log, tx, productRepo, orderRepo, cartRepo, ledger, m),
		Payments:    service.NewPaymentService(log, tx, orderRepo, productRepo, paymentRepo, provider, m),
		Fulfillment: service.NewFulfillmentService(log, tx, orderRepo, m),
		Seller:      service.NewSellerService(log, productRepo, analyticsRepo),
	}
}
