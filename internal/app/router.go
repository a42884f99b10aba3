package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/linemk/storefront/internal/app/handlers"
	"github.com/linemk/storefront/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/storefront/internal/lib/logger/handlers/urllog"
	"github.com/linemk/storefront/internal/lib/metrics"
)

// NewRouter собирает маршруты API.
// JWT_SECRET должен быть задан до вызова, иначе middleware паникует.
func NewRouter(log *slog.Logger, svc *Services, m *metrics.Metrics) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	router.Post("/api/auth", handlers.AuthHandler(log, svc.Auth))
	router.Get("/api/products", handlers.ProductsHandler(log, svc.Catalog))
	router.Handle("/metrics", m.Handler())

	// корзина доступна и анонимам, и вошедшим покупателям
	router.Group(func(r chi.Router) {
		r.Use(jwtmiddleware.NewOptionalJWTMiddleware())
		r.Get("/api/cart", handlers.CartHandler(log, svc.Carts))
		r.Post("/api/cart/items", handlers.AddToCartHandler(log, svc.Carts))
		r.Post("/api/cart/items/{productID}/decrease", handlers.DecreaseCartItemHandler(log, svc.Carts))
		r.Delete("/api/cart/items/{productID}", handlers.RemoveCartItemHandler(log, svc.Carts))
	})

	router.Group(func(r chi.Router) {
		r.Use(jwtmiddleware.NewJWTMiddleware())

		r.Post("/api/checkout", handlers.CheckoutHandler(log, svc.Orders))
		r.Post("/api/orders", handlers.CreateOrderHandler(log, svc.Orders))
		r.Get("/api/orders", handlers.ListOrdersHandler(log, svc.Orders))
		r.Get("/api/orders/{id}", handlers.GetOrderHandler(log, svc.Orders))
		r.Post("/api/orders/{id}/cancel", handlers.CancelOrderHandler(log, svc.Orders))
		r.Post("/api/pay", handlers.PayHandler(log, svc.Payments))
		r.Post("/api/payments/confirm", handlers.ConfirmPaymentHandler(log, svc.Payments))

		r.Route("/api/seller", func(r chi.Router) {
			r.Use(jwtmiddleware.RequireSeller)
			r.Get("/items", handlers.SellerItemsHandler(log, svc.Fulfillment))
			r.Post("/items/{itemID}/status", handlers.AdvanceStatusHandler(log, svc.Fulfillment))
			r.Get("/products", handlers.SellerProductsHandler(log, svc.Seller))
			r.Post("/products", handlers.AddProductHandler(log, svc.Seller))
			r.Put("/products/{id}", handlers.UpdateProductHandler(log, svc.Seller))
			r.Delete("/products/{id}", handlers.DeleteProductHandler(log, svc.Seller))
			r.Get("/analytics", handlers.AnalyticsHandler(log, svc.Seller))
		})
	})

	return router
}
