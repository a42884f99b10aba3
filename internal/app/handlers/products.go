package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/storefront/internal/service"
)

// ProductsHandler обрабатывает GET /api/products
func ProductsHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.ProductsHandler"))

		listings, err := catalog.ListProducts(r.Context())
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, listings)
	}
}
