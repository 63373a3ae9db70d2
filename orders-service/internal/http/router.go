package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Orders             OrderService
	Stock              StockAdjuster
	Logger             *zap.Logger
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	// Ready reports whether the service can reach its database. Nil means always ready.
	Ready func(ctx context.Context) error
}

// NewRouter builds the orders API. The returned handler is wrapped with otelhttp so every
// request starts a server span that the service layer continues.
func NewRouter(cfg RouterConfig) http.Handler {
	orders := NewOrdersHandler(cfg.Orders, cfg.RequestTimeout, cfg.MaxRequestBodySize)
	stock := NewStockHandler(cfg.Stock, cfg.RequestTimeout, cfg.MaxRequestBodySize)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.Ready(ctx); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orders.ListOrders)
			r.Post("/", orders.CreateOrder)
			r.Get("/{order_id}", orders.GetOrder)
			r.Patch("/{order_id}", orders.UpdateOrder)
			r.Put("/{order_id}/status", orders.UpdateOrderStatus)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminOnly)
			r.Delete("/orders/{order_id}", orders.DeleteOrder)
			r.Post("/products/{product_id}/stock", stock.AdjustStock)
		})
	})

	return otelhttp.NewHandler(r, "orders-service",
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/health" }))
}
