package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/geb2701/storefront/pkg/health"
	"github.com/geb2701/storefront/pkg/middleware"
)

// ServiceName labels metrics and spans emitted by the router.
const ServiceName = "storefront"

// RouterConfig holds the cross-cutting settings of the HTTP surface.
type RouterConfig struct {
	CORS            middleware.CORSConfig
	PprofCIDRs      []string
	RequestTimeout  time.Duration
	CatalogCacheAge int
	// Limiter throttles cart and checkout calls per session; nil disables it.
	Limiter *middleware.SessionLimiter
}

// NewRouter creates a chi router with every storefront route registered.
func NewRouter(
	cartHandler *CartHandler,
	productHandler *ProductHandler,
	checkoutHandler *CheckoutHandler,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))
	r.Use(middleware.Tracing(ServiceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Use(middleware.RequestLogger(logger))
		if cfg.CatalogCacheAge > 0 {
			r.Use(middleware.CacheControl(cfg.CatalogCacheAge))
		}
		r.Get("/", productHandler.ListProducts)
		r.Get("/{id}", productHandler.GetProduct)
	})

	r.Group(func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Session())
		// Mounted after Session so the request logger carries session_id.
		r.Use(middleware.RequestLogger(logger))
		r.Use(middleware.RateLimit(cfg.Limiter, logger))
		r.Use(middleware.NoStore)

		r.Route("/api/v1/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)

			r.Post("/toggle", cartHandler.Toggle)
			r.Post("/open", cartHandler.Open)
			r.Post("/close", cartHandler.Close)
			r.Post("/refresh", cartHandler.Refresh)
			r.Get("/notifications", cartHandler.Notifications)

			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{productId}", cartHandler.UpdateItemQuantity)
			r.Delete("/items/{productId}", cartHandler.RemoveItem)
			r.Get("/items/{productId}/quantity", cartHandler.ItemQuantity)
		})

		r.Post("/api/v1/checkout", checkoutHandler.Checkout)
	})

	return r
}
