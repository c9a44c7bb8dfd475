// Package storefront serves the shopper's page routes as JSON. It reads store
// state, issues store mutations and catalog queries, and owns no data itself.
package storefront

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"Storefront/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string

	// CheckoutLimiter caps order submissions per client IP. Nil disables it.
	CheckoutLimiter *kit.IPRateLimiter
}

func NewHandler(s *Server, deps HTTPDeps) http.Handler {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}

	r := chi.NewRouter()
	setupMiddleware(r, deps)
	setupMetrics(r, deps)

	r.Get("/healthz", healthz)
	r.Get("/readyz", s.readyz)

	r.Get("/products", s.listProducts)
	r.Get("/products/{id}", s.getProduct)
	r.Get("/categories", s.listCategories)
	r.Get("/categories/{name}/products", s.categoryProducts)

	r.Route("/catalog", func(r chi.Router) {
		r.Get("/status", s.catalogStatus)
		r.Delete("/cache", s.invalidateCatalog)
	})

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", s.getCart)
		r.Delete("/", s.clearCart)
		r.Post("/items", s.addToCart)
		r.Patch("/items/{id}", s.updateCartItem)
		r.Delete("/items/{id}", s.removeFromCart)
	})

	r.Route("/wishlist", func(r chi.Router) {
		r.Get("/", s.getWishlist)
		r.Delete("/", s.clearWishlist)
		r.Post("/items", s.addToWishlist)
		r.Delete("/items/{id}", s.removeFromWishlist)
		r.Post("/items/{id}/toggle", s.toggleWishlist)
		r.Post("/items/{id}/move", s.moveToCart)
		r.Post("/move-all", s.moveAllToCart)
	})

	r.Get("/checkout", s.getCheckout)
	r.Delete("/checkout", s.leaveCheckout)
	if deps.CheckoutLimiter != nil {
		r.With(deps.CheckoutLimiter.Middleware).Post("/checkout", s.placeOrder)
	} else {
		r.Post("/checkout", s.placeOrder)
	}

	return r
}

func setupMiddleware(r *chi.Mux, deps HTTPDeps) {
	r.Use(chimw.RequestID)
	r.Use(kit.Recoverer)
	r.Use(kit.Logging(deps.Log))
}

func setupMetrics(r *chi.Mux, deps HTTPDeps) {
	if deps.Registry == nil {
		return
	}

	metrics := kit.NewMetrics(deps.Registry)
	r.Use(metrics.Middleware(deps.Service, kit.RoutePattern))

	if !deps.MetricsEnabled {
		return
	}

	r.With(kit.MetricsAuth(deps.MetricsToken)).
		Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
