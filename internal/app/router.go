package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/m4-gestao/m4-pdv/internal/observability"
	"github.com/m4-gestao/m4-pdv/internal/pos"
	"github.com/m4-gestao/m4-pdv/internal/pricing"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	PricingHandler *pricing.Handler
	VendasHandler  *pos.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with PDV defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	if params.PricingHandler != nil {
		r.Route("/produtos", params.PricingHandler.MountRoutes)
	}
	if params.VendasHandler != nil {
		r.Route("/vendas", params.VendasHandler.MountRoutes)
	}

	return r
}
