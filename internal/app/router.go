package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/andamio-erp/andamio-erp/internal/auth"
	"github.com/andamio-erp/andamio-erp/internal/billing"
	"github.com/andamio-erp/andamio-erp/internal/catalog"
	"github.com/andamio-erp/andamio-erp/internal/export"
	"github.com/andamio-erp/andamio-erp/internal/observability"
	"github.com/andamio-erp/andamio-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	AuthHandler    *auth.Handler
	BillingHandler *billing.Handler
	CatalogHandler *catalog.Handler
	ExportHandler  *export.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router. Everything under /api requires a
// bearer session; /auth/login and the operational endpoints stay open.
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

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Route("/api", func(r chi.Router) {
		r.Use(params.AuthHandler.Middleware)
		params.BillingHandler.MountRoutes(r)
		if params.CatalogHandler != nil {
			r.Route("/configuracion", params.CatalogHandler.MountRoutes)
		}
		if params.ExportHandler != nil {
			r.Route("/exportar", params.ExportHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
