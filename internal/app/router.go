package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/contaflux-erp/contaflux-erp/internal/cashsync"
	"github.com/contaflux-erp/contaflux-erp/internal/categorize"
	"github.com/contaflux-erp/contaflux-erp/internal/costing"
	"github.com/contaflux-erp/contaflux-erp/internal/marketplace"
	"github.com/contaflux-erp/contaflux-erp/internal/observability"
	"github.com/contaflux-erp/contaflux-erp/internal/payables"
	"github.com/contaflux-erp/contaflux-erp/internal/receivables"
	"github.com/contaflux-erp/contaflux-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	CostingHandler     *costing.Handler
	MarketplaceHandler *marketplace.Handler
	CategorizeHandler  *categorize.Handler
	CashSyncHandler    *cashsync.Handler
	PayablesHandler    *payables.Handler
	ReceivablesHandler *receivables.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with ContaFlux defaults.
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

	if params.CostingHandler != nil {
		r.Route("/costing", params.CostingHandler.MountRoutes)
	}
	if params.MarketplaceHandler != nil {
		r.Route("/marketplace", params.MarketplaceHandler.MountRoutes)
	}
	if params.CategorizeHandler != nil {
		r.Route("/categorize", params.CategorizeHandler.MountRoutes)
	}
	if params.CashSyncHandler != nil {
		r.Route("/cashsync", params.CashSyncHandler.MountRoutes)
	}
	if params.PayablesHandler != nil {
		r.Route("/payables", params.PayablesHandler.MountRoutes)
	}
	if params.ReceivablesHandler != nil {
		r.Route("/receivables", params.ReceivablesHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
