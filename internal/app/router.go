package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rxledger/rxledger/internal/catalog"
	"github.com/rxledger/rxledger/internal/dispensing"
	"github.com/rxledger/rxledger/internal/ledger"
	"github.com/rxledger/rxledger/internal/observability"
	"github.com/rxledger/rxledger/internal/platform/httpx"
	"github.com/rxledger/rxledger/internal/quality"
	"github.com/rxledger/rxledger/internal/receiving"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	CatalogHandler    *catalog.Handler
	LedgerHandler     *ledger.Handler
	ReceivingHandler  *receiving.Handler
	QualityHandler    *quality.Handler
	DispensingHandler *dispensing.Handler
	Pool              *pgxpool.Pool
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with engine defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if params.Pool != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := params.Pool.Ping(ctx); err != nil {
				httpx.Problem(w, http.StatusServiceUnavailable, "Unhealthy", "database unreachable")
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		if params.CatalogHandler != nil {
			params.CatalogHandler.MountRoutes(api)
		}
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(api)
		}
		if params.ReceivingHandler != nil {
			params.ReceivingHandler.MountRoutes(api)
		}
		if params.QualityHandler != nil {
			params.QualityHandler.MountRoutes(api)
		}
		if params.DispensingHandler != nil {
			params.DispensingHandler.MountRoutes(api)
		}
	})

	return r
}
