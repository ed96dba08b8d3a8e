package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-ledger/meridian-ledger/internal/ledger/accounts"
	"github.com/meridian-ledger/meridian-ledger/internal/ledger/balances"
	"github.com/meridian-ledger/meridian-ledger/internal/ledger/journals"
	"github.com/meridian-ledger/meridian-ledger/internal/ledger/openitems"
	"github.com/meridian-ledger/meridian-ledger/internal/ledger/outbox"
	"github.com/meridian-ledger/meridian-ledger/internal/ledger/periods"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AccountsHandler  *accounts.Handler
	PeriodsHandler   *periods.Handler
	JournalsHandler  *journals.Handler
	BalancesHandler  *balances.Handler
	OutboxHandler    *outbox.Handler
	OpenItemsHandler *openitems.Handler
}

// NewRouter constructs the chi.Router with kernel defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(TenantMiddleware)
		api.Route("/accounts", params.AccountsHandler.MountRoutes)
		api.Route("/periods", params.PeriodsHandler.MountRoutes)
		api.Route("/journals", params.JournalsHandler.MountRoutes)
		api.Route("/balances", params.BalancesHandler.MountRoutes)
		api.Route("/outbox", params.OutboxHandler.MountRoutes)
		api.Route("/open-items", params.OpenItemsHandler.MountRoutes)
	})

	return r
}
