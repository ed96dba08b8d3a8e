package balances

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-ledger/meridian-ledger/internal/platform/httpx"
	"github.com/meridian-ledger/meridian-ledger/internal/shared"
)

// Handler exposes balance queries.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches balance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{code}", h.balance)
	r.Get("/{code}/verify", h.verify)
}

type balanceResponse struct {
	AccountCode string `json:"account_code"`
	AsOf        string `json:"as_of"`
	Balance     string `json:"balance"`
}

func (h *Handler) asOf(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	return time.Parse("2006-01-02", raw)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.asOf(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid as_of date")
		return
	}
	code := chi.URLParam(r, "code")
	amount, err := h.service.BalanceAsOf(r.Context(), shared.TenantFromContext(r.Context()), code, asOf)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balanceResponse{
		AccountCode: code,
		AsOf:        asOf.Format("2006-01-02"),
		Balance:     amount.String(),
	})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.asOf(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid as_of date")
		return
	}
	code := chi.URLParam(r, "code")
	if err := h.service.Verify(r.Context(), shared.TenantFromContext(r.Context()), code, asOf); err != nil {
		h.logger.Error("balance verify", slog.String("account", code), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "consistent"})
}
