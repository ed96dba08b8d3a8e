package openitems

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-ledger/meridian-ledger/internal/platform/httpx"
	"github.com/meridian-ledger/meridian-ledger/internal/shared"
)

// Handler exposes the subledger reconciliation API.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes attaches open item routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/{id}/payments", h.applyPayment)
}

type createItemRequest struct {
	Kind           string `json:"kind" validate:"required,oneof=RECEIVABLE PAYABLE"`
	PartyID        int64  `json:"party_id" validate:"required"`
	EntryID        int64  `json:"entry_id" validate:"required"`
	Reference      string `json:"reference"`
	OriginalAmount string `json:"original_amount" validate:"required"`
	DueDate        string `json:"due_date" validate:"required"`
}

type itemResponse struct {
	ID             int64  `json:"id"`
	Kind           string `json:"kind"`
	PartyID        int64  `json:"party_id"`
	EntryID        int64  `json:"entry_id"`
	Reference      string `json:"reference,omitempty"`
	OriginalAmount string `json:"original_amount"`
	Balance        string `json:"balance"`
	Status         string `json:"status"`
	DueDate        string `json:"due_date"`
}

func toItemResponse(it OpenItem) itemResponse {
	return itemResponse{
		ID:             it.ID,
		Kind:           string(it.Kind),
		PartyID:        it.PartyID,
		EntryID:        it.EntryID,
		Reference:      it.Reference,
		OriginalAmount: it.OriginalAmount.String(),
		Balance:        it.Balance.String(),
		Status:         string(it.Status),
		DueDate:        it.DueDate.Format("2006-01-02"),
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.OriginalAmount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid original_amount")
		return
	}
	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid due_date")
		return
	}
	item, err := h.service.Create(r.Context(), CreateInput{
		TenantID:       shared.TenantFromContext(r.Context()),
		Kind:           ItemKind(req.Kind),
		PartyID:        req.PartyID,
		EntryID:        req.EntryID,
		Reference:      req.Reference,
		OriginalAmount: amount,
		DueDate:        dueDate,
	})
	if err != nil {
		h.logger.Warn("create open item", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toItemResponse(item))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	kind := ItemKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = KindReceivable
	}
	onlyOpen := r.URL.Query().Get("open") != "false"
	items, err := h.service.List(r.Context(), shared.TenantFromContext(r.Context()), kind, onlyOpen)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]itemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toItemResponse(it))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid item id")
		return
	}
	item, err := h.service.Get(r.Context(), shared.TenantFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(item))
}

type paymentRequest struct {
	Amount  string `json:"amount" validate:"required"`
	Date    string `json:"date" validate:"required"`
	EntryID *int64 `json:"entry_id"`
}

type paymentResponse struct {
	RemainingBalance string `json:"remaining_balance"`
	FullyPaid        bool   `json:"fully_paid"`
}

func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid item id")
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid amount")
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid date")
		return
	}
	result, err := h.service.ApplyPayment(r.Context(), ApplyPaymentInput{
		TenantID:   shared.TenantFromContext(r.Context()),
		OpenItemID: id,
		Amount:     amount,
		Date:       date,
		EntryID:    req.EntryID,
	})
	if err != nil {
		h.logger.Warn("apply payment", slog.Int64("item_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, paymentResponse{
		RemainingBalance: result.RemainingBalance.String(),
		FullyPaid:        result.FullyPaid,
	})
}
