package journals

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-ledger/meridian-ledger/internal/platform/httpx"
	"github.com/meridian-ledger/meridian-ledger/internal/shared"
)

// Handler exposes the journal posting API.
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

// MountRoutes attaches journal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.post)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/{id}/void", h.void)
}

type postLineRequest struct {
	AccountCode string  `json:"account_code" validate:"required"`
	Debit       string  `json:"debit"`
	Credit      string  `json:"credit"`
	Memo        string  `json:"memo"`
	CostCenter  *string `json:"cost_center"`
	Department  *string `json:"department"`
}

type postRequest struct {
	Date           string            `json:"date" validate:"required"`
	Description    string            `json:"description"`
	SourceType     string            `json:"source_type" validate:"required"`
	SourceID       string            `json:"source_id" validate:"required,uuid"`
	IdempotencyKey string            `json:"idempotency_key" validate:"required"`
	Lines          []postLineRequest `json:"lines" validate:"required,min=2,dive"`
}

type lineResponse struct {
	LineNo      int    `json:"line_no"`
	AccountID   int64  `json:"account_id"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Memo        string `json:"memo,omitempty"`
}

type entryResponse struct {
	EntryID       int64          `json:"entry_id"`
	JournalNumber string         `json:"journal_number"`
	Date          string         `json:"date"`
	Status        string         `json:"status"`
	TotalDebit    string         `json:"total_debit"`
	TotalCredit   string         `json:"total_credit"`
	WasDuplicate  bool           `json:"was_duplicate"`
	Lines         []lineResponse `json:"lines,omitempty"`
}

func toEntryResponse(entry JournalEntry, wasDuplicate bool) entryResponse {
	resp := entryResponse{
		EntryID:       entry.ID,
		JournalNumber: entry.Number,
		Date:          entry.Date.Format("2006-01-02"),
		Status:        string(entry.Status),
		TotalDebit:    entry.TotalDebit.String(),
		TotalCredit:   entry.TotalCredit.String(),
		WasDuplicate:  wasDuplicate,
	}
	for _, line := range entry.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			LineNo:    line.LineNo,
			AccountID: line.AccountID,
			Debit:     line.Debit.String(),
			Credit:    line.Credit.String(),
			Memo:      line.Memo,
		})
	}
	return resp
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input, err := h.toPostingInput(r, req)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Post(r.Context(), input)
	if err != nil {
		h.logger.Warn("post journal", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusCreated
	if result.WasDuplicate {
		status = http.StatusOK
	}
	httpx.JSON(w, status, toEntryResponse(result.Entry, result.WasDuplicate))
}

func (h *Handler) toPostingInput(r *http.Request, req postRequest) (PostingInput, error) {
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return PostingInput{}, err
	}
	sourceID, err := uuid.Parse(req.SourceID)
	if err != nil {
		return PostingInput{}, err
	}
	input := PostingInput{
		TenantID:       shared.TenantFromContext(r.Context()),
		Date:           date,
		Description:    req.Description,
		SourceType:     req.SourceType,
		SourceID:       sourceID,
		IdempotencyKey: req.IdempotencyKey,
		PostedBy:       shared.ActorFromContext(r.Context()),
	}
	for _, line := range req.Lines {
		debit, err := parseAmount(line.Debit)
		if err != nil {
			return PostingInput{}, err
		}
		credit, err := parseAmount(line.Credit)
		if err != nil {
			return PostingInput{}, err
		}
		input.Lines = append(input.Lines, PostingLineInput{
			AccountCode: line.AccountCode,
			Debit:       debit,
			Credit:      credit,
			Memo:        line.Memo,
			CostCenter:  line.CostCenter,
			Department:  line.Department,
		})
	}
	return input, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

type voidRequest struct {
	Reason       string `json:"reason" validate:"required"`
	ReversalDate string `json:"reversal_date" validate:"required"`
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	entryID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entry id")
		return
	}
	var req voidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	reversalDate, err := time.Parse("2006-01-02", req.ReversalDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid reversal_date")
		return
	}
	reversal, err := h.service.Void(r.Context(), VoidInput{
		EntryID:      entryID,
		TenantID:     shared.TenantFromContext(r.Context()),
		ActorID:      shared.ActorFromContext(r.Context()),
		Reason:       req.Reason,
		ReversalDate: reversalDate,
	})
	if err != nil {
		h.logger.Warn("void journal", slog.Int64("entry_id", entryID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(reversal, false))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	entryID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entry id")
		return
	}
	entry, err := h.service.Get(r.Context(), shared.TenantFromContext(r.Context()), entryID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry, false))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.List(r.Context(), shared.TenantFromContext(r.Context()), limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e, false))
	}
	httpx.JSON(w, http.StatusOK, out)
}
