package outbox

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-ledger/meridian-ledger/internal/platform/httpx"
)

// Handler exposes the outbox consumer contract over HTTP.
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

// MountRoutes attaches outbox consumer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/pending", h.pending)
	r.Get("/failed", h.failed)
	r.Post("/{id}/ack", h.ack)
	r.Post("/{id}/nack", h.nack)
}

type eventResponse struct {
	ID        string `json:"id"`
	EntryID   int64  `json:"entry_id"`
	EventType string `json:"event_type"`
	Payload   any    `json:"payload"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
	CreatedAt string `json:"created_at"`
}

func toEventResponse(e Event) eventResponse {
	resp := eventResponse{
		ID:        e.ID.String(),
		EntryID:   e.EntryID,
		EventType: e.EventType,
		Payload:   e.Payload,
		Attempts:  e.Attempts,
		CreatedAt: e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if e.LastError != nil {
		resp.LastError = *e.LastError
	}
	return resp
}

func (h *Handler) pending(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.service.PollPending(r.Context(), limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, toEventResponse(e))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) failed(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.service.ListFailed(r.Context(), limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, toEventResponse(e))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) eventID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

func (h *Handler) ack(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid event id")
		return
	}
	if err := h.service.Ack(r.Context(), id); err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrEventNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	httpx.RespondError(w, err)
}

type nackRequest struct {
	Error string `json:"error"`
}

func (h *Handler) nack(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid event id")
		return
	}
	var req nackRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.service.Nack(r.Context(), id, req.Error); err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
