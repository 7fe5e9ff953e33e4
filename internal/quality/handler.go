package quality

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rxledger/rxledger/internal/ledger"
	"github.com/rxledger/rxledger/internal/platform/httpx"
	"github.com/rxledger/rxledger/internal/shared"
)

// Handler wires the QC decision endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the QC handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers QC routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/batches/{id}/approve", h.approve)
	r.Post("/batches/{id}/reject", h.reject)
}

type decisionRequest struct {
	Note string `json:"note"`
}

type outcomeResponse struct {
	BatchID   int64     `json:"batch_id"`
	ProductID int64     `json:"product_id"`
	Status    string    `json:"status"`
	ActorID   int64     `json:"actor_id"`
	Note      string    `json:"note,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Approve)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Reject)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, batchID int64, decision Decision) (Outcome, error)) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "batch id must be an integer")
		return
	}
	var req decisionRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
			return
		}
	}

	outcome, err := apply(r.Context(), id, Decision{ActorID: shared.ActorFromContext(r.Context()), Note: req.Note})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, outcomeResponse{
		BatchID:   outcome.BatchID,
		ProductID: outcome.ProductID,
		Status:    string(outcome.Status),
		ActorID:   outcome.ActorID,
		Note:      outcome.Note,
		DecidedAt: outcome.DecidedAt,
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrBatchNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ledger.ErrInvalidStateTransition):
		httpx.Problem(w, http.StatusConflict, "Invalid State Transition", err.Error())
	default:
		h.logger.Error("qc request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
