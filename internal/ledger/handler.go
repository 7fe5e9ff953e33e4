package ledger

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/rxledger/rxledger/internal/platform/httpx"
)

// Handler exposes read endpoints over the batch ledger. Writes go through the
// receiving, quality and dispensing workflows, never directly through here.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/batches/{id}", h.getBatch)
	r.Get("/products/{id}/batches", h.listAvailable)
	r.Get("/products/{id}/batches/all", h.listAll)
}

type batchResponse struct {
	ID               int64           `json:"id"`
	ProductID        int64           `json:"product_id"`
	BatchNumber      string          `json:"batch_number"`
	LotNumber        string          `json:"lot_number,omitempty"`
	ManufactureDate  time.Time       `json:"manufacture_date"`
	ExpiryDate       time.Time       `json:"expiry_date"`
	QuantityReceived decimal.Decimal `json:"quantity_received"`
	CurrentQuantity  decimal.Decimal `json:"current_quantity"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	WarehouseRef     string          `json:"warehouse_ref"`
	Status           BatchStatus     `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "batch id must be an integer")
		return
	}
	batch, err := h.service.GetBatch(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBatchResponse(batch))
}

// listAvailable serves the FEFO-ordered eligible batches. The first entry is
// the one the allocator will consume first, which is what dispensing UIs
// highlight.
func (h *Handler) listAvailable(w http.ResponseWriter, r *http.Request) {
	h.listWith(w, r, h.service.AvailableBatches)
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	h.listWith(w, r, h.service.ListByProduct)
}

func (h *Handler) listWith(w http.ResponseWriter, r *http.Request, fetch func(ctx context.Context, productID int64) ([]Batch, error)) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "product id must be an integer")
		return
	}
	batches, err := fetch(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]batchResponse, 0, len(batches))
	for _, batch := range batches {
		out = append(out, toBatchResponse(batch))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBatchNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("ledger request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func toBatchResponse(b Batch) batchResponse {
	return batchResponse{
		ID:               b.ID,
		ProductID:        b.ProductID,
		BatchNumber:      b.BatchNumber,
		LotNumber:        b.LotNumber,
		ManufactureDate:  b.ManufactureDate,
		ExpiryDate:       b.ExpiryDate,
		QuantityReceived: b.QuantityReceived,
		CurrentQuantity:  b.CurrentQuantity,
		UnitCost:         b.UnitCost,
		WarehouseRef:     b.WarehouseRef,
		Status:           b.Status,
		CreatedAt:        b.CreatedAt,
	}
}
