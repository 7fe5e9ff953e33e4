package dispensing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/rxledger/rxledger/internal/catalog"
	"github.com/rxledger/rxledger/internal/ledger"
	"github.com/rxledger/rxledger/internal/platform/httpx"
	"github.com/rxledger/rxledger/internal/shared"
)

// Handler wires the dispense endpoint and record queries.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the dispensing handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers dispensing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/dispense", h.dispense)
	r.Get("/products/{id}/dispensing-records", h.listRecords)
}

type dispenseRequest struct {
	ProductID       int64           `json:"product_id" validate:"required,gt=0"`
	LevelID         int64           `json:"level_id" validate:"required,gt=0"`
	Quantity        decimal.Decimal `json:"quantity"`
	PatientName     string          `json:"patient_name"`
	PrescriberName  string          `json:"prescriber_name"`
	PrescriptionRef string          `json:"prescription_ref"`
}

type recordItemResponse struct {
	BatchID   int64           `json:"batch_id"`
	BaseUnits decimal.Decimal `json:"base_units"`
}

type recordResponse struct {
	ID              int64                `json:"id"`
	Reference       string               `json:"reference"`
	ProductID       int64                `json:"product_id"`
	LevelID         int64                `json:"level_id"`
	QuantityUnits   decimal.Decimal      `json:"quantity_units"`
	UnitPrice       decimal.Decimal      `json:"unit_price"`
	TotalPrice      decimal.Decimal      `json:"total_price"`
	BaseUnits       decimal.Decimal      `json:"base_units"`
	PatientName     string               `json:"patient_name,omitempty"`
	PrescriberName  string               `json:"prescriber_name,omitempty"`
	PrescriptionRef string               `json:"prescription_ref,omitempty"`
	DispensedBy     int64                `json:"dispensed_by"`
	DispensedAt     time.Time            `json:"dispensed_at"`
	Items           []recordItemResponse `json:"items"`
}

func (h *Handler) dispense(w http.ResponseWriter, r *http.Request) {
	var req dispenseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	record, err := h.service.Dispense(r.Context(), DispenseInput{
		ProductID:       req.ProductID,
		LevelID:         req.LevelID,
		Quantity:        req.Quantity,
		PatientName:     req.PatientName,
		PrescriberName:  req.PrescriberName,
		PrescriptionRef: req.PrescriptionRef,
		ActorID:         shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRecordResponse(record))
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "product id must be an integer")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.service.ListByProduct(r.Context(), id, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toRecordResponse(rec))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrPrescriptionRequired):
		httpx.Problem(w, http.StatusBadRequest, "Prescription Required", err.Error())
	case errors.Is(err, ledger.ErrConcurrentConflict):
		httpx.Problem(w, http.StatusConflict, "Concurrent Allocation Conflict", "stock changed while dispensing, please retry")
	case errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, catalog.ErrInvalidQuantity),
		errors.Is(err, catalog.ErrUnknownLevel),
		errors.Is(err, catalog.ErrNoDispensableLevel):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("dispense request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func toRecordResponse(rec Record) recordResponse {
	items := make([]recordItemResponse, 0, len(rec.Items))
	for _, item := range rec.Items {
		items = append(items, recordItemResponse{BatchID: item.BatchID, BaseUnits: item.BaseUnits})
	}
	return recordResponse{
		ID:              rec.ID,
		Reference:       rec.Reference,
		ProductID:       rec.ProductID,
		LevelID:         rec.LevelID,
		QuantityUnits:   rec.QuantityUnits,
		UnitPrice:       rec.UnitPrice,
		TotalPrice:      rec.TotalPrice,
		BaseUnits:       rec.BaseUnits,
		PatientName:     rec.PatientName,
		PrescriberName:  rec.PrescriberName,
		PrescriptionRef: rec.PrescriptionRef,
		DispensedBy:     rec.DispensedBy,
		DispensedAt:     rec.DispensedAt,
		Items:           items,
	}
}
