package receiving

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/rxledger/rxledger/internal/catalog"
	"github.com/rxledger/rxledger/internal/ledger"
	"github.com/rxledger/rxledger/internal/platform/httpx"
	"github.com/rxledger/rxledger/internal/shared"
)

// Handler wires the goods-receipt endpoint.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the receiving handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers receiving routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/receiving", h.receive)
}

type receiveRequest struct {
	ProductID       int64           `json:"product_id" validate:"required,gt=0"`
	LevelID         int64           `json:"level_id" validate:"required,gt=0"`
	Quantity        decimal.Decimal `json:"quantity"`
	BatchNumber     string          `json:"batch_number" validate:"required"`
	LotNumber       string          `json:"lot_number"`
	ManufactureDate time.Time       `json:"manufacture_date" validate:"required"`
	ExpiryDate      time.Time       `json:"expiry_date" validate:"required"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	WarehouseRef    string          `json:"warehouse_ref" validate:"required"`
}

type receiptResponse struct {
	BatchID       int64           `json:"batch_id"`
	ProductID     int64           `json:"product_id"`
	BatchNumber   string          `json:"batch_number"`
	LevelID       int64           `json:"level_id"`
	QuantityUnits decimal.Decimal `json:"quantity_units"`
	BaseUnits     decimal.Decimal `json:"base_units"`
	UnitCostBase  decimal.Decimal `json:"unit_cost_base"`
	WarehouseRef  string          `json:"warehouse_ref"`
	ExpiryDate    time.Time       `json:"expiry_date"`
	Status        string          `json:"status"`
	ReceivedAt    time.Time       `json:"received_at"`
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	var req receiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	receipt, err := h.service.Receive(r.Context(), ReceiveInput{
		ProductID:       req.ProductID,
		LevelID:         req.LevelID,
		Quantity:        req.Quantity,
		BatchNumber:     req.BatchNumber,
		LotNumber:       req.LotNumber,
		ManufactureDate: req.ManufactureDate,
		ExpiryDate:      req.ExpiryDate,
		UnitCost:        req.UnitCost,
		WarehouseRef:    req.WarehouseRef,
		ActorID:         shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, receiptResponse{
		BatchID:       receipt.BatchID,
		ProductID:     receipt.ProductID,
		BatchNumber:   receipt.BatchNumber,
		LevelID:       receipt.LevelID,
		QuantityUnits: receipt.QuantityUnits,
		BaseUnits:     receipt.BaseUnits,
		UnitCostBase:  receipt.UnitCostBase,
		WarehouseRef:  receipt.WarehouseRef,
		ExpiryDate:    receipt.ExpiryDate,
		Status:        string(receipt.Status),
		ReceivedAt:    receipt.ReceivedAt,
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ledger.ErrDuplicateBatchNumber):
		httpx.Problem(w, http.StatusConflict, "Duplicate Batch Number", err.Error())
	case errors.Is(err, catalog.ErrUnknownLevel),
		errors.Is(err, catalog.ErrNoPurchasableLevel),
		errors.Is(err, catalog.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrInvalidDateRange),
		errors.Is(err, ledger.ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("receiving request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
