package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/rxledger/rxledger/internal/platform/httpx"
)

// Handler wires HTTP endpoints for products and packaging levels.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/products", h.createProduct)
	r.Get("/products/{id}", h.getProduct)
	r.Put("/products/{id}", h.updateProduct)
	r.Get("/products/{id}/levels", h.listLevels)
	r.Put("/products/{id}/levels", h.replaceLevels)
}

type productRequest struct {
	GenericName           string `json:"generic_name" validate:"required"`
	Strength              string `json:"strength"`
	DosageForm            string `json:"dosage_form" validate:"required"`
	RequiresPrescription  bool   `json:"requires_prescription"`
	IsControlledSubstance bool   `json:"is_controlled_substance"`
}

type productResponse struct {
	ID                    int64  `json:"id"`
	GenericName           string `json:"generic_name"`
	Strength              string `json:"strength"`
	DosageForm            string `json:"dosage_form"`
	RequiresPrescription  bool   `json:"requires_prescription"`
	IsControlledSubstance bool   `json:"is_controlled_substance"`
}

type levelRequest struct {
	LevelOrder    int             `json:"level_order" validate:"required,gt=0"`
	BaseUnitQty   decimal.Decimal `json:"base_unit_qty"`
	UnitOfMeasure string          `json:"unit_of_measure" validate:"required"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	CanDispense   bool            `json:"can_dispense"`
	CanPurchase   bool            `json:"can_purchase"`
}

type levelResponse struct {
	ID            int64           `json:"id"`
	ProductID     int64           `json:"product_id"`
	LevelOrder    int             `json:"level_order"`
	BaseUnitQty   decimal.Decimal `json:"base_unit_qty"`
	UnitOfMeasure string          `json:"unit_of_measure"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	CanDispense   bool            `json:"can_dispense"`
	CanPurchase   bool            `json:"can_purchase"`
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	product, err := h.service.CreateProduct(r.Context(), Product{
		GenericName:           req.GenericName,
		Strength:              req.Strength,
		DosageForm:            req.DosageForm,
		RequiresPrescription:  req.RequiresPrescription,
		IsControlledSubstance: req.IsControlledSubstance,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toProductResponse(product))
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "product id must be an integer")
		return
	}
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProductResponse(product))
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "product id must be an integer")
		return
	}
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	err = h.service.UpdateProduct(r.Context(), id, Product{
		GenericName:           req.GenericName,
		Strength:              req.Strength,
		DosageForm:            req.DosageForm,
		RequiresPrescription:  req.RequiresPrescription,
		IsControlledSubstance: req.IsControlledSubstance,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listLevels(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "product id must be an integer")
		return
	}
	levels, err := h.service.LevelsFor(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]levelResponse, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, toLevelResponse(lvl))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) replaceLevels(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "product id must be an integer")
		return
	}
	var reqs []levelRequest
	if err := httpx.DecodeJSON(r, &reqs); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	levels := make([]PackagingLevel, 0, len(reqs))
	for _, req := range reqs {
		if err := h.validator.Struct(req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		levels = append(levels, PackagingLevel{
			LevelOrder:    req.LevelOrder,
			BaseUnitQty:   req.BaseUnitQty,
			UnitOfMeasure: req.UnitOfMeasure,
			CostPrice:     req.CostPrice,
			SellingPrice:  req.SellingPrice,
			CanDispense:   req.CanDispense,
			CanPurchase:   req.CanPurchase,
		})
	}
	saved, err := h.service.ReplaceLevels(r.Context(), id, levels)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]levelResponse, 0, len(saved))
	for _, lvl := range saved {
		out = append(out, toLevelResponse(lvl))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrProductImmutable), errors.Is(err, ErrLevelOrderConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrBaseQtyNotMonotonic), errors.Is(err, ErrBaseLevelNotUnit), errors.Is(err, ErrUnknownLevel):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("catalog request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func toProductResponse(p Product) productResponse {
	return productResponse{
		ID:                    p.ID,
		GenericName:           p.GenericName,
		Strength:              p.Strength,
		DosageForm:            p.DosageForm,
		RequiresPrescription:  p.RequiresPrescription,
		IsControlledSubstance: p.IsControlledSubstance,
	}
}

func toLevelResponse(lvl PackagingLevel) levelResponse {
	return levelResponse{
		ID:            lvl.ID,
		ProductID:     lvl.ProductID,
		LevelOrder:    lvl.LevelOrder,
		BaseUnitQty:   lvl.BaseUnitQty,
		UnitOfMeasure: lvl.UnitOfMeasure,
		CostPrice:     lvl.CostPrice,
		SellingPrice:  lvl.SellingPrice,
		CanDispense:   lvl.CanDispense,
		CanPurchase:   lvl.CanPurchase,
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
