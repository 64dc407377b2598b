package catalog

import (
	"encoding/json"
	"net/http"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/salon-pos/internal/common"
)

// Handler exposes the branch catalog over HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// Services lists active treatments for the caller's branch.
func (h *Handler) Services(w http.ResponseWriter, r *http.Request) {
	branchID, ok := common.BranchID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "no branch assigned", nil)
		return
	}
	services, err := h.Svc.Services(r.Context(), branchID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load services", nil)
		return
	}
	if services == nil {
		services = []SalonService{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": services})
}

// Products lists active retail products for the caller's branch.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	branchID, ok := common.BranchID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "no branch assigned", nil)
		return
	}
	products, err := h.Svc.Products(r.Context(), branchID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load products", nil)
		return
	}
	if products == nil {
		products = []Product{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": products})
}

type createServiceRequest struct {
	Name        string `json:"name" validate:"required"`
	Category    string `json:"category" validate:"required"`
	BasePrice   int64  `json:"basePrice" validate:"gt=0"`
	DurationMin int    `json:"durationMinutes" validate:"gte=0"`
}

// CreateService adds a treatment to the branch catalog. Admin only.
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	branchID, ok := common.BranchID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "no branch assigned", nil)
		return
	}
	var payload createServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid service payload", err.Error())
			return
		}
	}
	id := uuid.NewString()
	_, err := h.Svc.Pool.Exec(r.Context(),
		`INSERT INTO salon_services (id, branch_id, name, category, base_price, duration_minutes, status)
		 VALUES ($1, $2, $3, $4, $5, $6, 'active')`,
		id, branchID, payload.Name, payload.Category, payload.BasePrice, payload.DurationMin)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to create service", nil)
		return
	}
	h.Svc.Invalidate(r.Context(), branchID)
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"id": id}})
}

type createProductRequest struct {
	Name          string `json:"name" validate:"required"`
	Price         int64  `json:"price" validate:"gt=0"`
	UnitCost      int64  `json:"unitCost" validate:"gte=0"`
	CommissionBps int    `json:"commissionBps" validate:"gte=0,lte=10000"`
}

// CreateProduct adds a retail product to the branch catalog. Admin only.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	branchID, ok := common.BranchID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "no branch assigned", nil)
		return
	}
	var payload createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid product payload", err.Error())
			return
		}
	}
	id := uuid.NewString()
	_, err := h.Svc.Pool.Exec(r.Context(),
		`INSERT INTO products (id, branch_id, name, price, unit_cost, commission_bps, status)
		 VALUES ($1, $2, $3, $4, $5, $6, 'active')`,
		id, branchID, payload.Name, payload.Price, payload.UnitCost, payload.CommissionBps)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to create product", nil)
		return
	}
	h.Svc.Invalidate(r.Context(), branchID)
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"id": id}})
}
