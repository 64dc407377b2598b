package branch

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/salon-pos/internal/common"
)

// Handler exposes branch administration endpoints. All routes are mounted
// behind the system-admin role.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// List returns every salon location.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	branches, err := h.Svc.List(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to list branches", nil)
		return
	}
	if branches == nil {
		branches = []Branch{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": branches})
}

// Get returns one branch.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "branch not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load branch", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": b})
}

type branchRequest struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Status  string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// Create registers a new branch.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload branchRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid branch payload", err.Error())
			return
		}
	}
	b := Branch{
		ID:      uuid.NewString(),
		Name:    payload.Name,
		Address: payload.Address,
		Phone:   payload.Phone,
		Status:  payload.Status,
	}
	if b.Status == "" {
		b.Status = "active"
	}
	if err := h.Svc.Create(r.Context(), b); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to create branch", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": b})
}

// Update rewrites a branch record.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var payload branchRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid branch payload", err.Error())
			return
		}
	}
	b := Branch{
		ID:      chi.URLParam(r, "id"),
		Name:    payload.Name,
		Address: payload.Address,
		Phone:   payload.Phone,
		Status:  payload.Status,
	}
	if b.Status == "" {
		b.Status = "active"
	}
	if err := h.Svc.Update(r.Context(), b); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "branch not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to update branch", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": b})
}
