package billing

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/salon-pos/internal/common"
)

// Handler exposes bill creation and lookup to the register.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (CreateBillRequest, bool) {
	var payload CreateBillRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return CreateBillRequest{}, false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid bill payload", err.Error())
			return CreateBillRequest{}, false
		}
	}
	return payload, true
}

// Create finalizes a sale. Business-rule rejections return 422 with the
// full list of reasons so the register can show them all at once.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	staff, ok := common.StaffFrom(r.Context())
	if !ok || staff.BranchID == "" {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "no branch assigned", nil)
		return
	}
	payload, ok := h.decode(w, r)
	if !ok {
		return
	}
	bill, err := h.Svc.CreateBill(r.Context(), staff.BranchID, staff.UserID, payload)
	if err != nil {
		var invalid *ValidationError
		if errors.As(err, &invalid) {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "bill rejected", invalid.Reasons)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to create bill", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": bill})
}

// Preview computes totals and allocation plans without persisting anything.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	branchID, ok := common.BranchID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "no branch assigned", nil)
		return
	}
	var payload CreateBillRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	preview, err := h.Svc.PreviewBill(r.Context(), branchID, payload)
	if err != nil {
		var invalid *ValidationError
		if errors.As(err, &invalid) {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "cart rejected", invalid.Reasons)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to preview bill", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": preview})
}

// List returns recent bills for the caller's branch.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	branchID, ok := common.BranchID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "no branch assigned", nil)
		return
	}
	limit, offset := common.ParseLimitOffset(r, 20, 100)
	bills, err := h.Svc.List(r.Context(), branchID, limit, offset)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to list bills", nil)
		return
	}
	if bills == nil {
		bills = []BillSummary{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       bills,
		"pagination": common.Pagination{Limit: limit, Offset: offset, Count: len(bills)},
	})
}

// Get returns one bill with items and allocations.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	branchID, ok := common.BranchID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "no branch assigned", nil)
		return
	}
	bill, err := h.Svc.Get(r.Context(), branchID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "bill not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load bill", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": bill})
}
