package promotion

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/salon-pos/internal/common"
	"github.com/noah-isme/salon-pos/internal/obs"
)

// Handler exposes promotion validation to the register and CRUD to admins.
type Handler struct {
	Svc      *Service
	Pool     *pgxpool.Pool
	Validate *validator.Validate
}

type validateRequest struct {
	Code            string `json:"code" validate:"required"`
	ClientID        string `json:"clientId"`
	Subtotal        int64  `json:"subtotal" validate:"gte=0"`
	ServiceSubtotal int64  `json:"serviceSubtotal" validate:"gte=0"`
	ProductSubtotal int64  `json:"productSubtotal" validate:"gte=0"`
}

// ValidateCode checks a promotion code against the current cart subtotals
// and returns the discount it would grant. Rejections come back as a valid
// response with valid=false, never as an HTTP error.
func (h *Handler) ValidateCode(w http.ResponseWriter, r *http.Request) {
	branchID, ok := common.BranchID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "no branch assigned", nil)
		return
	}
	var payload validateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid promotion payload", err.Error())
			return
		}
	}
	promo, reason, err := h.Svc.Validate(r.Context(), branchID, payload.Code, payload.ClientID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to validate promotion", nil)
		return
	}
	result := Result{Valid: false, Reason: reason}
	if reason == "" {
		result = Evaluate(promo, payload.Subtotal, payload.ServiceSubtotal, payload.ProductSubtotal)
	}
	if obs.PromotionsAppliedTotal != nil {
		outcome := "rejected"
		if result.Valid {
			outcome = "applied"
		}
		obs.PromotionsAppliedTotal.WithLabelValues(outcome).Inc()
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"valid":    result.Valid,
			"discount": result.Discount,
			"reason":   result.Reason,
			"code":     promo.Code,
			"title":    promo.Title,
		},
	})
}

// List returns promotions visible to the caller's branch.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	branchID, ok := common.BranchID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "no branch assigned", nil)
		return
	}
	const q = `SELECT id, code, title, kind, value, percent_bps, applies_to, min_spend,
			usage_limit, per_client_limit, valid_from, valid_to, branch_id, status
		FROM promotions
		WHERE branch_id = $1 OR branch_id = ''
		ORDER BY code`
	rows, err := h.Pool.Query(r.Context(), q, branchID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to list promotions", nil)
		return
	}
	defer rows.Close()
	out := []Promotion{}
	for rows.Next() {
		var p Promotion
		if err := rows.Scan(&p.ID, &p.Code, &p.Title, &p.Kind, &p.Value, &p.PercentBps,
			&p.Scope, &p.MinSpend, &p.UsageLimit, &p.PerClientLimit,
			&p.ValidFrom, &p.ValidTo, &p.BranchID, &p.Status); err != nil {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to list promotions", nil)
			return
		}
		out = append(out, p)
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

type createRequest struct {
	Code           string    `json:"code" validate:"required,min=2,max=32"`
	Title          string    `json:"title" validate:"required"`
	Kind           string    `json:"kind" validate:"required,oneof=percent fixed"`
	Value          int64     `json:"value" validate:"gte=0"`
	PercentBps     int64     `json:"percentBps" validate:"gte=0,lte=10000"`
	Scope          string    `json:"appliesTo" validate:"required,oneof=all services products"`
	MinSpend       int64     `json:"minSpend" validate:"gte=0"`
	UsageLimit     int       `json:"usageLimit" validate:"gte=0"`
	PerClientLimit int       `json:"perClientLimit" validate:"gte=0"`
	ValidFrom      time.Time `json:"validFrom"`
	ValidTo        time.Time `json:"validTo"`
	BranchID       string    `json:"branchId"`
}

// Create registers a new promotion. Admin only, enforced by routing.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid promotion payload", err.Error())
			return
		}
	}
	id := uuid.NewString()
	code := strings.ToUpper(strings.TrimSpace(payload.Code))
	const q = `INSERT INTO promotions
			(id, code, title, kind, value, percent_bps, applies_to, min_spend,
			 usage_limit, per_client_limit, valid_from, valid_to, branch_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 'active')`
	_, err := h.Pool.Exec(r.Context(), q, id, code, payload.Title, payload.Kind,
		payload.Value, payload.PercentBps, payload.Scope, payload.MinSpend,
		payload.UsageLimit, payload.PerClientLimit, payload.ValidFrom, payload.ValidTo,
		payload.BranchID)
	if err != nil {
		common.JSONError(w, http.StatusConflict, "CONFLICT", "promotion code already exists", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"id": id, "code": code}})
}

// Deactivate retires a promotion without deleting its usage history.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tag, err := h.Pool.Exec(r.Context(),
		`UPDATE promotions SET status = 'inactive' WHERE id = $1`, id)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to deactivate promotion", nil)
		return
	}
	if tag.RowsAffected() == 0 {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "promotion not found", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": id, "status": "inactive"}})
}
