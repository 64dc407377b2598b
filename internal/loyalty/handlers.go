package loyalty

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/salon-pos/internal/common"
)

// Handler exposes loyalty balance and history lookups for the register.
type Handler struct {
	Svc *Service
}

// Balance returns the client's point balance and its money value, so the
// register can show the maximum redeemable discount.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	branchID, ok := common.BranchID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "no branch on session", nil)
		return
	}
	clientID := chi.URLParam(r, "clientID")
	points, err := h.Svc.Balance(r.Context(), branchID, clientID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load loyalty balance", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"clientId":      clientID,
			"branchId":      branchID,
			"points":        points,
			"discountValue": h.Svc.DiscountFor(points),
		},
	})
}

// History lists recent loyalty ledger entries for a client.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	branchID, ok := common.BranchID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "no branch on session", nil)
		return
	}
	clientID := chi.URLParam(r, "clientID")
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 20)
	entries, err := h.Svc.History(r.Context(), branchID, clientID, limit)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load loyalty history", nil)
		return
	}
	if entries == nil {
		entries = []Transaction{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": entries})
}
