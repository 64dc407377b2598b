package activity

import (
	"net/http"

	"github.com/noah-isme/salon-pos/internal/common"
)

// Handler exposes the activity log to branch managers and admins.
type Handler struct {
	Store Store
}

// List returns recent activity for the caller's branch.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	branchID, ok := common.BranchID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "no branch assigned", nil)
		return
	}
	limit, offset := common.ParseLimitOffset(r, 50, 200)
	entries, err := h.Store.List(r.Context(), branchID, limit, offset)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load activity log", nil)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       entries,
		"pagination": common.Pagination{Limit: limit, Offset: offset, Count: len(entries)},
	})
}
