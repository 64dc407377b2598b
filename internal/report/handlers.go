package report

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/salon-pos/internal/common"
)

// Handler exposes sales reporting to branch managers and admins.
type Handler struct {
	Svc *Service
	Now func() time.Time
}

func (h *Handler) now() time.Time {
	if h != nil && h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// parseRange reads from/to query params, defaulting to the last 30 days.
func (h *Handler) parseRange(r *http.Request) (time.Time, time.Time, error) {
	now := h.now()
	from := now.AddDate(0, 0, -30)
	to := now
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from date %q", raw)
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to date %q", raw)
		}
		to = parsed
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("to date precedes from date")
	}
	return from, to, nil
}

// Sales returns the daily sales summary as JSON.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	branchID, ok := common.BranchID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "no branch assigned", nil)
		return
	}
	from, to, err := h.parseRange(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	rows, err := h.Svc.Summary(r.Context(), branchID, from, to)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load sales summary", nil)
		return
	}
	if rows == nil {
		rows = []SalesRow{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// Export streams the daily sales summary as an XLSX workbook.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	branchID, ok := common.BranchID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "no branch assigned", nil)
		return
	}
	from, to, err := h.parseRange(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	rows, err := h.Svc.Summary(r.Context(), branchID, from, to)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load sales summary", nil)
		return
	}
	book, err := buildSalesWorkbook(rows)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to build workbook", nil)
		return
	}
	defer func() { _ = book.Close() }()

	filename := fmt.Sprintf("sales-%s-%s.xlsx", from.Format("2006-01-02"), to.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	_ = book.Write(w)
}

func buildSalesWorkbook(rows []SalesRow) (*excelize.File, error) {
	book := excelize.NewFile()
	const sheet = "Sales"
	index, err := book.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	book.SetActiveSheet(index)
	_ = book.DeleteSheet("Sheet1")

	headers := []string{"Date", "Bills", "Subtotal", "Discounts", "Total", "Cash Total", "Commission Paid"}
	for col, title := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := book.SetCellValue(sheet, cell, title); err != nil {
			return nil, err
		}
	}
	for i, row := range rows {
		values := []any{row.Date, row.Bills, row.Subtotal, row.Discounts, row.Total, row.CashTotal, row.CommissionPaid}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := book.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}
	return book, nil
}
