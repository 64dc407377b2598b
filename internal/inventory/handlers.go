package inventory

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/salon-pos/internal/common"
	"github.com/noah-isme/salon-pos/internal/obs"
)

// Handler wires inventory lookups to HTTP.
type Handler struct {
	Svc *Service
}

// AllocationPreview returns the FIFO allocation plan for a requested
// product quantity, re-computed from current stock. The register calls this
// on every quantity edit.
func (h *Handler) AllocationPreview(w http.ResponseWriter, r *http.Request) {
	branchID, ok := common.BranchID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "no branch assigned", nil)
		return
	}
	productID := strings.TrimSpace(r.URL.Query().Get("productId"))
	if productID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "productId is required", nil)
		return
	}
	qty := common.AtoiDefault(r.URL.Query().Get("qty"), 1)

	batches, err := h.Svc.BatchesForSale(r.Context(), branchID, productID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load stock batches", nil)
		return
	}
	plan := Allocate(qty, batches)
	if plan.Shortfall > 0 && obs.AllocationShortfallTotal != nil {
		obs.AllocationShortfallTotal.Inc()
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"productId": productID,
			"requested": qty,
			"plan":      plan,
			"batches":   batches,
		},
	})
}

// Scan resolves a batch number decoded from a product QR code.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	branchID, ok := common.BranchID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "no branch assigned", nil)
		return
	}
	batchNumber := strings.TrimSpace(chi.URLParam(r, "batchNumber"))
	if batchNumber == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "batch number is required", nil)
		return
	}
	product, err := h.Svc.ProductByBatchNumber(r.Context(), branchID, batchNumber)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "no product for scanned batch", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to resolve scanned batch", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": product})
}

// Stock returns the aggregated sellable stock per product.
func (h *Handler) Stock(w http.ResponseWriter, r *http.Request) {
	branchID, ok := common.BranchID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "no branch assigned", nil)
		return
	}
	report, err := h.Svc.StockReport(r.Context(), branchID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load stock report", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": report})
}

// Export streams the branch stock report as an XLSX workbook.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	branchID, ok := common.BranchID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "no branch assigned", nil)
		return
	}
	report, err := h.Svc.StockReport(r.Context(), branchID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load stock report", nil)
		return
	}
	book, err := buildStockWorkbook(report)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to build workbook", nil)
		return
	}
	defer func() { _ = book.Close() }()

	filename := fmt.Sprintf("stock-%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	_ = book.Write(w)
}

func buildStockWorkbook(report []StockRow) (*excelize.File, error) {
	book := excelize.NewFile()
	const sheet = "Stock"
	index, err := book.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	book.SetActiveSheet(index)
	_ = book.DeleteSheet("Sheet1")

	headers := []string{"Product", "Active Batches", "Sellable Units"}
	for col, title := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := book.SetCellValue(sheet, cell, title); err != nil {
			return nil, err
		}
	}
	for i, row := range report {
		values := []any{row.ProductName, row.BatchCount, row.TotalStock}
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
