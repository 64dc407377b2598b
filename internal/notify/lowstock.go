package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/salon-pos/internal/common"
	"github.com/noah-isme/salon-pos/internal/inventory"
)

// LowStockHandler scans a branch for products running out of sellable
// stock and alerts the branch manager mailbox.
type LowStockHandler struct {
	Inventory *inventory.Service
	Threshold int
	AlertTo   string
	Sender    common.EmailSender
	Logger    *zerolog.Logger
}

// Handle runs one scan.
func (h LowStockHandler) Handle(ctx context.Context, task *asynq.Task) error {
	var payload LowStockScanPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode low stock payload: %w", err)
	}
	threshold := h.Threshold
	if threshold <= 0 {
		threshold = 5
	}
	rows, err := h.Inventory.LowStock(ctx, payload.BranchID, threshold)
	if err != nil {
		return fmt.Errorf("low stock scan for branch %s: %w", payload.BranchID, err)
	}
	if len(rows) == 0 {
		return nil
	}
	if h.Logger != nil {
		h.Logger.Warn().
			Str("branch_id", payload.BranchID).
			Int("products", len(rows)).
			Msg("low stock detected")
	}
	if h.Sender == nil || h.AlertTo == "" {
		return nil
	}
	body := "<p>Products at or below the stock threshold:</p><ul>"
	for _, r := range rows {
		body += fmt.Sprintf("<li>%s: %d left</li>", r.ProductName, r.TotalStock)
	}
	body += "</ul>"
	return h.Sender.Send(h.AlertTo, "Low stock alert", body)
}
