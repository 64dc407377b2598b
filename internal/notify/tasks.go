package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/salon-pos/internal/events"
)

// Task type names routed through asynq.
const (
	TypeReceiptEmail = "email:receipt"
	TypeLowStockScan = "inventory:low_stock_scan"
)

// ReceiptEmailPayload identifies the bill whose receipt should be emailed.
type ReceiptEmailPayload struct {
	BillID string `json:"billId"`
}

// LowStockScanPayload identifies the branch to scan.
type LowStockScanPayload struct {
	BranchID string `json:"branchId"`
}

// NewReceiptEmailTask builds the asynq task for a receipt email.
func NewReceiptEmailTask(billID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ReceiptEmailPayload{BillID: billID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReceiptEmail, payload, asynq.MaxRetry(5)), nil
}

// NewLowStockScanTask builds the asynq task for a branch stock scan.
func NewLowStockScanTask(branchID string) (*asynq.Task, error) {
	payload, err := json.Marshal(LowStockScanPayload{BranchID: branchID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeLowStockScan, payload, asynq.MaxRetry(3)), nil
}

// Scheduler translates domain events into background tasks. It implements
// events.TaskScheduler for the bus.
type Scheduler struct {
	Client *asynq.Client
}

// Schedule enqueues the tasks a topic warrants. Topics with no background
// work are ignored.
func (s Scheduler) Schedule(ctx context.Context, event events.Event) error {
	if s.Client == nil {
		return nil
	}
	switch event.Topic {
	case events.TopicBillCreated:
		task, err := NewReceiptEmailTask(event.AggregateID)
		if err != nil {
			return fmt.Errorf("build receipt email task: %w", err)
		}
		if _, err := s.Client.EnqueueContext(ctx, task); err != nil {
			return fmt.Errorf("enqueue receipt email: %w", err)
		}
	case events.TopicStockLow:
		task, err := NewLowStockScanTask(event.AggregateID)
		if err != nil {
			return fmt.Errorf("build low stock task: %w", err)
		}
		if _, err := s.Client.EnqueueContext(ctx, task); err != nil {
			return fmt.Errorf("enqueue low stock scan: %w", err)
		}
	}
	return nil
}
