package billing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/salon-pos/internal/inventory"
)

// BillSummary is one row in the bill list.
type BillSummary struct {
	ID            string `json:"id"`
	ReceiptNumber string `json:"receiptNumber"`
	ClientName    string `json:"clientName"`
	Total         Money  `json:"total"`
	PaymentMethod string `json:"paymentMethod"`
	CreatedAt     string `json:"createdAt"`
}

// List returns bills for a branch, newest first.
func (s *Service) List(ctx context.Context, branchID string, limit, offset int) ([]BillSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT id, receipt_number, client_name, total, payment_method,
			to_char(created_at, 'YYYY-MM-DD"T"HH24:MI:SSOF')
		 FROM bills
		 WHERE branch_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, branchID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BillSummary
	for rows.Next() {
		var b BillSummary
		if err := rows.Scan(&b.ID, &b.ReceiptNumber, &b.ClientName, &b.Total, &b.PaymentMethod, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Get loads one bill with its items and batch allocations.
func (s *Service) Get(ctx context.Context, branchID, id string) (Bill, error) {
	var b Bill
	err := s.Pool.QueryRow(ctx,
		`SELECT id, branch_id, receipt_number, coalesce(client_id::text, ''), client_name,
			coalesce(client_email, ''), cashier_id,
			subtotal, discount_amount, promotion_discount, loyalty_discount, total,
			coalesce(promo_code, ''), loyalty_points, points_earned, payment_method, amount_received, change_due, created_at
		 FROM bills
		 WHERE id = $1 AND branch_id = $2`, id, branchID).
		Scan(&b.ID, &b.BranchID, &b.ReceiptNumber, &b.ClientID, &b.ClientName,
			&b.ClientEmail, &b.CashierID,
			&b.Totals.Subtotal, &b.Totals.DiscountAmount, &b.Totals.PromotionDiscount,
			&b.Totals.LoyaltyDiscount, &b.Totals.Total,
			&b.PromoCode, &b.LoyaltyPoints, &b.PointsEarned, &b.PaymentMethod, &b.AmountReceived, &b.ChangeDue, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, ErrNotFound
		}
		return Bill{}, err
	}

	items, err := s.itemsForBill(ctx, b.ID)
	if err != nil {
		return Bill{}, err
	}
	b.Items = items
	return b, nil
}

// GetForReceipt loads a bill by id regardless of branch, with the branch
// display name. The worker uses this to render receipt emails.
func (s *Service) GetForReceipt(ctx context.Context, billID string) (Bill, string, error) {
	var (
		b          Bill
		branchName string
	)
	err := s.Pool.QueryRow(ctx,
		`SELECT b.id, b.branch_id, b.receipt_number, coalesce(b.client_id::text, ''), b.client_name,
			coalesce(b.client_email, ''), b.cashier_id,
			b.subtotal, b.discount_amount, b.promotion_discount, b.loyalty_discount, b.total,
			coalesce(b.promo_code, ''), b.loyalty_points, b.points_earned, b.payment_method,
			b.amount_received, b.change_due, b.created_at, br.name
		 FROM bills b
		 JOIN branches br ON br.id = b.branch_id
		 WHERE b.id = $1`, billID).
		Scan(&b.ID, &b.BranchID, &b.ReceiptNumber, &b.ClientID, &b.ClientName,
			&b.ClientEmail, &b.CashierID,
			&b.Totals.Subtotal, &b.Totals.DiscountAmount, &b.Totals.PromotionDiscount,
			&b.Totals.LoyaltyDiscount, &b.Totals.Total,
			&b.PromoCode, &b.LoyaltyPoints, &b.PointsEarned, &b.PaymentMethod,
			&b.AmountReceived, &b.ChangeDue, &b.CreatedAt, &branchName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, "", ErrNotFound
		}
		return Bill{}, "", err
	}
	items, err := s.itemsForBill(ctx, b.ID)
	if err != nil {
		return Bill{}, "", err
	}
	b.Items = items
	return b, branchName, nil
}

func (s *Service) itemsForBill(ctx context.Context, billID string) ([]BillItem, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, position, kind, ref_id, name, qty, unit_price, adjustment,
			coalesce(adjustment_reason, ''), coalesce(stylist_id::text, ''), coalesce(client_type, ''),
			amount, commission_points, coalesce(commissioner_id::text, '')
		 FROM bill_items
		 WHERE bill_id = $1
		 ORDER BY position`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BillItem
	for rows.Next() {
		var (
			it         BillItem
			clientType string
		)
		if err := rows.Scan(&it.ID, &it.Position, &it.Kind, &it.RefID, &it.Name, &it.Qty, &it.UnitPrice,
			&it.Adjustment, &it.AdjustmentReason, &it.StylistID, &clientType,
			&it.Amount, &it.CommissionPoints, &it.CommissionerID); err != nil {
			return nil, err
		}
		it.ClientType = ClientType(clientType)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	allocs, err := s.allocationsForBill(ctx, billID)
	if err != nil {
		return nil, err
	}
	attachAllocations(items, allocs)
	return items, nil
}

// allocationsForBill loads the batch allocations for every item on a bill,
// keyed by bill item id.
func (s *Service) allocationsForBill(ctx context.Context, billID string) (map[string][]inventory.Allocation, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT a.bill_item_id, a.batch_id, a.batch_number, a.qty
		 FROM bill_item_allocations a
		 JOIN bill_items i ON i.id = a.bill_item_id
		 WHERE i.bill_id = $1
		 ORDER BY a.id`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	byItem := map[string][]inventory.Allocation{}
	for rows.Next() {
		var (
			itemID string
			a      inventory.Allocation
		)
		if err := rows.Scan(&itemID, &a.BatchID, &a.BatchNumber, &a.Qty); err != nil {
			return nil, err
		}
		byItem[itemID] = append(byItem[itemID], a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(byItem) == 0 {
		return nil, nil
	}
	return byItem, nil
}

func attachAllocations(items []BillItem, byItem map[string][]inventory.Allocation) {
	if len(byItem) == 0 {
		return
	}
	for i := range items {
		items[i].Allocations = byItem[items[i].ID]
	}
}
