package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/noah-isme/salon-pos/internal/catalog"
	"github.com/noah-isme/salon-pos/internal/events"
	"github.com/noah-isme/salon-pos/internal/inventory"
	"github.com/noah-isme/salon-pos/internal/loyalty"
	"github.com/noah-isme/salon-pos/internal/obs"
	"github.com/noah-isme/salon-pos/internal/promotion"
)

// ErrNotFound indicates the bill does not exist at the caller's branch.
var ErrNotFound = errors.New("billing: not found")

// ValidationError carries the business-rule failures for a rejected
// submission. Every reason is user-facing.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "billing: invalid submission: " + strings.Join(e.Reasons, "; ")
}

// Payment methods accepted at the register.
const (
	PaymentCash    = "cash"
	PaymentCard    = "card"
	PaymentEWallet = "ewallet"
)

// LineRequest is one cart line as submitted by the register. Prices are
// resolved from the catalog server-side; the payload never carries amounts.
type LineRequest struct {
	Kind             ItemKind   `json:"kind" validate:"required,oneof=service product"`
	RefID            string     `json:"refId" validate:"required"`
	Qty              int        `json:"qty" validate:"gte=1"`
	Adjustment       int64      `json:"adjustment"`
	AdjustmentReason string     `json:"adjustmentReason"`
	StylistID        string     `json:"stylistId"`
	ClientType       ClientType `json:"clientType" validate:"omitempty,oneof=N R TR"`
	CommissionerID   string     `json:"commissionerId"`
}

// CreateBillRequest is the POS submission payload.
type CreateBillRequest struct {
	ReceiptNumber  string        `json:"receiptNumber" validate:"required"`
	ClientID       string        `json:"clientId"`
	ClientName     string        `json:"clientName"`
	ClientEmail    string        `json:"clientEmail" validate:"omitempty,email"`
	Items          []LineRequest `json:"items" validate:"required,dive"`
	DiscountKind   DiscountKind  `json:"discountKind" validate:"omitempty,oneof=fixed percent"`
	DiscountValue  int64         `json:"discountValue" validate:"gte=0"`
	PromoCode      string        `json:"promoCode"`
	LoyaltyPoints  int64         `json:"loyaltyPoints" validate:"gte=0"`
	PaymentMethod  string        `json:"paymentMethod" validate:"required,oneof=cash card ewallet"`
	AmountReceived int64         `json:"amountReceived" validate:"gte=0"`
}

// BillItem is one persisted line on a bill.
type BillItem struct {
	ID               string                 `json:"id"`
	Position         int                    `json:"position"`
	Kind             ItemKind               `json:"kind"`
	RefID            string                 `json:"refId"`
	Name             string                 `json:"name"`
	Qty              int                    `json:"qty"`
	UnitPrice        Money                  `json:"unitPrice"`
	Adjustment       Money                  `json:"adjustment,omitempty"`
	AdjustmentReason string                 `json:"adjustmentReason,omitempty"`
	StylistID        string                 `json:"stylistId,omitempty"`
	ClientType       ClientType             `json:"clientType,omitempty"`
	Amount           Money                  `json:"amount"`
	CommissionPoints Money                  `json:"commissionPoints,omitempty"`
	CommissionerID   string                 `json:"commissionerId,omitempty"`
	Allocations      []inventory.Allocation `json:"allocations,omitempty"`
}

// Bill is a finalized sale.
type Bill struct {
	ID             string     `json:"id"`
	BranchID       string     `json:"branchId"`
	ReceiptNumber  string     `json:"receiptNumber"`
	ClientID       string     `json:"clientId,omitempty"`
	ClientName     string     `json:"clientName"`
	ClientEmail    string     `json:"clientEmail,omitempty"`
	CashierID      string     `json:"cashierId"`
	Items          []BillItem `json:"items"`
	Totals         Totals     `json:"totals"`
	PromoCode      string     `json:"promoCode,omitempty"`
	LoyaltyPoints  int64      `json:"loyaltyPoints,omitempty"`
	PointsEarned   int64      `json:"pointsEarned,omitempty"`
	PaymentMethod  string     `json:"paymentMethod"`
	AmountReceived Money      `json:"amountReceived,omitempty"`
	ChangeDue      Money      `json:"changeDue,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// Preview is the server-computed quote for an in-progress cart.
type Preview struct {
	Totals          Totals                    `json:"totals"`
	ServiceSubtotal Money                     `json:"serviceSubtotal"`
	ProductSubtotal Money                     `json:"productSubtotal"`
	PromoReason     string                    `json:"promoReason,omitempty"`
	Plans           map[string]inventory.Plan `json:"allocationPlans,omitempty"`
}

// CatalogStore resolves cart line references to authoritative prices.
type CatalogStore interface {
	ServiceByID(ctx context.Context, branchID, id string) (catalog.SalonService, error)
	ProductByID(ctx context.Context, branchID, id string) (catalog.Product, error)
}

// Service turns validated cart submissions into persisted bills. All stock,
// loyalty, and promotion effects happen inside one Postgres transaction.
type Service struct {
	Pool       *pgxpool.Pool
	Catalog    CatalogStore
	Inventory  *inventory.Service
	Promotions *promotion.Service
	Loyalty    *loyalty.Service
	Bus        *events.Bus
	Logger     *zerolog.Logger
	Now        func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// buildLines resolves every submitted line against the catalog. Unknown or
// inactive references are validation failures, not system errors.
func (s *Service) buildLines(ctx context.Context, branchID string, reqs []LineRequest) ([]LineItem, *ValidationError, error) {
	var (
		lines   []LineItem
		invalid ValidationError
	)
	for i, req := range reqs {
		switch req.Kind {
		case KindService:
			sv, err := s.Catalog.ServiceByID(ctx, branchID, req.RefID)
			if err != nil {
				if errors.Is(err, catalog.ErrNotFound) {
					invalid.Reasons = append(invalid.Reasons, fmt.Sprintf("item %d: unknown service", i+1))
					continue
				}
				return nil, nil, err
			}
			lines = append(lines, LineItem{
				Kind:             KindService,
				RefID:            sv.ID,
				Name:             sv.Name,
				BasePrice:        sv.BasePrice,
				Qty:              req.Qty,
				Adjustment:       req.Adjustment,
				AdjustmentReason: req.AdjustmentReason,
				StylistID:        req.StylistID,
				ClientType:       req.ClientType,
			})
		case KindProduct:
			p, err := s.Catalog.ProductByID(ctx, branchID, req.RefID)
			if err != nil {
				if errors.Is(err, catalog.ErrNotFound) {
					invalid.Reasons = append(invalid.Reasons, fmt.Sprintf("item %d: unknown product", i+1))
					continue
				}
				return nil, nil, err
			}
			lines = append(lines, LineItem{
				Kind:           KindProduct,
				RefID:          p.ID,
				Name:           p.Name,
				BasePrice:      p.Price,
				Qty:            req.Qty,
				UnitCost:       p.UnitCost,
				CommissionBps:  p.CommissionBps,
				CommissionerID: req.CommissionerID,
			})
		default:
			invalid.Reasons = append(invalid.Reasons, fmt.Sprintf("item %d: unknown kind %q", i+1, req.Kind))
		}
	}
	if len(invalid.Reasons) > 0 {
		return nil, &invalid, nil
	}
	return lines, nil, nil
}

// validateSubmission applies the register's business rules to a resolved
// cart. Rules that need storage (stock coverage, receipt uniqueness) are
// enforced later inside the transaction.
func validateSubmission(req CreateBillRequest, lines []LineItem) *ValidationError {
	var invalid ValidationError

	if len(lines) == 0 {
		invalid.Reasons = append(invalid.Reasons, "at least one item is required")
	}
	if strings.TrimSpace(req.ReceiptNumber) == "" {
		invalid.Reasons = append(invalid.Reasons, "receipt number is required")
	}

	hasService := false
	for i, line := range lines {
		if line.Kind != KindService {
			continue
		}
		hasService = true
		if line.ClientType == ClientTypeTransfer && strings.TrimSpace(line.StylistID) == "" {
			invalid.Reasons = append(invalid.Reasons,
				fmt.Sprintf("item %d: stylist is required for transfer clients", i+1))
		}
	}
	if hasService && strings.TrimSpace(req.ClientName) == "" {
		invalid.Reasons = append(invalid.Reasons, "client name is required for service bills")
	}

	disc := DiscountSpec{Kind: req.DiscountKind, Value: req.DiscountValue}
	if ConflictingDiscounts(disc, req.LoyaltyPoints, strings.TrimSpace(req.PromoCode) != "") {
		invalid.Reasons = append(invalid.Reasons, "only one discount mechanism may be applied")
	}
	if req.LoyaltyPoints > 0 && strings.TrimSpace(req.ClientID) == "" {
		invalid.Reasons = append(invalid.Reasons, "loyalty redemption requires a registered client")
	}

	if len(invalid.Reasons) > 0 {
		return &invalid
	}
	return nil
}

// resolveDiscounts evaluates the promotion and loyalty inputs into minor
// unit discounts. A rejected promotion is a validation failure.
func (s *Service) resolveDiscounts(ctx context.Context, branchID string, req CreateBillRequest, lines []LineItem) (promo Money, loyaltyMinor Money, promoID string, invalid *ValidationError, err error) {
	if code := strings.TrimSpace(req.PromoCode); code != "" {
		serviceSub, productSub := SplitSubtotals(lines)
		p, reason, perr := s.Promotions.Validate(ctx, branchID, code, req.ClientID)
		if perr != nil {
			return 0, 0, "", nil, perr
		}
		if reason != "" {
			return 0, 0, "", &ValidationError{Reasons: []string{reason}}, nil
		}
		result := promotion.Evaluate(p, serviceSub+productSub, serviceSub, productSub)
		if !result.Valid {
			return 0, 0, "", &ValidationError{Reasons: []string{result.Reason}}, nil
		}
		promo = result.Discount
		promoID = p.ID
	}
	if req.LoyaltyPoints > 0 {
		balance, berr := s.Loyalty.Balance(ctx, branchID, req.ClientID)
		if berr != nil {
			return 0, 0, "", nil, berr
		}
		if req.LoyaltyPoints > balance {
			return 0, 0, "", &ValidationError{Reasons: []string{"not enough loyalty points"}}, nil
		}
		loyaltyMinor = s.Loyalty.DiscountFor(req.LoyaltyPoints)
	}
	return promo, loyaltyMinor, promoID, nil, nil
}

// PreviewBill computes totals and allocation plans for an in-progress cart
// without touching stock.
func (s *Service) PreviewBill(ctx context.Context, branchID string, req CreateBillRequest) (Preview, error) {
	lines, invalid, err := s.buildLines(ctx, branchID, req.Items)
	if err != nil {
		return Preview{}, err
	}
	if invalid != nil {
		return Preview{}, invalid
	}

	var out Preview
	promo, loyaltyMinor, _, invalid, err := s.resolveDiscounts(ctx, branchID, req, lines)
	if err != nil {
		return Preview{}, err
	}
	if invalid != nil {
		// Previews report the promotion problem instead of failing so the
		// register can show it inline.
		out.PromoReason = strings.Join(invalid.Reasons, "; ")
		promo, loyaltyMinor = 0, 0
	}

	disc := DiscountSpec{Kind: req.DiscountKind, Value: req.DiscountValue}
	out.Totals = ComputeTotals(lines, disc, loyaltyMinor, promo)
	out.ServiceSubtotal, out.ProductSubtotal = SplitSubtotals(lines)

	for _, line := range lines {
		if line.Kind != KindProduct {
			continue
		}
		batches, err := s.Inventory.BatchesForSale(ctx, branchID, line.RefID)
		if err != nil {
			return Preview{}, err
		}
		if out.Plans == nil {
			out.Plans = map[string]inventory.Plan{}
		}
		out.Plans[line.RefID] = inventory.Allocate(line.Qty, batches)
	}
	return out, nil
}

// CreateBill validates and persists a sale. On success the bill is
// committed, stock is decremented, loyalty and promotion effects are
// recorded, and a bill.created event is emitted.
func (s *Service) CreateBill(ctx context.Context, branchID, cashierID string, req CreateBillRequest) (Bill, error) {
	if s == nil || s.Pool == nil {
		return Bill{}, errors.New("billing service not configured")
	}
	lines, invalid, err := s.buildLines(ctx, branchID, req.Items)
	if err != nil {
		return Bill{}, err
	}
	if invalid != nil {
		return Bill{}, invalid
	}
	if invalid := validateSubmission(req, lines); invalid != nil {
		return Bill{}, invalid
	}

	promo, loyaltyMinor, promoID, invalid, err := s.resolveDiscounts(ctx, branchID, req, lines)
	if err != nil {
		return Bill{}, err
	}
	if invalid != nil {
		return Bill{}, invalid
	}

	clientName := strings.TrimSpace(req.ClientName)
	if clientName == "" {
		clientName = "Guest"
	}

	disc := DiscountSpec{Kind: req.DiscountKind, Value: req.DiscountValue}
	totals := ComputeTotals(lines, disc, loyaltyMinor, promo)
	if req.PaymentMethod == PaymentCash && req.AmountReceived < totals.Total {
		return Bill{}, &ValidationError{Reasons: []string{"amount received is less than the total"}}
	}

	bill := Bill{
		ID:            uuid.NewString(),
		BranchID:      branchID,
		ReceiptNumber: strings.TrimSpace(req.ReceiptNumber),
		ClientID:      strings.TrimSpace(req.ClientID),
		ClientName:    clientName,
		ClientEmail:   strings.TrimSpace(req.ClientEmail),
		CashierID:     cashierID,
		Totals:        totals,
		PromoCode:     strings.ToUpper(strings.TrimSpace(req.PromoCode)),
		LoyaltyPoints: req.LoyaltyPoints,
		PaymentMethod: req.PaymentMethod,
		CreatedAt:     s.now(),
	}
	if req.PaymentMethod == PaymentCash {
		bill.AmountReceived = req.AmountReceived
		bill.ChangeDue = req.AmountReceived - totals.Total
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Bill{}, fmt.Errorf("begin checkout: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	items, invalid, err := s.allocateAndDecrement(ctx, tx, branchID, lines)
	if err != nil {
		return Bill{}, err
	}
	if invalid != nil {
		return Bill{}, invalid
	}
	bill.Items = items

	if err := insertBill(ctx, tx, bill); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Bill{}, &ValidationError{Reasons: []string{"receipt number already used"}}
		}
		return Bill{}, fmt.Errorf("insert bill: %w", err)
	}
	if err := insertItems(ctx, tx, bill.ID, items); err != nil {
		return Bill{}, fmt.Errorf("insert bill items: %w", err)
	}

	if req.LoyaltyPoints > 0 {
		if err := s.Loyalty.RedeemTx(ctx, tx, branchID, bill.ClientID, req.LoyaltyPoints, bill.ID); err != nil {
			if errors.Is(err, loyalty.ErrInsufficientPoints) {
				return Bill{}, &ValidationError{Reasons: []string{"not enough loyalty points"}}
			}
			return Bill{}, err
		}
	}
	if bill.ClientID != "" {
		if earned := s.Loyalty.PointsFor(totals.Total); earned > 0 {
			if err := s.Loyalty.AccrueTx(ctx, tx, branchID, bill.ClientID, earned, bill.ID); err != nil {
				return Bill{}, err
			}
			bill.PointsEarned = earned
		}
	}
	if promoID != "" {
		if err := promotion.RecordUsage(ctx, tx, promoID, bill.ClientID, bill.ID); err != nil {
			return Bill{}, fmt.Errorf("record promotion usage: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Bill{}, fmt.Errorf("commit checkout: %w", err)
	}

	s.afterCommit(ctx, bill, promoID)
	return bill, nil
}

// allocateAndDecrement locks eligible batches per product line, re-runs the
// allocator against the locked rows, and applies the decrement. Any
// shortfall under lock rejects the submission.
func (s *Service) allocateAndDecrement(ctx context.Context, tx pgx.Tx, branchID string, lines []LineItem) ([]BillItem, *ValidationError, error) {
	var items []BillItem
	for i, line := range lines {
		item := BillItem{
			ID:               uuid.NewString(),
			Position:         i,
			Kind:             line.Kind,
			RefID:            line.RefID,
			Name:             line.Name,
			Qty:              line.Qty,
			UnitPrice:        line.BasePrice,
			Adjustment:       line.Adjustment,
			AdjustmentReason: line.AdjustmentReason,
			StylistID:        line.StylistID,
			ClientType:       line.ClientType,
			Amount:           line.EffectivePrice(),
			CommissionPoints: line.CommissionPoints(),
			CommissionerID:   line.CommissionerID,
		}
		if line.Kind == KindProduct {
			batches, err := s.Inventory.LockBatchesForSale(ctx, tx, branchID, line.RefID)
			if err != nil {
				return nil, nil, err
			}
			plan := inventory.Allocate(line.Qty, batches)
			if plan.Shortfall > 0 {
				if obs.AllocationShortfallTotal != nil {
					obs.AllocationShortfallTotal.Inc()
				}
				return nil, &ValidationError{Reasons: []string{
					fmt.Sprintf("insufficient stock for %s: short by %d", line.Name, plan.Shortfall),
				}}, nil
			}
			if err := s.Inventory.ApplyPlan(ctx, tx, plan); err != nil {
				return nil, nil, err
			}
			item.Allocations = plan.Allocations
		}
		items = append(items, item)
	}
	return items, nil, nil
}

func (s *Service) afterCommit(ctx context.Context, bill Bill, promoID string) {
	if bill.ClientID != "" && (bill.LoyaltyPoints > 0 || bill.PointsEarned > 0) {
		s.Loyalty.Invalidate(ctx, bill.BranchID, bill.ClientID)
	}
	if bill.LoyaltyPoints > 0 && obs.LoyaltyRedeemedPoints != nil {
		obs.LoyaltyRedeemedPoints.Add(float64(bill.LoyaltyPoints))
	}
	if obs.BillsCreatedTotal != nil {
		obs.BillsCreatedTotal.WithLabelValues(bill.PaymentMethod).Inc()
	}
	if obs.BillTotalAmount != nil {
		obs.BillTotalAmount.Observe(float64(bill.Totals.Total))
	}
	if s.Bus == nil {
		return
	}
	s.emit(ctx, events.TopicBillCreated, bill.ID, map[string]any{
		"receiptNumber": bill.ReceiptNumber,
		"branchId":      bill.BranchID,
		"total":         bill.Totals.Total,
	})
	if promoID != "" {
		s.emit(ctx, events.TopicPromotionApplied, bill.ID, map[string]any{
			"promotionId": promoID,
			"code":        bill.PromoCode,
			"branchId":    bill.BranchID,
			"discount":    bill.Totals.PromotionDiscount,
		})
	}
	if bill.LoyaltyPoints > 0 {
		s.emit(ctx, events.TopicLoyaltyRedeemed, bill.ID, map[string]any{
			"clientId": bill.ClientID,
			"branchId": bill.BranchID,
			"points":   bill.LoyaltyPoints,
		})
	}
}

func (s *Service) emit(ctx context.Context, topic, key string, payload map[string]any) {
	if _, err := s.Bus.Emit(ctx, topic, key, payload); err != nil && s.Logger != nil {
		s.Logger.Error().Err(err).Str("topic", topic).Str("bill_id", key).Msg("emit event")
	}
}

func insertBill(ctx context.Context, tx pgx.Tx, b Bill) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO bills
			(id, branch_id, receipt_number, client_id, client_name, client_email, cashier_id,
			 subtotal, discount_amount, promotion_discount, loyalty_discount, total,
			 promo_code, loyalty_points, points_earned, payment_method, amount_received, change_due, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), $7,
			 $8, $9, $10, $11, $12,
			 NULLIF($13, ''), $14, $15, $16, $17, $18, $19)`,
		b.ID, b.BranchID, b.ReceiptNumber, b.ClientID, b.ClientName, b.ClientEmail, b.CashierID,
		b.Totals.Subtotal, b.Totals.DiscountAmount, b.Totals.PromotionDiscount,
		b.Totals.LoyaltyDiscount, b.Totals.Total,
		b.PromoCode, b.LoyaltyPoints, b.PointsEarned, b.PaymentMethod, b.AmountReceived, b.ChangeDue, b.CreatedAt)
	return err
}

func insertItems(ctx context.Context, tx pgx.Tx, billID string, items []BillItem) error {
	for _, it := range items {
		_, err := tx.Exec(ctx,
			`INSERT INTO bill_items
				(id, bill_id, position, kind, ref_id, name, qty, unit_price, adjustment, adjustment_reason,
				 stylist_id, client_type, amount, commission_points, commissioner_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
				 NULLIF($11, ''), NULLIF($12, ''), $13, $14, NULLIF($15, ''))`,
			it.ID, billID, it.Position, it.Kind, it.RefID, it.Name, it.Qty, it.UnitPrice,
			it.Adjustment, it.AdjustmentReason, it.StylistID, string(it.ClientType),
			it.Amount, it.CommissionPoints, it.CommissionerID)
		if err != nil {
			return err
		}
		for _, alloc := range it.Allocations {
			_, err := tx.Exec(ctx,
				`INSERT INTO bill_item_allocations (bill_item_id, batch_id, batch_number, qty)
				 VALUES ($1, $2, $3, $4)`,
				it.ID, alloc.BatchID, alloc.BatchNumber, alloc.Qty)
			if err != nil {
				return err
			}
		}
	}
	return nil
}
