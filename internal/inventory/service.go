package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested product or batch could not be located.
var ErrNotFound = errors.New("inventory: not found")

// ScannedProduct is the product resolved from a batch QR code together with
// its sellable batches.
type ScannedProduct struct {
	ProductID   string  `json:"productId"`
	Name        string  `json:"name"`
	Price       int64   `json:"price"`
	UnitCost    int64   `json:"unitCost"`
	TotalStock  int     `json:"totalStock"`
	Batches     []Batch `json:"batches"`
	ScannedFrom string  `json:"scannedBatchNumber"`
}

// StockRow is one product's aggregated stock position at a branch.
type StockRow struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	BatchCount  int    `json:"batchCount"`
	TotalStock  int    `json:"totalStock"`
}

// Service answers stock questions for the register and performs the
// authoritative batch decrement during checkout.
type Service struct {
	Pool *pgxpool.Pool
}

// BatchesForSale returns the batches eligible for over-the-counter sale of
// a product at a branch: active, not reserved for salon use, with stock
// remaining, in FIFO order.
func (s *Service) BatchesForSale(ctx context.Context, branchID, productID string) ([]Batch, error) {
	if s == nil || s.Pool == nil {
		return nil, errors.New("inventory service not configured")
	}
	const q = `SELECT id, batch_number, remaining_qty, received_date, expiration_date
		FROM stock_batches
		WHERE branch_id = $1 AND product_id = $2
		  AND status = 'active' AND usage_type <> 'salon-use' AND remaining_qty > 0
		ORDER BY batch_number`
	return scanBatches(s.Pool.Query(ctx, q, branchID, productID))
}

// LockBatchesForSale is BatchesForSale inside a transaction with the rows
// locked, so the decrement that follows operates on a consistent snapshot.
func (s *Service) LockBatchesForSale(ctx context.Context, tx pgx.Tx, branchID, productID string) ([]Batch, error) {
	const q = `SELECT id, batch_number, remaining_qty, received_date, expiration_date
		FROM stock_batches
		WHERE branch_id = $1 AND product_id = $2
		  AND status = 'active' AND usage_type <> 'salon-use' AND remaining_qty > 0
		ORDER BY batch_number
		FOR UPDATE`
	return scanBatches(tx.Query(ctx, q, branchID, productID))
}

// ApplyPlan decrements batch quantities per the allocation plan. Must run
// on the same transaction that locked the batches; the guard in the UPDATE
// keeps remaining_qty from ever going negative.
func (s *Service) ApplyPlan(ctx context.Context, tx pgx.Tx, plan Plan) error {
	for _, alloc := range plan.Allocations {
		tag, err := tx.Exec(ctx,
			`UPDATE stock_batches SET remaining_qty = remaining_qty - $1
			 WHERE id = $2 AND remaining_qty >= $1`,
			alloc.Qty, alloc.BatchID,
		)
		if err != nil {
			return fmt.Errorf("decrement batch %s: %w", alloc.BatchID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("decrement batch %s: insufficient stock", alloc.BatchID)
		}
	}
	return nil
}

// ProductByBatchNumber resolves a scanned batch QR code to its product and
// the product's sellable batches at the branch.
func (s *Service) ProductByBatchNumber(ctx context.Context, branchID, batchNumber string) (ScannedProduct, error) {
	if s == nil || s.Pool == nil {
		return ScannedProduct{}, errors.New("inventory service not configured")
	}
	const q = `SELECT p.id, p.name, p.price, p.unit_cost
		FROM stock_batches b
		JOIN products p ON p.id = b.product_id
		WHERE b.branch_id = $1 AND b.batch_number = $2`
	var out ScannedProduct
	err := s.Pool.QueryRow(ctx, q, branchID, batchNumber).Scan(&out.ProductID, &out.Name, &out.Price, &out.UnitCost)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ScannedProduct{}, ErrNotFound
		}
		return ScannedProduct{}, err
	}
	batches, err := s.BatchesForSale(ctx, branchID, out.ProductID)
	if err != nil {
		return ScannedProduct{}, err
	}
	out.Batches = batches
	out.ScannedFrom = batchNumber
	for _, b := range batches {
		out.TotalStock += b.Remaining
	}
	return out, nil
}

// StockReport aggregates sellable stock per product at a branch.
func (s *Service) StockReport(ctx context.Context, branchID string) ([]StockRow, error) {
	if s == nil || s.Pool == nil {
		return nil, errors.New("inventory service not configured")
	}
	const q = `SELECT p.id, p.name, count(b.id), coalesce(sum(b.remaining_qty), 0)
		FROM products p
		LEFT JOIN stock_batches b ON b.product_id = p.id
			AND b.status = 'active' AND b.usage_type <> 'salon-use' AND b.remaining_qty > 0
		WHERE p.branch_id = $1 AND p.status = 'active'
		GROUP BY p.id, p.name
		ORDER BY p.name`
	rows, err := s.Pool.Query(ctx, q, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StockRow
	for rows.Next() {
		var r StockRow
		if err := rows.Scan(&r.ProductID, &r.ProductName, &r.BatchCount, &r.TotalStock); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LowStock returns products whose sellable stock is at or below the threshold.
func (s *Service) LowStock(ctx context.Context, branchID string, threshold int) ([]StockRow, error) {
	report, err := s.StockReport(ctx, branchID)
	if err != nil {
		return nil, err
	}
	var out []StockRow
	for _, r := range report {
		if r.TotalStock <= threshold {
			out = append(out, r)
		}
	}
	return out, nil
}

func scanBatches(rows pgx.Rows, err error) ([]Batch, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Batch
	for rows.Next() {
		var (
			b        Batch
			received pgtype.Timestamptz
			expires  pgtype.Timestamptz
		)
		if err := rows.Scan(&b.ID, &b.BatchNumber, &b.Remaining, &received, &expires); err != nil {
			return nil, err
		}
		if received.Valid {
			b.ReceivedDate = received.Time
		}
		if expires.Valid {
			b.ExpirationDate = expires.Time
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
