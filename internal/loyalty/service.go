package loyalty

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// ErrInsufficientPoints indicates a redemption asked for more points than
// the client holds.
var ErrInsufficientPoints = errors.New("loyalty: insufficient points")

// Transaction is one ledger entry on a client's loyalty account.
type Transaction struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"clientId"`
	BranchID  string    `json:"branchId"`
	Kind      string    `json:"kind"`
	Points    int64     `json:"points"`
	BillID    string    `json:"billId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Service manages client loyalty balances. Points are held per client and
// branch; points earned at one branch are not redeemable at another.
// Balances live in Postgres with an append-only ledger; reads go through a
// short-lived Redis cache because the register polls the balance while a
// bill is open.
type Service struct {
	Pool       *pgxpool.Pool
	Redis      *redis.Client
	PointValue int64
	EarnBps    int64
	CacheTTL   time.Duration
}

func (s *Service) cacheKey(branchID, clientID string) string {
	return "loyalty:balance:" + branchID + ":" + clientID
}

// DiscountFor converts redeemed points into a money discount.
func (s *Service) DiscountFor(points int64) int64 {
	if points <= 0 {
		return 0
	}
	pv := s.PointValue
	if pv <= 0 {
		pv = 1
	}
	return points * pv
}

// PointsFor converts a bill total into earned points using the configured
// earn rate. A zero rate disables accrual.
func (s *Service) PointsFor(total int64) int64 {
	if total <= 0 || s.EarnBps <= 0 {
		return 0
	}
	pv := s.PointValue
	if pv <= 0 {
		pv = 1
	}
	return total * s.EarnBps / 10000 / pv
}

// Balance returns the client's point balance at one branch, serving from
// cache when fresh. A client with no account has a zero balance.
func (s *Service) Balance(ctx context.Context, branchID, clientID string) (int64, error) {
	if s == nil {
		return 0, errors.New("loyalty service not configured")
	}
	if s.Redis != nil {
		if raw, err := s.Redis.Get(ctx, s.cacheKey(branchID, clientID)).Result(); err == nil {
			if points, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
				return points, nil
			}
		}
	}
	if s.Pool == nil {
		return 0, errors.New("loyalty service not configured")
	}
	var points int64
	err := s.Pool.QueryRow(ctx,
		`SELECT points FROM loyalty_accounts WHERE client_id = $1 AND branch_id = $2`,
		clientID, branchID).Scan(&points)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			points = 0
		} else {
			return 0, err
		}
	}
	if s.Redis != nil {
		ttl := s.CacheTTL
		if ttl <= 0 {
			ttl = time.Minute
		}
		_ = s.Redis.Set(ctx, s.cacheKey(branchID, clientID), strconv.FormatInt(points, 10), ttl).Err()
	}
	return points, nil
}

// RedeemTx deducts points on the checkout transaction. The guard in the
// UPDATE makes over-redemption impossible even under concurrent checkouts.
func (s *Service) RedeemTx(ctx context.Context, tx pgx.Tx, branchID, clientID string, points int64, billID string) error {
	if points <= 0 {
		return nil
	}
	tag, err := tx.Exec(ctx,
		`UPDATE loyalty_accounts SET points = points - $1, updated_at = now()
		 WHERE client_id = $2 AND branch_id = $3 AND points >= $1`,
		points, clientID, branchID)
	if err != nil {
		return fmt.Errorf("redeem points for client %s: %w", clientID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientPoints
	}
	return s.recordTx(ctx, tx, branchID, clientID, "redeem", -points, billID)
}

// AccrueTx credits points on the checkout transaction, creating the account
// on first accrual.
func (s *Service) AccrueTx(ctx context.Context, tx pgx.Tx, branchID, clientID string, points int64, billID string) error {
	if points <= 0 {
		return nil
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO loyalty_accounts (client_id, branch_id, points, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (client_id, branch_id) DO UPDATE
		 SET points = loyalty_accounts.points + EXCLUDED.points, updated_at = now()`,
		clientID, branchID, points)
	if err != nil {
		return fmt.Errorf("accrue points for client %s: %w", clientID, err)
	}
	return s.recordTx(ctx, tx, branchID, clientID, "accrue", points, billID)
}

func (s *Service) recordTx(ctx context.Context, tx pgx.Tx, branchID, clientID, kind string, points int64, billID string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO loyalty_transactions (client_id, branch_id, kind, points, bill_id, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), now())`,
		clientID, branchID, kind, points, billID)
	if err != nil {
		return fmt.Errorf("record loyalty %s for client %s: %w", kind, clientID, err)
	}
	return nil
}

// Invalidate drops the cached balance. Call after a transaction that
// changed the account commits.
func (s *Service) Invalidate(ctx context.Context, branchID, clientID string) {
	if s == nil || s.Redis == nil {
		return
	}
	_ = s.Redis.Del(ctx, s.cacheKey(branchID, clientID)).Err()
}

// History lists the most recent ledger entries for a client at one branch.
func (s *Service) History(ctx context.Context, branchID, clientID string, limit int) ([]Transaction, error) {
	if s == nil || s.Pool == nil {
		return nil, errors.New("loyalty service not configured")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT id, client_id, branch_id, kind, points, coalesce(bill_id, ''), created_at
		 FROM loyalty_transactions
		 WHERE client_id = $1 AND branch_id = $2
		 ORDER BY created_at DESC
		 LIMIT $3`, clientID, branchID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.ClientID, &t.BranchID, &t.Kind, &t.Points, &t.BillID, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
