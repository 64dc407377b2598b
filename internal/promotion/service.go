package promotion

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates no promotion exists for the given code.
var ErrNotFound = errors.New("promotion: not found")

// Rejection reasons produced by storage-backed eligibility checks. They
// complement the pure Evaluate reasons and surface as user-facing
// validation messages, never as errors.
const (
	ReasonUnknownCode   = "invalid promotion code"
	ReasonInactive      = "promotion is not active"
	ReasonNotStarted    = "promotion is not active yet"
	ReasonExpired       = "promotion has expired"
	ReasonUsageExceeded = "promotion usage limit reached"
	ReasonClientLimit   = "promotion already used by this client"
)

// Store abstracts promotion persistence for the service.
type Store interface {
	GetByCode(ctx context.Context, branchID, code string) (Promotion, error)
	CountUsage(ctx context.Context, promotionID string) (int, error)
	CountUsageByClient(ctx context.Context, promotionID, clientID string) (int, error)
}

// Service validates promotion codes against storage-backed eligibility
// rules before the pure evaluator computes a discount.
type Service struct {
	Store Store
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Validate looks up a code and checks every storage-backed rule: status,
// validity window, global and per-client usage limits. A non-empty reason
// means the code is rejected as a business rule, not a system failure.
func (s *Service) Validate(ctx context.Context, branchID, code, clientID string) (Promotion, string, error) {
	if s == nil || s.Store == nil {
		return Promotion{}, "", errors.New("promotion service not configured")
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Promotion{}, ReasonUnknownCode, nil
	}
	promo, err := s.Store.GetByCode(ctx, branchID, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Promotion{}, ReasonUnknownCode, nil
		}
		return Promotion{}, "", err
	}
	now := s.now()
	if promo.Status != "active" {
		return Promotion{}, ReasonInactive, nil
	}
	if !promo.ValidFrom.IsZero() && promo.ValidFrom.After(now) {
		return Promotion{}, ReasonNotStarted, nil
	}
	if !promo.ValidTo.IsZero() && promo.ValidTo.Before(now) {
		return Promotion{}, ReasonExpired, nil
	}
	if promo.UsageLimit > 0 {
		used, err := s.Store.CountUsage(ctx, promo.ID)
		if err != nil {
			return Promotion{}, "", err
		}
		if used >= promo.UsageLimit {
			return Promotion{}, ReasonUsageExceeded, nil
		}
	}
	if promo.PerClientLimit > 0 && clientID != "" {
		used, err := s.Store.CountUsageByClient(ctx, promo.ID, clientID)
		if err != nil {
			return Promotion{}, "", err
		}
		if used >= promo.PerClientLimit {
			return Promotion{}, ReasonClientLimit, nil
		}
	}
	return promo, "", nil
}

// PgStore implements Store against Postgres.
type PgStore struct {
	Pool *pgxpool.Pool
}

// GetByCode loads a promotion by code, scoped to a branch. Promotions with
// an empty branch_id apply chain-wide.
func (p PgStore) GetByCode(ctx context.Context, branchID, code string) (Promotion, error) {
	const q = `SELECT id, code, title, kind, value, percent_bps, applies_to, min_spend,
			usage_limit, per_client_limit, valid_from, valid_to, branch_id, status
		FROM promotions
		WHERE code = $1 AND (branch_id = $2 OR branch_id = '')`
	var (
		promo Promotion
		from  pgtype.Timestamptz
		to    pgtype.Timestamptz
	)
	err := p.Pool.QueryRow(ctx, q, code, branchID).Scan(
		&promo.ID, &promo.Code, &promo.Title, &promo.Kind, &promo.Value,
		&promo.PercentBps, &promo.Scope, &promo.MinSpend,
		&promo.UsageLimit, &promo.PerClientLimit, &from, &to,
		&promo.BranchID, &promo.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Promotion{}, ErrNotFound
		}
		return Promotion{}, err
	}
	if from.Valid {
		promo.ValidFrom = from.Time
	}
	if to.Valid {
		promo.ValidTo = to.Time
	}
	return promo, nil
}

// CountUsage returns the total number of recorded usages.
func (p PgStore) CountUsage(ctx context.Context, promotionID string) (int, error) {
	var n int
	err := p.Pool.QueryRow(ctx,
		`SELECT count(*) FROM promotion_usages WHERE promotion_id = $1`, promotionID).Scan(&n)
	return n, err
}

// CountUsageByClient returns the number of recorded usages for one client.
func (p PgStore) CountUsageByClient(ctx context.Context, promotionID, clientID string) (int, error) {
	var n int
	err := p.Pool.QueryRow(ctx,
		`SELECT count(*) FROM promotion_usages WHERE promotion_id = $1 AND client_id = $2`,
		promotionID, clientID).Scan(&n)
	return n, err
}

// RecordUsage writes a usage row on the checkout transaction so it commits
// or rolls back with the bill.
func RecordUsage(ctx context.Context, tx pgx.Tx, promotionID, clientID, billID string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO promotion_usages (promotion_id, client_id, bill_id, used_at)
		 VALUES ($1, NULLIF($2, ''), $3, now())`,
		promotionID, clientID, billID)
	return err
}
