package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// SalesRow is one day of sales at a branch.
type SalesRow struct {
	Date           string `json:"date"`
	Bills          int    `json:"bills"`
	Subtotal       int64  `json:"subtotal"`
	Discounts      int64  `json:"discounts"`
	Total          int64  `json:"total"`
	CashTotal      int64  `json:"cashTotal"`
	CommissionPaid int64  `json:"commissionPaid"`
}

// Service aggregates daily sales. Summaries are cached in Redis; finalized
// bills never change, so the only staleness is the current day.
type Service struct {
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	CacheTTL time.Duration
}

func cacheKey(branchID string, from, to time.Time) string {
	return fmt.Sprintf("report:sales:%s:%s:%s", branchID, from.Format("2006-01-02"), to.Format("2006-01-02"))
}

// Summary returns per-day sales for a branch over [from, to].
func (s *Service) Summary(ctx context.Context, branchID string, from, to time.Time) ([]SalesRow, error) {
	if s == nil {
		return nil, errors.New("report service not configured")
	}
	key := cacheKey(branchID, from, to)
	if s.Redis != nil {
		if raw, err := s.Redis.Get(ctx, key).Bytes(); err == nil {
			var cached []SalesRow
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}
	if s.Pool == nil {
		return nil, errors.New("report service not configured")
	}
	const q = `SELECT to_char(b.created_at::date, 'YYYY-MM-DD'),
			count(DISTINCT b.id),
			coalesce(sum(b.subtotal), 0),
			coalesce(sum(b.discount_amount + b.promotion_discount + b.loyalty_discount), 0),
			coalesce(sum(b.total), 0),
			coalesce(sum(b.total) FILTER (WHERE b.payment_method = 'cash'), 0),
			coalesce((SELECT sum(i.commission_points)
				FROM bill_items i
				JOIN bills bb ON bb.id = i.bill_id
				WHERE bb.branch_id = $1 AND bb.created_at::date = b.created_at::date), 0)
		FROM bills b
		WHERE b.branch_id = $1 AND b.created_at >= $2 AND b.created_at < $3
		GROUP BY b.created_at::date
		ORDER BY b.created_at::date`
	rows, err := s.Pool.Query(ctx, q, branchID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SalesRow
	for rows.Next() {
		var r SalesRow
		if err := rows.Scan(&r.Date, &r.Bills, &r.Subtotal, &r.Discounts, &r.Total, &r.CashTotal, &r.CommissionPaid); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if s.Redis != nil {
		ttl := s.CacheTTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		if raw, err := json.Marshal(out); err == nil {
			_ = s.Redis.Set(ctx, key, raw, ttl).Err()
		}
	}
	return out, nil
}
