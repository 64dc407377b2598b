package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound indicates the catalog entry does not exist or is inactive.
var ErrNotFound = errors.New("catalog: not found")

// SalonService is a bookable treatment offered at a branch.
type SalonService struct {
	ID          string `json:"id"`
	BranchID    string `json:"branchId"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	BasePrice   int64  `json:"basePrice"`
	DurationMin int    `json:"durationMinutes"`
	Status      string `json:"status"`
}

// Product is a retail item sold over the counter.
type Product struct {
	ID            string `json:"id"`
	BranchID      string `json:"branchId"`
	Name          string `json:"name"`
	Price         int64  `json:"price"`
	UnitCost      int64  `json:"unitCost"`
	CommissionBps int    `json:"commissionBps"`
	Status        string `json:"status"`
}

// Service serves the branch catalog. Lists are cached in Redis because the
// register reloads them on every new bill; single lookups during checkout
// always hit Postgres so prices are authoritative.
type Service struct {
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	CacheTTL time.Duration
}

func servicesKey(branchID string) string { return "catalog:services:" + branchID }
func productsKey(branchID string) string { return "catalog:products:" + branchID }

func (s *Service) ttl() time.Duration {
	if s.CacheTTL > 0 {
		return s.CacheTTL
	}
	return 5 * time.Minute
}

// Services lists active treatments at a branch.
func (s *Service) Services(ctx context.Context, branchID string) ([]SalonService, error) {
	if s == nil {
		return nil, errors.New("catalog service not configured")
	}
	if s.Redis != nil {
		if raw, err := s.Redis.Get(ctx, servicesKey(branchID)).Bytes(); err == nil {
			var cached []SalonService
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}
	if s.Pool == nil {
		return nil, errors.New("catalog service not configured")
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT id, branch_id, name, category, base_price, duration_minutes, status
		 FROM salon_services
		 WHERE branch_id = $1 AND status = 'active'
		 ORDER BY category, name`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SalonService
	for rows.Next() {
		var sv SalonService
		if err := rows.Scan(&sv.ID, &sv.BranchID, &sv.Name, &sv.Category,
			&sv.BasePrice, &sv.DurationMin, &sv.Status); err != nil {
			return nil, err
		}
		out = append(out, sv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.cache(ctx, servicesKey(branchID), out)
	return out, nil
}

// Products lists active retail products at a branch.
func (s *Service) Products(ctx context.Context, branchID string) ([]Product, error) {
	if s == nil {
		return nil, errors.New("catalog service not configured")
	}
	if s.Redis != nil {
		if raw, err := s.Redis.Get(ctx, productsKey(branchID)).Bytes(); err == nil {
			var cached []Product
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}
	if s.Pool == nil {
		return nil, errors.New("catalog service not configured")
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT id, branch_id, name, price, unit_cost, commission_bps, status
		 FROM products
		 WHERE branch_id = $1 AND status = 'active'
		 ORDER BY name`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.BranchID, &p.Name, &p.Price,
			&p.UnitCost, &p.CommissionBps, &p.Status); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.cache(ctx, productsKey(branchID), out)
	return out, nil
}

// ServiceByID loads one active treatment. Checkout uses this so line prices
// come from the catalog, never from the client payload.
func (s *Service) ServiceByID(ctx context.Context, branchID, id string) (SalonService, error) {
	var sv SalonService
	err := s.Pool.QueryRow(ctx,
		`SELECT id, branch_id, name, category, base_price, duration_minutes, status
		 FROM salon_services
		 WHERE id = $1 AND branch_id = $2 AND status = 'active'`, id, branchID).
		Scan(&sv.ID, &sv.BranchID, &sv.Name, &sv.Category, &sv.BasePrice, &sv.DurationMin, &sv.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SalonService{}, ErrNotFound
		}
		return SalonService{}, err
	}
	return sv, nil
}

// ProductByID loads one active product.
func (s *Service) ProductByID(ctx context.Context, branchID, id string) (Product, error) {
	var p Product
	err := s.Pool.QueryRow(ctx,
		`SELECT id, branch_id, name, price, unit_cost, commission_bps, status
		 FROM products
		 WHERE id = $1 AND branch_id = $2 AND status = 'active'`, id, branchID).
		Scan(&p.ID, &p.BranchID, &p.Name, &p.Price, &p.UnitCost, &p.CommissionBps, &p.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

// Invalidate drops the cached catalog lists for a branch.
func (s *Service) Invalidate(ctx context.Context, branchID string) {
	if s == nil || s.Redis == nil {
		return
	}
	_ = s.Redis.Del(ctx, servicesKey(branchID), productsKey(branchID)).Err()
}

func (s *Service) cache(ctx context.Context, key string, v any) {
	if s.Redis == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = s.Redis.Set(ctx, key, raw, s.ttl()).Err()
}
