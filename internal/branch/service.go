package branch

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the branch does not exist.
var ErrNotFound = errors.New("branch: not found")

// Branch is one salon location.
type Branch struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Status  string `json:"status"`
}

// Service manages salon locations.
type Service struct {
	Pool *pgxpool.Pool
}

// List returns all branches, active first.
func (s *Service) List(ctx context.Context) ([]Branch, error) {
	if s == nil || s.Pool == nil {
		return nil, errors.New("branch service not configured")
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT id, name, address, phone, status FROM branches ORDER BY status, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Branch
	for rows.Next() {
		var b Branch
		if err := rows.Scan(&b.ID, &b.Name, &b.Address, &b.Phone, &b.Status); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Get loads one branch by id.
func (s *Service) Get(ctx context.Context, id string) (Branch, error) {
	var b Branch
	err := s.Pool.QueryRow(ctx,
		`SELECT id, name, address, phone, status FROM branches WHERE id = $1`, id).
		Scan(&b.ID, &b.Name, &b.Address, &b.Phone, &b.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Branch{}, ErrNotFound
		}
		return Branch{}, err
	}
	return b, nil
}

// Create registers a new location.
func (s *Service) Create(ctx context.Context, b Branch) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO branches (id, name, address, phone, status) VALUES ($1, $2, $3, $4, $5)`,
		b.ID, b.Name, b.Address, b.Phone, b.Status)
	return err
}

// Update rewrites a branch record.
func (s *Service) Update(ctx context.Context, b Branch) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE branches SET name = $2, address = $3, phone = $4, status = $5 WHERE id = $1`,
		b.ID, b.Name, b.Address, b.Phone, b.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
