package activity

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/salon-pos/internal/common"
	"github.com/noah-isme/salon-pos/internal/obs"
)

// Entry is one recorded staff action.
type Entry struct {
	ID        string          `json:"id"`
	BranchID  string          `json:"branchId"`
	ActorID   string          `json:"actorId,omitempty"`
	ActorRole string          `json:"actorRole,omitempty"`
	Action    string          `json:"action"`
	Resource  string          `json:"resource"`
	Method    string          `json:"method"`
	Path      string          `json:"path"`
	Status    int             `json:"status"`
	IP        string          `json:"ip,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Store persists activity entries.
type Store interface {
	Insert(ctx context.Context, e Entry) error
	List(ctx context.Context, branchID string, limit, offset int) ([]Entry, error)
}

// Service records staff activity for critical register and admin flows.
type Service struct {
	Store        Store
	Enabled      bool
	SamplingRate float64
}

// Record persists one activity entry when recording is enabled.
func (s Service) Record(ctx context.Context, req *http.Request, action, resource, resourceID string, status int, metadata []byte) error {
	if !s.Enabled {
		return nil
	}
	if s.SamplingRate > 0 && s.SamplingRate < 1 && rand.Float64() > s.SamplingRate {
		return nil
	}
	if req == nil {
		return errors.New("activity: request is required")
	}
	if s.Store == nil {
		return errors.New("activity: store not configured")
	}

	route := obs.RoutePatternFromContext(req.Context())
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}
	e := Entry{
		Action:   buildAction(action, req.Method, route),
		Resource: buildResource(resource, route),
		Method:   req.Method,
		Path:     req.URL.Path,
		Status:   status,
		IP:       common.ClientIP(req),
		Metadata: metadata,
	}
	if e.Status == 0 {
		e.Status = http.StatusOK
	}
	if staff, ok := common.StaffFrom(req.Context()); ok {
		e.ActorID = staff.UserID
		e.ActorRole = staff.Role
		e.BranchID = staff.BranchID
	}
	if rid := strings.TrimSpace(req.Header.Get("X-Request-ID")); rid != "" {
		e.RequestID = rid
	}
	if resourceID != "" {
		e.Resource = e.Resource + ":" + resourceID
	}
	return s.Store.Insert(ctx, e)
}

func buildAction(action, method, route string) string {
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		return trimmed
	}
	if route == "" {
		route = "/"
	}
	return strings.ToUpper(strings.TrimSpace(method)) + " " + route
}

func buildResource(resource, route string) string {
	if trimmed := strings.TrimSpace(resource); trimmed != "" {
		return trimmed
	}
	route = strings.Trim(route, " /")
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(route, "/")
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "v1" {
		return strings.Join(segments[2:], ".")
	}
	return strings.ReplaceAll(route, "/", ".")
}

// PgStore implements Store against Postgres.
type PgStore struct {
	Pool *pgxpool.Pool
}

// Insert writes one entry.
func (p PgStore) Insert(ctx context.Context, e Entry) error {
	_, err := p.Pool.Exec(ctx,
		`INSERT INTO activity_logs
			(branch_id, actor_id, actor_role, action, resource, method, path, status, ip, request_id, metadata, created_at)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11, now())`,
		e.BranchID, e.ActorID, e.ActorRole, e.Action, e.Resource,
		e.Method, e.Path, e.Status, e.IP, e.RequestID, e.Metadata)
	return err
}

// List returns entries for a branch, newest first.
func (p PgStore) List(ctx context.Context, branchID string, limit, offset int) ([]Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := p.Pool.Query(ctx,
		`SELECT id, branch_id, coalesce(actor_id::text, ''), actor_role, action, resource,
			method, path, status, coalesce(ip, ''), coalesce(request_id, ''), metadata, created_at
		 FROM activity_logs
		 WHERE branch_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, branchID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.BranchID, &e.ActorID, &e.ActorRole, &e.Action, &e.Resource,
			&e.Method, &e.Path, &e.Status, &e.IP, &e.RequestID, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
