package common

import "context"

type ctxKey string

const staffKey ctxKey = "auth/staff"

// Staff roles recognised by the API.
const (
	RoleReceptionist  = "receptionist"
	RoleBranchManager = "branch-manager"
	RoleSystemAdmin   = "system-admin"
)

// Staff describes the authenticated staff member attached to a request.
// BranchID scopes every query the request performs; Role gates admin routes.
type Staff struct {
	UserID   string
	Role     string
	BranchID string
}

// WithStaff stores the authenticated staff identity on the provided context.
func WithStaff(ctx context.Context, s Staff) context.Context {
	return context.WithValue(ctx, staffKey, s)
}

// StaffFrom extracts the authenticated staff identity from the context.
func StaffFrom(ctx context.Context) (Staff, bool) {
	v := ctx.Value(staffKey)
	if v == nil {
		return Staff{}, false
	}
	s, ok := v.(Staff)
	return s, ok
}

// UserID extracts the authenticated user identifier from the context if present.
func UserID(ctx context.Context) (string, bool) {
	s, ok := StaffFrom(ctx)
	if !ok || s.UserID == "" {
		return "", false
	}
	return s.UserID, true
}

// BranchID extracts the authenticated staff's branch from the context.
func BranchID(ctx context.Context) (string, bool) {
	s, ok := StaffFrom(ctx)
	if !ok || s.BranchID == "" {
		return "", false
	}
	return s.BranchID, true
}
