package promotion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubStore struct {
	promo       Promotion
	getErr      error
	usage       int
	clientUsage int
}

func (s *stubStore) GetByCode(ctx context.Context, branchID, code string) (Promotion, error) {
	if s.getErr != nil {
		return Promotion{}, s.getErr
	}
	return s.promo, nil
}

func (s *stubStore) CountUsage(ctx context.Context, promotionID string) (int, error) {
	return s.usage, nil
}

func (s *stubStore) CountUsageByClient(ctx context.Context, promotionID, clientID string) (int, error) {
	return s.clientUsage, nil
}

func activePromo() Promotion {
	return Promotion{
		ID:         "promo-1",
		Code:       "WELCOME10",
		Kind:       KindPercent,
		PercentBps: 1000,
		Scope:      ScopeAll,
		Status:     "active",
		ValidFrom:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:    time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC),
	}
}

func clockAt(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestValidateActiveCode(t *testing.T) {
	svc := &Service{
		Store: &stubStore{promo: activePromo()},
		Now:   clockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	promo, reason, err := svc.Validate(context.Background(), "branch-1", "welcome10", "client-1")
	require.NoError(t, err)
	require.Empty(t, reason)
	require.Equal(t, "promo-1", promo.ID)
}

func TestValidateUnknownCode(t *testing.T) {
	svc := &Service{Store: &stubStore{getErr: ErrNotFound}}
	_, reason, err := svc.Validate(context.Background(), "branch-1", "NOPE", "")
	require.NoError(t, err)
	require.Equal(t, ReasonUnknownCode, reason)
}

func TestValidateInactive(t *testing.T) {
	p := activePromo()
	p.Status = "inactive"
	svc := &Service{
		Store: &stubStore{promo: p},
		Now:   clockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	_, reason, err := svc.Validate(context.Background(), "branch-1", "WELCOME10", "")
	require.NoError(t, err)
	require.Equal(t, ReasonInactive, reason)
}

func TestValidateOutsideWindow(t *testing.T) {
	svc := &Service{Store: &stubStore{promo: activePromo()}}

	svc.Now = clockAt(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC))
	_, reason, err := svc.Validate(context.Background(), "branch-1", "WELCOME10", "")
	require.NoError(t, err)
	require.Equal(t, ReasonNotStarted, reason)

	svc.Now = clockAt(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	_, reason, err = svc.Validate(context.Background(), "branch-1", "WELCOME10", "")
	require.NoError(t, err)
	require.Equal(t, ReasonExpired, reason)
}

func TestValidateUsageLimitReached(t *testing.T) {
	p := activePromo()
	p.UsageLimit = 5
	svc := &Service{
		Store: &stubStore{promo: p, usage: 5},
		Now:   clockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	_, reason, err := svc.Validate(context.Background(), "branch-1", "WELCOME10", "")
	require.NoError(t, err)
	require.Equal(t, ReasonUsageExceeded, reason)
}

func TestValidatePerClientLimit(t *testing.T) {
	p := activePromo()
	p.PerClientLimit = 1
	store := &stubStore{promo: p, clientUsage: 1}
	svc := &Service{
		Store: store,
		Now:   clockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	_, reason, err := svc.Validate(context.Background(), "branch-1", "WELCOME10", "client-1")
	require.NoError(t, err)
	require.Equal(t, ReasonClientLimit, reason)

	// Anonymous carts cannot be tracked per client, so the limit is skipped.
	_, reason, err = svc.Validate(context.Background(), "branch-1", "WELCOME10", "")
	require.NoError(t, err)
	require.Empty(t, reason)
}
