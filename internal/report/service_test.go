package report

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestSummaryServesFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := &Service{Redis: client, CacheTTL: time.Minute}
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

	cached := []SalesRow{{Date: "2025-06-01", Bills: 3, Total: 216000}}
	raw, err := json.Marshal(cached)
	require.NoError(t, err)
	mr.Set("report:sales:branch-1:2025-06-01:2025-06-30", string(raw))

	rows, err := svc.Summary(context.Background(), "branch-1", from, to)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 3, rows[0].Bills)
}

func TestParseRangeDefaultsAndValidation(t *testing.T) {
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	h := &Handler{Now: func() time.Time { return now }}

	req := httptest.NewRequest("GET", "/api/v1/admin/reports/sales", nil)
	from, to, err := h.parseRange(req)
	require.NoError(t, err)
	require.Equal(t, now.AddDate(0, 0, -30), from)
	require.Equal(t, now, to)

	req = httptest.NewRequest("GET", "/api/v1/admin/reports/sales?from=2025-06-01&to=2025-06-15", nil)
	from, to, err = h.parseRange(req)
	require.NoError(t, err)
	require.Equal(t, "2025-06-01", from.Format("2006-01-02"))
	require.Equal(t, "2025-06-15", to.Format("2006-01-02"))

	req = httptest.NewRequest("GET", "/api/v1/admin/reports/sales?from=2025-06-15&to=2025-06-01", nil)
	_, _, err = h.parseRange(req)
	require.Error(t, err)

	req = httptest.NewRequest("GET", "/api/v1/admin/reports/sales?from=June", nil)
	_, _, err = h.parseRange(req)
	require.Error(t, err)
}

func TestBuildSalesWorkbook(t *testing.T) {
	rows := []SalesRow{
		{Date: "2025-06-01", Bills: 3, Subtotal: 240000, Discounts: 24000, Total: 216000},
		{Date: "2025-06-02", Bills: 1, Subtotal: 30000, Total: 30000},
	}
	book, err := buildSalesWorkbook(rows)
	require.NoError(t, err)
	t.Cleanup(func() { _ = book.Close() })

	got, err := book.GetCellValue("Sales", "A2")
	require.NoError(t, err)
	require.Equal(t, "2025-06-01", got)

	got, err = book.GetCellValue("Sales", "E3")
	require.NoError(t, err)
	require.Equal(t, "30000", got)
}
