package billing

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/salon-pos/internal/catalog"
	"github.com/noah-isme/salon-pos/internal/events"
	"github.com/noah-isme/salon-pos/internal/loyalty"
	"github.com/noah-isme/salon-pos/internal/promotion"
)

type stubCatalog struct {
	services map[string]catalog.SalonService
	products map[string]catalog.Product
}

func (s stubCatalog) ServiceByID(ctx context.Context, branchID, id string) (catalog.SalonService, error) {
	sv, ok := s.services[id]
	if !ok {
		return catalog.SalonService{}, catalog.ErrNotFound
	}
	return sv, nil
}

func (s stubCatalog) ProductByID(ctx context.Context, branchID, id string) (catalog.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

type stubPromoStore struct {
	promo promotion.Promotion
	err   error
}

func (s stubPromoStore) GetByCode(ctx context.Context, branchID, code string) (promotion.Promotion, error) {
	if s.err != nil {
		return promotion.Promotion{}, s.err
	}
	return s.promo, nil
}

func (s stubPromoStore) CountUsage(ctx context.Context, promotionID string) (int, error) {
	return 0, nil
}

func (s stubPromoStore) CountUsageByClient(ctx context.Context, promotionID, clientID string) (int, error) {
	return 0, nil
}

func testCatalog() stubCatalog {
	return stubCatalog{
		services: map[string]catalog.SalonService{
			"svc-haircut": {ID: "svc-haircut", Name: "Haircut", BasePrice: 30000, Status: "active"},
		},
		products: map[string]catalog.Product{
			"prod-shampoo": {ID: "prod-shampoo", Name: "Shampoo", Price: 25000, UnitCost: 15000, CommissionBps: 500, Status: "active"},
		},
	}
}

func loyaltyWithCachedBalance(t *testing.T, branchID, clientID string, points int64) *loyalty.Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Set("loyalty:balance:"+branchID+":"+clientID, strconv.FormatInt(points, 10))
	return &loyalty.Service{Redis: client, PointValue: 100, CacheTTL: time.Minute}
}

func TestBuildLinesResolvesCatalogPrices(t *testing.T) {
	svc := &Service{Catalog: testCatalog()}
	lines, invalid, err := svc.buildLines(context.Background(), "branch-1", []LineRequest{
		{Kind: KindService, RefID: "svc-haircut", Qty: 1, Adjustment: 5000},
		{Kind: KindProduct, RefID: "prod-shampoo", Qty: 2, CommissionerID: "stylist-2"},
	})
	require.NoError(t, err)
	require.Nil(t, invalid)
	require.Len(t, lines, 2)
	require.Equal(t, int64(30000), lines[0].BasePrice)
	require.Equal(t, int64(35000), lines[0].EffectivePrice())
	require.Equal(t, int64(15000), lines[1].UnitCost)
	require.Equal(t, int64(1500), lines[1].CommissionPoints())
}

func TestBuildLinesRejectsUnknownRefs(t *testing.T) {
	svc := &Service{Catalog: testCatalog()}
	_, invalid, err := svc.buildLines(context.Background(), "branch-1", []LineRequest{
		{Kind: KindService, RefID: "svc-missing", Qty: 1},
		{Kind: "voucher", RefID: "x", Qty: 1},
	})
	require.NoError(t, err)
	require.NotNil(t, invalid)
	require.Len(t, invalid.Reasons, 2)
}

func TestValidateSubmissionRules(t *testing.T) {
	serviceLine := LineItem{Kind: KindService, RefID: "svc-haircut", BasePrice: 30000, Qty: 1}
	productLine := LineItem{Kind: KindProduct, RefID: "prod-shampoo", BasePrice: 25000, Qty: 1}

	cases := []struct {
		name   string
		req    CreateBillRequest
		lines  []LineItem
		reason string
	}{
		{
			name:   "empty cart",
			req:    CreateBillRequest{ReceiptNumber: "R-1", PaymentMethod: PaymentCard},
			reason: "at least one item is required",
		},
		{
			name:   "missing receipt number",
			req:    CreateBillRequest{PaymentMethod: PaymentCard},
			lines:  []LineItem{productLine},
			reason: "receipt number is required",
		},
		{
			name:   "service bill without client name",
			req:    CreateBillRequest{ReceiptNumber: "R-1", PaymentMethod: PaymentCard},
			lines:  []LineItem{serviceLine},
			reason: "client name is required for service bills",
		},
		{
			name: "transfer client without stylist",
			req:  CreateBillRequest{ReceiptNumber: "R-1", ClientName: "Ana", PaymentMethod: PaymentCard},
			lines: []LineItem{{
				Kind: KindService, RefID: "svc-haircut", BasePrice: 30000, Qty: 1,
				ClientType: ClientTypeTransfer,
			}},
			reason: "stylist is required for transfer clients",
		},
		{
			name: "stacked discounts",
			req: CreateBillRequest{
				ReceiptNumber: "R-1", PaymentMethod: PaymentCard,
				DiscountKind: DiscountPercent, DiscountValue: 1000, PromoCode: "WELCOME10",
			},
			lines:  []LineItem{productLine},
			reason: "only one discount mechanism may be applied",
		},
		{
			name: "loyalty without client",
			req: CreateBillRequest{
				ReceiptNumber: "R-1", PaymentMethod: PaymentCard, LoyaltyPoints: 10,
			},
			lines:  []LineItem{productLine},
			reason: "loyalty redemption requires a registered client",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			invalid := validateSubmission(tc.req, tc.lines)
			require.NotNil(t, invalid)
			require.Contains(t, invalid.Error(), tc.reason)
		})
	}
}

func TestValidateSubmissionAcceptsProductOnlyGuest(t *testing.T) {
	req := CreateBillRequest{ReceiptNumber: "R-1", PaymentMethod: PaymentCash, AmountReceived: 25000}
	lines := []LineItem{{Kind: KindProduct, RefID: "prod-shampoo", BasePrice: 25000, Qty: 1}}
	require.Nil(t, validateSubmission(req, lines))
}

func TestResolveDiscountsAppliesPromotion(t *testing.T) {
	svc := &Service{
		Promotions: &promotion.Service{
			Store: stubPromoStore{promo: promotion.Promotion{
				ID: "promo-1", Code: "WELCOME10", Kind: promotion.KindPercent,
				PercentBps: 1000, Scope: promotion.ScopeAll, Status: "active",
			}},
			Now: func() time.Time { return time.Now() },
		},
	}
	lines := []LineItem{{Kind: KindProduct, BasePrice: 50000, Qty: 1}}
	req := CreateBillRequest{PromoCode: "WELCOME10"}

	promo, loyaltyMinor, promoID, invalid, err := svc.resolveDiscounts(context.Background(), "branch-1", req, lines)
	require.NoError(t, err)
	require.Nil(t, invalid)
	require.Equal(t, int64(5000), promo)
	require.Equal(t, int64(0), loyaltyMinor)
	require.Equal(t, "promo-1", promoID)
}

func TestResolveDiscountsRejectsUnknownPromo(t *testing.T) {
	svc := &Service{
		Promotions: &promotion.Service{Store: stubPromoStore{err: promotion.ErrNotFound}},
	}
	req := CreateBillRequest{PromoCode: "NOPE"}
	_, _, _, invalid, err := svc.resolveDiscounts(context.Background(), "branch-1", req, nil)
	require.NoError(t, err)
	require.NotNil(t, invalid)
	require.Contains(t, invalid.Reasons, promotion.ReasonUnknownCode)
}

func TestResolveDiscountsLoyaltyBalance(t *testing.T) {
	svc := &Service{Loyalty: loyaltyWithCachedBalance(t, "branch-1", "client-1", 50)}

	req := CreateBillRequest{ClientID: "client-1", LoyaltyPoints: 30}
	_, loyaltyMinor, _, invalid, err := svc.resolveDiscounts(context.Background(), "branch-1", req, nil)
	require.NoError(t, err)
	require.Nil(t, invalid)
	require.Equal(t, int64(3000), loyaltyMinor)

	req.LoyaltyPoints = 80
	_, _, _, invalid, err = svc.resolveDiscounts(context.Background(), "branch-1", req, nil)
	require.NoError(t, err)
	require.NotNil(t, invalid)
	require.Contains(t, invalid.Reasons, "not enough loyalty points")
}

func TestResolveDiscountsLoyaltyScopedToBranch(t *testing.T) {
	svc := &Service{Loyalty: loyaltyWithCachedBalance(t, "branch-1", "client-1", 50)}

	// Points cached for branch-1 must not satisfy a redemption at branch-2:
	// the balance lookup misses the cache and falls through to storage,
	// which this test does not provide.
	req := CreateBillRequest{ClientID: "client-1", LoyaltyPoints: 30}
	_, _, _, _, err := svc.resolveDiscounts(context.Background(), "branch-2", req, nil)
	require.Error(t, err)
}

func TestAllocateAndDecrementKeepsLineOrder(t *testing.T) {
	svc := &Service{}
	lines := []LineItem{
		{Kind: KindService, RefID: "svc-haircut", Name: "Haircut", BasePrice: 30000, Qty: 1},
		{Kind: KindService, RefID: "svc-color", Name: "Color", BasePrice: 80000, Qty: 1},
		{Kind: KindService, RefID: "svc-blowdry", Name: "Blow dry", BasePrice: 15000, Qty: 1},
	}

	items, invalid, err := svc.allocateAndDecrement(context.Background(), nil, "branch-1", lines)
	require.NoError(t, err)
	require.Nil(t, invalid)
	require.Len(t, items, 3)
	for i, it := range items {
		require.Equal(t, i, it.Position)
		require.Equal(t, lines[i].RefID, it.RefID)
	}
}

type memEventStore struct {
	topics []string
}

func (m *memEventStore) InsertEvent(_ context.Context, topic, aggregateID string, payload []byte) (events.Event, error) {
	m.topics = append(m.topics, topic)
	return events.Event{ID: "ev-" + topic, Topic: topic, AggregateID: aggregateID, Payload: payload, OccurredAt: time.Now()}, nil
}

func TestAfterCommitEmitsDiscountEvents(t *testing.T) {
	store := &memEventStore{}
	svc := &Service{Bus: &events.Bus{Store: store}}

	bill := Bill{
		ID: "bill-1", BranchID: "branch-1", ReceiptNumber: "R-1", ClientID: "client-1",
		PromoCode: "WELCOME10", LoyaltyPoints: 20, PaymentMethod: PaymentCard,
	}
	svc.afterCommit(context.Background(), bill, "promo-1")
	require.Equal(t, []string{
		events.TopicBillCreated,
		events.TopicPromotionApplied,
		events.TopicLoyaltyRedeemed,
	}, store.topics)
}

func TestAfterCommitPlainSaleEmitsBillCreatedOnly(t *testing.T) {
	store := &memEventStore{}
	svc := &Service{Bus: &events.Bus{Store: store}}

	bill := Bill{ID: "bill-1", BranchID: "branch-1", ReceiptNumber: "R-1", PaymentMethod: PaymentCash}
	svc.afterCommit(context.Background(), bill, "")
	require.Equal(t, []string{events.TopicBillCreated}, store.topics)
}
