package billing

import "testing"

func TestComputeTotalsEmptyCart(t *testing.T) {
	got := ComputeTotals(nil, DiscountSpec{}, 0, 0)
	if got != (Totals{}) {
		t.Fatalf("expected zero totals for empty cart, got %+v", got)
	}
}

func TestComputeTotalsEndToEnd(t *testing.T) {
	// Haircut 300.00 + Shampoo 250.00 x2, 10% discount.
	items := []LineItem{
		{Kind: KindService, Name: "Haircut", BasePrice: 30000, Qty: 1},
		{Kind: KindProduct, Name: "Shampoo", BasePrice: 25000, Qty: 2},
	}
	got := ComputeTotals(items, DiscountSpec{Kind: DiscountPercent, Value: 1000}, 0, 0)
	if got.Subtotal != 80000 {
		t.Fatalf("subtotal = %d, want 80000", got.Subtotal)
	}
	if got.DiscountAmount != 8000 {
		t.Fatalf("discount = %d, want 8000", got.DiscountAmount)
	}
	if got.Total != 72000 {
		t.Fatalf("total = %d, want 72000", got.Total)
	}
}

func TestComputeTotalsDiscountClamp(t *testing.T) {
	items := []LineItem{{Kind: KindProduct, BasePrice: 10000, Qty: 1}}
	// 150% discount clamps to the subtotal.
	got := ComputeTotals(items, DiscountSpec{Kind: DiscountPercent, Value: 15000}, 0, 0)
	if got.DiscountAmount != 10000 {
		t.Fatalf("discount = %d, want 10000", got.DiscountAmount)
	}
	if got.Total != 0 {
		t.Fatalf("total = %d, want 0", got.Total)
	}
}

func TestComputeTotalsFixedDiscountExceedingSubtotal(t *testing.T) {
	items := []LineItem{{Kind: KindService, BasePrice: 5000, Qty: 1}}
	got := ComputeTotals(items, DiscountSpec{Kind: DiscountFixed, Value: 9000}, 0, 0)
	if got.DiscountAmount != 5000 || got.Total != 0 {
		t.Fatalf("got discount=%d total=%d, want 5000/0", got.DiscountAmount, got.Total)
	}
}

func TestComputeTotalsLoyaltyClamp(t *testing.T) {
	items := []LineItem{{Kind: KindService, BasePrice: 10000, Qty: 1}}
	// 500 points (50000 minor) against a post-discount payable of 80.00.
	got := ComputeTotals(items, DiscountSpec{Kind: DiscountFixed, Value: 2000}, 50000, 0)
	if got.LoyaltyDiscount != 8000 {
		t.Fatalf("loyalty = %d, want 8000", got.LoyaltyDiscount)
	}
	if got.Total != 0 {
		t.Fatalf("total = %d, want 0", got.Total)
	}
}

func TestComputeTotalsIdempotent(t *testing.T) {
	items := []LineItem{
		{Kind: KindService, BasePrice: 35000, Adjustment: 5000, Qty: 2},
		{Kind: KindProduct, BasePrice: 12000, Qty: 3},
	}
	disc := DiscountSpec{Kind: DiscountPercent, Value: 500}
	first := ComputeTotals(items, disc, 2000, 1000)
	second := ComputeTotals(items, disc, 2000, 1000)
	if first != second {
		t.Fatalf("recomputation differs: %+v vs %+v", first, second)
	}
}

func TestComputeTotalsNeverNegative(t *testing.T) {
	cases := []struct {
		name    string
		items   []LineItem
		disc    DiscountSpec
		loyalty Money
		promo   Money
	}{
		{"huge fixed discount", []LineItem{{Kind: KindProduct, BasePrice: 100, Qty: 1}}, DiscountSpec{Kind: DiscountFixed, Value: 1 << 40}, 0, 0},
		{"huge promo", []LineItem{{Kind: KindService, BasePrice: 100, Qty: 1}}, DiscountSpec{}, 0, 1 << 40},
		{"everything at once", []LineItem{{Kind: KindService, BasePrice: 100, Qty: 1}}, DiscountSpec{Kind: DiscountPercent, Value: 20000}, 1 << 40, 1 << 40},
		{"negative inputs", []LineItem{{Kind: KindProduct, BasePrice: 100, Qty: -3}}, DiscountSpec{Kind: DiscountFixed, Value: -50}, -10, -10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeTotals(tc.items, tc.disc, tc.loyalty, tc.promo)
			if got.Total < 0 {
				t.Fatalf("total went negative: %+v", got)
			}
			if got.DiscountAmount < 0 || got.LoyaltyDiscount < 0 || got.PromotionDiscount < 0 {
				t.Fatalf("negative component: %+v", got)
			}
		})
	}
}

func TestEffectivePriceCoercesQuantity(t *testing.T) {
	it := LineItem{Kind: KindProduct, BasePrice: 2500, Qty: 0}
	if got := it.EffectivePrice(); got != 2500 {
		t.Fatalf("qty 0 should price as one unit, got %d", got)
	}
}

func TestServiceAdjustmentAppliesPerUnit(t *testing.T) {
	it := LineItem{Kind: KindService, BasePrice: 30000, Adjustment: 5000, Qty: 2}
	if got := it.EffectivePrice(); got != 70000 {
		t.Fatalf("effective price = %d, want 70000", got)
	}
	// Negative adjustment beyond the base clamps the unit price at zero.
	it = LineItem{Kind: KindService, BasePrice: 1000, Adjustment: -2000, Qty: 1}
	if got := it.EffectivePrice(); got != 0 {
		t.Fatalf("effective price = %d, want 0", got)
	}
}

func TestCommissionPoints(t *testing.T) {
	it := LineItem{Kind: KindProduct, UnitCost: 10000, Qty: 2, CommissionBps: 500}
	if got := it.CommissionPoints(); got != 1000 {
		t.Fatalf("commission = %d, want 1000", got)
	}
	svc := LineItem{Kind: KindService, UnitCost: 10000, Qty: 2, CommissionBps: 500}
	if got := svc.CommissionPoints(); got != 0 {
		t.Fatalf("services earn no product commission, got %d", got)
	}
}

func TestConflictingDiscounts(t *testing.T) {
	if ConflictingDiscounts(DiscountSpec{Kind: DiscountFixed, Value: 100}, 0, false) {
		t.Fatal("single mechanism should not conflict")
	}
	if !ConflictingDiscounts(DiscountSpec{Kind: DiscountFixed, Value: 100}, 50, false) {
		t.Fatal("discount + loyalty should conflict")
	}
	if ConflictingDiscounts(DiscountSpec{}, 0, true) {
		t.Fatal("promotion alone should not conflict")
	}
	if !ConflictingDiscounts(DiscountSpec{Kind: DiscountPercent, Value: 500}, 0, true) {
		t.Fatal("discount + promotion should conflict")
	}
}

func TestSplitSubtotals(t *testing.T) {
	items := []LineItem{
		{Kind: KindService, BasePrice: 30000, Qty: 1},
		{Kind: KindProduct, BasePrice: 25000, Qty: 2},
	}
	services, products := SplitSubtotals(items)
	if services != 30000 || products != 50000 {
		t.Fatalf("split = %d/%d, want 30000/50000", services, products)
	}
}
