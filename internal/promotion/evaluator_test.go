package promotion

import "testing"

func TestEvaluateMinimumSpendRejected(t *testing.T) {
	p := Promotion{Kind: KindPercent, PercentBps: 1000, Scope: ScopeAll, MinSpend: 50000}
	res := Evaluate(p, 30000, 30000, 0)
	if res.Valid {
		t.Fatalf("expected rejection below minimum spend, got %+v", res)
	}
	if res.Reason != ReasonMinSpend {
		t.Fatalf("reason = %q, want %q", res.Reason, ReasonMinSpend)
	}
}

func TestEvaluatePercentAllItems(t *testing.T) {
	p := Promotion{Kind: KindPercent, PercentBps: 1500, Scope: ScopeAll}
	res := Evaluate(p, 80000, 30000, 50000)
	if !res.Valid || res.Discount != 12000 {
		t.Fatalf("got %+v, want valid 12000", res)
	}
}

func TestEvaluateScopedBases(t *testing.T) {
	p := Promotion{Kind: KindPercent, PercentBps: 2000, Scope: ScopeServices}
	res := Evaluate(p, 80000, 30000, 50000)
	if !res.Valid || res.Discount != 6000 {
		t.Fatalf("services scope: got %+v, want 6000", res)
	}

	p.Scope = ScopeProducts
	res = Evaluate(p, 80000, 30000, 50000)
	if !res.Valid || res.Discount != 10000 {
		t.Fatalf("products scope: got %+v, want 10000", res)
	}
}

func TestEvaluateScopedWithNoEligibleLines(t *testing.T) {
	p := Promotion{Kind: KindFixed, Value: 5000, Scope: ScopeProducts}
	res := Evaluate(p, 30000, 30000, 0)
	if res.Valid {
		t.Fatalf("expected rejection for products-only promotion on a service cart, got %+v", res)
	}
	if res.Reason != ReasonNotApplicable {
		t.Fatalf("reason = %q, want %q", res.Reason, ReasonNotApplicable)
	}
}

func TestEvaluateFixedCappedAtBase(t *testing.T) {
	p := Promotion{Kind: KindFixed, Value: 99999, Scope: ScopeServices}
	res := Evaluate(p, 80000, 30000, 50000)
	if !res.Valid || res.Discount != 30000 {
		t.Fatalf("got %+v, want discount capped at 30000", res)
	}
}

func TestEvaluateNegativeValueClampsToZero(t *testing.T) {
	p := Promotion{Kind: KindFixed, Value: -500, Scope: ScopeAll}
	res := Evaluate(p, 10000, 10000, 0)
	if !res.Valid || res.Discount != 0 {
		t.Fatalf("got %+v, want valid zero discount", res)
	}
}
