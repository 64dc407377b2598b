package promotion

import "time"

// Kind selects how a promotion's value is interpreted.
type Kind string

const (
	// KindPercent discounts a share of the eligible base, in basis points.
	KindPercent Kind = "percent"
	// KindFixed discounts a flat amount, capped at the eligible base.
	KindFixed Kind = "fixed"
)

// Scope restricts which cart lines a promotion discounts.
type Scope string

const (
	// ScopeAll applies to the full subtotal.
	ScopeAll Scope = "all"
	// ScopeServices applies to service lines only.
	ScopeServices Scope = "services"
	// ScopeProducts applies to product lines only.
	ScopeProducts Scope = "products"
)

// Promotion is a discount rule identified by a code. Usage limits are
// enforced by the Service against recorded usages, not by Evaluate.
type Promotion struct {
	ID             string    `json:"id"`
	Code           string    `json:"code"`
	Title          string    `json:"title"`
	Kind           Kind      `json:"kind"`
	Value          int64     `json:"value"`
	PercentBps     int       `json:"percentBps"`
	Scope          Scope     `json:"appliesTo"`
	MinSpend       int64     `json:"minSpend"`
	UsageLimit     int       `json:"usageLimit"`
	PerClientLimit int       `json:"perClientLimit"`
	ValidFrom      time.Time `json:"validFrom,omitzero"`
	ValidTo        time.Time `json:"validTo,omitzero"`
	BranchID       string    `json:"branchId"`
	Status         string    `json:"status"`
}

// Result reports the outcome of evaluating a promotion against a cart.
// Business-rule failures set Valid to false with a human-readable Reason;
// they are never surfaced as errors.
type Result struct {
	Valid    bool   `json:"valid"`
	Discount int64  `json:"discountAmount"`
	Reason   string `json:"reason,omitempty"`
}

// Reasons returned for business-rule failures.
const (
	ReasonMinSpend      = "minimum spend not met"
	ReasonNotApplicable = "promotion not applicable to cart items"
)

// Evaluate computes the discount a promotion grants for a cart broken down
// into service and product subtotals. It is pure: eligibility that depends
// on storage (usage counts, validity windows) is checked by the Service
// before this is called.
func Evaluate(p Promotion, subtotal, serviceSubtotal, productSubtotal int64) Result {
	if subtotal < p.MinSpend {
		return Result{Valid: false, Reason: ReasonMinSpend}
	}

	base := subtotal
	switch p.Scope {
	case ScopeServices:
		base = serviceSubtotal
	case ScopeProducts:
		base = productSubtotal
	}
	if base <= 0 {
		return Result{Valid: false, Reason: ReasonNotApplicable}
	}

	var discount int64
	switch p.Kind {
	case KindPercent:
		discount = (base * int64(p.PercentBps)) / 10000
	default:
		discount = p.Value
		if discount > base {
			discount = base
		}
	}
	if discount < 0 {
		discount = 0
	}
	return Result{Valid: true, Discount: discount}
}
