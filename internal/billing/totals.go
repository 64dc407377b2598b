package billing

// Money represents a monetary value stored in minor units.
type Money = int64

// ItemKind discriminates the two kinds of sellable cart lines.
type ItemKind string

const (
	// KindService is a salon service performed by a stylist.
	KindService ItemKind = "service"
	// KindProduct is a retail product sold over the counter.
	KindProduct ItemKind = "product"
)

// ClientType tags a service line with how the client relates to the stylist.
type ClientType string

const (
	// ClientTypeNew marks a first-visit client.
	ClientTypeNew ClientType = "N"
	// ClientTypeRegular marks a returning client.
	ClientTypeRegular ClientType = "R"
	// ClientTypeTransfer marks a client transferred from another stylist.
	ClientTypeTransfer ClientType = "TR"
)

// LineItem is one entry in a POS cart, either a service performed or a
// product sold. Product-only and service-only fields are zero for the
// other kind.
type LineItem struct {
	Kind      ItemKind
	RefID     string
	Name      string
	BasePrice Money
	Qty       int

	// Service lines only.
	Adjustment       Money
	AdjustmentReason string
	StylistID        string
	ClientType       ClientType

	// Product lines only.
	UnitCost       Money
	CommissionBps  int
	CommissionerID string
}

// EffectivePrice returns the amount this line contributes to the subtotal.
// Services price as (base + adjustment) per unit; products as base per unit.
func (it LineItem) EffectivePrice() Money {
	qty := it.Qty
	if qty < 1 {
		qty = 1
	}
	unit := it.BasePrice
	if it.Kind == KindService {
		unit += it.Adjustment
	}
	if unit < 0 {
		unit = 0
	}
	return unit * Money(qty)
}

// CommissionPoints returns the incentive amount owed to the commissioner
// for a product line: unitCost * qty * commissionBps/10000.
func (it LineItem) CommissionPoints() Money {
	if it.Kind != KindProduct || it.CommissionBps <= 0 || it.UnitCost <= 0 {
		return 0
	}
	qty := it.Qty
	if qty < 1 {
		qty = 1
	}
	return (it.UnitCost * Money(qty) * Money(it.CommissionBps)) / 10000
}

// DiscountKind selects how a manual discount value is interpreted.
type DiscountKind string

const (
	// DiscountFixed treats the value as a flat amount in minor units.
	DiscountFixed DiscountKind = "fixed"
	// DiscountPercent treats the value as basis points of the subtotal.
	DiscountPercent DiscountKind = "percent"
)

// DiscountSpec describes the manual discount entered at the register.
type DiscountSpec struct {
	Kind  DiscountKind
	Value int64
}

// Totals aggregates the computed components of a bill.
type Totals struct {
	Subtotal          Money `json:"subtotal"`
	DiscountAmount    Money `json:"discountAmount"`
	PromotionDiscount Money `json:"promotionDiscount"`
	LoyaltyDiscount   Money `json:"loyaltyDiscount"`
	Total             Money `json:"total"`
}

// ComputeTotals calculates bill totals for the given cart. It is pure and
// total: malformed inputs are coerced (negative values clamp to zero,
// quantities below one count as one) rather than rejected.
//
// loyalty and promo are already expressed in minor units; loyalty is capped
// at the amount still payable after the other discounts so redemption can
// never push the total negative.
func ComputeTotals(items []LineItem, disc DiscountSpec, loyalty Money, promo Money) Totals {
	var subtotal Money
	for _, it := range items {
		subtotal += it.EffectivePrice()
	}

	var discount Money
	switch disc.Kind {
	case DiscountPercent:
		discount = (subtotal * Money(disc.Value)) / 10000
	default:
		discount = Money(disc.Value)
	}
	if discount < 0 {
		discount = 0
	}
	if discount > subtotal {
		discount = subtotal
	}

	if promo < 0 {
		promo = 0
	}
	payable := subtotal - discount - promo
	if payable < 0 {
		payable = 0
	}

	if loyalty < 0 {
		loyalty = 0
	}
	if loyalty > payable {
		loyalty = payable
	}

	total := subtotal - discount - promo - loyalty
	if total < 0 {
		total = 0
	}
	return Totals{
		Subtotal:          subtotal,
		DiscountAmount:    discount,
		PromotionDiscount: promo,
		LoyaltyDiscount:   loyalty,
		Total:             total,
	}
}

// SplitSubtotals returns the service and product portions of the subtotal,
// used as the discount base for scoped promotions.
func SplitSubtotals(items []LineItem) (services Money, products Money) {
	for _, it := range items {
		if it.Kind == KindService {
			services += it.EffectivePrice()
		} else {
			products += it.EffectivePrice()
		}
	}
	return services, products
}

// ConflictingDiscounts reports whether more than one discount mechanism is
// active at once. The register allows a promotion, a manual discount, or a
// loyalty redemption, but never a combination.
func ConflictingDiscounts(disc DiscountSpec, loyalty Money, promoApplied bool) bool {
	active := 0
	if disc.Value > 0 {
		active++
	}
	if loyalty > 0 {
		active++
	}
	if promoApplied {
		active++
	}
	return active > 1
}
