package events

// Topic constants for domain events emitted by the register and workers.
const (
	TopicBillCreated      = "bill.created"
	TopicStockLow         = "inventory.low_stock"
	TopicPromotionApplied = "promotion.applied"
	TopicLoyaltyRedeemed  = "loyalty.redeemed"
)
