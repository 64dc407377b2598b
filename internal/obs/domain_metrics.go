package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// BillsCreatedTotal counts finalized bills by payment method.
	BillsCreatedTotal *prometheus.CounterVec
	// BillTotalAmount observes finalized bill totals in minor units.
	BillTotalAmount prometheus.Histogram
	// AllocationShortfallTotal counts allocation previews that could not
	// cover the requested quantity.
	AllocationShortfallTotal prometheus.Counter
	// PromotionsAppliedTotal counts promotion validation outcomes.
	PromotionsAppliedTotal *prometheus.CounterVec
	// LoyaltyRedeemedPoints counts loyalty points redeemed at checkout.
	LoyaltyRedeemedPoints prometheus.Counter
	// ReceiptEmailTotal counts receipt email delivery outcomes.
	ReceiptEmailTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		BillsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bills_created_total",
			Help:      "Count of finalized bills by payment method.",
		}, []string{"payment_method"})
		BillTotalAmount = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bill_total_minor_units",
			Help:      "Distribution of finalized bill totals in minor currency units.",
			Buckets:   []float64{10000, 25000, 50000, 100000, 250000, 500000, 1000000},
		})
		AllocationShortfallTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_allocation_shortfall_total",
			Help:      "Number of allocation requests exceeding available stock.",
		})
		PromotionsAppliedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotions_applied_total",
			Help:      "Count of promotion validation outcomes.",
		}, []string{"result"})
		LoyaltyRedeemedPoints = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loyalty_points_redeemed_total",
			Help:      "Total loyalty points redeemed at checkout.",
		})
		ReceiptEmailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_email_total",
			Help:      "Count of receipt email delivery outcomes.",
		}, []string{"result"})

		mustRegisterCollector(reg, BillsCreatedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BillsCreatedTotal = v
			}
		})
		mustRegisterCollector(reg, BillTotalAmount, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				BillTotalAmount = v
			}
		})
		mustRegisterCollector(reg, AllocationShortfallTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				AllocationShortfallTotal = v
			}
		})
		mustRegisterCollector(reg, PromotionsAppliedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PromotionsAppliedTotal = v
			}
		})
		mustRegisterCollector(reg, LoyaltyRedeemedPoints, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				LoyaltyRedeemedPoints = v
			}
		})
		mustRegisterCollector(reg, ReceiptEmailTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ReceiptEmailTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, replace func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			replace(are.ExistingCollector)
			return
		}
		panic(err)
	}
}
