package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsIngestedTotal,
		paymentsRevenueTotal,
	)
}

var (
	paymentsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_ingested_total",
			Help: "Payment rows persisted by settlement, labeled by product kind.",
		},
		[]string{"kind"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "Total monetary value of settled payments, labeled by currency.",
		},
		[]string{"currency"},
	)
)

func IncPaymentIngested(kind string) {
	paymentsIngestedTotal.WithLabelValues(norm(kind)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}
