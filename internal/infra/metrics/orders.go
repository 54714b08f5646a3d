package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		orderTransitionsTotal,
		compensationWarningsTotal,
		subscriptionEventsTotal,
	)
}

var (
	orderTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Order state machine transitions, labeled by target state.",
		},
		[]string{"target"},
	)

	compensationWarningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compensation_warnings_total",
			Help: "Best-effort side effects that failed and were surfaced as warnings.",
		},
		[]string{"step"},
	)

	subscriptionEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_events_total",
			Help: "Subscription lifecycle events (activated/canceled/terminated).",
		},
		[]string{"event"},
	)
)

func IncOrderTransition(target string) {
	orderTransitionsTotal.WithLabelValues(norm(target)).Inc()
}

func IncCompensationWarning(step string) {
	compensationWarningsTotal.WithLabelValues(norm(step)).Inc()
}

func IncSubscriptionEvent(event string) {
	subscriptionEventsTotal.WithLabelValues(norm(event)).Inc()
}
