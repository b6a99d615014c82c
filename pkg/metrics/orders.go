package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeEmptyCart  = "empty_cart"
	OutcomeNotFound   = "not_found"
	OutcomeValidation = "validation"
	OutcomeConflict   = "conflict"
	OutcomeRejected   = "rejected"
	OutcomeError      = "error"
)

// OrderMetrics tracks checkout attempts and status transitions.
type OrderMetrics struct {
	checkouts   *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	retries     prometheus.Counter
	transitions *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics. A nil registerer yields a no-op recorder.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkouts_total",
		Help:      "Checkout attempts by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "checkout_duration_seconds",
		Help:      "Checkout latency including retries.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"outcome"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_retries_total",
		Help:      "Checkout transactions replayed after serialization failures or deadlocks.",
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_transitions_total",
		Help:      "Order status transition attempts.",
	}, []string{"from", "to", "outcome"})
	reg.MustRegister(checkouts, duration, retries, transitions)
	return &OrderMetrics{
		checkouts:   checkouts,
		duration:    duration,
		retries:     retries,
		transitions: transitions,
	}
}

// ObserveCheckout records one finished checkout call.
func (m *OrderMetrics) ObserveCheckout(outcome string, elapsed time.Duration) {
	if m == nil || m.checkouts == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	m.checkouts.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// IncCheckoutRetry counts one replayed checkout transaction.
func (m *OrderMetrics) IncCheckoutRetry() {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.Inc()
}

// ObserveTransition records a status change attempt.
func (m *OrderMetrics) ObserveTransition(from, to, outcome string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to), normalizeLabel(outcome)).Inc()
}
