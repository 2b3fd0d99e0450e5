package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "brainbridge"

// Metrics holds Prometheus metrics for the booking client.
type Metrics struct {
	// APIRequests counts backend calls by path and outcome kind.
	APIRequests *prometheus.CounterVec

	// APIRequestDuration is the round trip time of backend calls.
	APIRequestDuration *prometheus.HistogramVec

	// BookingAttempts counts finished booking attempts by resource and outcome.
	BookingAttempts *prometheus.CounterVec

	// CacheInvalidations counts listing invalidations after confirmed bookings.
	CacheInvalidations *prometheus.CounterVec

	// PaymentsUnconfirmed counts payments captured without a confirmed booking.
	PaymentsUnconfirmed prometheus.Counter
}

// New creates metrics and registers them with reg.
// A nil reg registers with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		APIRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Count of backend API requests by path and outcome.",
			},
			[]string{"path", "outcome"},
		),

		APIRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "Backend API request duration",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5, 10},
			},
			[]string{"path"},
		),

		BookingAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "booking_attempts_total",
				Help:      "Count of booking attempts by resource and outcome.",
			},
			[]string{"resource", "outcome"},
		),

		CacheInvalidations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_invalidations_total",
				Help:      "Count of listing cache invalidations by resource.",
			},
			[]string{"resource"},
		),

		PaymentsUnconfirmed: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payments_unconfirmed_total",
				Help:      "Count of payments captured without a confirmed booking.",
			},
		),
	}
}

// ObserveRequest records a finished backend call. Safe on a nil receiver.
func (m *Metrics) ObserveRequest(path, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(path, outcome).Inc()
	m.APIRequestDuration.WithLabelValues(path).Observe(seconds)
}

// IncBookingAttempt increments the attempt counter. Safe on a nil receiver.
func (m *Metrics) IncBookingAttempt(resource, outcome string) {
	if m == nil {
		return
	}
	m.BookingAttempts.WithLabelValues(resource, outcome).Inc()
}

// IncCacheInvalidation increments the invalidation counter. Safe on a nil receiver.
func (m *Metrics) IncCacheInvalidation(resource string) {
	if m == nil {
		return
	}
	m.CacheInvalidations.WithLabelValues(resource).Inc()
}

// IncPaymentUnconfirmed increments the unconfirmed payment counter. Safe on a nil receiver.
func (m *Metrics) IncPaymentUnconfirmed() {
	if m == nil {
		return
	}
	m.PaymentsUnconfirmed.Inc()
}
