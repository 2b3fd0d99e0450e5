package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRequest("slots/bookings/intent", "ok", 0.2)
	m.ObserveRequest("slots/bookings/intent", "rejected", 0.1)
	m.IncBookingAttempt("live_session", "confirmed")
	m.IncCacheInvalidation("live_session")
	m.IncPaymentUnconfirmed()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIRequests.WithLabelValues("slots/bookings/intent", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BookingAttempts.WithLabelValues("live_session", "confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheInvalidations.WithLabelValues("live_session")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PaymentsUnconfirmed))
	assert.Equal(t, 1, testutil.CollectAndCount(m.APIRequestDuration))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("p", "ok", 1)
		m.IncBookingAttempt("course", "rejected")
		m.IncCacheInvalidation("course")
		m.IncPaymentUnconfirmed()
	})
}
