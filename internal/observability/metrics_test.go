package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveCounters(t *testing.T) {
	m := NewMetrics()

	m.ObserveDispense("committed")
	m.ObserveDispense("committed")
	m.ObserveDispense("insufficient")
	m.ObserveChannelEvent("applied")

	require.Equal(t, 2.0, testutil.ToFloat64(m.dispenseTotal.WithLabelValues("committed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.dispenseTotal.WithLabelValues("insufficient")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.channelTotal.WithLabelValues("applied")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveDispense("committed")
	m.ObserveChannelEvent("applied")
	require.NotNil(t, m.Handler())

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	require.NotNil(t, m.Middleware(next))
}

func TestMiddlewareCountsRequests(t *testing.T) {
	m := NewMetrics()
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("unknown", "418")))
}

func TestMetricsEndpointExposesRegistry(t *testing.T) {
	m := NewMetrics()
	m.ObserveDispense("backorder")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "dispensary_dispense_total")
}
