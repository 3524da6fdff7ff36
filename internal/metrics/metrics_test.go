package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testutilCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	return testutil.ToFloat64(c)
}

func TestHTTPMetricsMiddlewareRecordsStatus(t *testing.T) {
	m := NewHTTPMetrics("test_order_svc")

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("handler wrote status %d, want %d", rec.Code, http.StatusCreated)
	}

	count := testutilCounterValue(t, m.RequestsTotal.WithLabelValues(http.MethodPost, "/orders", "201"))
	if count != 1 {
		t.Fatalf("requests_total counter = %v, want 1", count)
	}
}

func TestHTTPMetricsMiddlewareSkipsMetricsEndpoint(t *testing.T) {
	m := NewHTTPMetrics("test_inventory_svc")
	called := false
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Fatal("expected the wrapped handler to still run for /metrics")
	}
	count := testutilCounterValue(t, m.RequestsTotal.WithLabelValues(http.MethodGet, "/metrics", "200"))
	if count != 0 {
		t.Fatalf("requests_total counter for /metrics = %v, want 0 (should be skipped)", count)
	}
}

func TestHTTPMetricsMiddlewareDefaultsStatusOK(t *testing.T) {
	m := NewHTTPMetrics("test_payments_svc")
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// handler never calls WriteHeader explicitly
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	count := testutilCounterValue(t, m.RequestsTotal.WithLabelValues(http.MethodGet, "/healthz", "200"))
	if count != 1 {
		t.Fatalf("requests_total counter = %v, want 1 (implicit 200)", count)
	}
}
