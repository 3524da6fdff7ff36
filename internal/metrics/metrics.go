package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics contains HTTP-related Prometheus metrics
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// ConsumerMetrics contains per-event-type consumer metrics shared by every
// service that reads off the bus (inventory, order, analytics).
type ConsumerMetrics struct {
	MessagesConsumed *prometheus.CounterVec
	MessagesRetried  *prometheus.CounterVec
	MessagesDeadLettered *prometheus.CounterVec
	HandlerDuration  *prometheus.HistogramVec
}

// BusinessMetrics contains saga-specific business metrics.
type BusinessMetrics struct {
	ReservationsCreated    prometheus.Counter
	ReservationsRejected   prometheus.Counter
	ReservationsReleased   prometheus.Counter
	ReservationsFinalized  prometheus.Counter
	ReservationsExpired    prometheus.Counter
	OrdersCreated          prometheus.Counter
	OrdersFailed           prometheus.Counter
	LowStockSignals        prometheus.Counter
}

// NewHTTPMetrics creates HTTP metrics for a service
func NewHTTPMetrics(serviceName string) *HTTPMetrics {
	return &HTTPMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    serviceName + "_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// NewConsumerMetrics creates consumer-loop metrics for a service.
func NewConsumerMetrics(serviceName string) *ConsumerMetrics {
	return &ConsumerMetrics{
		MessagesConsumed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_messages_consumed_total",
				Help: "Total number of messages consumed, by event type and outcome",
			},
			[]string{"event_type", "outcome"},
		),
		MessagesRetried: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_messages_retried_total",
				Help: "Total number of messages requeued for retry, by event type",
			},
			[]string{"event_type"},
		),
		MessagesDeadLettered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_messages_dead_lettered_total",
				Help: "Total number of messages rejected to the DLQ, by event type",
			},
			[]string{"event_type"},
		),
		HandlerDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    serviceName + "_handler_duration_seconds",
				Help:    "Event handler duration in seconds, by event type",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"event_type"},
		),
	}
}

// NewBusinessMetrics creates the saga's domain metrics.
func NewBusinessMetrics(serviceName string) *BusinessMetrics {
	return &BusinessMetrics{
		ReservationsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_reservations_created_total",
				Help: "Total number of stock reservations created",
			},
		),
		ReservationsRejected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_reservations_rejected_total",
				Help: "Total number of reservation attempts rejected for insufficient stock",
			},
		),
		ReservationsReleased: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_reservations_released_total",
				Help: "Total number of reservations released",
			},
		),
		ReservationsFinalized: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_reservations_finalized_total",
				Help: "Total number of reservations finalized after payment",
			},
		),
		ReservationsExpired: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_reservations_expired_total",
				Help: "Total number of reservations swept by the expirer",
			},
		),
		OrdersCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_orders_created_total",
				Help: "Total number of orders created",
			},
		),
		OrdersFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_orders_failed_total",
				Help: "Total number of orders that ended in the failed state",
			},
		),
		LowStockSignals: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_low_stock_signals_total",
				Help: "Total number of low-stock signals emitted",
			},
		),
	}
}

// RecordHTTPRequest records an HTTP request metric
func (m *HTTPMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordConsumed records a single message outcome (ack, requeue, reject).
func (m *ConsumerMetrics) RecordConsumed(eventType, outcome string, duration time.Duration) {
	m.MessagesConsumed.WithLabelValues(eventType, outcome).Inc()
	m.HandlerDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// RecordRetry records a requeue-for-retry.
func (m *ConsumerMetrics) RecordRetry(eventType string) {
	m.MessagesRetried.WithLabelValues(eventType).Inc()
}

// RecordDeadLetter records a reject-to-DLQ.
func (m *ConsumerMetrics) RecordDeadLetter(eventType string) {
	m.MessagesDeadLettered.WithLabelValues(eventType).Inc()
}

// Middleware wraps an HTTP handler to record HTTPMetrics for every request
// except /metrics itself.
func (m *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(rec.statusCode), time.Since(start))
	})
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *responseRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}
