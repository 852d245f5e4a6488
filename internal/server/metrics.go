package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors. Each Server owns its own
// registry so several servers (and tests) can coexist in one process.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	bytesServed     prometheus.Counter
	bytesReceived   prometheus.Counter
	failuresTotal   *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lndp_http_requests_total",
				Help: "Total number of LNDP requests",
			},
			[]string{"endpoint", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lndp_http_request_duration_seconds",
				Help:    "LNDP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		bytesServed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "lndp_bytes_served_total",
				Help: "Document and thumbnail bytes sent to clients",
			},
		),
		bytesReceived: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "lndp_bytes_received_total",
				Help: "Bytes appended to documents by clients",
			},
		),
		failuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lndp_provider_failures_total",
				Help: "Requests that failed, by error category",
			},
			[]string{"category"},
		),
	}
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest records one finished request.
func (m *Metrics) RecordRequest(endpoint string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordFailure counts a failed request by category.
func (m *Metrics) RecordFailure(category string) {
	m.failuresTotal.WithLabelValues(category).Inc()
}

// AddServed adds to the bytes served counter.
func (m *Metrics) AddServed(n int) {
	m.bytesServed.Add(float64(n))
}

// AddReceived adds to the bytes received counter.
func (m *Metrics) AddReceived(n int) {
	m.bytesReceived.Add(float64(n))
}

// statusRecorder captures the status code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// middleware records request count and duration per endpoint.
func (m *Metrics) middleware(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.RecordRequest(endpoint, rec.status, time.Since(start))
	})
}
