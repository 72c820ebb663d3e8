package api

import (
	"strconv"
	"time"

	"github.com/SUNET/go-esign/pkg/events"
	"github.com/SUNET/go-esign/pkg/orchestrator"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "go_esign"

// Metrics holds the Prometheus collectors of the API server. Every Metrics
// owns its registry so several instances can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	APIRequestsTotal    *prometheus.CounterVec
	APIRequestDuration  *prometheus.HistogramVec
	APIRequestsInFlight prometheus.Gauge
	ErrorsTotal         *prometheus.CounterVec

	SignOutcomesTotal  *prometheus.CounterVec
	SignDuration       prometheus.Histogram
	CertificatesListed prometheus.Gauge
	TestMode           prometheus.Gauge
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		APIRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "api_requests_total",
			Help:      "Total number of API requests",
		}, []string{"method", "endpoint", "status"}),
		APIRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "api_request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		APIRequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "api_requests_in_flight",
			Help:      "Number of API requests currently being served",
		}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "errors_total",
			Help:      "Total number of errors by type and operation",
		}, []string{"type", "operation"}),
		SignOutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sign_outcomes_total",
			Help:      "Total number of sign outcomes by status",
		}, []string{"status"}),
		SignDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "sign_duration_seconds",
			Help:      "Duration of sign requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		CertificatesListed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "certificates_listed",
			Help:      "Number of certificates returned by the last listing",
		}),
		TestMode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "test_mode",
			Help:      "1 when test mode is on",
		}),
	}

	m.registry.MustRegister(
		m.APIRequestsTotal,
		m.APIRequestDuration,
		m.APIRequestsInFlight,
		m.ErrorsTotal,
		m.SignOutcomesTotal,
		m.SignDuration,
		m.CertificatesListed,
		m.TestMode,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// MetricsMiddleware records request counts, durations and in-flight
// requests. Requests for /metrics are not recorded.
func (m *Metrics) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		m.APIRequestsInFlight.Inc()
		start := time.Now()
		c.Next()
		m.APIRequestsInFlight.Dec()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		m.APIRequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		m.APIRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// RecordError counts an error of errorType during operation.
func (m *Metrics) RecordError(errorType, operation string) {
	m.ErrorsTotal.WithLabelValues(errorType, operation).Inc()
}

// RecordOutcome counts a sign outcome and observes its duration.
func (m *Metrics) RecordOutcome(o orchestrator.Outcome) {
	m.SignOutcomesTotal.WithLabelValues(string(o.Status)).Inc()
	if o.Duration > 0 {
		m.SignDuration.Observe(o.Duration.Seconds())
	}
}

// RecordCertificates sets the number of listed certificates.
func (m *Metrics) RecordCertificates(n int) {
	m.CertificatesListed.Set(float64(n))
}

// RecordTestMode sets the test mode gauge.
func (m *Metrics) RecordTestMode(on bool) {
	if on {
		m.TestMode.Set(1)
		return
	}
	m.TestMode.Set(0)
}

// ObserveOutcomes records every outcome published on b until the returned
// function is called or b is closed. Outcomes published faster than they are
// consumed are coalesced by the broadcaster.
func (m *Metrics) ObserveOutcomes(b *events.Broadcaster[orchestrator.Outcome]) func() {
	ch, cancel := b.Subscribe()
	go func() {
		for o := range ch {
			m.RecordOutcome(o)
		}
	}()
	return cancel
}

// RegisterMetricsEndpoint exposes the registry of m on GET /metrics.
func RegisterMetricsEndpoint(r *gin.Engine, m *Metrics) {
	handler := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	r.GET("/metrics", gin.WrapH(handler))
}
