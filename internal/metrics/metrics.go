package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/alecgard/venuedesk/internal/docstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metric collectors for venuedesk.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Document store metrics.
	StoreOpsTotal      *prometheus.CounterVec
	StoreOpDuration    *prometheus.HistogramVec
	StoreActiveWatches prometheus.Gauge

	// Authorization metrics.
	PolicyDecisionsTotal *prometheus.CounterVec

	// Rate limiting.
	RateLimitRejectionsTotal *prometheus.CounterVec

	// Auth metrics.
	AuthFailuresTotal  *prometheus.CounterVec
	AuthSuccessesTotal *prometheus.CounterVec

	// Server lifecycle.
	ServerStartTime prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "venuedesk_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"surface", "method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "venuedesk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"surface", "method", "path_pattern"}),

		HTTPResponseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "venuedesk_http_response_size_bytes",
			Help:    "HTTP response size in bytes.",
			Buckets: prometheus.ExponentialBuckets(100, 10, 6),
		}, []string{"surface", "method", "path_pattern"}),

		StoreOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "venuedesk_store_operations_total",
			Help: "Total number of document store operations.",
		}, []string{"op", "result"}),

		StoreOpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "venuedesk_store_operation_duration_seconds",
			Help:    "Document store operation duration in seconds.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"op"}),

		StoreActiveWatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "venuedesk_store_active_watches",
			Help: "Number of live document subscriptions.",
		}),

		PolicyDecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "venuedesk_policy_decisions_total",
			Help: "Total number of authorization decisions.",
		}, []string{"op", "kind", "decision"}),

		RateLimitRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "venuedesk_ratelimit_rejections_total",
			Help: "Total number of rate limit rejections.",
		}, []string{"scope"}),

		AuthFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "venuedesk_auth_failures_total",
			Help: "Total number of authentication failures.",
		}, []string{"auth_type"}),

		AuthSuccessesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "venuedesk_auth_successes_total",
			Help: "Total number of successful authentications.",
		}, []string{"auth_type"}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "venuedesk_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	// Register all metrics.
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.StoreOpsTotal,
		m.StoreOpDuration,
		m.StoreActiveWatches,
		m.PolicyDecisionsTotal,
		m.RateLimitRejectionsTotal,
		m.AuthFailuresTotal,
		m.AuthSuccessesTotal,
		m.ServerStartTime,
	)

	m.ServerStartTime.Set(float64(time.Now().Unix()))

	// Register Go runtime and process collectors.
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterDBPool exposes the pool statistics read by stat on every scrape.
func (m *Metrics) RegisterDBPool(stat PoolStatFunc) {
	m.registry.MustRegister(newPoolCollector(stat))
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(surface, method, pattern string, status int, d time.Duration, size int) {
	m.HTTPRequestsTotal.WithLabelValues(surface, method, pattern, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(surface, method, pattern).Observe(d.Seconds())
	m.HTTPResponseSize.WithLabelValues(surface, method, pattern).Observe(float64(size))
}

// ObserveStoreOp implements docstore.Observer.
func (m *Metrics) ObserveStoreOp(op string, d time.Duration, err error) {
	m.StoreOpsTotal.WithLabelValues(op, storeResult(err)).Inc()
	m.StoreOpDuration.WithLabelValues(op).Observe(d.Seconds())
}

// WatchStarted implements docstore.Observer.
func (m *Metrics) WatchStarted() { m.StoreActiveWatches.Inc() }

// WatchStopped implements docstore.Observer.
func (m *Metrics) WatchStopped() { m.StoreActiveWatches.Dec() }

func storeResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, docstore.ErrNotFound):
		return "not_found"
	case errors.Is(err, docstore.ErrPermissionDenied):
		return "denied"
	case errors.Is(err, docstore.ErrAlreadyExists):
		return "conflict"
	}
	return "error"
}

// RecordPolicyDecision implements policy.Recorder.
func (m *Metrics) RecordPolicyDecision(op, kind string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	m.PolicyDecisionsTotal.WithLabelValues(op, kind, decision).Inc()
}

// IncAuthFailure increments the auth failure counter for the given auth type.
func (m *Metrics) IncAuthFailure(authType string) {
	m.AuthFailuresTotal.WithLabelValues(authType).Inc()
}

// IncAuthSuccess increments the auth success counter for the given auth type.
func (m *Metrics) IncAuthSuccess(authType string) {
	m.AuthSuccessesTotal.WithLabelValues(authType).Inc()
}

// IncRateLimitRejection increments the rate limit rejection counter.
func (m *Metrics) IncRateLimitRejection(scope string) {
	m.RateLimitRejectionsTotal.WithLabelValues(scope).Inc()
}
