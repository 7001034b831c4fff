package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets    = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	backendDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	bodySizeBuckets        = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the BFF.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Form session metrics
	SessionsOpenedTotal     *prometheus.CounterVec
	SessionsClosedTotal     *prometheus.CounterVec
	SessionsActive          *prometheus.GaugeVec
	ValidationFailuresTotal *prometheus.CounterVec
	SubmitsIgnoredTotal     *prometheus.CounterVec

	// Mutation metrics
	MutationsTotal   *prometheus.CounterVec
	MutationDuration *prometheus.HistogramVec
	TestRunsTotal    *prometheus.CounterVec
	ToastsTotal      *prometheus.CounterVec

	// Backend metrics
	BackendRequestsTotal       *prometheus.CounterVec
	BackendRequestDuration     *prometheus.HistogramVec
	BackendCircuitBreakerState prometheus.Gauge
	BackendRetriesTotal        prometheus.Counter

	// Cache metrics
	CacheHitsTotal          *prometheus.CounterVec
	CacheMissesTotal        *prometheus.CounterVec
	CacheInvalidationsTotal *prometheus.CounterVec
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autobrr_bff_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "autobrr_bff_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "autobrr_bff_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "autobrr_bff_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Sessions
		SessionsOpenedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autobrr_bff_sessions_opened_total",
			Help: "Total number of form sessions opened.",
		}, []string{"screen", "mode"}),
		SessionsClosedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autobrr_bff_sessions_closed_total",
			Help: "Total number of form sessions closed, by reason.",
		}, []string{"screen", "reason"}),
		SessionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "autobrr_bff_sessions_active",
			Help: "Number of open form sessions.",
		}, []string{"screen"}),
		ValidationFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autobrr_bff_validation_failures_total",
			Help: "Total number of submits rejected by field validation.",
		}, []string{"screen"}),
		SubmitsIgnoredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autobrr_bff_submits_ignored_total",
			Help: "Total number of submits ignored because one was pending.",
		}, []string{"screen"}),

		// Mutations
		MutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autobrr_bff_mutations_total",
			Help: "Total number of mutations by outcome.",
		}, []string{"resource", "kind", "outcome"}),
		MutationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "autobrr_bff_mutation_duration_seconds",
			Help:    "Mutation duration in seconds.",
			Buckets: backendDurationBuckets,
		}, []string{"resource", "kind"}),
		TestRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autobrr_bff_test_runs_total",
			Help: "Total number of connectivity tests by result.",
		}, []string{"resource", "result"}),
		ToastsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autobrr_bff_toasts_total",
			Help: "Total number of toast notifications emitted.",
		}, []string{"kind"}),

		// Backend
		BackendRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autobrr_bff_backend_requests_total",
			Help: "Total number of autobrr API requests.",
		}, []string{"resource", "method", "status"}),
		BackendRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "autobrr_bff_backend_request_duration_seconds",
			Help:    "autobrr API request duration in seconds.",
			Buckets: backendDurationBuckets,
		}, []string{"resource"}),
		BackendCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autobrr_bff_backend_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
		BackendRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autobrr_bff_backend_retries_total",
			Help: "Total number of autobrr API read retries.",
		}),

		// Cache
		CacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autobrr_bff_cache_hits_total",
			Help: "Total query cache hits.",
		}, []string{"resource"}),
		CacheMissesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autobrr_bff_cache_misses_total",
			Help: "Total query cache misses.",
		}, []string{"resource"}),
		CacheInvalidationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autobrr_bff_cache_invalidations_total",
			Help: "Total query cache invalidations by key scope.",
		}, []string{"resource", "scope"}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		m.SessionsOpenedTotal,
		m.SessionsClosedTotal,
		m.SessionsActive,
		m.ValidationFailuresTotal,
		m.SubmitsIgnoredTotal,
		m.MutationsTotal,
		m.MutationDuration,
		m.TestRunsTotal,
		m.ToastsTotal,
		m.BackendRequestsTotal,
		m.BackendRequestDuration,
		m.BackendCircuitBreakerState,
		m.BackendRetriesTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheInvalidationsTotal,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordSessionOpened records a new form session.
func (m *Metrics) RecordSessionOpened(screen, mode string) {
	m.SessionsOpenedTotal.WithLabelValues(screen, mode).Inc()
	m.SessionsActive.WithLabelValues(screen).Inc()
}

// RecordSessionClosed records a session leaving the store.
func (m *Metrics) RecordSessionClosed(screen, reason string) {
	m.SessionsClosedTotal.WithLabelValues(screen, reason).Inc()
	m.SessionsActive.WithLabelValues(screen).Dec()
}

// RecordValidationFailure records a submit rejected by validation.
func (m *Metrics) RecordValidationFailure(screen string) {
	m.ValidationFailuresTotal.WithLabelValues(screen).Inc()
}

// RecordSubmitIgnored records a duplicate submit.
func (m *Metrics) RecordSubmitIgnored(screen string) {
	m.SubmitsIgnoredTotal.WithLabelValues(screen).Inc()
}

// RecordMutation records a settled mutation.
func (m *Metrics) RecordMutation(resource, kind, outcome string, duration time.Duration) {
	m.MutationsTotal.WithLabelValues(resource, kind, outcome).Inc()
	m.MutationDuration.WithLabelValues(resource, kind).Observe(duration.Seconds())
}

// RecordTestRun records a connectivity test result.
func (m *Metrics) RecordTestRun(resource, result string) {
	m.TestRunsTotal.WithLabelValues(resource, result).Inc()
}

// RecordToast records an emitted toast.
func (m *Metrics) RecordToast(kind string) {
	m.ToastsTotal.WithLabelValues(kind).Inc()
}

// RecordBackendRequest records an autobrr API request.
func (m *Metrics) RecordBackendRequest(resource, method string, status int, duration time.Duration) {
	m.BackendRequestsTotal.WithLabelValues(resource, method, strconv.Itoa(status)).Inc()
	m.BackendRequestDuration.WithLabelValues(resource).Observe(duration.Seconds())
}

// SetBackendCircuitBreakerState sets the circuit breaker state.
// State: 0=closed, 1=half-open, 2=open.
func (m *Metrics) SetBackendCircuitBreakerState(state float64) {
	m.BackendCircuitBreakerState.Set(state)
}

// RecordBackendRetry records a read retry.
func (m *Metrics) RecordBackendRetry() {
	m.BackendRetriesTotal.Inc()
}

// RecordCacheHit records a query cache hit.
func (m *Metrics) RecordCacheHit(resource string) {
	m.CacheHitsTotal.WithLabelValues(resource).Inc()
}

// RecordCacheMiss records a query cache miss.
func (m *Metrics) RecordCacheMiss(resource string) {
	m.CacheMissesTotal.WithLabelValues(resource).Inc()
}

// RecordCacheInvalidation records an invalidated key. Scope is "list" or
// "detail".
func (m *Metrics) RecordCacheInvalidation(resource, scope string) {
	m.CacheInvalidationsTotal.WithLabelValues(resource, scope).Inc()
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	pattern = strings.ReplaceAll(pattern, "/*/", "/")
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
