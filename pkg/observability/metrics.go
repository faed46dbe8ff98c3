package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Access decision metrics
	DecisionsTotal      *prometheus.CounterVec // labels: check, outcome
	DecisionFailOpen    *prometheus.CounterVec // labels: check
	ResolverFailures    prometheus.Counter

	// Entitlement cache metrics
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
	CacheInvalidated *prometheus.CounterVec // labels: scope (account|global)

	// Sweep metrics
	SweepRunsTotal     *prometheus.CounterVec // labels: sweep, result
	SweepRowsProcessed *prometheus.CounterVec // labels: sweep
	SweepDuration      *prometheus.HistogramVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ebuster_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ebuster_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ebuster_access_decisions_total",
				Help: "Total access decisions by check type and outcome",
			},
			[]string{"check", "outcome"},
		),
		DecisionFailOpen: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ebuster_access_decisions_fail_open_total",
				Help: "Access decisions that allowed on lookup failure",
			},
			[]string{"check"},
		),
		ResolverFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ebuster_entitlement_resolver_failures_total",
				Help: "Entitlement resolutions that failed with a lookup error",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ebuster_entitlement_cache_hits_total",
				Help: "Entitlement cache hits",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ebuster_entitlement_cache_misses_total",
				Help: "Entitlement cache misses",
			},
		),
		CacheInvalidated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ebuster_entitlement_cache_invalidations_total",
				Help: "Entitlement cache invalidations by scope",
			},
			[]string{"scope"},
		),
		SweepRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ebuster_sweep_runs_total",
				Help: "Background sweep runs by sweep name and result",
			},
			[]string{"sweep", "result"},
		),
		SweepRowsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ebuster_sweep_rows_processed_total",
				Help: "Rows transitioned by background sweeps",
			},
			[]string{"sweep"},
		),
		SweepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ebuster_sweep_duration_seconds",
				Help:    "Background sweep duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"sweep"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ebuster_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ebuster_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DecisionsTotal,
		m.DecisionFailOpen,
		m.ResolverFailures,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheInvalidated,
		m.SweepRunsTotal,
		m.SweepRowsProcessed,
		m.SweepDuration,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps an HTTP handler with request metrics
func (m *Metrics) InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter captures the response status code
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
