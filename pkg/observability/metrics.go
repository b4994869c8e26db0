package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Decision outcomes recorded by the enforcement pipeline
const (
	OutcomeAllow = "allow"
	OutcomeDeny  = "deny"
	OutcomeError = "error"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	DecisionsTotal   *prometheus.CounterVec
	DecisionDuration *prometheus.HistogramVec
	RateLimitedTotal *prometheus.CounterVec

	// Mutation metrics
	GrantMutationsTotal      *prometheus.CounterVec
	MembershipMutationsTotal *prometheus.CounterVec

	// Store metrics
	StoreOperationDuration *prometheus.HistogramVec

	// Cache metrics
	DirectoryLookupsTotal *prometheus.CounterVec

	// Business metrics
	GrantsActive  prometheus.Gauge
	GrantsExpired prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantgate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tenantgate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantgate_authz_decisions_total",
				Help: "Authorization decisions by requirement kind and outcome",
			},
			[]string{"requirement", "outcome"},
		),
		DecisionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tenantgate_authz_decision_duration_seconds",
				Help:    "Time spent evaluating an authorization requirement",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"requirement"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantgate_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"limiter"},
		),
		GrantMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantgate_grant_mutations_total",
				Help: "Permission grant mutations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		MembershipMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantgate_membership_mutations_total",
				Help: "Organization membership mutations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		StoreOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tenantgate_store_operation_duration_seconds",
				Help:    "Store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"store", "operation"},
		),
		DirectoryLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantgate_directory_lookups_total",
				Help: "Display name cache lookups by result",
			},
			[]string{"result"},
		),
		GrantsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tenantgate_grants_active",
				Help: "Number of permission grants currently in effect",
			},
		),
		GrantsExpired: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tenantgate_grants_expired",
				Help: "Number of stored permission grants whose expiry has passed",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DecisionsTotal,
		m.DecisionDuration,
		m.RateLimitedTotal,
		m.GrantMutationsTotal,
		m.MembershipMutationsTotal,
		m.StoreOperationDuration,
		m.DirectoryLookupsTotal,
		m.GrantsActive,
		m.GrantsExpired,
	)

	return m
}

// ObserveDecision records an authorization decision. Safe on a nil receiver.
func (m *Metrics) ObserveDecision(requirement, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(requirement, outcome).Inc()
	m.DecisionDuration.WithLabelValues(requirement).Observe(elapsed.Seconds())
}

// ObserveGrantMutation records a grant, revoke or update attempt
func (m *Metrics) ObserveGrantMutation(operation string, err error) {
	if m == nil {
		return
	}
	m.GrantMutationsTotal.WithLabelValues(operation, mutationOutcome(err)).Inc()
}

// ObserveMembershipMutation records a membership change attempt
func (m *Metrics) ObserveMembershipMutation(operation string, err error) {
	if m == nil {
		return
	}
	m.MembershipMutationsTotal.WithLabelValues(operation, mutationOutcome(err)).Inc()
}

// ObserveStore records how long a store operation took
func (m *Metrics) ObserveStore(store, operation string, start time.Time) {
	if m == nil {
		return
	}
	m.StoreOperationDuration.WithLabelValues(store, operation).Observe(time.Since(start).Seconds())
}

// ObserveDirectoryLookup records a display name cache hit or miss
func (m *Metrics) ObserveDirectoryLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.DirectoryLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveRateLimited records a request rejected by the named limiter
func (m *Metrics) ObserveRateLimited(limiter string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(limiter).Inc()
}

// SetGrantCounts updates the active and expired grant gauges
func (m *Metrics) SetGrantCounts(active, expired int64) {
	if m == nil {
		return
	}
	m.GrantsActive.Set(float64(active))
	m.GrantsExpired.Set(float64(expired))
}

func mutationOutcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware records request counts and latencies labelled by route template
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// routeLabel keeps label cardinality bounded by using the mux template instead of the raw path
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// RegisterMetricsEndpoint registers the Prometheus metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
