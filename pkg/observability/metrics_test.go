package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveHelpers(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveDecision("permission", OutcomeDeny, time.Millisecond)
	m.ObserveDecision("permission", OutcomeDeny, time.Millisecond)
	m.ObserveGrantMutation("grant", nil)
	m.ObserveGrantMutation("grant", errors.New("conflict"))
	m.ObserveMembershipMutation("add", nil)
	m.ObserveDirectoryLookup(true)
	m.ObserveRateLimited("redis")
	m.SetGrantCounts(5, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DecisionsTotal.WithLabelValues("permission", OutcomeDeny)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GrantMutationsTotal.WithLabelValues("grant", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GrantMutationsTotal.WithLabelValues("grant", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MembershipMutationsTotal.WithLabelValues("add", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DirectoryLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitedTotal.WithLabelValues("redis")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.GrantsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.GrantsExpired))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDecision("structural", OutcomeAllow, time.Second)
		m.ObserveGrantMutation("revoke", nil)
		m.ObserveMembershipMutation("remove", nil)
		m.ObserveStore("grants", "insert", time.Now())
		m.ObserveDirectoryLookup(false)
		m.ObserveRateLimited("memory")
		m.SetGrantCounts(1, 1)
	})
}

func TestHTTPMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/organizations/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	for _, path := range []string{"/organizations/1", "/organizations/2"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/organizations/{id}", "403")))
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.SetGrantCounts(3, 0)

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tenantgate_grants_active 3")
}
