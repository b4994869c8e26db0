package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/tenantgate/pkg/httputil"
	"github.com/platinummonkey/tenantgate/pkg/middleware"
	"github.com/platinummonkey/tenantgate/pkg/observability"
	"github.com/platinummonkey/tenantgate/pkg/orgs"
	"github.com/platinummonkey/tenantgate/pkg/rbac"
)

// DefaultMaxBodyBytes caps request bodies
const DefaultMaxBodyBytes = 1 << 20

// Dependencies are the collaborators the API server routes to
type Dependencies struct {
	Organizations *orgs.Service
	Permissions   *rbac.Service
	Enforcer      *middleware.Enforcer
	Identity      *middleware.IdentityMiddleware

	// Limiter guards mutation routes. Nil disables rate limiting.
	Limiter middleware.Limiter

	Logger       *observability.Logger
	Metrics      *observability.Metrics
	MaxBodyBytes int64
}

// Server is the tenantgate HTTP API
type Server struct {
	router   *mux.Router
	handler  http.Handler
	enforcer *middleware.Enforcer
	orgs     *orgs.Handlers
	perms    *rbac.Handlers
	mutation func(http.Handler) http.Handler
}

// NewServer builds the router and middleware chain
func NewServer(deps Dependencies) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		enforcer: deps.Enforcer,
		orgs:     orgs.NewHandlers(deps.Organizations),
		perms:    rbac.NewHandlers(deps.Permissions),
		mutation: func(next http.Handler) http.Handler { return next },
	}
	if deps.Limiter != nil {
		s.mutation = middleware.RateLimit(deps.Limiter, "mutations", deps.Metrics)
	}

	maxBytes := deps.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}

	// route-aware middleware runs after mux has matched
	if deps.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(deps.Metrics))
	}
	if deps.Identity != nil {
		s.router.Use(deps.Identity.Handler)
	}
	s.router.Use(httputil.MaxBytesMiddleware(maxBytes))

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "not_found", "route not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	s.setupRoutes()

	logger := deps.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	s.handler = httputil.Chain(
		httputil.RequestContextMiddleware(logger),
		httputil.RecoveryMiddleware,
		httputil.LoggingMiddleware,
	)(s.router)

	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}
