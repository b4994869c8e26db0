// Package observability provides structured logging, Prometheus metrics,
// health probes and OpenTelemetry tracing for tenantgate.
//
// # Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("organization_id", orgID).Info("permission granted")
//
// Request-scoped loggers travel in the context; FromContext attaches the
// request ID set by the request ID middleware.
//
// # Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ObserveDecision("permission", observability.OutcomeDeny, elapsed)
//
// All Observe helpers accept a nil *Metrics so packages can be used without
// a registry in tests.
//
// # Health
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(mux, checker)
//
// The database is required for readiness; redis only degrades it.
package observability
