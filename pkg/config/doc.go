// Package config loads tenantgate configuration.
//
// # Overview
//
// Defaults are overlaid by an optional YAML file named by
// TENANTGATE_CONFIG_FILE, then by TENANTGATE_* environment variables. The
// result is validated before it is returned.
//
// # Environment
//
// Server settings:
//
//	TENANTGATE_HOST="0.0.0.0"
//	TENANTGATE_PORT="8080"
//	TENANTGATE_HEALTH_PORT="9090"
//	TENANTGATE_READ_TIMEOUT="15s"
//	TENANTGATE_SHUTDOWN_TIMEOUT="30s"
//
// Database settings:
//
//	TENANTGATE_DATABASE_URL="postgres://localhost/tenantgate?sslmode=disable"
//	TENANTGATE_DATABASE_DIALECT="postgres"  # postgres, sqlite3
//	TENANTGATE_DATABASE_MAX_OPEN_CONNS="20"
//	TENANTGATE_AUTO_MIGRATE="true"
//
// Credential settings (at least one resolver):
//
//	TENANTGATE_JWT_SECRET="..."
//	TENANTGATE_JWT_ISSUER="tenantgate"
//	TENANTGATE_OIDC_ISSUER="https://accounts.example.com"
//	TENANTGATE_OIDC_CLIENT_ID="tenantgate"
//
// Rate limiting:
//
//	TENANTGATE_REDIS_URL="redis://localhost:6379/0"  # in-memory when unset
//	TENANTGATE_RATE_LIMIT_REQUESTS="60"
//	TENANTGATE_RATE_LIMIT_WINDOW="1m"
//
// Authorization:
//
//	TENANTGATE_DIRECTORY_CACHE_SIZE="1024"
//	TENANTGATE_DIRECTORY_CACHE_TTL="1m"
//	TENANTGATE_EXPIRY_REPORT_SCHEDULE="*/5 * * * *"
//	TENANTGATE_SEED_MANAGER_GRANT="true"
//
// Observability:
//
//	TENANTGATE_LOG_LEVEL="info"  # debug, info, warn, error
//	TENANTGATE_AUDIT_FILE="/var/log/tenantgate/audit.log"
//	TENANTGATE_METRICS_ENABLED="true"
//	TENANTGATE_OTEL_ENABLED="true"
//	TENANTGATE_OTEL_ENDPOINT="otel-collector:4317"
//
// # Reloading
//
// WatchFile re-reads the YAML file when it changes:
//
//	go config.WatchFile(ctx, path, func(cfg *config.Config, err error) {
//		if err == nil {
//			logger.SetLevel(cfg.LogLevel())
//		}
//	})
package config
