// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//
//	import "github.com/platinummonkey/tenantgate/pkg/contextkeys"
//	ctx = contextkeys.WithIdentity(ctx, identity)
//	identity := auth.IdentityFromContext(ctx)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// IdentityKey contains *auth.Identity
	// Set by: middleware.IdentityMiddleware (pkg/middleware/auth.go)
	// Required by: the enforcement pipeline and every handler acting on behalf of a profile
	// Type: *auth.Identity
	IdentityKey Key = "identity"

	// OrganizationIDKey contains the organization id the request was authorized against
	// Set by: middleware.Enforcer after scope extraction
	// Used by: handlers that need the resolved scope, audit trail
	// Type: int64
	OrganizationIDKey Key = "organization_id"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, audit trail, error responses
	// Type: string
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: httputil.LoggingMiddleware
	// Used by: Handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"
)

// WithIdentity adds the resolved identity to the context
func WithIdentity(ctx context.Context, identity interface{}) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// WithOrganizationID records the organization id a request was authorized against
func WithOrganizationID(ctx context.Context, orgID int64) context.Context {
	return context.WithValue(ctx, OrganizationIDKey, orgID)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetOrganizationID retrieves the authorized organization id, if the pipeline resolved one
func GetOrganizationID(ctx context.Context) (int64, bool) {
	orgID, ok := ctx.Value(OrganizationIDKey).(int64)
	return orgID, ok
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
