// Package api assembles the tenantgate HTTP API.
//
// # Overview
//
// Server registers the organization and permission routes on a gorilla/mux
// router, each wrapped by the Enforcer with the requirement it declares, and
// adds two decision endpoints other services call to ask for a verdict:
//
//	POST /authorize/permissions                {"organizationId": 3, "permissions": ["course:create"]}
//	POST /authorize/organizations/{id}/roles   {"roles": ["MAIN_ADMIN", "SUB_ADMIN"]}
//
// Both answer {"allowed", "organizationId", "profileId", "requirement"} when
// the caller passes, and an error body with 401, 400 or 403 otherwise.
//
// # Middleware
//
// Every request gets a request id and logger, panic recovery and an access
// log line. Matched routes additionally get HTTP metrics, identity
// resolution and a body size limit. Mutations are rate limited when a
// Limiter is configured.
//
//	server := api.NewServer(api.Dependencies{
//		Organizations: orgService,
//		Permissions:   rbacService,
//		Enforcer:      enforcer,
//		Identity:      middleware.NewIdentityMiddleware(resolver),
//		Limiter:       middleware.NewMemoryLimiter(middleware.DefaultRateLimitConfig()),
//		Logger:        logger,
//		Metrics:       metrics,
//	})
//	http.ListenAndServe(":8080", server)
package api
