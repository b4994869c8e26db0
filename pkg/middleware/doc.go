// Package middleware provides the HTTP authorization layer of tenantgate.
//
// # Overview
//
// Requests pass through identity resolution, then route-level enforcement:
//
//	identity := middleware.NewIdentityMiddleware(resolver)
//	router.Use(identity.Handler)
//
//	enforcer := middleware.NewEnforcer(orgService, rbacService.Checker())
//	router.Handle("/organizations/{id}/members",
//	    enforcer.Protect(middleware.RequireRoles(orgs.RoleMainAdmin), handler))
//
// # Requirements
//
// A route declares either a StructuralRequirement (any of a set of membership
// roles, organization id read from one path parameter) or a
// PermissionRequirement (all of a set of permission kinds, organization id
// read from the path, then the JSON body, then the query string). Unrestricted
// only needs an identity.
//
// The Enforcer evaluates in a fixed order and stops at the first failure:
//
//  1. no identity: 401
//  2. empty requirement: allowed
//  3. identity without profile: 401
//  4. organization id not found: 400
//  5. check not satisfied: 403
//
// Store errors surface as 500.
//
// # Rate Limiting
//
// RateLimit keys callers by profile, falling back to client address.
// MemoryLimiter serves a single process; RedisLimiter shares windows across
// instances. Both use fixed windows and let requests through when the
// limiter fails.
//
// # Related Packages
//
//   - pkg/auth: Identity resolution
//   - pkg/orgs: Structural roles
//   - pkg/rbac: Permission grants
package middleware
