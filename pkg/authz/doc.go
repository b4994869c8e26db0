// Package authz defines the error taxonomy shared by the membership store,
// the permission grant store and the request enforcement pipeline.
//
// Every failure that reaches a caller is one of:
//
//   - Unauthorized: no identity, or an invalid credential upstream
//   - Forbidden: identity resolved but a structural role or permission is missing
//   - BadRequest: missing or invalid organization id, invalid role transition
//   - Conflict: duplicate membership or duplicate grant
//   - NotFound: the membership, grant or organization does not exist
//
// Anything else is internal and is reported without its cause.
//
//	if errors.Is(err, authz.ErrForbidden) {
//		...
//	}
package authz
