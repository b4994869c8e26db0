// Package auth resolves credentials into the identity every authorization
// decision is made for.
//
// An Identity is (userId, email, optional profileId, optional role). Tokens are
// issued elsewhere; this package only validates them:
//
//   - TokenManager: HS256 JWTs signed with a shared secret
//   - OIDCResolver: ID tokens from an OpenID Connect provider
//   - ChainResolver: tries several resolvers in order
//
// All resolvers report rejection as an authz Unauthorized error.
//
//	identity, err := resolver.ResolveIdentity(ctx, bearer)
//	ctx = auth.NewContext(ctx, identity)
package auth
