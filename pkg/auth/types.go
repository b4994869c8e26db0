package auth

import (
	"context"

	"github.com/platinummonkey/tenantgate/pkg/authz"
	"github.com/platinummonkey/tenantgate/pkg/contextkeys"
)

// Identity is the authenticated actor attached to a request. It is produced
// once per request by a Resolver and is never mutated afterwards.
type Identity struct {
	UserID    int64  `json:"userId"`
	Email     string `json:"email"`
	ProfileID *int64 `json:"profileId,omitempty"`
	// Role is the account-level role carried by the credential. It is
	// informational only; organization decisions always consult the stores.
	Role string `json:"role,omitempty"`
}

// HasProfile reports whether the identity acts as a concrete profile
func (i *Identity) HasProfile() bool {
	return i != nil && i.ProfileID != nil && *i.ProfileID > 0
}

// Profile returns the acting profile id, or 0 when there is none
func (i *Identity) Profile() int64 {
	if !i.HasProfile() {
		return 0
	}
	return *i.ProfileID
}

// NewContext attaches identity to ctx
func NewContext(ctx context.Context, identity *Identity) context.Context {
	return contextkeys.WithIdentity(ctx, identity)
}

// IdentityFromContext returns the identity attached to ctx, or nil
func IdentityFromContext(ctx context.Context) *Identity {
	identity, ok := ctx.Value(contextkeys.IdentityKey).(*Identity)
	if !ok {
		return nil
	}
	return identity
}

// RequireProfile returns the acting profile id from ctx, or Unauthorized when
// the request carries no identity or the identity has no profile
func RequireProfile(ctx context.Context) (int64, error) {
	identity := IdentityFromContext(ctx)
	if identity == nil {
		return 0, authz.Unauthorized("authentication required")
	}
	if !identity.HasProfile() {
		return 0, authz.Unauthorized("profile required")
	}
	return identity.Profile(), nil
}

// Resolver turns a raw credential into an Identity. Implementations return an
// authz Unauthorized error for any credential they cannot accept.
type Resolver interface {
	ResolveIdentity(ctx context.Context, credential string) (*Identity, error)
}
