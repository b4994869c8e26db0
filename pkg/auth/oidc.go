package auth

import (
	"context"
	"fmt"
	"strconv"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/platinummonkey/tenantgate/pkg/authz"
)

// OIDCResolver accepts ID tokens from an external OpenID Connect provider
type OIDCResolver struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCResolver discovers the provider at issuer and verifies tokens issued for clientID
func NewOIDCResolver(ctx context.Context, issuer, clientID string) (*OIDCResolver, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover oidc provider: %w", err)
	}
	return NewOIDCResolverWithVerifier(provider.Verifier(&oidc.Config{ClientID: clientID})), nil
}

// NewOIDCResolverWithVerifier wraps an existing verifier
func NewOIDCResolverWithVerifier(verifier *oidc.IDTokenVerifier) *OIDCResolver {
	return &OIDCResolver{verifier: verifier}
}

type oidcClaims struct {
	Email     string `json:"email"`
	UserID    int64  `json:"userId"`
	ProfileID *int64 `json:"profileId"`
	Role      string `json:"role"`
}

// ResolveIdentity implements Resolver. The user id comes from the userId claim,
// falling back to a numeric subject.
func (r *OIDCResolver) ResolveIdentity(ctx context.Context, credential string) (*Identity, error) {
	idToken, err := r.verifier.Verify(ctx, credential)
	if err != nil {
		return nil, authz.Wrap(authz.KindUnauthorized, err, "invalid id token")
	}

	var claims oidcClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, authz.Wrap(authz.KindUnauthorized, err, "unreadable id token claims")
	}

	userID := claims.UserID
	if userID == 0 {
		userID, err = strconv.ParseInt(idToken.Subject, 10, 64)
		if err != nil || userID <= 0 {
			return nil, authz.Unauthorized("id token subject is not a user id")
		}
	}

	return &Identity{
		UserID:    userID,
		Email:     claims.Email,
		ProfileID: claims.ProfileID,
		Role:      claims.Role,
	}, nil
}
