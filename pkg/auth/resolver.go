package auth

import (
	"context"

	"github.com/platinummonkey/tenantgate/pkg/authz"
)

// ChainResolver tries each resolver in order and returns the first identity accepted
type ChainResolver []Resolver

// ResolveIdentity implements Resolver
func (c ChainResolver) ResolveIdentity(ctx context.Context, credential string) (*Identity, error) {
	if credential == "" {
		return nil, authz.Unauthorized("missing credential")
	}

	var lastErr error
	for _, r := range c {
		identity, err := r.ResolveIdentity(ctx, credential)
		if err == nil {
			return identity, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		return nil, authz.Unauthorized("no identity resolver configured")
	}
	return nil, lastErr
}
