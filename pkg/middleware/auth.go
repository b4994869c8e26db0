package middleware

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/tenantgate/pkg/auth"
	"github.com/platinummonkey/tenantgate/pkg/authz"
	"github.com/platinummonkey/tenantgate/pkg/httputil"
	"github.com/platinummonkey/tenantgate/pkg/observability"
)

// IdentityMiddleware resolves the bearer credential of each request into an
// auth.Identity. Requests without credentials pass through unidentified and
// are rejected later by any route that needs an identity.
type IdentityMiddleware struct {
	resolver auth.Resolver
}

// NewIdentityMiddleware creates identity middleware over resolver
func NewIdentityMiddleware(resolver auth.Resolver) *IdentityMiddleware {
	return &IdentityMiddleware{resolver: resolver}
}

// Handler wraps an HTTP handler with identity resolution
func (m *IdentityMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		// Format: "Bearer <token>"
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			httputil.WriteServiceError(w, r, authz.Unauthorized("invalid authorization header format"))
			return
		}

		identity, err := m.resolver.ResolveIdentity(r.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			if authz.KindOf(err) == authz.KindInternal {
				err = authz.Wrap(authz.KindUnauthorized, err, "invalid or expired credential")
			}
			httputil.WriteServiceError(w, r, err)
			return
		}

		ctx := auth.NewContext(r.Context(), identity)
		logger := observability.FromContext(ctx).WithField("user_id", identity.UserID)
		if identity.HasProfile() {
			logger = logger.WithField("profile_id", identity.Profile())
		}
		ctx = observability.WithLogger(ctx, logger)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
