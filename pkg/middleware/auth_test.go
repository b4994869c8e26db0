package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/tenantgate/pkg/auth"
)

type resolverFunc func(ctx context.Context, credential string) (*auth.Identity, error)

func (f resolverFunc) ResolveIdentity(ctx context.Context, credential string) (*auth.Identity, error) {
	return f(ctx, credential)
}

func int64Ptr(v int64) *int64 { return &v }

// captureIdentity records the identity seen by the wrapped handler
func captureIdentity(seen **auth.Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = auth.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestIdentityMiddlewareWithToken(t *testing.T) {
	tm := auth.NewTokenManager([]byte("test-secret"), "tenantgate", time.Hour)
	token, err := tm.IssueToken(auth.Identity{UserID: 7, Email: "ada@example.com", ProfileID: int64Ptr(42)})
	require.NoError(t, err)

	var seen *auth.Identity
	handler := NewIdentityMiddleware(tm).Handler(captureIdentity(&seen))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, int64(7), seen.UserID)
	assert.Equal(t, int64(42), seen.Profile())
}

func TestIdentityMiddlewareWithoutHeaderPassesThrough(t *testing.T) {
	called := false
	var seen *auth.Identity
	handler := NewIdentityMiddleware(resolverFunc(func(context.Context, string) (*auth.Identity, error) {
		called = true
		return nil, nil
	})).Handler(captureIdentity(&seen))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, called)
	assert.Nil(t, seen)
}

func TestIdentityMiddlewareRejects(t *testing.T) {
	tm := auth.NewTokenManager([]byte("test-secret"), "tenantgate", time.Hour)
	failing := resolverFunc(func(context.Context, string) (*auth.Identity, error) {
		return nil, errors.New("provider unreachable")
	})

	tests := []struct {
		name     string
		resolver auth.Resolver
		header   string
	}{
		{"wrong scheme", tm, "Basic dXNlcjpwYXNz"},
		{"empty token", tm, "Bearer "},
		{"garbage token", tm, "Bearer not-a-jwt"},
		{"resolver failure", failing, "Bearer anything"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *auth.Identity
			handler := NewIdentityMiddleware(tt.resolver).Handler(captureIdentity(&seen))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Nil(t, seen)
		})
	}
}
