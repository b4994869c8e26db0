package contextkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrganizationID(t *testing.T) {
	ctx := context.Background()

	_, ok := GetOrganizationID(ctx)
	assert.False(t, ok)

	ctx = WithOrganizationID(ctx, 42)
	orgID, ok := GetOrganizationID(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(42), orgID)
}

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", GetRequestID(ctx))

	ctx = WithRequestID(ctx, "req-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
}

func TestKeysAreDistinct(t *testing.T) {
	keys := []Key{IdentityKey, OrganizationIDKey, RequestIDKey, LoggerKey}
	seen := make(map[Key]bool)
	for _, k := range keys {
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
}
