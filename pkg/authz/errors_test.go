package authz

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		kind     Kind
	}{
		{"unauthorized", Unauthorized("no identity"), ErrUnauthorized, KindUnauthorized},
		{"forbidden", Forbidden("missing %s", "course:create"), ErrForbidden, KindForbidden},
		{"bad request", BadRequest("organization id required"), ErrBadRequest, KindBadRequest},
		{"conflict", Conflict("duplicate"), ErrConflict, KindConflict},
		{"not found", NotFound("grant %d", 4), ErrNotFound, KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.err, tt.sentinel))
			assert.Equal(t, tt.kind, KindOf(tt.err))

			wrapped := fmt.Errorf("handler: %w", tt.err)
			assert.True(t, errors.Is(wrapped, tt.sentinel))
			assert.Equal(t, tt.kind, KindOf(wrapped))
		})
	}
}

func TestErrorIsDoesNotCrossKinds(t *testing.T) {
	err := Forbidden("missing permission")
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrBadRequest))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("duplicate key value violates unique constraint")
	err := Wrap(KindConflict, cause, "permission already granted")

	assert.True(t, errors.Is(err, ErrConflict))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "permission already granted", MessageOf(err))
	assert.Contains(t, err.Error(), "unique constraint")

	assert.Nil(t, Wrap(KindConflict, nil, "unused"))
}

func TestUnclassifiedErrors(t *testing.T) {
	err := errors.New("connection refused")
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "internal error", MessageOf(err))
	assert.Equal(t, "internal", KindInternal.String())
	assert.Equal(t, "forbidden", KindForbidden.String())
}
