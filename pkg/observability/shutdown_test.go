package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShutdownRunsAllFuncs(t *testing.T) {
	server := httptest.NewUnstartedServer(http.NotFoundHandler())
	server.Start()
	defer server.Close()

	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), time.Second, server.Config)
	assert.Equal(t, time.Second, sm.shutdownTimeout)

	var calls atomic.Int32
	sm.RegisterShutdownFunc(func(context.Context) error {
		calls.Add(1)
		return nil
	})
	sm.RegisterShutdownFunc(func(context.Context) error {
		calls.Add(1)
		return errors.New("redis close failed")
	})

	err := sm.Shutdown(context.Background())
	assert.ErrorContains(t, err, "redis close failed")
	assert.Equal(t, int32(2), calls.Load())
}

func TestShutdownDefaultsTimeout(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), 0)
	assert.Equal(t, 30*time.Second, sm.shutdownTimeout)
	assert.NoError(t, sm.Shutdown(context.Background()))
}
