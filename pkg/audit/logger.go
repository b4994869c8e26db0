package audit

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/tenantgate/pkg/auth"
	"github.com/platinummonkey/tenantgate/pkg/contextkeys"
)

// Logger is the interface for audit sinks
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// Close flushes and releases the sink
	Close() error
}

// NewEvent builds an event stamped with the caller identity and request ID found in ctx
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *Event {
	event := &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.GetRequestID(ctx),
	}

	if identity := auth.IdentityFromContext(ctx); identity != nil {
		event.UserID = identity.UserID
		event.ProfileID = identity.ProfileID
	}
	if orgID, ok := contextkeys.GetOrganizationID(ctx); ok {
		event.OrganizationID = &orgID
	}

	return event
}

// NoOpLogger discards every event
type NoOpLogger struct{}

// Log does nothing
func (NoOpLogger) Log(context.Context, *Event) error { return nil }

// Close does nothing
func (NoOpLogger) Close() error { return nil }

// MultiLogger fans events out to several sinks synchronously
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a logger writing to every given sink
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log writes to every sink and joins their errors
func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	var errs []error
	for _, logger := range m.loggers {
		if err := logger.Log(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors
func (m *MultiLogger) Close() error {
	var errs []error
	for _, logger := range m.loggers {
		if err := logger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
