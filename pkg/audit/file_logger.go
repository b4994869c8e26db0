package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// LogrusLogger writes one JSON line per audit event through logrus
type LogrusLogger struct {
	log    *logrus.Logger
	closer io.Closer
}

// NewLogrusLogger creates an audit sink writing JSON lines to w
func NewLogrusLogger(w io.Writer) *LogrusLogger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{logrus.FieldKeyMsg: "message"},
	})
	log.SetLevel(logrus.InfoLevel)
	return &LogrusLogger{log: log}
}

// NewFileLogger appends audit events to the file at path, creating directories as needed
func NewFileLogger(path string) (*LogrusLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	logger := NewLogrusLogger(file)
	logger.closer = file
	return logger, nil
}

// Log writes the event
func (l *LogrusLogger) Log(_ context.Context, event *Event) error {
	fields := logrus.Fields{
		"audit":      true,
		"event_type": string(event.EventType),
		"status":     string(event.Status),
	}
	if event.ProfileID != nil {
		fields["profile_id"] = *event.ProfileID
	}
	if event.UserID != 0 {
		fields["user_id"] = event.UserID
	}
	if event.OrganizationID != nil {
		fields["organization_id"] = *event.OrganizationID
	}
	if event.TargetProfileID != nil {
		fields["target_profile_id"] = *event.TargetProfileID
	}
	if event.ResourceType != "" {
		fields["resource_type"] = string(event.ResourceType)
		fields["resource_id"] = event.ResourceID
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	if len(event.Metadata) > 0 {
		fields["metadata"] = event.Metadata
	}
	if event.Changes != nil {
		fields["changes"] = event.Changes
	}

	l.log.WithFields(fields).WithTime(event.Timestamp).Info(event.Message)
	return nil
}

// Close closes the underlying file, if any
func (l *LogrusLogger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
