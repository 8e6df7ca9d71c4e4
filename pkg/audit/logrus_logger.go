package audit

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogrusLogger writes audit events as structured log lines. It lets log
// shippers keep a copy of the trail outside the database.
type LogrusLogger struct {
	logger logrus.FieldLogger
}

// NewLogrusLogger creates a logger that writes to logger
func NewLogrusLogger(logger logrus.FieldLogger) *LogrusLogger {
	return &LogrusLogger{logger: logger.WithField("component", "audit")}
}

// Log writes one line per event
func (l *LogrusLogger) Log(_ context.Context, event *AuditEvent) error {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"status":     event.Status,
	}
	for key, value := range map[string]string{
		"actor_id":      event.UserID,
		"actor_email":   event.Email,
		"club_id":       event.ClubID,
		"resource_type": string(event.ResourceType),
		"resource_id":   event.ResourceID,
		"ip_address":    event.IPAddress,
		"request_id":    event.RequestID,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	if len(event.Metadata) > 0 {
		fields["metadata"] = event.Metadata
	}

	entry := l.logger.WithFields(fields)
	if event.Status == StatusSuccess {
		entry.Info("Audit event")
	} else {
		entry.Warn("Audit event")
	}
	return nil
}

// Close is a no-op
func (l *LogrusLogger) Close() error {
	return nil
}
