package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/platinummonkey/clubhub/pkg/contextkeys"
)

// Logger records audit events
type Logger interface {
	Log(ctx context.Context, event *AuditEvent) error
	Close() error
}

// Store queries and prunes recorded events
type Store interface {
	// Search returns one page of matching events, newest first, and the
	// total number of matches
	Search(ctx context.Context, filter SearchFilter) ([]*AuditEvent, int, error)

	// Cleanup deletes events recorded before cutoff
	Cleanup(ctx context.Context, cutoff time.Time) (int64, error)
}

// NopLogger returns a Logger that discards events
func NopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Log(context.Context, *AuditEvent) error { return nil }
func (nopLogger) Close() error                           { return nil }

type contextKey struct{}

// pending is the event being assembled for the current request. Handlers
// and middleware further down the chain annotate it.
type pending struct {
	mu    sync.Mutex
	event *AuditEvent
}

// NewEvent creates an event carrying the request context of r
func NewEvent(r *http.Request, eventType EventType, status EventStatus) *AuditEvent {
	event := &AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		Metadata:  make(map[string]interface{}),
	}
	if r == nil {
		return event
	}

	event.IPAddress = clientIP(r)
	event.UserAgent = r.UserAgent()
	event.Method = r.Method
	event.Path = r.URL.Path
	event.RequestID = contextkeys.GetRequestID(r.Context())
	if p := contextkeys.GetPrincipal(r.Context()); p != nil {
		event.UserID = p.UserID
		event.Email = p.Email
	}
	return event
}

// withPending attaches an event under construction to ctx
func withPending(ctx context.Context, event *AuditEvent) (context.Context, *pending) {
	p := &pending{event: event}
	return context.WithValue(ctx, contextKey{}, p), p
}

func pendingFrom(ctx context.Context) *pending {
	p, _ := ctx.Value(contextKey{}).(*pending)
	return p
}

// Annotate edits the event recorded for the current request, if any
func Annotate(ctx context.Context, fn func(*AuditEvent)) {
	p := pendingFrom(ctx)
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.event)
}

// SetActor records who performed the current request
func SetActor(ctx context.Context, userID, email string) {
	Annotate(ctx, func(e *AuditEvent) {
		e.UserID = userID
		e.Email = email
	})
}

// SetMetadata adds a key to the current request's event
func SetMetadata(ctx context.Context, key string, value interface{}) {
	Annotate(ctx, func(e *AuditEvent) {
		e.Metadata[key] = value
	})
}

// SetEventType overrides the event type picked from the route, e.g. when an
// update turns out to be a role change
func SetEventType(ctx context.Context, eventType EventType) {
	Annotate(ctx, func(e *AuditEvent) {
		e.EventType = eventType
	})
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
