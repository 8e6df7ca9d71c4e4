package audit

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Route describes how requests to one route are recorded
type Route struct {
	Event    EventType
	Resource ResourceType
	// IDVar names the path variable holding the resource ID
	IDVar string
}

// Routes maps "METHOD /path/template" to the event its requests record
type Routes map[string]Route

// statusRecorder wraps http.ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records audited routes once they complete. It must run after
// mux has matched the request (router.Use). Successful requests to a route
// in routes are recorded as the route's event; rejected logins as failed
// logins; any 403 as an access denial. Handlers enrich the event through
// Annotate and its helpers.
func Middleware(logger Logger, routes Routes, log logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := mux.CurrentRoute(r)
			if route == nil {
				next.ServeHTTP(w, r)
				return
			}
			template, _ := route.GetPathTemplate()
			entry, audited := routes[r.Method+" "+template]

			event := NewEvent(r, entry.Event, StatusSuccess)
			vars := mux.Vars(r)
			event.ResourceType = entry.Resource
			if entry.IDVar != "" {
				event.ResourceID = vars[entry.IDVar]
			}
			if clubID := vars["club"]; clubID != "" {
				event.ClubID = clubID
			} else if clubID := vars["club_id"]; clubID != "" {
				event.ClubID = clubID
			}

			ctx, p := withPending(r.Context(), event)
			rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r.WithContext(ctx))

			p.mu.Lock()
			defer p.mu.Unlock()

			switch {
			case rw.statusCode == http.StatusForbidden:
				event.EventType = EventAccessDenied
				event.Status = StatusDenied
			case !audited:
				return
			case rw.statusCode == http.StatusUnauthorized:
				event.Status = StatusFailure
				if event.EventType == EventAuthLogin {
					event.EventType = EventAuthLoginFailed
				}
			case rw.statusCode >= http.StatusBadRequest:
				return
			}
			event.StatusCode = rw.statusCode

			if err := logger.Log(context.WithoutCancel(r.Context()), event); err != nil {
				log.WithError(err).WithFields(logrus.Fields{
					"event_type": event.EventType,
					"request_id": event.RequestID,
				}).Warn("Failed to record audit event")
			}
		})
	}
}
