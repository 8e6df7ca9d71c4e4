package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/clubhub/pkg/audit"
	"github.com/platinummonkey/clubhub/pkg/auth"
	"github.com/platinummonkey/clubhub/pkg/events"
	"github.com/platinummonkey/clubhub/pkg/httputil"
	"github.com/platinummonkey/clubhub/pkg/observability"
	"github.com/platinummonkey/clubhub/pkg/rbac"
	"github.com/sirupsen/logrus"
)

// StatusRequest is the body of PUT /events/{event}/status
type StatusRequest struct {
	Status string `json:"status"`
}

// EventHandlers handles event and registration requests
type EventHandlers struct {
	events   events.Service
	resolver *rbac.Resolver
	logger   logrus.FieldLogger
	authn    func(http.Handler) http.Handler
}

// NewEventHandlers creates event handlers
func NewEventHandlers(eventService events.Service, resolver *rbac.Resolver, logger logrus.FieldLogger, authn func(http.Handler) http.Handler) *EventHandlers {
	return &EventHandlers{
		events:   eventService,
		resolver: resolver,
		logger:   logger,
		authn:    authn,
	}
}

// RegisterRoutes registers event routes
func (h *EventHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/events", h.ListEvents).Methods(http.MethodGet)
	router.Handle("/events", guarded(h.CreateEvent, h.authn)).Methods(http.MethodPost)
	router.Handle("/events/register/{event_id}", guarded(h.Register, h.authn)).Methods(http.MethodPost)
	router.HandleFunc("/events/{event}", h.GetEvent).Methods(http.MethodGet)
	router.Handle("/events/{event}", guarded(h.UpdateEvent, h.authn)).Methods(http.MethodPut)
	router.Handle("/events/{event}", guarded(h.DeleteEvent, h.authn)).Methods(http.MethodDelete)
	router.Handle("/events/{event}/status", guarded(h.SetStatus, h.authn)).Methods(http.MethodPut)

	// Registrations
	router.Handle("/events/{event}/approve/{user}", guarded(h.ReviewRegistration, h.authn)).Methods(http.MethodPost)
	router.Handle("/events/{event}/approve", guarded(h.ReviewRegistration, h.authn)).Methods(http.MethodPost)
	router.Handle("/events/{event}/registrations", guarded(h.ListRegistrations, h.authn)).Methods(http.MethodGet)
}

// ListEvents handles GET /events
func (h *EventHandlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	list, err := h.events.List(r.Context())
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// CreateEvent handles POST /events, scoped to the club named in the body
func (h *EventHandlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req events.CreateEventRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}

	p, ok := authorize(w, r, h.resolver, h.logger, rbac.InClub(req.ClubID), auth.RoleAdmin, auth.RoleAdminMember)
	if !ok {
		return
	}

	event, err := h.events.Create(r.Context(), p.UserID, req)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	annotateEvent(r, event)
	httputil.WriteCreated(w, event)
}

// GetEvent handles GET /events/{event}
func (h *EventHandlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := httputil.ParsePathIDOrError(w, r, "event")
	if !ok {
		return
	}

	event, err := h.events.Get(r.Context(), eventID)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, event)
}

// UpdateEvent handles PUT /events/{event}
func (h *EventHandlers) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	event, ok := h.eventAdmin(w, r, rbac.InClub, auth.RoleAdmin, auth.RoleAdminMember)
	if !ok {
		return
	}

	var req events.UpdateEventRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	updated, err := h.events.Update(r.Context(), event.ID, req)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, updated)
}

// DeleteEvent handles DELETE /events/{event}
func (h *EventHandlers) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	event, ok := h.eventAdmin(w, r, rbac.InClub, auth.RoleAdmin, auth.RoleAdminMember)
	if !ok {
		return
	}

	if err := h.events.Delete(r.Context(), event.ID); err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	httputil.WriteNoContent(w)
}

// SetStatus handles PUT /events/{event}/status
func (h *EventHandlers) SetStatus(w http.ResponseWriter, r *http.Request) {
	event, ok := h.eventAdmin(w, r, rbac.InClub, auth.RoleAdmin, auth.RoleAdminMember)
	if !ok {
		return
	}

	var req StatusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	status, err := events.ParseStatus(req.Status)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}

	updated, err := h.events.SetStatus(r.Context(), event.ID, status)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	audit.SetMetadata(r.Context(), "status", string(status))
	httputil.WriteSuccess(w, updated)
}

// Register handles POST /events/register/{event_id}
func (h *EventHandlers) Register(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	eventID, ok := httputil.ParsePathIDOrError(w, r, "event_id")
	if !ok {
		return
	}

	registration, err := h.events.Register(r.Context(), p.UserID, eventID)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	audit.Annotate(r.Context(), func(e *audit.AuditEvent) {
		e.ResourceID = registration.ID
		e.Metadata["event_id"] = eventID
	})
	httputil.WriteCreated(w, registration)
}

// ReviewRegistration handles POST /events/{event}/approve/{user} and the
// body form POST /events/{event}/approve. Only the club's admin-members may
// review; the global admin role does not apply.
func (h *EventHandlers) ReviewRegistration(w http.ResponseWriter, r *http.Request) {
	event, ok := h.eventAdmin(w, r, rbac.PivotIn, auth.RoleAdminMember)
	if !ok {
		return
	}

	var req ReviewRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if _, inPath := mux.Vars(r)["user"]; inPath {
		userID, ok := httputil.ParsePathIDOrError(w, r, "user")
		if !ok {
			return
		}
		req.UserID = userID
	} else if !uuidField(w, req.UserID, "user_id") {
		return
	}

	decision, err := events.ParseDecision(req.Status)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}

	registration, err := h.events.Review(r.Context(), event.ID, req.UserID, decision)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}

	observability.FromContext(r.Context(), h.logger).WithFields(logrus.Fields{
		"event_id":   event.ID,
		"registrant": req.UserID,
		"decision":   decision,
	}).Info("Registration reviewed")
	audit.Annotate(r.Context(), func(e *audit.AuditEvent) {
		e.ResourceID = registration.ID
		e.Metadata["event_id"] = event.ID
		e.Metadata["registrant"] = req.UserID
		e.Metadata["decision"] = string(decision)
	})
	httputil.WriteMessage(w, "registration "+string(decision), registration)
}

// annotateEvent scopes the request's audit event to event and its club
func annotateEvent(r *http.Request, event *events.Event) {
	audit.Annotate(r.Context(), func(e *audit.AuditEvent) {
		e.ClubID = event.ClubID
		e.ResourceID = event.ID
	})
}

// ListRegistrations handles GET /events/{event}/registrations
func (h *EventHandlers) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	event, ok := h.eventAdmin(w, r, rbac.PivotIn, auth.RoleAdminMember)
	if !ok {
		return
	}
	filter, ok := parseFilter(w, r, defaultRegistrationLimit, events.Statuses...)
	if !ok {
		return
	}

	registrations, total, err := h.events.ListEventRegistrations(r.Context(), event.ID, filter)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, httputil.NewPaginated(registrations, filter, total))
}

// eventAdmin loads the path event and authorizes the caller within the
// event's club
func (h *EventHandlers) eventAdmin(w http.ResponseWriter, r *http.Request, scopeFor func(string) rbac.Scope, roles ...auth.Role) (*events.Event, bool) {
	p, ok := principal(w, r)
	if !ok {
		return nil, false
	}
	eventID, ok := httputil.ParsePathIDOrError(w, r, "event")
	if !ok {
		return nil, false
	}

	event, err := h.events.Get(r.Context(), eventID)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return nil, false
	}
	annotateEvent(r, event)

	if _, err := h.resolver.Authorize(p, scopeFor(event.ClubID), roles...); err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return nil, false
	}
	return event, true
}
