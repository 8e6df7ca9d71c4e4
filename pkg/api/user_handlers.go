package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/clubhub/pkg/audit"
	"github.com/platinummonkey/clubhub/pkg/auth"
	"github.com/platinummonkey/clubhub/pkg/clubs"
	"github.com/platinummonkey/clubhub/pkg/events"
	"github.com/platinummonkey/clubhub/pkg/httputil"
	"github.com/platinummonkey/clubhub/pkg/rbac"
	"github.com/platinummonkey/clubhub/pkg/users"
	"github.com/sirupsen/logrus"
)

// ChangePasswordRequest is the body of PUT /users/password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UserHandlers handles account requests
type UserHandlers struct {
	users    users.Service
	clubs    clubs.Service
	events   events.Service
	resolver *rbac.Resolver
	logger   logrus.FieldLogger
	authn    func(http.Handler) http.Handler
	admin    func(http.Handler) http.Handler
}

// NewUserHandlers creates user handlers
func NewUserHandlers(userService users.Service, clubService clubs.Service, eventService events.Service, resolver *rbac.Resolver, logger logrus.FieldLogger, authn func(http.Handler) http.Handler) *UserHandlers {
	return &UserHandlers{
		users:    userService,
		clubs:    clubService,
		events:   eventService,
		resolver: resolver,
		logger:   logger,
		authn:    authn,
		admin:    rbac.RequireRoles(resolver, logger, rbac.NoScope, auth.RoleAdmin),
	}
}

// RegisterRoutes registers user routes
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/users", guarded(h.ListUsers, h.authn, h.admin)).Methods(http.MethodGet)
	router.Handle("/users", guarded(h.CreateUser, h.authn, h.admin)).Methods(http.MethodPost)
	// Registered before /users/{user} so "password" is not taken as an ID.
	router.Handle("/users/password", guarded(h.ChangePassword, h.authn)).Methods(http.MethodPut)
	router.Handle("/users/{user}", guarded(h.GetUser, h.authn)).Methods(http.MethodGet)
	router.Handle("/users/{user}", guarded(h.UpdateUser, h.authn)).Methods(http.MethodPut)
	router.Handle("/users/{user}", guarded(h.DeleteUser, h.authn, h.admin)).Methods(http.MethodDelete)
	router.Handle("/users/{user}/clubs", guarded(h.ListUserClubs, h.authn)).Methods(http.MethodGet)
	router.Handle("/users/{user}/events", guarded(h.ListUserEvents, h.authn)).Methods(http.MethodGet)
}

// ListUsers handles GET /users, optionally filtered by ?role=
func (h *UserHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r, defaultPageLimit)
	if !ok {
		return
	}
	filter.Status = httputil.StatusAll
	if raw := r.URL.Query().Get("role"); raw != "" {
		role, err := auth.ParseRole(raw)
		if err != nil {
			httputil.WriteValidationError(w, "invalid role filter: "+raw)
			return
		}
		filter.Status = string(role)
	}

	list, total, err := h.users.List(r.Context(), filter)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, httputil.NewPaginated(list, filter, total))
}

// CreateUser handles POST /users; the role defaults to student
func (h *UserHandlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req users.CreateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.users.Create(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	audit.Annotate(r.Context(), func(e *audit.AuditEvent) {
		e.ResourceID = user.ID
		e.Metadata["role"] = string(user.Role)
	})
	httputil.WriteCreated(w, user)
}

// GetUser handles GET /users/{user}
func (h *UserHandlers) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathIDOrError(w, r, "user")
	if !ok {
		return
	}

	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// UpdateUser handles PUT /users/{user}. Users may edit their own profile;
// only admins may edit others or change a role.
func (h *UserHandlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathIDOrError(w, r, "user")
	if !ok {
		return
	}
	p, ok := selfOrAdmin(w, r, userID)
	if !ok {
		return
	}

	var req users.UpdateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Role != nil && !p.IsAdmin() {
		httputil.WriteForbidden(w, "only administrators may change roles")
		return
	}

	user, err := h.users.Update(r.Context(), userID, req)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	if req.Role != nil {
		audit.SetEventType(r.Context(), audit.EventUserRoleChange)
		audit.SetMetadata(r.Context(), "role", string(*req.Role))
	}
	httputil.WriteSuccess(w, user)
}

// DeleteUser handles DELETE /users/{user}
func (h *UserHandlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathIDOrError(w, r, "user")
	if !ok {
		return
	}

	if err := h.users.Delete(r.Context(), userID); err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	httputil.WriteNoContent(w)
}

// ChangePassword handles PUT /users/password for the caller's own account
func (h *UserHandlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w,
		httputil.Required(req.CurrentPassword, "current_password"),
		httputil.Required(req.NewPassword, "new_password"),
	) {
		return
	}

	if err := h.users.ChangePassword(r.Context(), p.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	httputil.WriteMessage(w, "password updated", nil)
}

// ListUserClubs handles GET /users/{user}/clubs
func (h *UserHandlers) ListUserClubs(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathIDOrError(w, r, "user")
	if !ok {
		return
	}
	if _, ok := selfOrAdmin(w, r, userID); !ok {
		return
	}
	filter, ok := parseFilter(w, r, defaultPageLimit, clubs.Statuses...)
	if !ok {
		return
	}

	requests, total, err := h.clubs.ListUserRequests(r.Context(), userID, filter)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, httputil.NewPaginated(requests, filter, total))
}

// ListUserEvents handles GET /users/{user}/events
func (h *UserHandlers) ListUserEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathIDOrError(w, r, "user")
	if !ok {
		return
	}
	if _, ok := selfOrAdmin(w, r, userID); !ok {
		return
	}
	filter, ok := parseFilter(w, r, defaultPageLimit, events.Statuses...)
	if !ok {
		return
	}

	registrations, total, err := h.events.ListUserRegistrations(r.Context(), userID, filter)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, httputil.NewPaginated(registrations, filter, total))
}
