package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/clubhub/pkg/announcements"
	"github.com/platinummonkey/clubhub/pkg/audit"
	"github.com/platinummonkey/clubhub/pkg/auth"
	"github.com/platinummonkey/clubhub/pkg/clubs"
	"github.com/platinummonkey/clubhub/pkg/httputil"
	"github.com/platinummonkey/clubhub/pkg/observability"
	"github.com/platinummonkey/clubhub/pkg/rbac"
	"github.com/sirupsen/logrus"
)

// ReviewRequest is the body of membership and registration reviews
type ReviewRequest struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// PromoteRequest is the body of PUT /clubs/{club}/admin
type PromoteRequest struct {
	UserID string `json:"user_id"`
}

// ClubHandlers handles club, membership and announcement requests
type ClubHandlers struct {
	clubs         clubs.Service
	announcements announcements.Service
	resolver      *rbac.Resolver
	logger        logrus.FieldLogger
	authn         func(http.Handler) http.Handler
	clubAdmin     func(http.Handler) http.Handler
}

// NewClubHandlers creates club handlers
func NewClubHandlers(clubService clubs.Service, announcementService announcements.Service, resolver *rbac.Resolver, logger logrus.FieldLogger, authn func(http.Handler) http.Handler) *ClubHandlers {
	return &ClubHandlers{
		clubs:         clubService,
		announcements: announcementService,
		resolver:      resolver,
		logger:        logger,
		authn:         authn,
		clubAdmin:     rbac.RequireRoles(resolver, logger, rbac.ClubVar("club"), auth.RoleAdmin, auth.RoleAdminMember),
	}
}

// RegisterRoutes registers club routes
func (h *ClubHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/clubs", h.ListClubs).Methods(http.MethodGet)
	router.Handle("/clubs", guarded(h.CreateClub, h.authn)).Methods(http.MethodPost)
	router.Handle("/clubs/join/{club_id}", guarded(h.JoinClub, h.authn)).Methods(http.MethodPost)
	router.HandleFunc("/clubs/{club}", h.GetClub).Methods(http.MethodGet)
	router.Handle("/clubs/{club}", guarded(h.UpdateClub, h.authn, h.clubAdmin)).Methods(http.MethodPut)
	router.Handle("/clubs/{club}", guarded(h.DeleteClub, h.authn, h.clubAdmin)).Methods(http.MethodDelete)

	// Membership
	router.Handle("/clubs/{club}/approve-student", guarded(h.ReviewJoin, h.authn, h.clubAdmin)).Methods(http.MethodPost)
	router.Handle("/clubs/{club}/admin", guarded(h.PromoteToAdmin, h.authn, h.clubAdmin)).Methods(http.MethodPut)
	router.HandleFunc("/clubs/{club}/members", h.ListMembers).Methods(http.MethodGet)
	router.Handle("/clubs/{club}/requests", guarded(h.ListRequests, h.authn, h.clubAdmin)).Methods(http.MethodGet)

	// Announcements
	router.HandleFunc("/clubs/{club}/announcements", h.ListAnnouncements).Methods(http.MethodGet)
	router.Handle("/clubs/{club}/announcements", guarded(h.CreateAnnouncement, h.authn, h.clubAdmin)).Methods(http.MethodPost)
	router.Handle("/clubs/{club}/announcements/{announcement}", guarded(h.DeleteAnnouncement, h.authn, h.clubAdmin)).Methods(http.MethodDelete)
}

// ListClubs handles GET /clubs
func (h *ClubHandlers) ListClubs(w http.ResponseWriter, r *http.Request) {
	list, err := h.clubs.List(r.Context())
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// CreateClub handles POST /clubs; the creator becomes the club's admin-member
func (h *ClubHandlers) CreateClub(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req clubs.CreateClubRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	club, err := h.clubs.Create(r.Context(), p.UserID, req)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	audit.Annotate(r.Context(), func(e *audit.AuditEvent) {
		e.ClubID = club.ID
		e.ResourceID = club.ID
	})
	httputil.WriteCreated(w, club)
}

// GetClub handles GET /clubs/{club}
func (h *ClubHandlers) GetClub(w http.ResponseWriter, r *http.Request) {
	clubID, ok := httputil.ParsePathIDOrError(w, r, "club")
	if !ok {
		return
	}

	club, err := h.clubs.Get(r.Context(), clubID)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, club)
}

// UpdateClub handles PUT /clubs/{club}
func (h *ClubHandlers) UpdateClub(w http.ResponseWriter, r *http.Request) {
	clubID, ok := httputil.ParsePathIDOrError(w, r, "club")
	if !ok {
		return
	}

	var req clubs.UpdateClubRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	club, err := h.clubs.Update(r.Context(), clubID, req)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, club)
}

// DeleteClub handles DELETE /clubs/{club}
func (h *ClubHandlers) DeleteClub(w http.ResponseWriter, r *http.Request) {
	clubID, ok := httputil.ParsePathIDOrError(w, r, "club")
	if !ok {
		return
	}

	if err := h.clubs.Delete(r.Context(), clubID); err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	httputil.WriteNoContent(w)
}

// JoinClub handles POST /clubs/join/{club_id}
func (h *ClubHandlers) JoinClub(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	clubID, ok := httputil.ParsePathIDOrError(w, r, "club_id")
	if !ok {
		return
	}

	membership, err := h.clubs.RequestJoin(r.Context(), p.UserID, clubID)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	audit.Annotate(r.Context(), func(e *audit.AuditEvent) { e.ResourceID = membership.ID })
	httputil.WriteMessage(w, "join request sent", membership)
}

// ReviewJoin handles POST /clubs/{club}/approve-student
func (h *ClubHandlers) ReviewJoin(w http.ResponseWriter, r *http.Request) {
	clubID, ok := httputil.ParsePathIDOrError(w, r, "club")
	if !ok {
		return
	}

	var req ReviewRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !uuidField(w, req.UserID, "user_id") {
		return
	}
	decision, err := clubs.ParseDecision(req.Status)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}

	membership, err := h.clubs.ReviewJoin(r.Context(), clubID, req.UserID, decision)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}

	observability.FromContext(r.Context(), h.logger).WithFields(logrus.Fields{
		"club_id":  clubID,
		"member":   req.UserID,
		"decision": decision,
	}).Info("Join request reviewed")
	audit.Annotate(r.Context(), func(e *audit.AuditEvent) {
		e.ResourceID = membership.ID
		e.Metadata["member"] = req.UserID
		e.Metadata["decision"] = string(decision)
	})
	httputil.WriteMessage(w, "membership request "+string(decision), membership)
}

// PromoteToAdmin handles PUT /clubs/{club}/admin
func (h *ClubHandlers) PromoteToAdmin(w http.ResponseWriter, r *http.Request) {
	clubID, ok := httputil.ParsePathIDOrError(w, r, "club")
	if !ok {
		return
	}

	var req PromoteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !uuidField(w, req.UserID, "user_id") {
		return
	}

	membership, err := h.clubs.PromoteToAdmin(r.Context(), clubID, req.UserID)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	audit.Annotate(r.Context(), func(e *audit.AuditEvent) {
		e.ResourceID = membership.ID
		e.Metadata["member"] = req.UserID
	})
	httputil.WriteMessage(w, "member promoted to club admin", membership)
}

// ListMembers handles GET /clubs/{club}/members
func (h *ClubHandlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	clubID, ok := httputil.ParsePathIDOrError(w, r, "club")
	if !ok {
		return
	}

	members, err := h.clubs.ListMembers(r.Context(), clubID)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, members)
}

// ListRequests handles GET /clubs/{club}/requests
func (h *ClubHandlers) ListRequests(w http.ResponseWriter, r *http.Request) {
	clubID, ok := httputil.ParsePathIDOrError(w, r, "club")
	if !ok {
		return
	}
	filter, ok := parseFilter(w, r, defaultPageLimit, clubs.Statuses...)
	if !ok {
		return
	}

	requests, total, err := h.clubs.ListClubRequests(r.Context(), clubID, filter)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, httputil.NewPaginated(requests, filter, total))
}

// ListAnnouncements handles GET /clubs/{club}/announcements
func (h *ClubHandlers) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	clubID, ok := httputil.ParsePathIDOrError(w, r, "club")
	if !ok {
		return
	}

	list, err := h.announcements.List(r.Context(), clubID)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// CreateAnnouncement handles POST /clubs/{club}/announcements
func (h *ClubHandlers) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	clubID, ok := httputil.ParsePathIDOrError(w, r, "club")
	if !ok {
		return
	}

	var req announcements.CreateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	announcement, err := h.announcements.Create(r.Context(), clubID, p.UserID, req)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	httputil.WriteCreated(w, announcement)
}

// DeleteAnnouncement handles DELETE /clubs/{club}/announcements/{announcement}
func (h *ClubHandlers) DeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	clubID, ok := httputil.ParsePathIDOrError(w, r, "club")
	if !ok {
		return
	}
	announcementID, ok := httputil.ParsePathIDOrError(w, r, "announcement")
	if !ok {
		return
	}

	if err := h.announcements.Delete(r.Context(), clubID, announcementID); err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	httputil.WriteNoContent(w)
}
