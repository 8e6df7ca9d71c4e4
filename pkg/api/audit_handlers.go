package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/clubhub/pkg/audit"
	"github.com/platinummonkey/clubhub/pkg/auth"
	"github.com/platinummonkey/clubhub/pkg/httputil"
	"github.com/platinummonkey/clubhub/pkg/rbac"
	"github.com/sirupsen/logrus"
)

// Audit listing limits
const (
	defaultAuditLimit = 50
	maxExportEvents   = 10000
)

var auditStatuses = []string{
	string(audit.StatusSuccess),
	string(audit.StatusFailure),
	string(audit.StatusDenied),
}

// AuditHandlers serves the audit trail
type AuditHandlers struct {
	store     audit.Store
	logger    logrus.FieldLogger
	authn     func(http.Handler) http.Handler
	admin     func(http.Handler) http.Handler
	clubAdmin func(http.Handler) http.Handler
}

// NewAuditHandlers creates audit handlers
func NewAuditHandlers(store audit.Store, resolver *rbac.Resolver, logger logrus.FieldLogger, authn func(http.Handler) http.Handler) *AuditHandlers {
	return &AuditHandlers{
		store:     store,
		logger:    logger,
		authn:     authn,
		admin:     rbac.RequireRoles(resolver, logger, rbac.NoScope, auth.RoleAdmin),
		clubAdmin: rbac.RequireRoles(resolver, logger, rbac.ClubVar("club"), auth.RoleAdmin, auth.RoleAdminMember),
	}
}

// RegisterRoutes registers audit routes
func (h *AuditHandlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/audit", guarded(h.Search, h.authn, h.admin)).Methods(http.MethodGet)
	router.Handle("/audit/export", guarded(h.Export, h.authn, h.admin)).Methods(http.MethodGet)
	router.Handle("/clubs/{club}/audit", guarded(h.SearchClub, h.authn, h.clubAdmin)).Methods(http.MethodGet)
}

// Search handles GET /audit
func (h *AuditHandlers) Search(w http.ResponseWriter, r *http.Request) {
	page, filter, ok := h.parseSearch(w, r)
	if !ok {
		return
	}
	h.writePage(w, r, page, filter)
}

// SearchClub handles GET /clubs/{club}/audit; results never leave the club
func (h *AuditHandlers) SearchClub(w http.ResponseWriter, r *http.Request) {
	clubID, ok := httputil.ParsePathIDOrError(w, r, "club")
	if !ok {
		return
	}
	page, filter, ok := h.parseSearch(w, r)
	if !ok {
		return
	}
	filter.ClubID = clubID
	h.writePage(w, r, page, filter)
}

// Export handles GET /audit/export?format=json|csv|ndjson
func (h *AuditHandlers) Export(w http.ResponseWriter, r *http.Request) {
	format, err := audit.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	_, filter, ok := h.parseSearch(w, r)
	if !ok {
		return
	}
	filter.Limit = maxExportEvents
	filter.Offset = 0

	events, _, err := h.store.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}

	filename := fmt.Sprintf("audit-%s.%s", time.Now().UTC().Format("20060102-150405"), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if err := audit.Export(w, events, format); err != nil {
		h.logger.WithError(err).Error("Failed to write audit export")
	}
}

func (h *AuditHandlers) writePage(w http.ResponseWriter, r *http.Request, page httputil.Filter, filter audit.SearchFilter) {
	events, total, err := h.store.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, httputil.NewPaginated(events, page, total))
}

// parseSearch reads the audit query parameters or writes 422
func (h *AuditHandlers) parseSearch(w http.ResponseWriter, r *http.Request) (httputil.Filter, audit.SearchFilter, bool) {
	page, ok := parseFilter(w, r, defaultAuditLimit, auditStatuses...)
	if !ok {
		return httputil.Filter{}, audit.SearchFilter{}, false
	}

	q := r.URL.Query()
	filter := audit.SearchFilter{
		Status:       audit.EventStatus(page.StatusFilter()),
		UserID:       q.Get("user_id"),
		ClubID:       q.Get("club_id"),
		ResourceType: audit.ResourceType(q.Get("resource_type")),
		ResourceID:   q.Get("resource_id"),
		Limit:        page.Limit,
		Offset:       page.Offset(),
	}
	for _, field := range []string{"user_id", "club_id"} {
		if v := q.Get(field); v != "" && !httputil.IsUUID(v) {
			httputil.WriteValidationError(w, "invalid "+field+": "+v)
			return httputil.Filter{}, audit.SearchFilter{}, false
		}
	}
	if raw := q.Get("event_type"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.EventTypes = append(filter.EventTypes, audit.EventType(t))
			}
		}
	}

	var err error
	if filter.StartTime, err = parseTimeParam(r, "from"); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return httputil.Filter{}, audit.SearchFilter{}, false
	}
	if filter.EndTime, err = parseTimeParam(r, "to"); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return httputil.Filter{}, audit.SearchFilter{}, false
	}
	if filter.StartTime != nil && filter.EndTime != nil && filter.EndTime.Before(*filter.StartTime) {
		httputil.WriteValidationError(w, "to must not be before from")
		return httputil.Filter{}, audit.SearchFilter{}, false
	}
	return page, filter, true
}

func parseTimeParam(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: must be an RFC3339 timestamp", key)
	}
	return &t, nil
}
