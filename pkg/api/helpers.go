package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/platinummonkey/clubhub/pkg/auth"
	"github.com/platinummonkey/clubhub/pkg/contextkeys"
	"github.com/platinummonkey/clubhub/pkg/httputil"
	"github.com/platinummonkey/clubhub/pkg/rbac"
	"github.com/sirupsen/logrus"
)

// Default page sizes of nested listings
const (
	defaultPageLimit         = 10
	defaultRegistrationLimit = 50
)

// guarded wraps a handler with middlewares, outermost first
func guarded(h http.HandlerFunc, mws ...func(http.Handler) http.Handler) http.Handler {
	return httputil.Chain(mws...)(h)
}

// principal returns the authenticated caller or writes 401
func principal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	p := contextkeys.GetPrincipal(r.Context())
	if p == nil {
		httputil.WriteUnauthorized(w, "unauthenticated")
		return nil, false
	}
	return p, true
}

// authorize checks the caller against roles in scope and writes 401/403 on failure
func authorize(w http.ResponseWriter, r *http.Request, resolver *rbac.Resolver, logger logrus.FieldLogger, scope rbac.Scope, roles ...auth.Role) (*auth.Principal, bool) {
	p, ok := principal(w, r)
	if !ok {
		return nil, false
	}
	if _, err := resolver.Authorize(p, scope, roles...); err != nil {
		httputil.WriteAppError(w, logger, err)
		return nil, false
	}
	return p, true
}

// selfOrAdmin lets a user act on their own account, and admins on any
func selfOrAdmin(w http.ResponseWriter, r *http.Request, userID string) (*auth.Principal, bool) {
	p, ok := principal(w, r)
	if !ok {
		return nil, false
	}
	if p.UserID != userID && !p.IsAdmin() {
		httputil.WriteForbidden(w, "you do not have permission to perform this action")
		return nil, false
	}
	return p, true
}

// parseOptionalJSON decodes a body that may be empty
func parseOptionalJSON(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := httputil.ParseJSON(r, dest); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		httputil.WriteValidationError(w, err.Error())
		return false
	}
	return true
}

// parseFilter reads the pagination query or writes 422
func parseFilter(w http.ResponseWriter, r *http.Request, defaultLimit int, statuses ...string) (httputil.Filter, bool) {
	filter, err := httputil.ParseFilter(r, defaultLimit, statuses...)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return httputil.Filter{}, false
	}
	return filter, true
}

// uuidField validates an ID carried in a JSON body; malformed IDs cannot
// match a row and are reported as 404
func uuidField(w http.ResponseWriter, value, field string) bool {
	if value == "" {
		httputil.WriteValidationError(w, field+" is required")
		return false
	}
	if !httputil.IsUUID(value) {
		httputil.WriteNotFoundError(w, "invalid id for "+field+": "+value)
		return false
	}
	return true
}
