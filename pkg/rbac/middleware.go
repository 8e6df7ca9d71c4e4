package rbac

import (
	"net/http"

	"github.com/platinummonkey/clubhub/pkg/auth"
	"github.com/platinummonkey/clubhub/pkg/contextkeys"
	"github.com/platinummonkey/clubhub/pkg/httputil"
	"github.com/sirupsen/logrus"
)

// ScopeFunc derives the authorization scope from a request
type ScopeFunc func(r *http.Request) (Scope, error)

// NoScope is a ScopeFunc for unscoped routes
func NoScope(*http.Request) (Scope, error) {
	return Unscoped, nil
}

// ClubVar scopes the check to the club ID found in a mux path variable
func ClubVar(name string) ScopeFunc {
	return func(r *http.Request) (Scope, error) {
		clubID, err := httputil.ParsePathID(r, name)
		if err != nil {
			return Scope{}, err
		}
		return InClub(clubID), nil
	}
}

// RequireRoles rejects requests whose principal does not hold one of roles
// within the request's scope. It expects the auth middleware to have run.
func RequireRoles(resolver *Resolver, logger logrus.FieldLogger, scopeFn ScopeFunc, roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := contextkeys.GetPrincipal(r.Context())
			if principal == nil {
				httputil.WriteUnauthorized(w, "unauthenticated")
				return
			}

			scope, err := scopeFn(r)
			if err != nil {
				httputil.WriteNotFoundError(w, err.Error())
				return
			}

			if _, err := resolver.Authorize(principal, scope, roles...); err != nil {
				httputil.WriteAppError(w, logger, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
