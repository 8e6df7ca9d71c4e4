package rbac

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/clubhub/pkg/auth"
	"github.com/platinummonkey/clubhub/pkg/contextkeys"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestRequireRoles(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	router := mux.NewRouter()
	var current *auth.Principal
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if current != nil {
				r = r.WithContext(contextkeys.WithPrincipal(r.Context(), current))
			}
			next.ServeHTTP(w, r)
		})
	})
	router.Handle("/clubs/{club}", RequireRoles(NewResolver(), logger, ClubVar("club"), auth.RoleAdmin, auth.RoleAdminMember)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))).Methods(http.MethodPut)

	tests := []struct {
		name       string
		principal  *auth.Principal
		path       string
		wantStatus int
	}{
		{"no principal", nil, "/clubs/" + clubX, http.StatusUnauthorized},
		{"admin", principal(auth.RoleAdmin), "/clubs/" + clubX, http.StatusOK},
		{"club admin-member", principal(auth.RoleMember, pivot(clubX, auth.RoleAdminMember)), "/clubs/" + clubX, http.StatusOK},
		{"admin-member of other club", principal(auth.RoleMember, pivot(clubY, auth.RoleAdminMember)), "/clubs/" + clubX, http.StatusForbidden},
		{"plain member", principal(auth.RoleMember, pivot(clubX, auth.RoleMember)), "/clubs/" + clubX, http.StatusForbidden},
		{"malformed club id", principal(auth.RoleAdmin), "/clubs/not-a-uuid", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current = tt.principal
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
