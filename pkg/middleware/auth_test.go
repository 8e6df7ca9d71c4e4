package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/platinummonkey/clubhub/pkg/apperrors"
	"github.com/platinummonkey/clubhub/pkg/auth"
	"github.com/platinummonkey/clubhub/pkg/contextkeys"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLoader struct {
	loadFunc func(ctx context.Context, userID string) (*auth.Principal, error)
}

func (m *mockLoader) LoadPrincipal(ctx context.Context, userID string) (*auth.Principal, error) {
	return m.loadFunc(ctx, userID)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTokenManager() *auth.TokenManager {
	return auth.NewTokenManager(auth.TokenConfig{
		Secret:     "0123456789abcdef0123456789abcdef",
		Issuer:     "clubhub-test",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}, auth.NewMemoryRevocationStore(24 * time.Hour))
}

func studentLoader() *mockLoader {
	return &mockLoader{loadFunc: func(ctx context.Context, userID string) (*auth.Principal, error) {
		return &auth.Principal{UserID: userID, Email: "a@example.com", Role: auth.RoleStudent}, nil
	}}
}

func TestAuthMiddleware_Handler(t *testing.T) {
	tm := newTokenManager()
	pair, err := tm.IssuePair("user-1")
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		loader     *mockLoader
		optional   bool
		wantStatus int
		wantBody   string
	}{
		{name: "missing header", loader: studentLoader(), wantStatus: http.StatusUnauthorized, wantBody: `{"error":"missing authorization header"}`},
		{name: "missing header optional", loader: studentLoader(), optional: true, wantStatus: http.StatusOK},
		{name: "bad scheme", header: "Basic abc", loader: studentLoader(), wantStatus: http.StatusUnauthorized, wantBody: `{"error":"invalid authorization header format"}`},
		{name: "garbage token", header: "Bearer nope", loader: studentLoader(), wantStatus: http.StatusUnauthorized, wantBody: `{"error":"invalid or expired token"}`},
		{name: "refresh token rejected", header: "Bearer " + pair.RefreshToken, loader: studentLoader(), wantStatus: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer " + pair.AccessToken, loader: studentLoader(), wantStatus: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + pair.AccessToken, loader: studentLoader(), wantStatus: http.StatusOK},
		{
			name:   "deleted user",
			header: "Bearer " + pair.AccessToken,
			loader: &mockLoader{loadFunc: func(ctx context.Context, userID string) (*auth.Principal, error) {
				return nil, apperrors.NotFound("user not found")
			}},
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"error":"user no longer exists"}`,
		},
		{
			name:   "loader failure",
			header: "Bearer " + pair.AccessToken,
			loader: &mockLoader{loadFunc: func(ctx context.Context, userID string) (*auth.Principal, error) {
				return nil, errors.New("db down")
			}},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewAuthMiddleware(tm, tt.loader, quietLogger(), tt.optional)
			handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestAuthMiddleware_SetsPrincipalAndClaims(t *testing.T) {
	tm := newTokenManager()
	pair, err := tm.IssuePair("user-42")
	require.NoError(t, err)

	var principal *auth.Principal
	var claims *auth.Claims
	handler := NewAuthMiddleware(tm, studentLoader(), quietLogger(), false).Handler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal = contextkeys.GetPrincipal(r.Context())
			claims = contextkeys.GetClaims(r.Context())
		}))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, principal)
	require.NotNil(t, claims)
	assert.Equal(t, "user-42", principal.UserID)
	assert.Equal(t, claims.ID, principal.TokenID)
	assert.False(t, principal.TokenExpiresAt.IsZero())
}

func TestAuthMiddleware_RevokedToken(t *testing.T) {
	tm := newTokenManager()
	pair, err := tm.IssuePair("user-1")
	require.NoError(t, err)

	claims, err := tm.Validate(context.Background(), pair.AccessToken, auth.TokenTypeAccess)
	require.NoError(t, err)
	require.NoError(t, tm.Revoke(context.Background(), claims))

	handler := NewAuthMiddleware(tm, studentLoader(), quietLogger(), false).Handler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"token has been revoked"}`, rec.Body.String())
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	_, err := BearerToken(req)
	assert.Error(t, err)

	req.Header.Set("Authorization", "Bearer   ")
	_, err = BearerToken(req)
	assert.Error(t, err)

	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	token, err := BearerToken(req)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)
}
