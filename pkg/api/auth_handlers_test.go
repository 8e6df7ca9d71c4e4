package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/platinummonkey/clubhub/pkg/apperrors"
	"github.com/platinummonkey/clubhub/pkg/auth"
	"github.com/platinummonkey/clubhub/pkg/middleware"
	"github.com/platinummonkey/clubhub/pkg/users"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	h := newHarness(t)
	h.principals[clubMgr] = clubAdminOf(clubA)
	h.users.authenticateFunc = func(_ context.Context, email, password string) (*users.User, error) {
		if email == "manager@example.edu" && password == "secret123" {
			return &users.User{ID: clubMgr, Email: email, Role: auth.RoleMember}, nil
		}
		return nil, apperrors.Unauthenticated("invalid credentials")
	}

	t.Run("valid credentials", func(t *testing.T) {
		w := h.do(http.MethodPost, "/auth/login", "", LoginRequest{Email: "manager@example.edu", Password: "secret123"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp struct {
			AccessToken  string      `json:"access_token"`
			RefreshToken string      `json:"refresh_token"`
			TokenType    string      `json:"token_type"`
			ExpiresIn    int64       `json:"expires_in"`
			Role         auth.Role   `json:"role"`
			User         *users.User `json:"user"`
		}
		decode(t, w, &resp)
		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEmpty(t, resp.RefreshToken)
		assert.Equal(t, "bearer", resp.TokenType)
		assert.Equal(t, int64(3600), resp.ExpiresIn)
		// a global member reports the pivot role of their best club
		assert.Equal(t, auth.RoleAdminMember, resp.Role)
		assert.Equal(t, clubMgr, resp.User.ID)

		claims, err := h.tokens.Validate(context.Background(), resp.AccessToken, auth.TokenTypeAccess)
		require.NoError(t, err)
		assert.Equal(t, clubMgr, claims.Subject)
		assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.AuthEventsTotal.WithLabelValues("login", "success")))
	})

	t.Run("bad credentials", func(t *testing.T) {
		w := h.do(http.MethodPost, "/auth/login", "", LoginRequest{Email: "manager@example.edu", Password: "wrong-pass"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "invalid credentials", errorMessage(t, w))
		assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.AuthEventsTotal.WithLabelValues("login", "failure")))
	})

	t.Run("missing fields", func(t *testing.T) {
		w := h.do(http.MethodPost, "/auth/login", "", LoginRequest{Email: "manager@example.edu"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestRegister(t *testing.T) {
	h := newHarness(t)

	var got users.CreateUserRequest
	h.users.registerFunc = func(_ context.Context, req users.CreateUserRequest) (*users.User, error) {
		got = req
		if req.Email == "taken@example.edu" {
			return nil, apperrors.Validation("the email has already been taken")
		}
		return &users.User{ID: userA, Email: req.Email, Role: auth.RoleStudent, Image: users.DefaultImage}, nil
	}

	w := h.do(http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Ada", "email": "ada@example.edu", "password": "password1", "role": "admin",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "ada@example.edu", got.Email)

	var user users.User
	decode(t, w, &user)
	assert.Equal(t, auth.RoleStudent, user.Role)
	assert.Equal(t, users.DefaultImage, user.Image)

	w = h.do(http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Ada", "email": "taken@example.edu", "password": "password1",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "the email has already been taken", errorMessage(t, w))
}

func TestRefresh(t *testing.T) {
	h := newHarness(t)
	h.as(student(userA))

	pair, err := h.tokens.IssuePair(userA)
	require.NoError(t, err)

	w := h.do(http.MethodPost, "/auth/refresh", pair.RefreshToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var next auth.TokenPair
	decode(t, w, &next)
	assert.NotEmpty(t, next.AccessToken)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// the rotated refresh token is revoked
	w = h.do(http.MethodPost, "/auth/refresh", pair.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "token has been revoked", errorMessage(t, w))

	// the new one works from the body too
	w = h.do(http.MethodPost, "/auth/refresh", "", RefreshRequest{RefreshToken: next.RefreshToken})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefresh_Rejected(t *testing.T) {
	h := newHarness(t)
	access := h.as(student(userA))

	tests := []struct {
		name  string
		token string
	}{
		{name: "access token", token: access},
		{name: "garbage", token: "not-a-jwt"},
		{name: "missing", token: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(http.MethodPost, "/auth/refresh", tt.token, nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRefresh_DeletedUser(t *testing.T) {
	h := newHarness(t)
	h.users.getFunc = func(context.Context, string) (*users.User, error) {
		return nil, apperrors.NotFound("user not found")
	}

	pair, err := h.tokens.IssuePair(userA)
	require.NoError(t, err)

	w := h.do(http.MethodPost, "/auth/refresh", pair.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "user no longer exists", errorMessage(t, w))
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.principals[userA] = student(userA)

	pair, err := h.tokens.IssuePair(userA)
	require.NoError(t, err)

	w := h.do(http.MethodGet, "/auth/me", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodPost, "/auth/logout", pair.AccessToken, RefreshRequest{RefreshToken: pair.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(http.MethodGet, "/auth/me", pair.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "token has been revoked", errorMessage(t, w))

	w = h.do(http.MethodPost, "/auth/refresh", pair.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogout_ForeignRefreshToken(t *testing.T) {
	h := newHarness(t)
	access := h.as(student(userA))

	other, err := h.tokens.IssuePair(userB)
	require.NoError(t, err)

	w := h.do(http.MethodPost, "/auth/logout", access, RefreshRequest{RefreshToken: other.RefreshToken})
	assert.Equal(t, http.StatusForbidden, w.Code)

	_, err = h.tokens.Validate(context.Background(), other.RefreshToken, auth.TokenTypeRefresh)
	assert.NoError(t, err)

	// the rejected logout leaves the caller signed in
	_, err = h.tokens.Validate(context.Background(), access, auth.TokenTypeAccess)
	assert.NoError(t, err)
	w = h.do(http.MethodGet, "/auth/me", access, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMe(t *testing.T) {
	h := newHarness(t)
	token := h.as(clubAdminOf(clubA))

	w := h.do(http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var me struct {
		ID            string            `json:"id"`
		EffectiveRole auth.Role         `json:"effective_role"`
		Memberships   []auth.Membership `json:"memberships"`
	}
	decode(t, w, &me)
	assert.Equal(t, clubMgr, me.ID)
	assert.Equal(t, auth.RoleAdminMember, me.EffectiveRole)
	require.Len(t, me.Memberships, 1)
	assert.Equal(t, clubA, me.Memberships[0].ClubID)

	w = h.do(http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_RateLimited(t *testing.T) {
	limiter := middleware.NewMemoryLimiter(middleware.RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}, 10)
	h := newHarness(t, withLimiter(limiter))

	for i := 0; i < 2; i++ {
		w := h.do(http.MethodPost, "/auth/login", "", LoginRequest{Email: "a@example.edu", Password: "whatever1"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := h.do(http.MethodPost, "/auth/login", "", LoginRequest{Email: "a@example.edu", Password: "whatever1"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	// other endpoints are not throttled
	w = h.do(http.MethodGet, "/clubs", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefresh_RateLimited(t *testing.T) {
	limiter := middleware.NewMemoryLimiter(middleware.RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}, 10)
	h := newHarness(t, withLimiter(limiter))

	for i := 0; i < 2; i++ {
		w := h.do(http.MethodPost, "/auth/refresh", "not.a.jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := h.do(http.MethodPost, "/auth/refresh", "not.a.jwt", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
