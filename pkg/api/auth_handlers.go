package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/clubhub/pkg/apperrors"
	"github.com/platinummonkey/clubhub/pkg/audit"
	"github.com/platinummonkey/clubhub/pkg/auth"
	"github.com/platinummonkey/clubhub/pkg/contextkeys"
	"github.com/platinummonkey/clubhub/pkg/httputil"
	"github.com/platinummonkey/clubhub/pkg/middleware"
	"github.com/platinummonkey/clubhub/pkg/observability"
	"github.com/platinummonkey/clubhub/pkg/rbac"
	"github.com/platinummonkey/clubhub/pkg/users"
	"github.com/sirupsen/logrus"
)

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued tokens and the caller's effective role
type LoginResponse struct {
	*auth.TokenPair
	Role auth.Role   `json:"role"`
	User *users.User `json:"user"`
}

// RefreshRequest is the optional body of /auth/refresh and /auth/logout
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// MeResponse describes the authenticated caller
type MeResponse struct {
	*users.User
	EffectiveRole auth.Role         `json:"effective_role"`
	Memberships   []auth.Membership `json:"memberships"`
}

// AuthHandlers handles authentication requests
type AuthHandlers struct {
	users    users.Service
	tokens   *auth.TokenManager
	resolver *rbac.Resolver
	metrics  *observability.Metrics
	logger   logrus.FieldLogger
	authn    func(http.Handler) http.Handler
	throttle func(http.Handler) http.Handler
}

// NewAuthHandlers creates auth handlers. throttle wraps the credential
// endpoints and authn the endpoints that need a valid access token.
func NewAuthHandlers(
	userService users.Service,
	tokens *auth.TokenManager,
	resolver *rbac.Resolver,
	metrics *observability.Metrics,
	logger logrus.FieldLogger,
	authn, throttle func(http.Handler) http.Handler,
) *AuthHandlers {
	return &AuthHandlers{
		users:    userService,
		tokens:   tokens,
		resolver: resolver,
		metrics:  metrics,
		logger:   logger,
		authn:    authn,
		throttle: throttle,
	}
}

// RegisterRoutes registers authentication routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/auth/login", guarded(h.Login, h.throttle)).Methods(http.MethodPost)
	router.Handle("/auth/register", guarded(h.Register, h.throttle)).Methods(http.MethodPost)
	router.Handle("/auth/refresh", guarded(h.Refresh, h.throttle)).Methods(http.MethodPost)
	router.Handle("/auth/logout", guarded(h.Logout, h.authn)).Methods(http.MethodPost)
	router.Handle("/auth/me", guarded(h.Me, h.authn)).Methods(http.MethodGet)
}

// Login exchanges credentials for a token pair
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		httputil.WriteValidationError(w, "email and password are required")
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.record("login", err)
		httputil.WriteAppError(w, h.logger, err)
		return
	}

	principal, err := h.users.LoadPrincipal(r.Context(), user.ID)
	if err != nil {
		h.record("login", err)
		httputil.WriteAppError(w, h.logger, err)
		return
	}

	pair, err := h.tokens.IssuePair(user.ID)
	if err != nil {
		h.record("login", err)
		httputil.WriteAppError(w, h.logger, err)
		return
	}

	h.record("login", nil)
	audit.SetActor(r.Context(), user.ID, user.Email)
	observability.FromContext(r.Context(), h.logger).WithField("user_id", user.ID).Info("User logged in")
	httputil.WriteSuccess(w, LoginResponse{
		TokenPair: pair,
		Role:      h.resolver.EffectiveRole(principal, rbac.Unscoped),
		User:      user,
	})
}

// Register creates a student account
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req users.CreateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.users.Register(r.Context(), req)
	if err != nil {
		h.record("register", err)
		httputil.WriteAppError(w, h.logger, err)
		return
	}

	h.record("register", nil)
	audit.SetActor(r.Context(), user.ID, user.Email)
	audit.Annotate(r.Context(), func(e *audit.AuditEvent) { e.ResourceID = user.ID })
	httputil.WriteCreated(w, user)
}

// Refresh rotates a refresh token. The token is read from the bearer header,
// or from the body when no header is sent.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	token, err := middleware.BearerToken(r)
	if err != nil {
		var req RefreshRequest
		if !parseOptionalJSON(w, r, &req) {
			return
		}
		if req.RefreshToken == "" {
			httputil.WriteUnauthorized(w, err.Error())
			return
		}
		token = req.RefreshToken
	}

	pair, claims, err := h.tokens.Refresh(r.Context(), token)
	if err != nil {
		h.record("refresh", err)
		h.writeTokenError(w, err)
		return
	}

	// The account may have been deleted since the token was issued.
	if _, err := h.users.Get(r.Context(), claims.Subject); err != nil {
		h.record("refresh", err)
		if apperrors.Is(err, apperrors.KindNotFound) {
			httputil.WriteUnauthorized(w, "user no longer exists")
			return
		}
		httputil.WriteAppError(w, h.logger, err)
		return
	}

	h.record("refresh", nil)
	httputil.WriteSuccess(w, pair)
}

// Logout revokes the presented access token and, when given, the refresh token
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	claims := contextkeys.GetClaims(r.Context())
	if claims == nil {
		httputil.WriteUnauthorized(w, "unauthenticated")
		return
	}

	var req RefreshRequest
	if !parseOptionalJSON(w, r, &req) {
		return
	}

	// Nothing is revoked until the body token has been checked.
	var refresh *auth.Claims
	if req.RefreshToken != "" {
		parsed, err := h.tokens.Validate(r.Context(), req.RefreshToken, auth.TokenTypeRefresh)
		switch {
		case err != nil:
			// An unusable refresh token needs no revocation.
			observability.FromContext(r.Context(), h.logger).WithError(err).Debug("Ignoring refresh token on logout")
		case parsed.Subject != claims.Subject:
			httputil.WriteForbidden(w, "refresh token belongs to another user")
			return
		default:
			refresh = parsed
		}
	}

	for _, c := range []*auth.Claims{claims, refresh} {
		if c == nil {
			continue
		}
		if err := h.tokens.Revoke(r.Context(), c); err != nil {
			h.record("logout", err)
			httputil.WriteAppError(w, h.logger, err)
			return
		}
	}

	h.record("logout", nil)
	httputil.WriteMessage(w, "logged out", nil)
}

// Me returns the caller with their effective role and memberships
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	user, err := h.users.Get(r.Context(), p.UserID)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}

	memberships := p.Memberships
	if memberships == nil {
		memberships = []auth.Membership{}
	}
	httputil.WriteSuccess(w, MeResponse{
		User:          user,
		EffectiveRole: h.resolver.EffectiveRole(p, rbac.Unscoped),
		Memberships:   memberships,
	})
}

func (h *AuthHandlers) writeTokenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		httputil.WriteUnauthorized(w, "token has expired")
	case errors.Is(err, auth.ErrRevokedToken):
		httputil.WriteUnauthorized(w, "token has been revoked")
	case errors.Is(err, auth.ErrWrongTokenType), errors.Is(err, auth.ErrInvalidToken):
		httputil.WriteUnauthorized(w, "invalid or expired token")
	default:
		httputil.WriteAppError(w, h.logger, err)
	}
}

func (h *AuthHandlers) record(event string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	h.metrics.AuthEventsTotal.WithLabelValues(event, result).Inc()
}
