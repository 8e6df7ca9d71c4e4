package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/clubhub/pkg/apperrors"
	"github.com/platinummonkey/clubhub/pkg/audit"
	"github.com/platinummonkey/clubhub/pkg/auth"
	"github.com/platinummonkey/clubhub/pkg/contextkeys"
	"github.com/platinummonkey/clubhub/pkg/httputil"
	"github.com/sirupsen/logrus"
)

// TokenValidator validates bearer tokens
type TokenValidator interface {
	Validate(ctx context.Context, token string, want auth.TokenType) (*auth.Claims, error)
}

// PrincipalLoader loads the user and club memberships behind a token subject
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, userID string) (*auth.Principal, error)
}

// AuthMiddleware provides authentication middleware
type AuthMiddleware struct {
	tokens   TokenValidator
	loader   PrincipalLoader
	logger   logrus.FieldLogger
	optional bool // If true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokens TokenValidator, loader PrincipalLoader, logger logrus.FieldLogger, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:   tokens,
		loader:   loader,
		logger:   logger,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with access token authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := BearerToken(r)
		if err != nil {
			if m.optional && r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, err.Error())
			return
		}

		claims, err := m.tokens.Validate(r.Context(), token, auth.TokenTypeAccess)
		if err != nil {
			m.writeTokenError(w, err)
			return
		}

		principal, err := m.loader.LoadPrincipal(r.Context(), claims.Subject)
		if err != nil {
			if apperrors.Is(err, apperrors.KindNotFound) {
				httputil.WriteUnauthorized(w, "user no longer exists")
				return
			}
			httputil.WriteAppError(w, m.logger, err)
			return
		}
		principal.TokenID = claims.ID
		if claims.ExpiresAt != nil {
			principal.TokenExpiresAt = claims.ExpiresAt.Time
		}

		audit.SetActor(r.Context(), principal.UserID, principal.Email)
		ctx := contextkeys.WithPrincipal(r.Context(), principal)
		ctx = contextkeys.WithClaims(ctx, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) writeTokenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		httputil.WriteUnauthorized(w, "token has expired")
	case errors.Is(err, auth.ErrRevokedToken):
		httputil.WriteUnauthorized(w, "token has been revoked")
	case errors.Is(err, auth.ErrWrongTokenType), errors.Is(err, auth.ErrInvalidToken):
		httputil.WriteUnauthorized(w, "invalid or expired token")
	default:
		httputil.WriteAppError(w, m.logger, err)
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header
func BearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errors.New("invalid authorization header format")
	}
	return strings.TrimSpace(parts[1]), nil
}
