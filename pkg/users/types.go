package users

import (
	"context"
	"strings"
	"time"

	"github.com/platinummonkey/clubhub/pkg/apperrors"
	"github.com/platinummonkey/clubhub/pkg/auth"
	"github.com/platinummonkey/clubhub/pkg/httputil"
)

// DefaultImage is assigned to accounts created without an image
const DefaultImage = "users/default.png"

// User is an account
type User struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Password   string    `json:"-"`
	Role       auth.Role `json:"role"`
	Department string    `json:"department,omitempty"`
	Image      string    `json:"image"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateUserRequest is the input of Create and Register
type CreateUserRequest struct {
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Password   string    `json:"password"`
	Department string    `json:"department,omitempty"`
	Image      string    `json:"image,omitempty"`
	Role       auth.Role `json:"role,omitempty"`
}

// Validate checks required fields and normalizes the email
func (r *CreateUserRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = normalizeEmail(r.Email)
	switch {
	case r.Name == "":
		return apperrors.Validation("name is required")
	case len(r.Name) > 255:
		return apperrors.Validation("name must be at most 255 characters")
	case r.Email == "" || !strings.Contains(r.Email, "@"):
		return apperrors.Validation("a valid email is required")
	case len(r.Password) < auth.MinPasswordLength:
		return apperrors.Validation("password must be at least 8 characters")
	}
	if r.Role != "" {
		role, err := auth.ParseRole(string(r.Role))
		if err != nil {
			return apperrors.Validation("invalid role")
		}
		r.Role = role
	}
	return nil
}

// UpdateUserRequest holds the fields to change; nil fields are left as is
type UpdateUserRequest struct {
	Name       *string    `json:"name,omitempty"`
	Email      *string    `json:"email,omitempty"`
	Department *string    `json:"department,omitempty"`
	Image      *string    `json:"image,omitempty"`
	Role       *auth.Role `json:"role,omitempty"`
}

// Service is the account store
type Service interface {
	Create(ctx context.Context, req CreateUserRequest) (*User, error)
	Register(ctx context.Context, req CreateUserRequest) (*User, error)
	Get(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, filter httputil.Filter) ([]*User, int, error)
	Update(ctx context.Context, id string, req UpdateUserRequest) (*User, error)
	Delete(ctx context.Context, id string) error
	Authenticate(ctx context.Context, email, password string) (*User, error)
	ChangePassword(ctx context.Context, id, current, next string) error
	LoadPrincipal(ctx context.Context, userID string) (*auth.Principal, error)
	EnsureAdmin(ctx context.Context, req CreateUserRequest) (*User, error)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
