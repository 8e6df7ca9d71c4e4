package auth

import (
	"fmt"
	"strings"
	"time"
)

// Role is either a global role on a user or a pivot role on a club membership
type Role string

const (
	RoleAdmin       Role = "admin"        // Global administrator
	RoleStudent     Role = "student"      // Default global role for new accounts
	RoleMember      Role = "member"       // Approved member of at least one club
	RoleAdminMember Role = "admin-member" // Club administrator (pivot role)
)

// AllRoles lists every canonical role
var AllRoles = []Role{RoleAdmin, RoleStudent, RoleMember, RoleAdminMember}

// ParseRole normalizes a role string to its canonical form.
// Matching is case-insensitive and accepts "admin-member", "admin_member",
// "admin member" and "adminMember".
func ParseRole(s string) (Role, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer("_", "-", " ", "-").Replace(normalized)
	if normalized == "adminmember" {
		normalized = string(RoleAdminMember)
	}

	for _, role := range AllRoles {
		if normalized == string(role) {
			return role, nil
		}
	}
	return "", fmt.Errorf("unknown role: %q", s)
}

// Valid reports whether r is a canonical role
func (r Role) Valid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// rank orders pivot roles by privilege
func (r Role) rank() int {
	switch r {
	case RoleAdminMember:
		return 3
	case RoleMember:
		return 2
	case RoleStudent:
		return 1
	default:
		return 0
	}
}

// Outranks reports whether r carries more club privilege than other
func (r Role) Outranks(other Role) bool {
	return r.rank() > other.rank()
}

// Membership is a principal's pivot row for one club
type Membership struct {
	ClubID string `json:"club_id"`
	Role   Role   `json:"role"`
	Status string `json:"status"`
}

// Principal is the authenticated caller of a request
type Principal struct {
	UserID      string       `json:"user_id"`
	Email       string       `json:"email"`
	Name        string       `json:"name"`
	Role        Role         `json:"role"`
	Memberships []Membership `json:"memberships"`

	// TokenID and TokenExpiresAt identify the access token used for the request
	TokenID        string    `json:"-"`
	TokenExpiresAt time.Time `json:"-"`
}

// MembershipFor returns the pivot row for a club
func (p *Principal) MembershipFor(clubID string) (Membership, bool) {
	if p == nil {
		return Membership{}, false
	}
	for _, m := range p.Memberships {
		if m.ClubID == clubID {
			return m, true
		}
	}
	return Membership{}, false
}

// IsAdmin reports whether the principal holds the global admin role
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}
