package rbac

import (
	"github.com/platinummonkey/clubhub/pkg/apperrors"
	"github.com/platinummonkey/clubhub/pkg/auth"
)

// Scope narrows a role check to a club
type Scope struct {
	// ClubID selects the pivot row used for the check; empty means unscoped
	ClubID string
	// PivotOnly disables the global role short-circuit, so only the club's
	// pivot role is considered
	PivotOnly bool
}

// Unscoped is the scope of actions not tied to a club
var Unscoped = Scope{}

// InClub scopes a check to a club, honoring the global role short-circuit
func InClub(clubID string) Scope {
	return Scope{ClubID: clubID}
}

// PivotIn scopes a check to a club's pivot role only
func PivotIn(clubID string) Scope {
	return Scope{ClubID: clubID, PivotOnly: true}
}

// Resolver computes effective roles. It holds no state and is safe for
// concurrent use.
type Resolver struct{}

// NewResolver creates a role resolver
func NewResolver() *Resolver {
	return &Resolver{}
}

// EffectiveRole derives the role used for authorization without an allowed
// set. Global roles other than member win; otherwise the pivot role for the
// scoped club, or for unscoped checks the highest-privilege pivot. A principal
// with no applicable membership is a member.
func (r *Resolver) EffectiveRole(p *auth.Principal, scope Scope) auth.Role {
	if p == nil {
		return ""
	}

	global := normalize(p.Role)
	if !scope.PivotOnly && global != auth.RoleMember {
		return global
	}
	return pivotRole(p, scope)
}

// Authorize reports the effective role when it is one of allowed. A nil
// principal is unauthenticated; any other mismatch is forbidden.
func (r *Resolver) Authorize(p *auth.Principal, scope Scope, allowed ...auth.Role) (auth.Role, error) {
	if p == nil {
		return "", apperrors.Unauthenticated("unauthenticated")
	}

	global := normalize(p.Role)
	if !scope.PivotOnly && global != auth.RoleMember && contains(allowed, global) {
		return global, nil
	}

	if scope.ClubID != "" {
		role := pivotRole(p, scope)
		if contains(allowed, role) {
			return role, nil
		}
		return "", forbidden()
	}

	if len(p.Memberships) == 0 {
		if contains(allowed, auth.RoleMember) {
			return auth.RoleMember, nil
		}
		return "", forbidden()
	}

	// Any allowed pivot passes; the best one is reported.
	var best auth.Role
	for _, m := range p.Memberships {
		role := normalize(m.Role)
		if contains(allowed, role) && (best == "" || role.Outranks(best)) {
			best = role
		}
	}
	if best == "" {
		return "", forbidden()
	}
	return best, nil
}

func pivotRole(p *auth.Principal, scope Scope) auth.Role {
	if scope.ClubID != "" {
		if m, ok := p.MembershipFor(scope.ClubID); ok {
			return normalize(m.Role)
		}
		return auth.RoleMember
	}

	var best auth.Role
	for _, m := range p.Memberships {
		role := normalize(m.Role)
		if best == "" || role.Outranks(best) {
			best = role
		}
	}
	if best == "" {
		return auth.RoleMember
	}
	return best
}

// normalize canonicalizes stored role strings; unknown values degrade to member
func normalize(role auth.Role) auth.Role {
	parsed, err := auth.ParseRole(string(role))
	if err != nil {
		return auth.RoleMember
	}
	return parsed
}

func contains(roles []auth.Role, role auth.Role) bool {
	for _, r := range roles {
		if normalize(r) == role {
			return true
		}
	}
	return false
}

func forbidden() error {
	return apperrors.Forbidden("you do not have permission to perform this action")
}
