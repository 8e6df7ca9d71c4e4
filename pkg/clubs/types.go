package clubs

import (
	"context"
	"strings"
	"time"

	"github.com/platinummonkey/clubhub/pkg/apperrors"
	"github.com/platinummonkey/clubhub/pkg/auth"
	"github.com/platinummonkey/clubhub/pkg/httputil"
)

// DefaultImage is assigned to clubs created without an image
const DefaultImage = "clubs/default.png"

// MembershipStatus is the state of a club_user row
type MembershipStatus string

const (
	StatusPending  MembershipStatus = "pending"
	StatusApproved MembershipStatus = "approved"
	StatusRejected MembershipStatus = "rejected"
)

// Statuses lists the values accepted by status filters
var Statuses = []string{string(StatusPending), string(StatusApproved), string(StatusRejected)}

// ParseDecision parses a review decision, which is approved or rejected
func ParseDecision(s string) (MembershipStatus, error) {
	switch MembershipStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusApproved:
		return StatusApproved, nil
	case StatusRejected:
		return StatusRejected, nil
	default:
		return "", apperrors.Validation("status must be approved or rejected")
	}
}

var (
	// ErrClubFull is returned when approving a request would exceed max_members
	ErrClubFull = apperrors.Conflict("club is full")
	// ErrAlreadyReviewed is returned when reviewing a request that is not pending
	ErrAlreadyReviewed = apperrors.Conflict("membership request has already been reviewed")
	// ErrDuplicateName is returned when a club name is taken
	ErrDuplicateName = apperrors.Conflict("the club name has already been taken")
)

// Club is a named group of users that hosts events
type Club struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Image        string    `json:"image"`
	Category     string    `json:"category"`
	MaxMembers   int       `json:"max_members"`
	CreatedBy    string    `json:"created_by,omitempty"`
	MembersCount int       `json:"members_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ClubDetail is a club with its roster and events
type ClubDetail struct {
	*Club
	Members []*Member       `json:"members"`
	Events  []*EventSummary `json:"events"`
}

// EventSummary is the event row embedded in a club detail
type EventSummary struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Date            time.Time `json:"date"`
	Status          string    `json:"status"`
	MaxParticipants int       `json:"max_participants"`
}

// Membership is a club_user row
type Membership struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	ClubID    string           `json:"club_id"`
	Role      auth.Role        `json:"role"`
	Status    MembershipStatus `json:"status"`
	JoinedAt  time.Time        `json:"joined_at"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// JoinRequest is a membership together with the club name, as listed for a user
type JoinRequest struct {
	Membership
	ClubName string `json:"club_name"`
}

// Member is a user on a club's roster
type Member struct {
	UserID   string           `json:"user_id"`
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Role     auth.Role        `json:"role"`
	Status   MembershipStatus `json:"status"`
	JoinedAt time.Time        `json:"joined_at"`
}

// CreateClubRequest is the input of Create
type CreateClubRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
	Category    string `json:"category"`
	MaxMembers  int    `json:"max_members"`
}

// Validate checks required fields
func (r *CreateClubRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	switch {
	case r.Name == "":
		return apperrors.Validation("name is required")
	case len(r.Name) > 255:
		return apperrors.Validation("name must be at most 255 characters")
	case len(r.Category) > 100:
		return apperrors.Validation("category must be at most 100 characters")
	case r.MaxMembers < 0:
		return apperrors.Validation("max_members must be non-negative")
	}
	return nil
}

// UpdateClubRequest holds the fields to change; nil fields are left as is
type UpdateClubRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Image       *string `json:"image,omitempty"`
	Category    *string `json:"category,omitempty"`
	MaxMembers  *int    `json:"max_members,omitempty"`
}

// Validate checks the provided fields
func (r *UpdateClubRequest) Validate() error {
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return apperrors.Validation("name must not be empty")
		}
		r.Name = &name
	}
	if r.MaxMembers != nil && *r.MaxMembers < 0 {
		return apperrors.Validation("max_members must be non-negative")
	}
	return nil
}

// Service is the club store and membership state machine
type Service interface {
	List(ctx context.Context) ([]*Club, error)
	Create(ctx context.Context, creatorID string, req CreateClubRequest) (*Club, error)
	Get(ctx context.Context, id string) (*ClubDetail, error)
	Update(ctx context.Context, id string, req UpdateClubRequest) (*Club, error)
	Delete(ctx context.Context, id string) error

	RequestJoin(ctx context.Context, userID, clubID string) (*Membership, error)
	ReviewJoin(ctx context.Context, clubID, userID string, decision MembershipStatus) (*Membership, error)
	PromoteToAdmin(ctx context.Context, clubID, userID string) (*Membership, error)
	ListMembers(ctx context.Context, clubID string) ([]*Member, error)
	ListClubRequests(ctx context.Context, clubID string, filter httputil.Filter) ([]*Member, int, error)
	ListUserRequests(ctx context.Context, userID string, filter httputil.Filter) ([]*JoinRequest, int, error)
}
