package events

import (
	"context"
	"strings"
	"time"

	"github.com/platinummonkey/clubhub/pkg/apperrors"
	"github.com/platinummonkey/clubhub/pkg/httputil"
)

// DefaultImage is assigned to events created without an image
const DefaultImage = "events/default.png"

// Status is the state of an event or of a registration
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Statuses lists the values accepted by status filters
var Statuses = []string{string(StatusPending), string(StatusApproved), string(StatusRejected)}

// ParseStatus parses any of the three statuses
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusApproved, StatusRejected:
		return st, nil
	default:
		return "", apperrors.Validation("status must be one of pending, approved, rejected")
	}
}

// ParseDecision parses a review decision, which is approved or rejected
func ParseDecision(s string) (Status, error) {
	st, err := ParseStatus(s)
	if err != nil || st == StatusPending {
		return "", apperrors.Validation("status must be approved or rejected")
	}
	return st, nil
}

var (
	// ErrAlreadyRegistered is returned when the user already has a registration for the event
	ErrAlreadyRegistered = apperrors.Conflict("you already registered for this event")
	// ErrEventFull is returned when the registration count has reached max_participants
	ErrEventFull = apperrors.Conflict("no places available, event is full")
	// ErrAlreadyReviewed is returned when reviewing a registration that is not pending
	ErrAlreadyReviewed = apperrors.Conflict("registration has already been reviewed")
)

// Event is a club event
type Event struct {
	ID                 string    `json:"id"`
	ClubID             string    `json:"club_id"`
	ClubName           string    `json:"club_name"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	Date               time.Time `json:"date"`
	Location           string    `json:"location"`
	Image              string    `json:"image"`
	MaxParticipants    int       `json:"max_participants"`
	CreatedBy          string    `json:"created_by,omitempty"`
	Status             Status    `json:"status"`
	RegistrationsCount int       `json:"registrations_count"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Registration is an event_registrations row
type Registration struct {
	ID           string    `json:"id"`
	EventID      string    `json:"event_id"`
	UserID       string    `json:"user_id"`
	Status       Status    `json:"status"`
	RegisteredAt time.Time `json:"registered_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Registrant is a registration with the registered user's name and email
type Registrant struct {
	Registration
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
}

// UserRegistration is a registration with its event, as listed for a user
type UserRegistration struct {
	Registration
	EventTitle string    `json:"event_title"`
	EventDate  time.Time `json:"event_date"`
	ClubID     string    `json:"club_id"`
}

// CreateEventRequest is the input of Create
type CreateEventRequest struct {
	ClubID          string    `json:"club_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Date            time.Time `json:"date"`
	Location        string    `json:"location"`
	Image           string    `json:"image,omitempty"`
	MaxParticipants int       `json:"max_participants"`
}

// Validate checks required fields
func (r *CreateEventRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	switch {
	case !httputil.IsUUID(r.ClubID):
		return apperrors.Validation("club_id must be a valid id")
	case r.Title == "":
		return apperrors.Validation("title is required")
	case len(r.Title) > 255:
		return apperrors.Validation("title must be at most 255 characters")
	case r.Date.IsZero():
		return apperrors.Validation("date is required")
	case r.MaxParticipants < 0:
		return apperrors.Validation("max_participants must be non-negative")
	}
	return nil
}

// UpdateEventRequest holds the fields to change; nil fields are left as is
type UpdateEventRequest struct {
	Title           *string    `json:"title,omitempty"`
	Description     *string    `json:"description,omitempty"`
	Date            *time.Time `json:"date,omitempty"`
	Location        *string    `json:"location,omitempty"`
	Image           *string    `json:"image,omitempty"`
	MaxParticipants *int       `json:"max_participants,omitempty"`
	Status          *Status    `json:"status,omitempty"`
}

// Validate checks the provided fields
func (r *UpdateEventRequest) Validate() error {
	if r.Title != nil {
		title := strings.TrimSpace(*r.Title)
		if title == "" {
			return apperrors.Validation("title must not be empty")
		}
		r.Title = &title
	}
	if r.MaxParticipants != nil && *r.MaxParticipants < 0 {
		return apperrors.Validation("max_participants must be non-negative")
	}
	if r.Status != nil {
		st, err := ParseStatus(string(*r.Status))
		if err != nil {
			return err
		}
		r.Status = &st
	}
	return nil
}

// Service is the event store and registration state machine
type Service interface {
	List(ctx context.Context) ([]*Event, error)
	Create(ctx context.Context, creatorID string, req CreateEventRequest) (*Event, error)
	Get(ctx context.Context, id string) (*Event, error)
	Update(ctx context.Context, id string, req UpdateEventRequest) (*Event, error)
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status Status) (*Event, error)

	Register(ctx context.Context, userID, eventID string) (*Registration, error)
	Review(ctx context.Context, eventID, userID string, decision Status) (*Registration, error)
	ListEventRegistrations(ctx context.Context, eventID string, filter httputil.Filter) ([]*Registrant, int, error)
	ListUserRegistrations(ctx context.Context, userID string, filter httputil.Filter) ([]*UserRegistration, int, error)
}
