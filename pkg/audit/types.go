package audit

import (
	"fmt"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventAuthLogin          EventType = "auth.login"
	EventAuthLoginFailed    EventType = "auth.login_failed"
	EventAuthLogout         EventType = "auth.logout"
	EventAuthRegister       EventType = "auth.register"
	EventAuthPasswordChange EventType = "auth.password_change"

	// Authorization events
	EventAccessDenied EventType = "authz.access_denied"

	// Account administration
	EventUserCreate     EventType = "admin.user_create"
	EventUserUpdate     EventType = "admin.user_update"
	EventUserRoleChange EventType = "admin.user_role_change"
	EventUserDelete     EventType = "admin.user_delete"

	// Clubs and memberships
	EventClubCreate        EventType = "club.create"
	EventClubUpdate        EventType = "club.update"
	EventClubDelete        EventType = "club.delete"
	EventMembershipRequest EventType = "membership.request"
	EventMembershipReview  EventType = "membership.review"
	EventMembershipPromote EventType = "membership.promote"

	// Events and registrations
	EventEventCreate        EventType = "event.create"
	EventEventUpdate        EventType = "event.update"
	EventEventDelete        EventType = "event.delete"
	EventEventStatusChange  EventType = "event.status_change"
	EventRegistrationCreate EventType = "registration.create"
	EventRegistrationReview EventType = "registration.review"

	// Content
	EventAnnouncementCreate EventType = "announcement.create"
	EventAnnouncementDelete EventType = "announcement.delete"
	EventImageUpload        EventType = "image.upload"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	StatusSuccess EventStatus = "success"
	StatusFailure EventStatus = "failure"
	StatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource acted on
type ResourceType string

const (
	ResourceUser         ResourceType = "user"
	ResourceClub         ResourceType = "club"
	ResourceMembership   ResourceType = "membership"
	ResourceEvent        ResourceType = "event"
	ResourceRegistration ResourceType = "registration"
	ResourceAnnouncement ResourceType = "announcement"
)

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`

	// Target. ClubID is the tenant the action happened in, when there is one.
	ClubID       string       `json:"club_id,omitempty"`
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Request context
	IPAddress  string `json:"ip_address,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Method     string `json:"method,omitempty"`
	Path       string `json:"path,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// SearchFilter represents filters for searching audit logs
type SearchFilter struct {
	StartTime *time.Time
	EndTime   *time.Time

	UserID       string
	ClubID       string
	EventTypes   []EventType
	Status       EventStatus
	ResourceType ResourceType
	ResourceID   string

	Limit  int
	Offset int
}

// ExportFormat represents the format for exporting audit logs
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatNDJSON ExportFormat = "ndjson"
)

// ParseExportFormat validates a requested format; empty means JSON
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case "", ExportFormatJSON:
		return ExportFormatJSON, nil
	case ExportFormatCSV, ExportFormatNDJSON:
		return ExportFormat(s), nil
	default:
		return "", fmt.Errorf("invalid export format: %s (must be json, csv or ndjson)", s)
	}
}
