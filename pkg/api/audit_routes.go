package api

import "github.com/platinummonkey/clubhub/pkg/audit"

// auditedRoutes lists the requests recorded in the audit trail. Reads are
// not audited; any route answering 403 is recorded as an access denial.
var auditedRoutes = audit.Routes{
	"POST /auth/login":    {Event: audit.EventAuthLogin, Resource: audit.ResourceUser},
	"POST /auth/register": {Event: audit.EventAuthRegister, Resource: audit.ResourceUser},
	"POST /auth/logout":   {Event: audit.EventAuthLogout, Resource: audit.ResourceUser},

	"POST /users":          {Event: audit.EventUserCreate, Resource: audit.ResourceUser},
	"PUT /users/password":  {Event: audit.EventAuthPasswordChange, Resource: audit.ResourceUser},
	"PUT /users/{user}":    {Event: audit.EventUserUpdate, Resource: audit.ResourceUser, IDVar: "user"},
	"DELETE /users/{user}": {Event: audit.EventUserDelete, Resource: audit.ResourceUser, IDVar: "user"},

	"POST /clubs":                        {Event: audit.EventClubCreate, Resource: audit.ResourceClub},
	"PUT /clubs/{club}":                  {Event: audit.EventClubUpdate, Resource: audit.ResourceClub, IDVar: "club"},
	"DELETE /clubs/{club}":               {Event: audit.EventClubDelete, Resource: audit.ResourceClub, IDVar: "club"},
	"POST /clubs/join/{club_id}":         {Event: audit.EventMembershipRequest, Resource: audit.ResourceMembership},
	"POST /clubs/{club}/approve-student": {Event: audit.EventMembershipReview, Resource: audit.ResourceMembership},
	"PUT /clubs/{club}/admin":            {Event: audit.EventMembershipPromote, Resource: audit.ResourceMembership},

	"POST /clubs/{club}/announcements": {Event: audit.EventAnnouncementCreate, Resource: audit.ResourceAnnouncement},
	"DELETE /clubs/{club}/announcements/{announcement}": {
		Event:    audit.EventAnnouncementDelete,
		Resource: audit.ResourceAnnouncement,
		IDVar:    "announcement",
	},

	"POST /events":                        {Event: audit.EventEventCreate, Resource: audit.ResourceEvent},
	"PUT /events/{event}":                 {Event: audit.EventEventUpdate, Resource: audit.ResourceEvent, IDVar: "event"},
	"DELETE /events/{event}":              {Event: audit.EventEventDelete, Resource: audit.ResourceEvent, IDVar: "event"},
	"PUT /events/{event}/status":          {Event: audit.EventEventStatusChange, Resource: audit.ResourceEvent, IDVar: "event"},
	"POST /events/register/{event_id}":    {Event: audit.EventRegistrationCreate, Resource: audit.ResourceRegistration},
	"POST /events/{event}/approve":        {Event: audit.EventRegistrationReview, Resource: audit.ResourceRegistration},
	"POST /events/{event}/approve/{user}": {Event: audit.EventRegistrationReview, Resource: audit.ResourceRegistration},

	"PUT /clubs/{club}/image":   {Event: audit.EventImageUpload, Resource: audit.ResourceClub, IDVar: "club"},
	"PUT /events/{event}/image": {Event: audit.EventImageUpload, Resource: audit.ResourceEvent, IDVar: "event"},
	"PUT /users/{user}/image":   {Event: audit.EventImageUpload, Resource: audit.ResourceUser, IDVar: "user"},
}
