// Package audit records an audit trail of authentication and administrative
// decisions.
//
// # Overview
//
// Every successful state change that goes through the API, failed logins and
// access denials are written to the audit_logs table. Club admins can read
// the trail of their club; global admins can read and export all of it.
//
// # Event Types
//
// Authentication: auth.login, auth.login_failed, auth.logout, auth.register
// Authorization: authz.access_denied
// Accounts: admin.user_create, admin.user_role_change, admin.user_delete
// Clubs: club.create, membership.request, membership.review, membership.promote
// Events: event.create, event.status_change, registration.create, registration.review
//
// # Recording
//
// Middleware is installed on the router with a table of audited routes:
//
//	router.Use(audit.Middleware(logger, audit.Routes{
//		"POST /clubs/{club}/approve-student": {
//			Event:    audit.EventMembershipReview,
//			Resource: audit.ResourceMembership,
//		},
//	}, log))
//
// Handlers add what only they know:
//
//	audit.SetMetadata(r.Context(), "decision", req.Status)
//	audit.SetEventType(r.Context(), audit.EventUserRoleChange)
//
// # Retention
//
// Pruner deletes events older than the configured retention on a cron
// schedule. clubhub-admin audit prune runs the same cleanup once.
//
// # Export
//
// Search results can be exported as JSON, CSV or NDJSON.
package audit
