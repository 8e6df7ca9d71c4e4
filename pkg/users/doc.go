// Package users manages accounts: registration, credential checks, profile
// updates and the global role.
//
// # Global role
//
// New accounts start as student. The role changes in two ways only: an admin
// edits it, or the user's first club membership is approved. The latter is
// driven by the membership.approved event:
//
//	b := bus.New()
//	svc := users.NewPostgresService(db, hasher, cache, logger)
//	svc.Subscribe(b)
//
// Promotion is conditional on the current role being student, so replays and
// later approvals leave member, admin-member and admin untouched.
//
// # Principals
//
// LoadPrincipal returns the user together with every club_user row. The auth
// middleware calls it for each authenticated request and the rbac resolver
// derives effective roles from the result.
package users
