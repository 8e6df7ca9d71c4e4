// Package rbac resolves the effective role of a principal for a request.
//
// Users carry a global role (admin, student, member, admin-member) and one
// pivot role per club membership (student, member, admin-member). Every
// authorization decision goes through Resolver.Authorize:
//
//   - a global role other than member short-circuits when it is allowed,
//     unless the scope is PivotOnly
//   - a club-scoped check uses the pivot role for that club, or member
//     when the principal has no row there
//   - an unscoped check passes when any pivot role is allowed and reports
//     the highest-privilege one (admin-member > member > student)
//
// Role strings are compared case-insensitively through auth.ParseRole.
//
// Route-level checks use the middleware:
//
//	r.Handle("/clubs/{club}", rbac.RequireRoles(resolver, logger, rbac.ClubVar("club"),
//		auth.RoleAdmin, auth.RoleAdminMember)(updateClub)).Methods(http.MethodPut)
//
// Checks whose scope needs a lookup (an event's owning club) call Authorize
// from the handler once the club is known.
package rbac
