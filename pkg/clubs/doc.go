// Package clubs manages clubs and the membership state machine.
//
// # Membership lifecycle
//
// A club_user row is unique per (user, club):
//
//	RequestJoin            -> pending, role student
//	ReviewJoin(approved)   -> approved, role member; publishes membership.approved
//	ReviewJoin(rejected)   -> row deleted
//	PromoteToAdmin         -> role admin-member, status unchanged
//
// A repeated RequestJoin reuses the row and resets it to pending. Reviewing a
// row that is no longer pending is a conflict. Approval is refused once the
// approved count reaches max_members (zero means unlimited).
//
// The creator of a club is inserted as an approved admin-member in the same
// transaction as the club.
//
// # Caching
//
// List is served through the collection cache. Every committed write
// invalidates the clubs collection, and club writes also drop the events
// collection because event listings embed club data.
package clubs
