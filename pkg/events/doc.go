// Package events manages club events and the registration state machine.
//
// Registration runs as one transaction: the event row is locked, the existing
// (event, user) row and the registration count are checked, and the pending
// row is inserted. Every registration counts against max_participants,
// whatever its status. A concurrent duplicate that slips past the existence
// check fails on the unique constraint and is reported as ErrAlreadyRegistered.
//
// Review moves a registration to approved or rejected without re-checking
// capacity. Authorization for review happens in the HTTP layer, which requires
// the admin-member pivot role in the event's club.
package events
