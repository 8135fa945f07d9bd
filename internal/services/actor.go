// Package services – actors and capabilities.
//
// Identity and authentication live outside this service; callers hand the
// lifecycle an opaque actor ID plus a role, and capability checks here are
// the only policy applied to it.
package services

// Actor roles understood by the lifecycle.
const (
	RoleResident = "resident"
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleProvider = "provider"
)

// Actor identifies who is performing an operation.
type Actor struct {
	ID   string
	Role string
}

// System actors recorded in the status log for machine-driven transitions.
var (
	actorVoteTally    = Actor{ID: "vote-tally", Role: RoleAdmin}
	actorVisitTracker = Actor{ID: "visit-tracker", Role: RoleAdmin}
)

// CanReview reports whether the actor may move requests through review
// (submitted -> under_review -> voting/approved).
func (a Actor) CanReview() bool {
	return a.Role == RoleAdmin || a.Role == RoleManager
}

// CanCancel reports whether the actor may cancel a request submitted by
// submitterID. Submitters may cancel their own requests; admins and managers
// may cancel any.
func (a Actor) CanCancel(submitterID string) bool {
	if a.ID == submitterID {
		return true
	}
	return a.Role == RoleAdmin || a.Role == RoleManager
}
