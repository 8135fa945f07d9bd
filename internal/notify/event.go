// Package notify publishes lifecycle events to a message broker for
// downstream notification and audit consumers. Publication is fire-and-forget:
// delivery failures are logged and swallowed, and never roll back or delay a
// committed lifecycle mutation.
package notify

import "time"

// Event kinds published by the lifecycle.
const (
	KindRequestCreated       = "request.created"
	KindRequestStatusChanged = "request.status_changed"
	KindRequestAssigned      = "request.assigned"
	KindVisitScheduled       = "visit.scheduled"
	KindVisitStatusChanged   = "visit.status_changed"
)

// Event is the payload delivered to downstream consumers. It carries enough
// information to notify, log, or trigger follow-up work without querying the
// primary database.
type Event struct {
	Kind       string    `json:"kind"`
	RequestID  string    `json:"request_id"`
	BuildingID string    `json:"building_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"` // the resident to notify
	ActorID    string    `json:"actor_id,omitempty"`
	OldStatus  string    `json:"old_status,omitempty"`
	NewStatus  string    `json:"new_status,omitempty"`
	VisitID    string    `json:"visit_id,omitempty"`
	Note       string    `json:"note,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
