// Package domain defines the persistence models for maintenance requests,
// votes, status logs, provider profiles, and technician visits. These types
// are mapped with GORM and form the core data layer of the maintenance
// backend.
package domain

import (
	"time"
)

// MaintenanceRequest represents a resident-submitted maintenance request and
// is the root aggregate of the request lifecycle. Its status is mutated only
// through the lifecycle service, guarded by the Version column so two
// concurrent writers cannot both succeed against a stale read.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - RequestType: "personal" or "community"; community requests may be put
//     to a building vote before approval.
//   - Status: current lifecycle status (see RequestStatus).
//   - AssignedProviderID: set only while the request is assigned, in progress,
//     or completed.
//   - VotingDeadline: stamped when the request enters voting; unresolved votes
//     past this instant reject by default.
//   - Version: optimistic-lock counter bumped on every guarded mutation.
type MaintenanceRequest struct {
	ID                 string        `json:"id"                   gorm:"type:char(36);primaryKey"`
	Title              string        `json:"title"                gorm:"type:varchar(255);not null"`
	Description        string        `json:"description"          gorm:"type:text;not null"`
	Category           Category      `json:"category"             gorm:"type:varchar(50);not null"`
	RequestType        RequestType   `json:"request_type"         gorm:"type:varchar(16);not null;check:request_type IN ('personal','community')"`
	Urgency            Urgency       `json:"urgency"              gorm:"type:varchar(16);not null;default:'normal'"`
	Status             RequestStatus `json:"status"               gorm:"type:varchar(20);not null;index:idx_requests_status"`
	BuildingID         string        `json:"building_id"          gorm:"type:char(36);not null;index:idx_requests_building"`
	UnitID             *string       `json:"unit_id,omitempty"    gorm:"type:char(36)"`
	SubmittedBy        string        `json:"submitted_by"         gorm:"type:varchar(64);not null;index:idx_requests_submitter"`
	AssignedProviderID *string       `json:"assigned_provider_id,omitempty" gorm:"type:char(36)"`
	PreferredDate      *time.Time    `json:"preferred_date,omitempty"`
	PreferredTimeSlot  string        `json:"preferred_time_slot,omitempty" gorm:"type:varchar(50)"`
	VotingDeadline     *time.Time    `json:"voting_deadline,omitempty"`
	Version            int           `json:"-"                    gorm:"not null;default:1"`
	CreatedAt          time.Time     `json:"created_at"           gorm:"index:idx_requests_created"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// TableName returns the database table name for MaintenanceRequest.
func (MaintenanceRequest) TableName() string { return "maintenance_requests" }

// Vote records one building member's vote on a community request. A voter has
// at most one row per request (enforced by unique index); casting again
// overwrites the previous vote.
type Vote struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	RequestID string    `json:"request_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_vote_request_voter"`
	VoterID   string    `json:"voter_id"   gorm:"type:varchar(64);not null;uniqueIndex:ux_vote_request_voter"`
	Approve   bool      `json:"approve"    gorm:"not null"`
	CastAt    time.Time `json:"cast_at"    gorm:"not null"`

	// Request is the voted-on request. Votes are retained for audit even
	// after the request leaves the voting status.
	Request MaintenanceRequest `json:"-" gorm:"foreignKey:RequestID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Vote.
func (Vote) TableName() string { return "maintenance_votes" }

// StatusLogEntry is the append-only audit record of a single status change.
// Entries are immutable once written; per request they form a total order
// starting with the synthetic "" -> submitted entry. The log append is the
// last write of every successful mutation, making it usable as a commit
// marker.
type StatusLogEntry struct {
	ID        string        `json:"id"         gorm:"type:char(36);primaryKey"`
	RequestID string        `json:"request_id" gorm:"type:char(36);not null;index:idx_status_logs_request,priority:1"`
	OldStatus RequestStatus `json:"old_status" gorm:"type:varchar(20)"` // empty on the initial entry
	NewStatus RequestStatus `json:"new_status" gorm:"type:varchar(20);not null"`
	ChangedBy string        `json:"changed_by" gorm:"type:varchar(64);not null"`
	Notes     string        `json:"notes"      gorm:"type:text"`
	CreatedAt time.Time     `json:"created_at" gorm:"index:idx_status_logs_request,priority:2"`
}

// TableName returns the database table name for StatusLogEntry.
func (StatusLogEntry) TableName() string { return "status_logs" }

// ProviderProfile describes a service provider available for assignment.
// Profiles are read-mostly: they are maintained by a separate onboarding
// process and the lifecycle only consults them.
type ProviderProfile struct {
	ID                   string     `json:"id"             gorm:"type:char(36);primaryKey"`
	CompanyName          string     `json:"company_name"   gorm:"type:varchar(255);not null"`
	Specialization       string     `json:"specialization" gorm:"type:varchar(255)"`
	Rating               float64    `json:"rating"         gorm:"not null;default:0;check:rating >= 0 AND rating <= 5"`
	TotalJobs            int        `json:"total_jobs"     gorm:"not null;default:0"`
	AvgResponseTimeHours float64    `json:"avg_response_time_hours" gorm:"not null;default:0"`
	PriceRange           PriceRange `json:"price_range"    gorm:"type:varchar(16);not null;default:'medium'"`
	IsVerified           bool       `json:"is_verified"    gorm:"not null;default:false"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// TableName returns the database table name for ProviderProfile.
func (ProviderProfile) TableName() string { return "provider_profiles" }

// Visit tracks a single technician engagement for a request. Many visits may
// exist per request over time, but at most one is non-terminal at any moment.
// Superseded visits are retained as cancelled records.
type Visit struct {
	ID                  string      `json:"id"             gorm:"type:char(36);primaryKey"`
	RequestID           string      `json:"request_id"     gorm:"type:char(36);not null;index:idx_visits_request"`
	ProviderID          string      `json:"provider_id"    gorm:"type:char(36);not null"`
	TechnicianName      string      `json:"technician_name,omitempty" gorm:"type:varchar(255)"`
	Status              VisitStatus `json:"status"         gorm:"type:varchar(20);not null"`
	ProposedTime        *time.Time  `json:"proposed_time,omitempty"`
	ConfirmedByResident bool        `json:"confirmed_by_resident" gorm:"not null;default:false"`
	StartTime           *time.Time  `json:"start_time,omitempty"`
	EndTime             *time.Time  `json:"end_time,omitempty"`
	Notes               string      `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`

	// Request is the owning maintenance request.
	Request MaintenanceRequest `json:"-" gorm:"foreignKey:RequestID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Visit.
func (Visit) TableName() string { return "visits" }

// BuildingMember links a user to a building. The membership set is the
// denominator for vote quorum calculations.
type BuildingMember struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	BuildingID string    `json:"building_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_member_building_user"`
	UserID     string    `json:"user_id"     gorm:"type:varchar(64);not null;uniqueIndex:ux_member_building_user"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for BuildingMember.
func (BuildingMember) TableName() string { return "building_members" }
