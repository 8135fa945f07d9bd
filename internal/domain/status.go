// Package domain – lifecycle enumerations.
//
// This file defines the closed enumerations used by the request lifecycle and
// the visit tracker, together with their transition rules. Keeping the legal
// moves here, next to the types, makes the tables exhaustively checkable and
// keeps the services free of stringly-typed status handling.
package domain

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// RequestStatus is the lifecycle status of a maintenance request.
type RequestStatus string

// Request lifecycle statuses. completed, cancelled, and rejected are terminal.
const (
	StatusSubmitted   RequestStatus = "submitted"
	StatusUnderReview RequestStatus = "under_review"
	StatusVoting      RequestStatus = "voting"
	StatusApproved    RequestStatus = "approved"
	StatusAssigned    RequestStatus = "assigned"
	StatusInProgress  RequestStatus = "in_progress"
	StatusCompleted   RequestStatus = "completed"
	StatusCancelled   RequestStatus = "cancelled"
	StatusRejected    RequestStatus = "rejected"
)

// requestTransitions lists the legal forward moves of the lifecycle state
// machine. Cancellation is handled separately in CanTransition because it is
// reachable from every non-terminal state.
var requestTransitions = map[RequestStatus][]RequestStatus{
	StatusSubmitted:   {StatusUnderReview},
	StatusUnderReview: {StatusVoting, StatusApproved, StatusRejected},
	StatusVoting:      {StatusApproved, StatusRejected},
	StatusApproved:    {StatusAssigned},
	StatusAssigned:    {StatusInProgress},
	StatusInProgress:  {StatusCompleted},
}

// Terminal reports whether the status has no legal outbound transition.
func (s RequestStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// CanTransition reports whether the (from, to) pair is in the transition
// table. Preconditions tied to request data (community vs personal, tally
// outcome, provider verification) are enforced by the lifecycle service on
// top of this structural check.
func CanTransition(from, to RequestStatus) bool {
	if to == StatusCancelled {
		return !from.Terminal()
	}
	for _, next := range requestTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CarriesProvider reports whether a request in this status must have an
// assigned provider. The lifecycle clears AssignedProviderID whenever it
// leaves this set (e.g., cancellation after assignment).
func (s RequestStatus) CarriesProvider() bool {
	switch s {
	case StatusAssigned, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// ParseRequestStatus validates a raw status string.
func ParseRequestStatus(s string) (RequestStatus, bool) {
	switch v := RequestStatus(strings.ToLower(strings.TrimSpace(s))); v {
	case StatusSubmitted, StatusUnderReview, StatusVoting, StatusApproved,
		StatusAssigned, StatusInProgress, StatusCompleted, StatusCancelled, StatusRejected:
		return v, true
	}
	return "", false
}

// Label returns a human-readable form of the status ("under_review" ->
// "Under Review"), used when synthesizing default status-log notes.
func (s RequestStatus) Label() string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(s), "_", " "))
}

// VisitStatus is the status of a single technician visit.
type VisitStatus string

// Visit statuses. The chain is strictly forward with no skipping; cancelled
// is reachable from any non-terminal status.
const (
	VisitScheduled VisitStatus = "scheduled"
	VisitOnTheWay  VisitStatus = "on_the_way"
	VisitArrived   VisitStatus = "arrived"
	VisitWorking   VisitStatus = "working"
	VisitCompleted VisitStatus = "completed"
	VisitCancelled VisitStatus = "cancelled"
)

// visitChain is the forward order of the visit state machine.
var visitChain = []VisitStatus{VisitScheduled, VisitOnTheWay, VisitArrived, VisitWorking, VisitCompleted}

// Terminal reports whether the visit status admits no further moves.
func (s VisitStatus) Terminal() bool {
	return s == VisitCompleted || s == VisitCancelled
}

// CanAdvance reports whether a visit may move from one status to the next.
// Only single forward steps along the chain are legal, except cancellation.
func (s VisitStatus) CanAdvance(to VisitStatus) bool {
	if to == VisitCancelled {
		return !s.Terminal()
	}
	for i, st := range visitChain {
		if st == s {
			return i+1 < len(visitChain) && visitChain[i+1] == to
		}
	}
	return false
}

// ParseVisitStatus validates a raw visit status string.
func ParseVisitStatus(s string) (VisitStatus, bool) {
	switch v := VisitStatus(strings.ToLower(strings.TrimSpace(s))); v {
	case VisitScheduled, VisitOnTheWay, VisitArrived, VisitWorking, VisitCompleted, VisitCancelled:
		return v, true
	}
	return "", false
}

// Label returns a human-readable form of the visit status.
func (s VisitStatus) Label() string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(s), "_", " "))
}

// RequestType distinguishes personal requests (one unit pays) from community
// requests (shared cost, subject to a building vote).
type RequestType string

// Request types.
const (
	TypePersonal  RequestType = "personal"
	TypeCommunity RequestType = "community"
)

// ParseRequestType validates a raw request type string.
func ParseRequestType(s string) (RequestType, bool) {
	switch v := RequestType(strings.ToLower(strings.TrimSpace(s))); v {
	case TypePersonal, TypeCommunity:
		return v, true
	}
	return "", false
}

// Urgency is the resident-declared urgency of a request.
type Urgency string

// Urgency levels.
const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyUrgent Urgency = "urgent"
)

// ParseUrgency validates a raw urgency string. Empty input defaults to normal.
func ParseUrgency(s string) (Urgency, bool) {
	switch v := Urgency(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return UrgencyNormal, true
	case UrgencyLow, UrgencyNormal, UrgencyUrgent:
		return v, true
	}
	return "", false
}

// Category classifies the kind of maintenance work requested.
type Category string

// Maintenance categories.
const (
	CategoryPlumbing   Category = "plumbing"
	CategoryElectrical Category = "electrical"
	CategoryHVAC       Category = "hvac"
	CategoryCleaning   Category = "cleaning"
	CategoryElevator   Category = "elevator"
	CategoryStructural Category = "structural"
	CategoryOther      Category = "other"
)

// ParseCategory validates a raw category string.
func ParseCategory(s string) (Category, bool) {
	switch v := Category(strings.ToLower(strings.TrimSpace(s))); v {
	case CategoryPlumbing, CategoryElectrical, CategoryHVAC, CategoryCleaning,
		CategoryElevator, CategoryStructural, CategoryOther:
		return v, true
	}
	return "", false
}

// PriceRange is the ordinal price band of a provider.
type PriceRange string

// Provider price bands.
const (
	PriceLow    PriceRange = "low"
	PriceMedium PriceRange = "medium"
	PriceHigh   PriceRange = "high"
)
