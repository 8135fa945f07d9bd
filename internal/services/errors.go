// Package services defines the business logic of the maintenance request
// lifecycle: the request state machine, the community vote tally, the visit
// tracker, and the provider directory. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

// Request lifecycle errors.
var (
	// ErrRequestNotFound indicates that the requested maintenance request
	// does not exist.
	ErrRequestNotFound = errors.New("maintenance request not found")

	// ErrInvalidTransition is returned when the requested (from, to) status
	// pair is not in the transition table or a precondition for the move is
	// not met. The request is left unchanged.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrConcurrentModification is returned when a mutation lost a write race
	// against another caller. The caller should re-read and retry; the core
	// does not retry automatically.
	ErrConcurrentModification = errors.New("request modified concurrently")

	// ErrEmptyDescription is returned when a submission carries no
	// description.
	ErrEmptyDescription = errors.New("description is empty")

	// ErrUnknownCategory is returned when a submission names a category
	// outside the closed set.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrUnknownRequestType is returned when a submission's request type is
	// neither personal nor community.
	ErrUnknownRequestType = errors.New("unknown request type")

	// ErrUnknownUrgency is returned when a submission's urgency is outside
	// the closed set.
	ErrUnknownUrgency = errors.New("unknown urgency")

	// ErrMissingBuilding is returned when a submission carries no building.
	ErrMissingBuilding = errors.New("building id is empty")

	// ErrUnknownStatus is returned when a raw status string cannot be parsed.
	ErrUnknownStatus = errors.New("unknown status")

	// ErrForbidden is returned when the acting user lacks the capability for
	// the attempted operation (review, cancel, etc.).
	ErrForbidden = errors.New("actor lacks capability for this operation")
)

// Assignment errors.
var (
	// ErrProviderNotFound indicates an unknown provider ID.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrProviderUnverified is returned when assigning an unverified provider
	// without a permitted override. Community requests never accept
	// unverified providers.
	ErrProviderUnverified = errors.New("provider is not verified")
)

// Voting errors.
var (
	// ErrVotingClosed is returned when casting or resolving votes on a
	// request that is not in the voting status.
	ErrVotingClosed = errors.New("request is not open for voting")

	// ErrQuorumNotMet is returned by resolution when participation is below
	// quorum and the voting deadline has not yet passed.
	ErrQuorumNotMet = errors.New("vote quorum not met")
)

// Visit errors.
var (
	// ErrVisitNotFound indicates an unknown visit ID.
	ErrVisitNotFound = errors.New("visit not found")

	// ErrConflictingVisit is returned when scheduling a visit while another
	// non-terminal visit exists for the same request.
	ErrConflictingVisit = errors.New("another visit is already active for this request")

	// ErrVisitProviderMismatch is returned when a visit is proposed by a
	// provider other than the one assigned to the request.
	ErrVisitProviderMismatch = errors.New("visit provider does not match assigned provider")
)
