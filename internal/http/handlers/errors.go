// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses (via the `fail()` helper in this package). These codes provide
// clients with a stable, machine-readable error taxonomy that supplements
// human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, forbidden, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., invalid_transition, quorum_not_met) are
//     reserved for lifecycle outcomes that cannot be conveyed by status alone.
//   - All error responses must include both an HTTP status and one of these codes.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeInvalidTransition      = "invalid_transition"
	ErrCodeConcurrentModification = "concurrent_modification"
	ErrCodeVotingClosed           = "voting_closed"
	ErrCodeQuorumNotMet           = "quorum_not_met"
	ErrCodeProviderUnverified     = "provider_unverified"
	ErrCodeCreateFailed           = "create_failed"
	ErrCodeListFailed             = "list_failed"
	ErrCodeMethodNotAllowed       = "method_not_allowed"
)
