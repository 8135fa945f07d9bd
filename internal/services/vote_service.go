// Package services – VoteService
//
// This file implements the community vote tally for shared-cost requests.
// Votes are upserts keyed by (request, voter): casting again replaces the
// earlier vote rather than duplicating it, so racing upserts are safe by
// definition. The tally itself never touches request status; resolution
// computes an outcome and hands it to the lifecycle, which owns the
// voting -> approved/rejected transition.
//
// Resolution policy: majority wins among votes cast; ties reject. A
// configurable minimum-participation quorum (fraction of building membership)
// blocks resolution until met; once the voting deadline stamped on the
// request passes, an unresolved vote rejects by default.
package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/amarati/go-maintenance-backend/internal/domain"
	"github.com/amarati/go-maintenance-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MembershipResolver reports the members of a building. The member set is the
// denominator of the quorum calculation.
type MembershipResolver interface {
	// Members returns the user IDs belonging to the building.
	Members(ctx context.Context, buildingID string) ([]string, error)
}

// GormMembership resolves building membership from the building_members
// table.
type GormMembership struct {
	DB *gorm.DB
}

// Members returns the building's member user IDs.
func (g GormMembership) Members(ctx context.Context, buildingID string) ([]string, error) {
	return repo.ListBuildingMembers(ctx, g.DB, buildingID)
}

// Tally is the running vote count for a request.
type Tally struct {
	VotesFor     int64 `json:"votes_for"`
	VotesAgainst int64 `json:"votes_against"`
}

// VoteService accumulates and resolves community votes.
type VoteService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Members resolves building membership for quorum math.
	Members MembershipResolver
	// Lifecycle consumes resolution outcomes.
	Lifecycle *RequestService

	// Quorum is the minimum participation fraction of building membership
	// required before a vote may resolve. Zero disables the quorum gate.
	Quorum float64
}

// NewVoteService constructs a VoteService with the given quorum fraction.
func NewVoteService(db *gorm.DB, lifecycle *RequestService, quorum float64) *VoteService {
	return &VoteService{
		DB:        db,
		Members:   GormMembership{DB: db},
		Lifecycle: lifecycle,
		Quorum:    quorum,
	}
}

// Cast upserts the voter's vote on a request in voting status and returns the
// updated running tally. A later vote by the same voter overwrites the
// earlier one.
func (s *VoteService) Cast(ctx context.Context, voterID, requestID string, approve bool) (Tally, error) {
	tr := otel.Tracer("services/VoteService")
	ctx, span := tr.Start(ctx, "Cast",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.String("voter.id", voterID),
			attribute.Bool("approve", approve),
		),
	)
	defer span.End()

	req, err := s.Lifecycle.Get(ctx, requestID)
	if err != nil {
		return Tally{}, err
	}
	if req.Status != domain.StatusVoting {
		return Tally{}, ErrVotingClosed
	}

	if err := repo.UpsertVote(ctx, s.DB, requestID, voterID, approve); err != nil {
		return Tally{}, err
	}
	return s.CurrentTally(ctx, requestID)
}

// CurrentTally returns the running tally from a consistent snapshot.
func (s *VoteService) CurrentTally(ctx context.Context, requestID string) (Tally, error) {
	votesFor, votesAgainst, err := repo.TallyVotes(ctx, s.DB, requestID)
	if err != nil {
		return Tally{}, err
	}
	return Tally{VotesFor: votesFor, VotesAgainst: votesAgainst}, nil
}

// Resolve applies the resolution policy to a request in voting status.
//
// Outcomes:
//   - quorum met: majority approves or rejects (ties reject)
//   - quorum unmet, deadline passed: rejects by default
//   - quorum unmet, deadline not passed: ErrQuorumNotMet, nothing changes
//
// On an outcome, the lifecycle performs the voting -> approved/rejected
// transition and the updated request is returned.
func (s *VoteService) Resolve(ctx context.Context, requestID string) (*domain.MaintenanceRequest, error) {
	tr := otel.Tracer("services/VoteService")
	ctx, span := tr.Start(ctx, "Resolve",
		trace.WithAttributes(attribute.String("request.id", requestID)),
	)
	defer span.End()

	req, err := s.Lifecycle.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.StatusVoting {
		return nil, ErrVotingClosed
	}

	tally, err := s.CurrentTally(ctx, requestID)
	if err != nil {
		return nil, err
	}

	members, err := s.Members.Members(ctx, req.BuildingID)
	if err != nil {
		return nil, err
	}
	needed := int64(math.Ceil(s.Quorum * float64(len(members))))
	cast := tally.VotesFor + tally.VotesAgainst

	if cast < needed {
		if req.VotingDeadline == nil || time.Now().UTC().Before(*req.VotingDeadline) {
			return nil, ErrQuorumNotMet
		}
		note := fmt.Sprintf("Rejected: quorum not met by deadline (%d of %d votes cast)", cast, needed)
		return s.Lifecycle.resolveVoting(ctx, req, domain.StatusRejected, note)
	}

	if tally.VotesFor > tally.VotesAgainst {
		note := fmt.Sprintf("Approved by community vote (%d for, %d against)", tally.VotesFor, tally.VotesAgainst)
		return s.Lifecycle.resolveVoting(ctx, req, domain.StatusApproved, note)
	}
	note := fmt.Sprintf("Rejected by community vote (%d for, %d against)", tally.VotesFor, tally.VotesAgainst)
	return s.Lifecycle.resolveVoting(ctx, req, domain.StatusRejected, note)
}
