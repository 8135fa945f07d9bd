// Package repo – vote persistence.
//
// Votes are keyed by (request_id, voter_id) with last-writer-wins semantics:
// a second vote by the same voter replaces the first instead of duplicating.
// The tally is computed in a single aggregate query so the returned counts
// always come from one consistent snapshot.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amarati/go-maintenance-backend/internal/domain"
)

// UpsertVote inserts or replaces the voter's vote on a request. On conflict
// with an existing (request_id, voter_id) row, the approve flag and cast_at
// timestamp are overwritten.
func UpsertVote(ctx context.Context, db *gorm.DB, requestID, voterID string, approve bool) error {
	v := &domain.Vote{
		ID:        uuid.NewString(),
		RequestID: requestID,
		VoterID:   voterID,
		Approve:   approve,
		CastAt:    time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "request_id"}, {Name: "voter_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"approve": approve,
				"cast_at": v.CastAt,
			}),
		}).
		Create(v).Error
}

// TallyVotes returns the number of approve and reject votes for a request in
// one aggregate query.
func TallyVotes(ctx context.Context, db *gorm.DB, requestID string) (votesFor, votesAgainst int64, err error) {
	var row struct {
		VotesFor     int64
		VotesAgainst int64
	}
	err = db.WithContext(ctx).
		Model(&domain.Vote{}).
		Select(
			"COALESCE(SUM(CASE WHEN approve THEN 1 ELSE 0 END), 0) AS votes_for, "+
				"COALESCE(SUM(CASE WHEN approve THEN 0 ELSE 1 END), 0) AS votes_against").
		Where("request_id = ?", requestID).
		Scan(&row).Error
	return row.VotesFor, row.VotesAgainst, err
}

// ListVotes returns all votes on a request ordered by cast time ascending.
// Retained for audit views; the tally should use TallyVotes.
func ListVotes(ctx context.Context, db *gorm.DB, requestID string) ([]domain.Vote, error) {
	var out []domain.Vote
	err := db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("cast_at asc").
		Find(&out).Error
	return out, err
}
