// Package repo – status log persistence.
//
// The status log is the lifecycle event bus: an append-only, per-request
// ordered record of every status change. Entries are never updated or
// deleted. AppendStatusLog is intended to be the last write inside the same
// transaction as the status mutation, so a committed log entry marks a
// committed transition.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/amarati/go-maintenance-backend/internal/domain"
)

// AppendStatusLog writes one audit entry for a status change. oldStatus is
// empty for the synthetic initial entry recorded at creation time.
func AppendStatusLog(ctx context.Context, db *gorm.DB, requestID string, oldStatus, newStatus domain.RequestStatus, changedBy, notes string) (*domain.StatusLogEntry, error) {
	e := &domain.StatusLogEntry{
		ID:        uuid.NewString(),
		RequestID: requestID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		ChangedBy: changedBy,
		Notes:     notes,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// ListStatusLog returns the full audit trail of a request ordered by
// timestamp ascending (creation entry first).
func ListStatusLog(ctx context.Context, db *gorm.DB, requestID string) ([]domain.StatusLogEntry, error) {
	var out []domain.StatusLogEntry
	err := db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}
