// Package repo – visit persistence.
//
// Visits are never deleted: rescheduled or abandoned visits remain as
// cancelled records. ActiveVisit is the guard behind the one-non-terminal-
// visit-per-request invariant.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/amarati/go-maintenance-backend/internal/domain"
)

// CreateVisit inserts a new visit with a generated UUID and UTC timestamps.
// The caller sets request, provider, and scheduling fields; status should be
// VisitScheduled.
func CreateVisit(ctx context.Context, db *gorm.DB, v *domain.Visit) error {
	now := time.Now().UTC()
	v.ID = uuid.NewString()
	v.CreatedAt = now
	v.UpdatedAt = now
	return db.WithContext(ctx).Create(v).Error
}

// GetVisit fetches a single visit by ID, or ErrNotFound if missing.
func GetVisit(ctx context.Context, db *gorm.DB, id string) (*domain.Visit, error) {
	var v domain.Visit
	if err := db.WithContext(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// ActiveVisit returns the request's single non-terminal visit, or ErrNotFound
// when every visit is completed or cancelled.
func ActiveVisit(ctx context.Context, db *gorm.DB, requestID string) (*domain.Visit, error) {
	var v domain.Visit
	err := db.WithContext(ctx).
		Where("request_id = ? AND status NOT IN ?", requestID,
			[]domain.VisitStatus{domain.VisitCompleted, domain.VisitCancelled}).
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVisits returns all visits of a request ordered by creation time
// ascending (scheduling history).
func ListVisits(ctx context.Context, db *gorm.DB, requestID string) ([]domain.Visit, error) {
	var out []domain.Visit
	err := db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// UpdateVisit applies fields to the visit identified by id and refreshes
// updated_at. Returns ErrNotFound when the visit does not exist.
func UpdateVisit(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	patch := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		patch[k] = v
	}
	patch["updated_at"] = time.Now().UTC()

	res := db.WithContext(ctx).
		Model(&domain.Visit{}).
		Where("id = ?", id).
		Updates(patch)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
