// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// MaintenanceRequest model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a request is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - UpdateRequestGuarded returns ErrStaleVersion when the row exists but
//     the caller's version is no longer current (lost optimistic-lock race).
//   - On other DB errors, the raw gorm error is propagated.
//
// The status-mutating path is UpdateRequestGuarded: a compare-and-swap on the
// version column so two concurrent transitions on the same request cannot
// both succeed against a stale status read. The lifecycle service maps
// ErrStaleVersion to its ConcurrentModification error.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/amarati/go-maintenance-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across the service layer
// and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrStaleVersion is returned by UpdateRequestGuarded when the row exists but
// its version no longer matches the caller's read. The caller lost a write
// race and must re-read before retrying.
var ErrStaleVersion = errors.New("stale request version")

// CreateRequest inserts a new maintenance request. The request ID is a
// randomly generated UUID, timestamps are set to UTC, and the optimistic-lock
// version starts at 1. The caller provides all domain fields including the
// initial status.
func CreateRequest(ctx context.Context, db *gorm.DB, r *domain.MaintenanceRequest) error {
	now := time.Now().UTC()
	r.ID = uuid.NewString()
	r.Version = 1
	r.CreatedAt = now
	r.UpdatedAt = now
	return db.WithContext(ctx).Create(r).Error
}

// GetRequest fetches a single request by ID, or ErrNotFound if missing.
func GetRequest(ctx context.Context, db *gorm.DB, id string) (*domain.MaintenanceRequest, error) {
	var r domain.MaintenanceRequest
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRequests returns a page of requests ordered by creation time descending
// (most recent first), optionally filtered to an exact status match.
func ListRequests(ctx context.Context, db *gorm.DB, status *domain.RequestStatus, offset, limit int) ([]domain.MaintenanceRequest, error) {
	var out []domain.MaintenanceRequest
	q := db.WithContext(ctx).Order("created_at desc").Offset(offset).Limit(limit)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountRequests returns the total number of requests, optionally filtered to
// an exact status match. Used for pagination metadata.
func CountRequests(ctx context.Context, db *gorm.DB, status *domain.RequestStatus) (int64, error) {
	var total int64
	q := db.WithContext(ctx).Model(&domain.MaintenanceRequest{})
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	err := q.Count(&total).Error
	return total, err
}

// ListRequestsByUser returns all requests submitted by userID, most recent
// first.
func ListRequestsByUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.MaintenanceRequest, error) {
	var out []domain.MaintenanceRequest
	err := db.WithContext(ctx).
		Where("submitted_by = ?", userID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// UpdateRequestGuarded applies fields to the request identified by id iff its
// version still equals the provided value. On success the version is bumped
// and updated_at refreshed. If no rows are affected it distinguishes a
// missing row (ErrNotFound) from a lost race (ErrStaleVersion).
//
// Callers must not include "version" or "updated_at" in fields.
func UpdateRequestGuarded(ctx context.Context, db *gorm.DB, id string, version int, fields map[string]any) error {
	patch := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		patch[k] = v
	}
	patch["version"] = version + 1
	patch["updated_at"] = time.Now().UTC()

	res := db.WithContext(ctx).
		Model(&domain.MaintenanceRequest{}).
		Where("id = ? AND version = ?", id, version).
		Updates(patch)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := db.WithContext(ctx).Model(&domain.MaintenanceRequest{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrStaleVersion
	}
	return nil
}

// RequestsStats returns aggregate metadata for the request listing: the total
// number of rows (optionally status-filtered) and the maximum UpdatedAt among
// them. Used for weak ETag generation on the listing endpoint. When there are
// no rows, the returned count is 0 and maxUpdatedAt is nil.
func RequestsStats(ctx context.Context, db *gorm.DB, status *domain.RequestStatus) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.MaintenanceRequest{})
	if status != nil {
		q = q.Where("status = ?", *status)
	}

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
