// Package repo – building membership persistence.
//
// Membership backs the quorum denominator for community votes.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/amarati/go-maintenance-backend/internal/domain"
)

// ListBuildingMembers returns the user IDs of all members of a building.
func ListBuildingMembers(ctx context.Context, db *gorm.DB, buildingID string) ([]string, error) {
	var out []string
	err := db.WithContext(ctx).
		Model(&domain.BuildingMember{}).
		Where("building_id = ?", buildingID).
		Pluck("user_id", &out).Error
	return out, err
}

// AddBuildingMember links a user to a building. Duplicate links are rejected
// by the unique index and surface as a DB error.
func AddBuildingMember(ctx context.Context, db *gorm.DB, buildingID, userID string) error {
	m := &domain.BuildingMember{
		ID:         uuid.NewString(),
		BuildingID: buildingID,
		UserID:     userID,
		CreatedAt:  time.Now().UTC(),
	}
	return db.WithContext(ctx).Create(m).Error
}
