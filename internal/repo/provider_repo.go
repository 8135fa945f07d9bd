// Package repo – provider directory persistence.
//
// Provider profiles are read-mostly: the lifecycle only consults them during
// assignment and listing. CreateProvider exists for seeding and tests; the
// onboarding flow that maintains profiles lives outside this service.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/amarati/go-maintenance-backend/internal/domain"
)

// providerSortColumns whitelists the numeric attributes the listing endpoint
// may sort by. Anything else falls back to rating.
var providerSortColumns = map[string]string{
	"rating":                  "rating",
	"total_jobs":              "total_jobs",
	"avg_response_time_hours": "avg_response_time_hours",
}

// GetProvider fetches a provider profile by ID, or ErrNotFound if missing.
func GetProvider(ctx context.Context, db *gorm.DB, id string) (*domain.ProviderProfile, error) {
	var p domain.ProviderProfile
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProviders returns all provider profiles sorted by the given numeric
// attribute, descending. Unknown sort keys (including the empty string) sort
// by rating.
func ListProviders(ctx context.Context, db *gorm.DB, sortBy string) ([]domain.ProviderProfile, error) {
	col, ok := providerSortColumns[sortBy]
	if !ok {
		col = "rating"
	}
	var out []domain.ProviderProfile
	err := db.WithContext(ctx).
		Order(col + " desc").
		Find(&out).Error
	return out, err
}

// CreateProvider inserts a provider profile with a generated UUID. Used by
// seeding and tests only.
func CreateProvider(ctx context.Context, db *gorm.DB, p *domain.ProviderProfile) error {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return db.WithContext(ctx).Create(p).Error
}
