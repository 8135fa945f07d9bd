// Package services – ProviderService
//
// Read-side of the provider directory. Profile maintenance (onboarding,
// verification, rating updates) happens outside this service.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/amarati/go-maintenance-backend/internal/domain"
	"github.com/amarati/go-maintenance-backend/internal/repo"
)

// ProviderService exposes the provider directory.
type ProviderService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewProviderService constructs a ProviderService.
func NewProviderService(db *gorm.DB) *ProviderService {
	return &ProviderService{DB: db}
}

// List returns all providers sorted descending by the given numeric
// attribute (rating, total_jobs, avg_response_time_hours). Unknown or empty
// sort keys sort by rating.
func (s *ProviderService) List(ctx context.Context, sortBy string) ([]domain.ProviderProfile, error) {
	return repo.ListProviders(ctx, s.DB, sortBy)
}

// Get fetches a provider profile by ID.
func (s *ProviderService) Get(ctx context.Context, id string) (*domain.ProviderProfile, error) {
	p, err := repo.GetProvider(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrProviderNotFound
	}
	return p, err
}
