package repository

import (
	"context"

	"ridepool/internal/domain"
)

// LocationRepository defines the persistence operations for locations.
type LocationRepository interface {
	// Create persists a new location.
	Create(ctx context.Context, loc *domain.Location) error

	// GetByID retrieves a location by ID.
	GetByID(ctx context.Context, id string) (*domain.Location, error)

	// FindByCoordinates retrieves a location with exactly these coordinates.
	FindByCoordinates(ctx context.Context, lat, lng float64) (*domain.Location, error)
}
