package repository

import (
	"context"

	"ridepool/internal/domain"
)

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID, with its start and end locations.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// GetByIDForUpdate is GetByID that also locks the ride row until the enclosing transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error)

	// GetLatestByDriverID retrieves the driver's most recently scheduled ride.
	// Returns nil if the driver has no rides.
	GetLatestByDriverID(ctx context.Context, driverID string) (*domain.Ride, error)

	// ListByDriver retrieves a driver's rides, newest scheduled first. An empty status matches all.
	ListByDriver(ctx context.Context, driverID string, status domain.RideStatus, limit, offset int) ([]*domain.Ride, error)

	// Update updates an existing ride.
	Update(ctx context.Context, ride *domain.Ride) error
}
