package repository

import (
	"context"

	"ridepool/internal/domain"
)

// DriverRepository defines the persistence operations for drivers.
type DriverRepository interface {
	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// GetByUserID retrieves the driver profile of a user.
	GetByUserID(ctx context.Context, userID string) (*domain.Driver, error)

	// AddRideStats credits one completed ride and its earnings to the driver.
	AddRideStats(ctx context.Context, driverID string, earned float64) error
}

// VehicleRepository defines read access to vehicles.
type VehicleRepository interface {
	// GetByID retrieves a vehicle by ID.
	GetByID(ctx context.Context, id string) (*domain.Vehicle, error)
}
