package repository

import "context"

// Repositories groups the repositories that share one transaction.
type Repositories struct {
	Rides     RideRepository
	Requests  RideRequestRepository
	Tracks    TrackRepository
	Locations LocationRepository
	Drivers   DriverRepository
	Vehicles  VehicleRepository
	Users     UserRepository
}

// UnitOfWork runs a function atomically. If fn returns an error nothing it wrote is kept.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
