package repository

import (
	"context"
	"time"

	"ridepool/internal/domain"
)

// RideRequestRepository defines the persistence operations for ride requests.
type RideRequestRepository interface {
	// GetByID retrieves a request by ID, with its pickup and dropoff locations.
	GetByID(ctx context.Context, id string) (*domain.RideRequest, error)

	// ListByRide retrieves the requests of a ride. With no statuses every request is returned.
	ListByRide(ctx context.Context, rideID string, statuses ...domain.RequestStatus) ([]*domain.RideRequest, error)

	// ListOverdue retrieves ONGOING requests whose estimated dropoff is before the given time.
	ListOverdue(ctx context.Context, before time.Time, limit int) ([]*domain.RideRequest, error)

	// Update updates an existing request.
	Update(ctx context.Context, req *domain.RideRequest) error
}
