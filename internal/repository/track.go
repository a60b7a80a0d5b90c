package repository

import (
	"context"

	"ridepool/internal/domain"
)

// TrackRepository defines the persistence operations for ride GPS tracks.
type TrackRepository interface {
	// GetByRideID retrieves the track of a ride.
	GetByRideID(ctx context.Context, rideID string) (*domain.Track, error)

	// Save inserts the track or replaces the stored one for the same ride.
	Save(ctx context.Context, track *domain.Track) error
}
