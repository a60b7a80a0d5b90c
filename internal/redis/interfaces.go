package redis

import (
	"context"

	"ridepool/internal/domain"
	"ridepool/internal/lock"
	"ridepool/internal/repository"
)

// LiveRideIndex defines the lookup side of the live position index.
type LiveRideIndex interface {
	Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]LiveRide, error)
}

// EventSink is satisfied by every Redis-backed broadcast consumer.
type EventSink interface {
	Name() string
	Publish(ctx context.Context, event domain.Event) error
}

// Ensure concrete types implement interfaces.
var (
	_ LiveRideIndex                = (*PositionIndex)(nil)
	_ EventSink                    = (*PositionIndex)(nil)
	_ EventSink                    = (*Publisher)(nil)
	_ lock.Locker                  = (*LockStore)(nil)
	_ repository.PricingRepository = (*PricingCache)(nil)
)
