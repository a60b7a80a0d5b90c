package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"ridepool/internal/domain"
)

const liveRidesKey = "rides:live"

// LiveRide is the last known position of a ride that is being tracked.
type LiveRide struct {
	RideID     string  `json:"rideId"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	DistanceKm float64 `json:"distanceKm"` // from the query point
}

// PositionIndex keeps the latest position of every tracked ride in a Redis geo set.
// It consumes location pings and tracking-stopped events.
type PositionIndex struct {
	client *redis.Client
}

// NewPositionIndex creates a new PositionIndex.
func NewPositionIndex(client *redis.Client) *PositionIndex {
	return &PositionIndex{client: client}
}

// Name identifies the sink in logs.
func (s *PositionIndex) Name() string { return "redis-geo" }

// Publish updates the index from a broadcast event. Other kinds are ignored.
func (s *PositionIndex) Publish(ctx context.Context, event domain.Event) error {
	switch p := event.Payload.(type) {
	case domain.LocationPing:
		return s.UpdatePosition(ctx, p.RideID, p.Lat, p.Lng)
	case domain.TrackingStopped:
		return s.Remove(ctx, p.RideID)
	}
	return nil
}

// UpdatePosition stores a ride's position using GEOADD.
func (s *PositionIndex) UpdatePosition(ctx context.Context, rideID string, lat, lng float64) error {
	return s.client.GeoAdd(ctx, liveRidesKey, &redis.GeoLocation{
		Name:      rideID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// Nearby returns tracked rides within radiusKm of the point, nearest first.
func (s *PositionIndex) Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]LiveRide, error) {
	results, err := s.client.GeoRadius(ctx, liveRidesKey, lng, lat, &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
		WithDist:  true,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}

	rides := make([]LiveRide, 0, len(results))
	for _, r := range results {
		rides = append(rides, LiveRide{
			RideID:     r.Name,
			Lat:        r.Latitude,
			Lng:        r.Longitude,
			DistanceKm: r.Dist,
		})
	}

	return rides, nil
}

// Remove drops a ride from the geo index.
func (s *PositionIndex) Remove(ctx context.Context, rideID string) error {
	return s.client.ZRem(ctx, liveRidesKey, rideID).Err()
}
