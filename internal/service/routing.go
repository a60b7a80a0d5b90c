package service

import (
	"context"
	"fmt"

	"ridepool/internal/domain"
	"ridepool/internal/geo"
)

// Route is a routing estimate between two points.
type Route struct {
	DistanceMeters  float64
	DurationSeconds float64
}

// RoutingService estimates routes and resolves addresses.
type RoutingService interface {
	GetRoute(ctx context.Context, from, to domain.LatLng) (*Route, error)
	GetAddress(ctx context.Context, at domain.LatLng) (string, error)
}

// straightLineSpeedKmh is the average urban speed assumed by StraightLineRouting.
const straightLineSpeedKmh = 30.0

// StraightLineRouting estimates routes from great-circle distance. Used when no maps key is configured.
type StraightLineRouting struct{}

// GetRoute returns the haversine distance and the time to cover it at an average urban speed.
func (StraightLineRouting) GetRoute(_ context.Context, from, to domain.LatLng) (*Route, error) {
	if !from.Valid() || !to.Valid() {
		return nil, ErrInvalidCoordinates
	}
	meters := geo.HaversineMeters(from.Lat, from.Lng, to.Lat, to.Lng)
	return &Route{
		DistanceMeters:  meters,
		DurationSeconds: meters / (straightLineSpeedKmh / 3.6),
	}, nil
}

// GetAddress formats the coordinates, as no geocoder is available.
func (StraightLineRouting) GetAddress(_ context.Context, at domain.LatLng) (string, error) {
	return fmt.Sprintf("%.6f, %.6f", at.Lat, at.Lng), nil
}

var _ RoutingService = StraightLineRouting{}
