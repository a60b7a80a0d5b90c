// Package maps adapts the Google Maps APIs to the routing port used by ride creation and completion.
package maps

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"

	"ridepool/internal/domain"
	"ridepool/internal/service"
)

// ErrNoRoute is returned when Google returns no route between two points.
var ErrNoRoute = errors.New("no route found")

// GoogleRouting implements service.RoutingService with the Directions and Geocoding APIs.
type GoogleRouting struct {
	client *maps.Client
}

// NewGoogleRouting creates a GoogleRouting for the given API key.
func NewGoogleRouting(apiKey string) (*GoogleRouting, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleRouting{client: client}, nil
}

// GetRoute returns the driving distance and duration of the first route, summed over its legs.
func (g *GoogleRouting) GetRoute(ctx context.Context, from, to domain.LatLng) (*service.Route, error) {
	req := &maps.DirectionsRequest{
		Origin:      formatLatLng(from),
		Destination: formatLatLng(to),
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := g.client.Directions(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("directions request failed: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return nil, ErrNoRoute
	}

	route := &service.Route{}
	for _, leg := range routes[0].Legs {
		route.DistanceMeters += float64(leg.Distance.Meters)
		route.DurationSeconds += leg.Duration.Seconds()
	}
	return route, nil
}

// GetAddress returns the formatted address of the best reverse geocoding match.
func (g *GoogleRouting) GetAddress(ctx context.Context, at domain.LatLng) (string, error) {
	req := &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: at.Lat, Lng: at.Lng},
	}

	results, err := g.client.ReverseGeocode(ctx, req)
	if err != nil {
		return "", fmt.Errorf("reverse geocoding failed: %w", err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("no address for %s", formatLatLng(at))
	}
	return results[0].FormattedAddress, nil
}

func formatLatLng(p domain.LatLng) string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lng)
}

var _ service.RoutingService = (*GoogleRouting)(nil)
