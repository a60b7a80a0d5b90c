package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridepool/internal/domain"
	"ridepool/internal/lock"
	"ridepool/internal/middleware"
	"ridepool/internal/repository"
	"ridepool/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, middleware.ErrInvalidToken):
		return http.StatusUnauthorized

	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusForbidden

	case errors.Is(err, service.ErrInvalidState):
		return http.StatusConflict

	case errors.Is(err, service.ErrValidationFailed):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrProximityViolation):
		return http.StatusUnprocessableEntity

	case errors.Is(err, service.ErrSettlementFailed):
		return http.StatusBadGateway

	// Another operation held the ride for too long; the caller may retry.
	case errors.Is(err, lock.ErrTimeout):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// actorOrAbort returns the authenticated caller or writes a 401.
func actorOrAbort(c *gin.Context) (domain.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "not authenticated"})
	}
	return actor, ok
}

// LocationResponse is a resolved ride endpoint.
type LocationResponse struct {
	ID      string  `json:"id"`
	Name    string  `json:"name,omitempty"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID                      string           `json:"id"`
	DriverID                string           `json:"driver_id"`
	VehicleID               string           `json:"vehicle_id"`
	StartLocation           LocationResponse `json:"start_location"`
	EndLocation             LocationResponse `json:"end_location"`
	Status                  string           `json:"status"`
	ScheduledTime           string           `json:"scheduled_time"`
	StartedAt               string           `json:"started_at,omitempty"`
	CompletedAt             string           `json:"completed_at,omitempty"`
	EstimatedDistanceKm     float64          `json:"estimated_distance_km"`
	EstimatedDurationMin    int              `json:"estimated_duration_min"`
	ActualDistanceKm        float64          `json:"actual_distance_km,omitempty"`
	ActualDurationMin       int              `json:"actual_duration_min,omitempty"`
	MaxPassengers           int              `json:"max_passengers"`
	CurrentPassengers       int              `json:"current_passengers"`
	DriverEarnedAmount      float64          `json:"driver_earned_amount,omitempty"`
	PricingVersion          string           `json:"pricing_version"`
	CompletedPricingVersion string           `json:"completed_pricing_version,omitempty"`
}

// RequestResponse is the HTTP representation of a ride request.
type RequestResponse struct {
	ID                string           `json:"id"`
	RideID            string           `json:"ride_id"`
	RiderID           string           `json:"rider_id"`
	Status            string           `json:"status"`
	Pickup            LocationResponse `json:"pickup"`
	Dropoff           LocationResponse `json:"dropoff"`
	TotalFare         float64          `json:"total_fare"`
	ActualPickupTime  string           `json:"actual_pickup_time,omitempty"`
	ActualDropoffTime string           `json:"actual_dropoff_time,omitempty"`
}

func toLocationResponse(loc domain.Location) LocationResponse {
	return LocationResponse{
		ID:      loc.ID,
		Name:    loc.Name,
		Lat:     loc.Lat,
		Lng:     loc.Lng,
		Address: loc.Address,
	}
}

func toRideResponse(r *domain.Ride) RideResponse {
	return RideResponse{
		ID:                      r.ID,
		DriverID:                r.DriverID,
		VehicleID:               r.VehicleID,
		StartLocation:           toLocationResponse(r.StartLocation),
		EndLocation:             toLocationResponse(r.EndLocation),
		Status:                  string(r.Status),
		ScheduledTime:           formatTime(r.ScheduledTime),
		StartedAt:               formatTime(r.StartedAt),
		CompletedAt:             formatTime(r.CompletedAt),
		EstimatedDistanceKm:     r.EstimatedDistanceKm,
		EstimatedDurationMin:    r.EstimatedDurationMin,
		ActualDistanceKm:        r.ActualDistanceKm,
		ActualDurationMin:       r.ActualDurationMin,
		MaxPassengers:           r.MaxPassengers,
		CurrentPassengers:       r.CurrentPassengers,
		DriverEarnedAmount:      r.DriverEarnedAmount,
		PricingVersion:          r.PricingVersion,
		CompletedPricingVersion: r.CompletedPricingVersion,
	}
}

func toRequestResponse(r *domain.RideRequest) RequestResponse {
	return RequestResponse{
		ID:                r.ID,
		RideID:            r.RideID,
		RiderID:           r.RiderID,
		Status:            string(r.Status),
		Pickup:            toLocationResponse(r.Pickup),
		Dropoff:           toLocationResponse(r.Dropoff),
		TotalFare:         r.TotalFare,
		ActualPickupTime:  formatTime(r.ActualPickupTime),
		ActualDropoffTime: formatTime(r.ActualDropoffTime),
	}
}

// formatTime renders t as RFC 3339, or "" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
