package service

import (
	"errors"
	"fmt"

	"ridepool/internal/repository"
)

// Error kinds. Every error returned by the lifecycle and tracking services matches exactly one
// of these (or repository.ErrNotFound) under errors.Is.
var (
	// ErrUnauthorized is returned when the actor is not allowed to act on the ride.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidState is returned when an operation is attempted from a disallowed lifecycle state.
	ErrInvalidState = errors.New("invalid state")

	// ErrValidationFailed is returned for malformed or implausible input.
	ErrValidationFailed = errors.New("validation failed")

	// ErrProximityViolation is returned when the driver is too far from a pickup or dropoff.
	ErrProximityViolation = errors.New("proximity violation")

	// ErrSettlementFailed is returned when the funds service could not capture a fare.
	ErrSettlementFailed = errors.New("settlement failed")
)

var (
	// ErrNotRideOwner is returned when the actor is not the ride's driver.
	ErrNotRideOwner = fmt.Errorf("%w: actor is not the driver of this ride", ErrUnauthorized)

	// ErrVehicleNotOwned is returned when a ride is offered with someone else's vehicle.
	ErrVehicleNotOwned = fmt.Errorf("%w: vehicle does not belong to driver", ErrUnauthorized)

	// ErrEmptyBatch is returned when a GPS batch has no points.
	ErrEmptyBatch = fmt.Errorf("%w: gps batch is empty", ErrValidationFailed)

	// ErrImplausibleSpeed is returned when two consecutive points imply a speed above MaxSpeedKmh.
	ErrImplausibleSpeed = fmt.Errorf("%w: implausible speed between gps points", ErrValidationFailed)

	// ErrInvalidCoordinates is returned for a latitude or longitude out of range.
	ErrInvalidCoordinates = fmt.Errorf("%w: coordinates out of range", ErrValidationFailed)

	// ErrActiveRequests is returned when completing a ride that still has confirmed or ongoing passengers.
	ErrActiveRequests = fmt.Errorf("%w: ride has active requests", ErrValidationFailed)

	// ErrIntervalViolation is returned when a new ride starts too soon after the driver's previous one.
	ErrIntervalViolation = fmt.Errorf("%w: too close to the previous ride", ErrValidationFailed)

	// ErrLocationInput is returned when an endpoint has both or neither of location id and coordinates.
	ErrLocationInput = fmt.Errorf("%w: provide exactly one of location id or coordinates", ErrValidationFailed)

	// ErrRouteValidation is returned when no route could be computed between the ride endpoints.
	ErrRouteValidation = fmt.Errorf("%w: route could not be computed", ErrValidationFailed)

	// ErrNoActivePricing is returned when no pricing configuration is in effect.
	ErrNoActivePricing = fmt.Errorf("%w: no active pricing configuration", ErrValidationFailed)

	// ErrRequestNotInRide is returned when a request belongs to a different ride.
	ErrRequestNotInRide = fmt.Errorf("%w: request does not belong to this ride", ErrValidationFailed)

	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = fmt.Errorf("%w: invalid ride id", ErrValidationFailed)

	// ErrInvalidRequestID is returned when request ID is empty.
	ErrInvalidRequestID = fmt.Errorf("%w: invalid request id", ErrValidationFailed)
)

// StateError reports an operation attempted from a state that does not allow it.
// Attempted is the target state of a transition, or the operation that needs another state.
type StateError struct {
	Entity    string
	Current   string
	Attempted string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s is %s: cannot %s", e.Entity, e.Current, e.Attempted)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

// ProximityError reports how far the driver was from the point they had to be near.
type ProximityError struct {
	Target         string // "pickup" or "dropoff"
	DistanceMeters float64
	LimitMeters    float64
}

func (e *ProximityError) Error() string {
	return fmt.Sprintf("driver is %.1f m from %s, limit is %.0f m", e.DistanceMeters, e.Target, e.LimitMeters)
}

func (e *ProximityError) Unwrap() error { return ErrProximityViolation }

// SpeedError reports the offending pair of an implausible GPS batch.
type SpeedError struct {
	Index    int // index of the second point of the pair
	SpeedKmh float64
}

func (e *SpeedError) Error() string {
	return fmt.Sprintf("%v: %.1f km/h at point %d", ErrImplausibleSpeed, e.SpeedKmh, e.Index)
}

func (e *SpeedError) Unwrap() error { return ErrImplausibleSpeed }

// lookupErr names the missing entity when a repository lookup found nothing.
func lookupErr(err error, entity, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", entity, id, repository.ErrNotFound)
	}
	return err
}
