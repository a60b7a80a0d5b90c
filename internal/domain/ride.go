package domain

import "time"

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusScheduled RideStatus = "SCHEDULED"
	RideStatusOngoing   RideStatus = "ONGOING"
	RideStatusCompleted RideStatus = "COMPLETED"
	RideStatusCancelled RideStatus = "CANCELLED"
)

// rideTransitions lists every legal ride status change.
var rideTransitions = map[RideStatus][]RideStatus{
	RideStatusScheduled: {RideStatusOngoing, RideStatusCancelled},
	RideStatusOngoing:   {RideStatusCompleted, RideStatusCancelled},
	RideStatusCompleted: {},
	RideStatusCancelled: {},
}

// CanTransitionTo reports whether a ride may move from s to next.
func (s RideStatus) CanTransitionTo(next RideStatus) bool {
	for _, allowed := range rideTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// Ride is a single trip offered by a driver. It may carry several passenger requests.
type Ride struct {
	ID        string
	DriverID  string
	VehicleID string

	StartLocation Location
	EndLocation   Location

	Status        RideStatus
	ScheduledTime time.Time
	StartedAt     time.Time
	CompletedAt   time.Time

	EstimatedDistanceKm  float64
	EstimatedDurationMin int
	ActualDistanceKm     float64
	ActualDurationMin    int

	MaxPassengers     int
	CurrentPassengers int

	DriverEarnedAmount float64

	// Pricing versions used when the ride was created and when it was settled.
	PricingVersion          string
	CompletedPricingVersion string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReferenceTime is the point the minimum interval between a driver's rides is measured from.
func (r *Ride) ReferenceTime() time.Time {
	if r.Status == RideStatusCompleted && !r.CompletedAt.IsZero() {
		return r.CompletedAt
	}
	return r.ScheduledTime
}
