package domain

import "time"

// EventKind identifies what a broadcast event carries.
type EventKind string

const (
	EventTrackingSnapshot EventKind = "TRACKING_SNAPSHOT"
	EventLocationPing     EventKind = "LOCATION_PING"
	EventTrackingStopped  EventKind = "TRACKING_STOPPED"
	EventRiderUpdate      EventKind = "RIDER_UPDATE"
)

// Event is a message fanned out to realtime subscribers after a change commits.
type Event struct {
	Kind    EventKind
	RideID  string
	UserID  string // recipient of rider updates
	Payload any
	SentAt  time.Time
}

// Topic is the channel name subscribers listen on.
func (e Event) Topic() string {
	switch e.Kind {
	case EventLocationPing:
		return "ride.location." + e.RideID
	case EventRiderUpdate:
		return "user." + e.UserID + ".ride-matching"
	default:
		return "ride.tracking." + e.RideID
	}
}

// TrackingSnapshot is the ride-scoped view of a track after it changed.
type TrackingSnapshot struct {
	RideID            string  `json:"rideId"`
	Polyline          string  `json:"polyline"`
	CurrentLat        float64 `json:"currentLat"`
	CurrentLng        float64 `json:"currentLng"`
	CurrentDistanceKm float64 `json:"currentDistanceKm"`
}

// LocationPing is the lightweight position update sent for every accepted GPS batch.
type LocationPing struct {
	RideID     string    `json:"rideId"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Timestamp  time.Time `json:"timestamp"`
	Polyline   string    `json:"polyline"`
	DistanceKm float64   `json:"distanceKm"`
}

// TrackingStopped tells subscribers no further points will arrive for a ride.
type TrackingStopped struct {
	RideID    string    `json:"rideId"`
	StoppedAt time.Time `json:"stoppedAt"`
}

// Rider update status tags.
const (
	RiderStatusPickupCompleted = "PICKUP_COMPLETED"
	RiderStatusRequestComplete = "REQUEST_COMPLETED"
	RiderStatusRideCompleted   = "RIDE_COMPLETED"
	RiderStatusRideCancelled   = "RIDE_CANCELLED"
)

// Ride phases reported to riders.
const (
	PhaseToPickup  = "TO_PICKUP"
	PhaseToDropoff = "TO_DROPOFF"
	PhaseCompleted = "COMPLETED"
	PhaseCancelled = "CANCELLED"
)

// RiderUpdate is the per-rider phase change event.
type RiderUpdate struct {
	RideID         string    `json:"rideId"`
	RequestID      string    `json:"requestId"`
	Status         string    `json:"status"`
	Message        string    `json:"message"`
	Phase          string    `json:"phase,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	DriverID       string    `json:"driverId,omitempty"`
	DriverName     string    `json:"driverName,omitempty"`
	TotalFare      float64   `json:"totalFare,omitempty"`
	ActualDistance float64   `json:"actualDistance,omitempty"`
	ActualDuration int       `json:"actualDuration,omitempty"`
	PromptRating   bool      `json:"promptRating,omitempty"`
}
