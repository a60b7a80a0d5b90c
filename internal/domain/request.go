package domain

import "time"

// RequestStatus represents the current status of a ride request.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "PENDING"
	RequestStatusConfirmed RequestStatus = "CONFIRMED"
	RequestStatusOngoing   RequestStatus = "ONGOING"
	RequestStatusCompleted RequestStatus = "COMPLETED"
	RequestStatusCancelled RequestStatus = "CANCELLED"
)

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusPending:   {RequestStatusConfirmed, RequestStatusCancelled},
	RequestStatusConfirmed: {RequestStatusOngoing, RequestStatusCancelled},
	RequestStatusOngoing:   {RequestStatusCompleted},
	RequestStatusCompleted: {},
	RequestStatusCancelled: {},
}

// CanTransitionTo reports whether a request may move from s to next.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	for _, allowed := range requestTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RequestKind tells how a passenger ended up on a ride.
type RequestKind string

const (
	RequestKindBooking  RequestKind = "BOOKING"
	RequestKindJoinRide RequestKind = "JOIN_RIDE"
)

// RideRequest is one passenger's pickup-to-dropoff segment inside a ride.
type RideRequest struct {
	ID      string
	RideID  string
	RiderID string // user id of the passenger
	Kind    RequestKind
	Status  RequestStatus

	Pickup  Location
	Dropoff Location

	DistanceMeters int
	SubtotalFare   float64
	DiscountAmount float64
	TotalFare      float64

	// HoldReference identifies the funds held for this request by the payment provider.
	HoldReference string

	EstimatedPickupTime  time.Time
	ActualPickupTime     time.Time
	EstimatedDropoffTime time.Time
	ActualDropoffTime    time.Time

	CreatedAt time.Time
}

// IsActive reports whether the passenger is still waiting for pickup or riding.
func (r *RideRequest) IsActive() bool {
	return r.Status == RequestStatusConfirmed || r.Status == RequestStatusOngoing
}
