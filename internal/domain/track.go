package domain

import "time"

// GPSPoint is a single driver position report. Timestamps are offset-aware on the wire (RFC 3339).
type GPSPoint struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// LatLng returns the coordinates of the point.
func (p GPSPoint) LatLng() LatLng {
	return LatLng{Lat: p.Lat, Lng: p.Lng}
}

// Track is the ordered GPS history of a ride. Points are append-only.
type Track struct {
	ID         string
	RideID     string
	Points     []GPSPoint
	IsTracking bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	StoppedAt  time.Time
}

// NewTrack creates an empty, active track for a ride.
func NewTrack(id, rideID string, now time.Time) *Track {
	return &Track{
		ID:         id,
		RideID:     rideID,
		Points:     []GPSPoint{},
		IsTracking: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Append adds a batch to the end of the sequence, preserving input order.
func (t *Track) Append(batch []GPSPoint, now time.Time) {
	t.Points = append(t.Points, batch...)
	t.UpdatedAt = now
}

// Last returns the newest stored point.
func (t *Track) Last() (GPSPoint, bool) {
	if t == nil || len(t.Points) == 0 {
		return GPSPoint{}, false
	}
	return t.Points[len(t.Points)-1], true
}

// Stop marks the track as no longer recording.
func (t *Track) Stop(now time.Time) {
	t.IsTracking = false
	t.StoppedAt = now
	t.UpdatedAt = now
}
