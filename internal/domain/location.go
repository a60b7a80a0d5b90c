package domain

import "time"

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinates are within range.
func (p LatLng) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Location is a named or ad-hoc place referenced by rides and requests.
type Location struct {
	ID        string
	Name      string
	Lat       float64
	Lng       float64
	Address   string
	IsPOI     bool
	CreatedAt time.Time
}

// LatLng returns the coordinates of the location.
func (l Location) LatLng() LatLng {
	return LatLng{Lat: l.Lat, Lng: l.Lng}
}
