package geo

import "googlemaps.github.io/maps"

// EncodePolyline encodes points with the Google encoded polyline algorithm at 5 decimal digits.
// Fewer than two points produce an empty string.
func EncodePolyline(points []Point) string {
	if len(points) < 2 {
		return ""
	}

	path := make([]maps.LatLng, len(points))
	for i, p := range points {
		path[i] = maps.LatLng{Lat: p.Lat, Lng: p.Lng}
	}
	return maps.Encode(path)
}
