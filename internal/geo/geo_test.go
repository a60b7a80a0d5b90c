package geo

import (
	"math"
	"testing"

	"googlemaps.github.io/maps"
)

func TestHaversineMeters_KnownDistances(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		a, b      Point
		want      float64
		tolerance float64
	}{
		{"same point", Point{10.7769, 106.7009}, Point{10.7769, 106.7009}, 0, 1e-9},
		{"one degree of latitude", Point{0, 0}, Point{1, 0}, 111194.93, 0.5},
		{"saigon district 1 to district 5", Point{10.7769, 106.7009}, Point{10.7626, 106.6602}, 4721.7, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Distance(tc.a, tc.b)
			if math.Abs(got-tc.want) > tc.tolerance {
				t.Errorf("expected %.2f m, got %.2f m", tc.want, got)
			}
		})
	}
}

func TestHaversineMeters_Symmetric(t *testing.T) {
	t.Parallel()

	a := Point{21.0285, 105.8542}
	b := Point{21.0368, 105.8342}
	if math.Abs(Distance(a, b)-Distance(b, a)) > 1e-9 {
		t.Error("distance should not depend on direction")
	}
}

func TestPathMeters(t *testing.T) {
	t.Parallel()

	if PathMeters(nil) != 0 {
		t.Error("expected 0 for no points")
	}
	if PathMeters([]Point{{10, 106}}) != 0 {
		t.Error("expected 0 for a single point")
	}

	points := []Point{{10.0, 106.0}, {10.001, 106.0}, {10.002, 106.001}}
	want := Distance(points[0], points[1]) + Distance(points[1], points[2])
	if got := PathMeters(points); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %.6f, got %.6f", want, got)
	}
}

func TestPathMeters_MonotonicAsPointsAreAdded(t *testing.T) {
	t.Parallel()

	points := []Point{{10.0, 106.0}}
	prev := 0.0
	for i := 1; i <= 20; i++ {
		points = append(points, Point{10.0 + float64(i)*0.0005, 106.0 + float64(i%3)*0.0003})
		got := PathMeters(points)
		if got < prev {
			t.Fatalf("distance decreased after point %d: %.3f < %.3f", i, got, prev)
		}
		prev = got
	}
}

func TestSpeedKmh(t *testing.T) {
	t.Parallel()

	if got := SpeedKmh(1000, 60); math.Abs(got-60) > 1e-9 {
		t.Errorf("expected 60 km/h, got %v", got)
	}
	if SpeedKmh(1000, 0) != 0 {
		t.Error("expected 0 for zero elapsed time")
	}
	if SpeedKmh(1000, -5) != 0 {
		t.Error("expected 0 for negative elapsed time")
	}
}

func TestEncodePolyline(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		points []Point
		want   string
	}{
		{"no points", nil, ""},
		{"single point", []Point{{38.5, -120.2}}, ""},
		{
			"reference route",
			[]Point{{38.5, -120.2}, {40.7, -120.95}, {43.252, -126.453}},
			"_p~iF~ps|U_ulLnnqC_mqNvxq`@",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EncodePolyline(tc.points); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestEncodePolyline_DecodesToTrack(t *testing.T) {
	t.Parallel()

	track := []Point{{12.97161, 77.59461}, {12.97202, 77.59455}, {12.96893, 77.60012}, {12.93521, 77.62448}}
	decoded, err := maps.DecodePolyline(EncodePolyline(track))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != len(track) {
		t.Fatalf("expected %d points, got %d", len(track), len(decoded))
	}
	for i, p := range track {
		if math.Abs(decoded[i].Lat-p.Lat) > 1e-5 || math.Abs(decoded[i].Lng-p.Lng) > 1e-5 {
			t.Errorf("point %d: expected %v, got %v", i, p, decoded[i])
		}
	}
}
