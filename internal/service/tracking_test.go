package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"ridepool/internal/domain"
	"ridepool/internal/geo"
)

func TestValidateBatch(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	// One degree of latitude is ~111.2 km.
	metersPerDegree := geo.EarthRadiusMeters * math.Pi / 180

	testCases := []struct {
		name    string
		points  []domain.GPSPoint
		wantErr error
	}{
		{"empty", nil, ErrEmptyBatch},
		{"single point", []domain.GPSPoint{{Lat: 12, Lng: 77, Timestamp: base}}, nil},
		{"bad longitude", []domain.GPSPoint{{Lat: 12, Lng: 190, Timestamp: base}}, ErrInvalidCoordinates},
		{
			name: "city speed",
			points: []domain.GPSPoint{
				{Lat: 12, Lng: 77, Timestamp: base},
				{Lat: 12 + 500/metersPerDegree, Lng: 77, Timestamp: base.Add(time.Minute)},
			},
		},
		{
			// 1 km in 10 s is 360 km/h.
			name: "teleport",
			points: []domain.GPSPoint{
				{Lat: 12, Lng: 77, Timestamp: base},
				{Lat: 12 + 1000/metersPerDegree, Lng: 77, Timestamp: base.Add(10 * time.Second)},
			},
			wantErr: ErrImplausibleSpeed,
		},
		{
			// Identical or reversed timestamps carry no speed information.
			name: "same timestamp",
			points: []domain.GPSPoint{
				{Lat: 12, Lng: 77, Timestamp: base},
				{Lat: 13, Lng: 77, Timestamp: base},
			},
		},
		{
			// Just under 200 km/h: 499.9 m in 9 s.
			name: "at the limit",
			points: []domain.GPSPoint{
				{Lat: 12, Lng: 77, Timestamp: base},
				{Lat: 12 + 499.9/metersPerDegree, Lng: 77, Timestamp: base.Add(9 * time.Second)},
			},
		},
	}

	for _, tc := range testCases {
		err := ValidateBatch(tc.points)
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.wantErr, err)
		}
	}
}

func TestValidateBatch_ReportsOffendingPair(t *testing.T) {
	t.Parallel()
	base := time.Now()
	points := []domain.GPSPoint{
		{Lat: 12, Lng: 77, Timestamp: base},
		{Lat: 12.001, Lng: 77, Timestamp: base.Add(30 * time.Second)},
		{Lat: 12.5, Lng: 77, Timestamp: base.Add(40 * time.Second)},
	}

	var speedErr *SpeedError
	if err := ValidateBatch(points); !errors.As(err, &speedErr) {
		t.Fatalf("expected a SpeedError, got %v", err)
	}
	if speedErr.Index != 2 {
		t.Errorf("expected the pair ending at index 2, got %d", speedErr.Index)
	}
}

func TestComputeDistanceAndPolyline(t *testing.T) {
	t.Parallel()
	if d := ComputeDistanceFromPoints(nil); d != 0 {
		t.Errorf("expected 0 for no points, got %f", d)
	}
	one := []domain.GPSPoint{{Lat: 38.5, Lng: -120.2}}
	if p := EncodeTrackPolyline(one); p != "" {
		t.Errorf("expected empty polyline for one point, got %q", p)
	}

	points := []domain.GPSPoint{{Lat: 38.5, Lng: -120.2}, {Lat: 40.7, Lng: -120.95}, {Lat: 43.252, Lng: -126.453}}
	if p := EncodeTrackPolyline(points); p != "_p~iF~ps|U_ulLnnqC_mqNvxq`@" {
		t.Errorf("unexpected polyline %q", p)
	}
}

func TestCheckProximity_InclusiveLimit(t *testing.T) {
	t.Parallel()
	target := domain.Location{Lat: 12.9716, Lng: 77.5946}

	lat := target.Lat + PickupRadiusMeters/geo.EarthRadiusMeters*180/math.Pi
	for geo.HaversineMeters(lat, target.Lng, target.Lat, target.Lng) > PickupRadiusMeters {
		lat = math.Nextafter(lat, target.Lat)
	}
	if err := checkProximity(domain.LatLng{Lat: lat, Lng: target.Lng}, target, "pickup", PickupRadiusMeters); err != nil {
		t.Errorf("expected exactly %v m to pass, got %v", PickupRadiusMeters, err)
	}

	beyond := math.Nextafter(lat, 90)
	for geo.HaversineMeters(beyond, target.Lng, target.Lat, target.Lng) <= PickupRadiusMeters {
		beyond = math.Nextafter(beyond, 90)
	}
	err := checkProximity(domain.LatLng{Lat: beyond, Lng: target.Lng}, target, "pickup", PickupRadiusMeters)
	if !errors.Is(err, ErrProximityViolation) {
		t.Errorf("expected ErrProximityViolation just beyond the limit, got %v", err)
	}
}

func TestElapsedMinutes(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	if got := elapsedMinutes(start, start.Add(25*time.Minute+50*time.Second)); got != 25 {
		t.Errorf("expected 25, got %d", got)
	}
	if got := elapsedMinutes(time.Time{}, start); got != 0 {
		t.Errorf("expected 0 without a start, got %d", got)
	}
	if got := elapsedMinutes(start, start.Add(-time.Minute)); got != 0 {
		t.Errorf("expected 0 for a clock going backwards, got %d", got)
	}
}

type failingFunds struct{ err error }

func (f failingFunds) Settle(context.Context, SettleRequest) (*SettleResult, error) { return nil, f.err }
func (f failingFunds) Release(context.Context, ReleaseRequest) error             { return f.err }

func TestSettlementCoordinator_WrapsFailures(t *testing.T) {
	t.Parallel()
	req := &domain.RideRequest{ID: "q1", RideID: "r1", RiderID: "u1", TotalFare: 100}
	driver := &domain.Driver{ID: "d1"}
	fare := domain.FareBreakdown{Total: 100, CommissionRate: 0.15}

	ok := NewSettlementCoordinator(NewMockFunds())
	s, err := ok.Settle(context.Background(), req, driver, fare)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.SystemCommission != 15 || s.DriverEarnings != 85 || s.RequestID != "q1" {
		t.Errorf("unexpected settlement %+v", s)
	}

	bad := NewSettlementCoordinator(failingFunds{err: errors.New("declined")})
	if _, err := bad.Settle(context.Background(), req, driver, fare); !errors.Is(err, ErrSettlementFailed) {
		t.Errorf("expected ErrSettlementFailed, got %v", err)
	}
	if err := bad.Release(context.Background(), req, "cancelled"); !errors.Is(err, ErrSettlementFailed) {
		t.Errorf("expected ErrSettlementFailed from release, got %v", err)
	}
}

func TestStraightLineRouting(t *testing.T) {
	t.Parallel()
	r := StraightLineRouting{}
	from := domain.LatLng{Lat: 12.9716, Lng: 77.5946}
	to := domain.LatLng{Lat: 12.9352, Lng: 77.6245}

	route, err := r.GetRoute(context.Background(), from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := geo.HaversineMeters(from.Lat, from.Lng, to.Lat, to.Lng)
	if route.DistanceMeters != want {
		t.Errorf("expected %f m, got %f", want, route.DistanceMeters)
	}
	if math.Abs(route.DurationSeconds-want/(straightLineSpeedKmh/3.6)) > 1e-9 {
		t.Errorf("unexpected duration %f", route.DurationSeconds)
	}

	if _, err := r.GetRoute(context.Background(), domain.LatLng{Lat: 100}, to); !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
}
