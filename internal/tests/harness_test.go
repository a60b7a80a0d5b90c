package tests

import (
	"context"
	"math"
	"testing"
	"time"

	"ridepool/internal/domain"
	"ridepool/internal/geo"
	"ridepool/internal/lock"
	"ridepool/internal/logger"
	"ridepool/internal/repository"
	"ridepool/internal/service"
)

const (
	testDriverID     = "driver-1"
	testDriverUserID = "user-driver-1"
	testVehicleID    = "vehicle-1"
	testRiderID      = "rider-1"
)

var (
	startPoint   = domain.LatLng{Lat: 12.9716, Lng: 77.5946}
	dropoffPoint = domain.LatLng{Lat: 12.9352, Lng: 77.6245}

	driverActor = domain.Actor{UserID: testDriverUserID, Role: domain.RoleDriver}
	riderActor  = domain.Actor{UserID: testRiderID, Role: domain.RoleRider}
	adminActor  = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}

	errNotFound = repository.ErrNotFound
)

// harness wires a RideService and TrackingService over in-memory collaborators.
type harness struct {
	store      *MockStore
	pricing    *MockPricingRepository
	funds      *MockFunds
	routing    *MockRouting
	sink       *RecordingSink
	dispatcher *RecordingDispatcher
	queue      *service.AsyncQueue
	tracking   *service.TrackingService
	rides      *service.RideService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	log := logger.Discard()
	h := &harness{
		store: NewMockStore(),
		pricing: NewMockPricingRepository(&domain.PricingConfig{
			ID:                   "pricing-1",
			Version:              "v1",
			SystemCommissionRate: 0.1,
			ValidFrom:            time.Now().Add(-24 * time.Hour),
		}),
		funds:      NewMockFunds(),
		routing:    NewMockRouting(),
		sink:       &RecordingSink{},
		dispatcher: &RecordingDispatcher{},
		queue:      service.NewAsyncQueue(256, 2, log),
	}
	h.queue.Start()
	t.Cleanup(func() { h.drain(t) })

	h.store.AddDriver(
		&domain.Driver{ID: testDriverID, UserID: testDriverUserID, Name: "Asha", Status: domain.DriverStatusActive},
		&domain.User{ID: testDriverUserID, Name: "Asha", Role: domain.RoleDriver},
		&domain.Vehicle{ID: testVehicleID, DriverID: testDriverID, PlateNumber: "KA01AB1234", CapacitySeat: 4},
	)
	h.store.AddUser(&domain.User{ID: testRiderID, Name: "Ravi", Role: domain.RoleRider})

	locker := lock.WithWait(lock.NewKeyedMutex(), 2*time.Second)
	reads := h.store.Reads()
	broadcaster := service.NewBroadcaster(h.queue, log, h.sink)
	notifications := service.NewNotificationService(reads.Users, h.dispatcher, h.queue, log)

	h.tracking = service.NewTrackingService(locker, h.store, reads, broadcaster, notifications, log)
	h.rides = service.NewRideService(service.RideServiceDeps{
		Locker:        locker,
		UnitOfWork:    h.store,
		Reads:         reads,
		Pricing:       h.pricing,
		Routing:       h.routing,
		Tracking:      h.tracking,
		Settlement:    service.NewSettlementCoordinator(h.funds),
		Notifications: notifications,
		Broadcaster:   broadcaster,
		Log:           log,
	})
	return h
}

// drain waits for every queued broadcast and notification. The queue accepts nothing afterwards.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.queue.Stop(ctx); err != nil {
		t.Errorf("queue did not drain: %v", err)
	}
}

// seedRide stores a ride of the test driver in the given status.
func (h *harness) seedRide(id string, status domain.RideStatus) *domain.Ride {
	now := time.Now()
	ride := &domain.Ride{
		ID:                  id,
		DriverID:            testDriverID,
		VehicleID:           testVehicleID,
		StartLocation:       domain.Location{ID: "loc-start-" + id, Lat: startPoint.Lat, Lng: startPoint.Lng},
		EndLocation:         domain.Location{ID: "loc-end-" + id, Lat: dropoffPoint.Lat, Lng: dropoffPoint.Lng},
		Status:              status,
		ScheduledTime:       now.Add(-30 * time.Minute),
		EstimatedDistanceKm: 5.5,
		MaxPassengers:       1,
		PricingVersion:      "v1",
		CreatedAt:           now.Add(-time.Hour),
		UpdatedAt:           now.Add(-time.Hour),
	}
	if status == domain.RideStatusOngoing {
		ride.StartedAt = now.Add(-20 * time.Minute)
	}
	h.store.AddRide(ride)
	return ride
}

// seedRequest stores a passenger request picked up at the ride start and dropped off at dropoffPoint.
func (h *harness) seedRequest(id, rideID string, status domain.RequestStatus) *domain.RideRequest {
	req := &domain.RideRequest{
		ID:             id,
		RideID:         rideID,
		RiderID:        testRiderID,
		Kind:           domain.RequestKindBooking,
		Status:         status,
		Pickup:         domain.Location{ID: "loc-pickup-" + id, Lat: startPoint.Lat, Lng: startPoint.Lng},
		Dropoff:        domain.Location{ID: "loc-dropoff-" + id, Lat: dropoffPoint.Lat, Lng: dropoffPoint.Lng},
		DistanceMeters: 5500,
		SubtotalFare:   110,
		DiscountAmount: 10,
		TotalFare:      100,
		HoldReference:  "hold-" + id,
		CreatedAt:      time.Now().Add(-time.Hour),
	}
	if status == domain.RequestStatusOngoing {
		req.ActualPickupTime = time.Now().Add(-15 * time.Minute)
	}
	h.store.AddRequest(req)
	return req
}

// placeDriver records a fresh position for the ride as its only track point.
func (h *harness) placeDriver(rideID string, at domain.LatLng) {
	track := domain.NewTrack("track-"+rideID, rideID, time.Now())
	track.Append([]domain.GPSPoint{{Lat: at.Lat, Lng: at.Lng, Timestamp: time.Now()}}, time.Now())
	h.store.AddTrack(track)
}

// northOf returns the point due north of from at no more than meters great-circle distance.
func northOf(from domain.LatLng, meters float64) domain.LatLng {
	lat := from.Lat + meters/geo.EarthRadiusMeters*180/math.Pi
	for geo.HaversineMeters(from.Lat, from.Lng, lat, from.Lng) > meters {
		lat = math.Nextafter(lat, from.Lat)
	}
	return domain.LatLng{Lat: lat, Lng: from.Lng}
}

// path returns n points heading north from start, step meters apart and interval apart in time,
// ending at end.
func path(start domain.LatLng, n int, step float64, interval time.Duration, end time.Time) []domain.GPSPoint {
	points := make([]domain.GPSPoint, n)
	at := start
	for i := 0; i < n; i++ {
		points[i] = domain.GPSPoint{
			Lat:       at.Lat,
			Lng:       at.Lng,
			Timestamp: end.Add(-time.Duration(n-1-i) * interval),
		}
		at = domain.LatLng{Lat: at.Lat + step/geo.EarthRadiusMeters*180/math.Pi, Lng: at.Lng}
	}
	return points
}
