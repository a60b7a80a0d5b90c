package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"ridepool/internal/domain"
	"ridepool/internal/logger"
	"ridepool/internal/service"
)

// ──────────────────────────────────────────────
// PICKUP
// ──────────────────────────────────────────────

func TestStartRequest_ProximityBoundary(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		meters  float64
		wantErr bool
	}{
		{"at the pickup", 0, false},
		{"exactly 100 m", service.PickupRadiusMeters, false},
		{"just beyond 100 m", service.PickupRadiusMeters + 0.5, true},
		{"far away", 1500, true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			h.seedRide("ride-1", domain.RideStatusOngoing)
			h.seedRequest("req-1", "ride-1", domain.RequestStatusConfirmed)
			h.placeDriver("ride-1", northOf(startPoint, tc.meters))

			req, err := h.rides.StartRequest(context.Background(), "ride-1", "req-1", driverActor)
			stored := h.store.Request("req-1")

			if tc.wantErr {
				var proxErr *service.ProximityError
				if !errors.As(err, &proxErr) || !errors.Is(err, service.ErrProximityViolation) {
					t.Fatalf("expected a ProximityError, got %v", err)
				}
				if proxErr.Target != "pickup" || proxErr.LimitMeters != service.PickupRadiusMeters {
					t.Errorf("unexpected proximity error %+v", proxErr)
				}
				if stored.Status != domain.RequestStatusConfirmed {
					t.Errorf("request must stay CONFIRMED, got %s", stored.Status)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.Status != domain.RequestStatusOngoing || stored.Status != domain.RequestStatusOngoing {
				t.Errorf("expected ONGOING, got %s / %s", req.Status, stored.Status)
			}
			if stored.ActualPickupTime.IsZero() {
				t.Error("expected a pickup time")
			}
		})
	}
}

func TestStartRequest_FallsBackToRideStart(t *testing.T) {
	t.Parallel()

	t.Run("no track", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.seedRide("ride-1", domain.RideStatusOngoing)
		h.seedRequest("req-1", "ride-1", domain.RequestStatusConfirmed)

		if _, err := h.rides.StartRequest(context.Background(), "ride-1", "req-1", driverActor); err != nil {
			t.Errorf("expected the ride start location to satisfy the pickup check, got %v", err)
		}
	})

	t.Run("stale track", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.seedRide("ride-1", domain.RideStatusOngoing)
		h.seedRequest("req-1", "ride-1", domain.RequestStatusConfirmed)

		far := northOf(startPoint, 5000)
		track := domain.NewTrack("track-1", "ride-1", time.Now())
		track.Append([]domain.GPSPoint{{Lat: far.Lat, Lng: far.Lng, Timestamp: time.Now().Add(-10 * time.Minute)}}, time.Now())
		h.store.AddTrack(track)

		if _, err := h.rides.StartRequest(context.Background(), "ride-1", "req-1", driverActor); err != nil {
			t.Errorf("expected a stale position to be ignored, got %v", err)
		}
	})
}

func TestStartRequest_PublishesPickup(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.seedRide("ride-1", domain.RideStatusOngoing)
	h.seedRequest("req-1", "ride-1", domain.RequestStatusConfirmed)

	if _, err := h.rides.StartRequest(context.Background(), "ride-1", "req-1", driverActor); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h.drain(t)
	updates := h.sink.Events(domain.EventRiderUpdate)
	if len(updates) != 1 {
		t.Fatalf("expected 1 rider update, got %d", len(updates))
	}
	u := updates[0].Payload.(domain.RiderUpdate)
	if u.Status != domain.RiderStatusPickupCompleted || u.Phase != domain.PhaseToDropoff {
		t.Errorf("unexpected rider update %+v", u)
	}
	if n := len(h.sink.Events(domain.EventTrackingSnapshot)); n != 1 {
		t.Errorf("expected 1 tracking snapshot, got %d", n)
	}
	types := h.dispatcher.Types()
	if !containsType(types, service.NotificationPickupStarted) || !containsType(types, service.NotificationRiderPickedUp) {
		t.Errorf("expected pickup notifications for both parties, got %v", types)
	}
}

func TestStartRequest_Rejections(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.seedRide("ride-1", domain.RideStatusOngoing)
	h.seedRide("ride-2", domain.RideStatusOngoing)
	h.seedRide("ride-scheduled", domain.RideStatusScheduled)
	h.seedRequest("req-1", "ride-1", domain.RequestStatusConfirmed)
	h.seedRequest("req-pending", "ride-1", domain.RequestStatusPending)
	h.seedRequest("req-s", "ride-scheduled", domain.RequestStatusConfirmed)
	ctx := context.Background()

	testCases := []struct {
		name    string
		rideID  string
		reqID   string
		actor   domain.Actor
		wantErr error
	}{
		{"request of another ride", "ride-2", "req-1", driverActor, service.ErrRequestNotInRide},
		{"pending request", "ride-1", "req-pending", driverActor, service.ErrInvalidState},
		{"ride not started", "ride-scheduled", "req-s", driverActor, service.ErrInvalidState},
		{"not the driver", "ride-1", "req-1", riderActor, service.ErrUnauthorized},
		{"unknown request", "ride-1", "req-x", driverActor, errNotFound},
		{"empty request id", "ride-1", "", driverActor, service.ErrInvalidRequestID},
	}

	for _, tc := range testCases {
		_, err := h.rides.StartRequest(ctx, tc.rideID, tc.reqID, tc.actor)
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.wantErr, err)
		}
	}
}

// ──────────────────────────────────────────────
// DROP-OFF AND SETTLEMENT
// ──────────────────────────────────────────────

func TestCompleteRequest_ProximityBoundary(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		meters  float64
		wantErr bool
	}{
		{"exactly 200 m", service.DropoffRadiusMeters, false},
		{"just beyond 200 m", service.DropoffRadiusMeters + 0.5, true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			h.seedRide("ride-1", domain.RideStatusOngoing)
			h.seedRequest("req-1", "ride-1", domain.RequestStatusOngoing)
			h.placeDriver("ride-1", northOf(dropoffPoint, tc.meters))

			_, err := h.rides.CompleteRequest(context.Background(), "ride-1", "req-1", driverActor)
			if tc.wantErr {
				if !errors.Is(err, service.ErrProximityViolation) {
					t.Fatalf("expected ErrProximityViolation, got %v", err)
				}
				if h.funds.SettleCallCount != 0 {
					t.Error("settlement must not be attempted out of range")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCompleteRequest_SettlesOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.seedRide("ride-1", domain.RideStatusOngoing)
	h.seedRequest("req-1", "ride-1", domain.RequestStatusOngoing)
	h.placeDriver("ride-1", northOf(dropoffPoint, 50))

	result, err := h.rides.CompleteRequest(context.Background(), "ride-1", "req-1", driverActor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if h.funds.SettleCallCount != 1 {
		t.Errorf("expected exactly one settlement, got %d", h.funds.SettleCallCount)
	}
	settled := h.funds.Settled()
	if len(settled) != 1 || settled[0].HoldReference != "hold-req-1" || settled[0].DriverID != testDriverID {
		t.Fatalf("unexpected settle request %+v", settled)
	}
	if f := settled[0].Fare; f.Total != 100 || f.Subtotal != 110 || f.Discount != 10 || f.CommissionRate != 0.1 || f.PricingVersion != "v1" {
		t.Errorf("unexpected fare breakdown %+v", f)
	}

	if result.DriverEarnings != 90 || result.PlatformCommission != 10 {
		t.Errorf("expected 90 / 10 split, got %f / %f", result.DriverEarnings, result.PlatformCommission)
	}
	// One track point is not enough for a distance, so routing is used.
	if result.ActualDistanceKm != 5 || h.routing.GetRouteCallCount != 1 {
		t.Errorf("expected the 5 km routing fallback, got %f after %d calls", result.ActualDistanceKm, h.routing.GetRouteCallCount)
	}

	stored := h.store.Request("req-1")
	if stored.Status != domain.RequestStatusCompleted || stored.ActualDropoffTime.IsZero() {
		t.Errorf("expected COMPLETED with a dropoff time, got %s", stored.Status)
	}

	// A repeat call sees a COMPLETED request and must not settle again.
	if _, err := h.rides.CompleteRequest(context.Background(), "ride-1", "req-1", driverActor); !errors.Is(err, service.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on repeat, got %v", err)
	}
	if h.funds.SettleCallCount != 1 {
		t.Errorf("repeat must not settle, got %d calls", h.funds.SettleCallCount)
	}

	h.drain(t)
	updates := h.sink.Events(domain.EventRiderUpdate)
	if len(updates) != 1 || updates[0].Payload.(domain.RiderUpdate).Status != domain.RiderStatusRequestComplete {
		t.Errorf("expected one REQUEST_COMPLETED rider update, got %v", updates)
	}
}

func TestCompleteRequest_SettlementFailureKeepsRequestOngoing(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.seedRide("ride-1", domain.RideStatusOngoing)
	h.seedRequest("req-1", "ride-1", domain.RequestStatusOngoing)
	h.placeDriver("ride-1", dropoffPoint)
	h.funds.SettleError = errors.New("card declined")

	_, err := h.rides.CompleteRequest(context.Background(), "ride-1", "req-1", driverActor)
	if !errors.Is(err, service.ErrSettlementFailed) {
		t.Fatalf("expected ErrSettlementFailed, got %v", err)
	}
	if got := h.store.Request("req-1").Status; got != domain.RequestStatusOngoing {
		t.Errorf("request must stay ONGOING, got %s", got)
	}

	h.drain(t)
	if n := len(h.sink.Events(domain.EventRiderUpdate)); n != 0 {
		t.Errorf("no rider update may be published for a failed settlement, got %d", n)
	}
}

// ──────────────────────────────────────────────
// FORCED COMPLETION
// ──────────────────────────────────────────────

func TestForceCompleteRequest_SkipsWhenNotOngoing(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.seedRide("ride-1", domain.RideStatusOngoing)
	h.seedRide("ride-done", domain.RideStatusCompleted)
	h.seedRequest("req-confirmed", "ride-1", domain.RequestStatusConfirmed)
	h.seedRequest("req-orphan", "ride-done", domain.RequestStatusOngoing)
	ctx := context.Background()

	for _, id := range []struct{ ride, req string }{{"ride-1", "req-confirmed"}, {"ride-done", "req-orphan"}} {
		result, err := h.rides.ForceCompleteRequest(ctx, id.ride, id.req, domain.SystemActor())
		if err != nil || result != nil {
			t.Errorf("%s: expected nil, nil, got %+v, %v", id.req, result, err)
		}
	}
	if h.funds.SettleCallCount != 0 {
		t.Errorf("skipped requests must not settle, got %d", h.funds.SettleCallCount)
	}
}

func TestForceCompleteRequest_IgnoresProximityAndRouting(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.seedRide("ride-1", domain.RideStatusOngoing)
	h.seedRequest("req-1", "ride-1", domain.RequestStatusOngoing)
	h.placeDriver("ride-1", northOf(dropoffPoint, 10000))

	result, err := h.rides.ForceCompleteRequest(context.Background(), "ride-1", "req-1", adminActor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || result.Request.Status != domain.RequestStatusCompleted {
		t.Fatalf("expected a completed request, got %+v", result)
	}
	if result.ActualDistanceKm != 5.5 || h.routing.GetRouteCallCount != 0 {
		t.Errorf("expected the 5.5 km creation estimate without routing, got %f after %d calls",
			result.ActualDistanceKm, h.routing.GetRouteCallCount)
	}
}

func TestForceCompleteRequest_RejectsRider(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.seedRide("ride-1", domain.RideStatusOngoing)
	h.seedRequest("req-1", "ride-1", domain.RequestStatusOngoing)

	if _, err := h.rides.ForceCompleteRequest(context.Background(), "ride-1", "req-1", riderActor); !errors.Is(err, service.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAutoCompleter_SweepsOverdueRequests(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.seedRide("ride-1", domain.RideStatusOngoing)
	overdue := h.seedRequest("req-overdue", "ride-1", domain.RequestStatusOngoing)
	overdue.EstimatedDropoffTime = time.Now().Add(-2 * time.Hour)
	h.store.AddRequest(overdue)
	recent := h.seedRequest("req-recent", "ride-1", domain.RequestStatusOngoing)
	recent.EstimatedDropoffTime = time.Now().Add(-5 * time.Minute)
	h.store.AddRequest(recent)

	ac := service.NewAutoCompleter(h.rides, h.store.Reads().Requests, time.Minute, 30*time.Minute, logger.Discard())

	if n := ac.Sweep(context.Background()); n != 1 {
		t.Fatalf("expected 1 request completed, got %d", n)
	}
	if got := h.store.Request("req-overdue").Status; got != domain.RequestStatusCompleted {
		t.Errorf("expected overdue request COMPLETED, got %s", got)
	}
	if got := h.store.Request("req-recent").Status; got != domain.RequestStatusOngoing {
		t.Errorf("request within grace must stay ONGOING, got %s", got)
	}
	if n := ac.Sweep(context.Background()); n != 0 {
		t.Errorf("expected nothing left to sweep, got %d", n)
	}
}
