package domain

import (
	"testing"
	"time"
)

func TestRideStatus_CanTransitionTo(t *testing.T) {
	t.Parallel()

	all := []RideStatus{RideStatusScheduled, RideStatusOngoing, RideStatusCompleted, RideStatusCancelled}
	legal := map[RideStatus]map[RideStatus]bool{
		RideStatusScheduled: {RideStatusOngoing: true, RideStatusCancelled: true},
		RideStatusOngoing:   {RideStatusCompleted: true, RideStatusCancelled: true},
	}

	for _, from := range all {
		for _, to := range all {
			want := legal[from][to]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s: expected %v, got %v", from, to, want, got)
			}
		}
	}
}

func TestRideStatus_TerminalStates(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status   RideStatus
		terminal bool
	}{
		{RideStatusScheduled, false},
		{RideStatusOngoing, false},
		{RideStatusCompleted, true},
		{RideStatusCancelled, true},
	}
	for _, tc := range cases {
		if tc.status.IsTerminal() != tc.terminal {
			t.Errorf("%s: expected terminal=%v", tc.status, tc.terminal)
		}
	}
}

func TestRequestStatus_CannotReopenCompleted(t *testing.T) {
	t.Parallel()

	if RequestStatusCompleted.CanTransitionTo(RequestStatusOngoing) {
		t.Error("completed request must not return to ONGOING")
	}
	if !RequestStatusConfirmed.CanTransitionTo(RequestStatusOngoing) {
		t.Error("confirmed request should be able to start")
	}
	if RequestStatusOngoing.CanTransitionTo(RequestStatusCancelled) {
		t.Error("a passenger on board cannot be cancelled")
	}
}

func TestRide_ReferenceTime(t *testing.T) {
	t.Parallel()

	scheduled := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	completed := scheduled.Add(45 * time.Minute)

	active := &Ride{Status: RideStatusOngoing, ScheduledTime: scheduled}
	if !active.ReferenceTime().Equal(scheduled) {
		t.Errorf("expected scheduled time for active ride, got %v", active.ReferenceTime())
	}

	done := &Ride{Status: RideStatusCompleted, ScheduledTime: scheduled, CompletedAt: completed}
	if !done.ReferenceTime().Equal(completed) {
		t.Errorf("expected completion time for completed ride, got %v", done.ReferenceTime())
	}
}

func TestTrack_AppendPreservesOrder(t *testing.T) {
	t.Parallel()

	now := time.Now()
	track := NewTrack("track-1", "ride-1", now)
	track.Append([]GPSPoint{{Lat: 1, Lng: 1, Timestamp: now}}, now)
	track.Append([]GPSPoint{{Lat: 2, Lng: 2, Timestamp: now}, {Lat: 3, Lng: 3, Timestamp: now}}, now)

	if len(track.Points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(track.Points))
	}
	for i, p := range track.Points {
		if p.Lat != float64(i+1) {
			t.Errorf("point %d out of order: lat=%v", i, p.Lat)
		}
	}

	last, ok := track.Last()
	if !ok || last.Lat != 3 {
		t.Errorf("expected last point lat=3, got %v (ok=%v)", last.Lat, ok)
	}

	var empty *Track
	if _, ok := empty.Last(); ok {
		t.Error("nil track should have no last point")
	}
}
