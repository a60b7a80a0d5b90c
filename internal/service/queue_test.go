package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ridepool/internal/domain"
	"ridepool/internal/logger"
)

func TestAsyncQueue_RunsJobsAndDrains(t *testing.T) {
	t.Parallel()
	q := NewAsyncQueue(16, 3, logger.Discard())
	q.Start()

	var ran int32
	for i := 0; i < 10; i++ {
		if !q.Submit("job", func(context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		}) {
			t.Fatal("submit refused with room in the buffer")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := q.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if ran != 10 {
		t.Errorf("expected 10 jobs to run, got %d", ran)
	}
	if q.Submit("late", func(context.Context) error { return nil }) {
		t.Error("submit after stop must be refused")
	}
}

func TestAsyncQueue_DropsWhenFullAndSurvivesPanics(t *testing.T) {
	t.Parallel()
	q := NewAsyncQueue(1, 1, logger.Discard())

	// Not started, so the single slot stays occupied.
	if !q.Submit("first", func(context.Context) error { panic("boom") }) {
		t.Fatal("first submit must be accepted")
	}
	if q.Submit("second", func(context.Context) error { return nil }) {
		t.Error("expected a full queue to drop the job")
	}

	q.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := q.Stop(ctx); err != nil {
		t.Fatalf("a panicking job must not stop the worker: %v", err)
	}
}

type recordingSink struct {
	mu     sync.Mutex
	name   string
	events []domain.Event
	err    error
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(_ context.Context, e domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func TestBroadcaster_FansOutToEverySink(t *testing.T) {
	t.Parallel()
	q := NewAsyncQueue(16, 2, logger.Discard())
	q.Start()

	failing := &recordingSink{name: "failing", err: errors.New("broker down")}
	ok := &recordingSink{name: "ok"}
	b := NewBroadcaster(q, logger.Discard(), failing)
	b.AddSink(ok)

	b.LocationPing(domain.LocationPing{RideID: "r1", Lat: 1, Lng: 2})
	b.RiderUpdate("rider-1", domain.RiderUpdate{RideID: "r1", Status: domain.RiderStatusPickupCompleted})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := q.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	for _, s := range []*recordingSink{failing, ok} {
		if len(s.events) != 2 {
			t.Fatalf("%s: expected 2 events, got %d", s.name, len(s.events))
		}
	}
	var update domain.Event
	for _, e := range ok.events {
		if e.Kind == domain.EventRiderUpdate {
			update = e
		}
	}
	if update.UserID != "rider-1" || update.SentAt.IsZero() {
		t.Errorf("unexpected rider update event %+v", update)
	}
	if u := update.Payload.(domain.RiderUpdate); u.Timestamp.IsZero() {
		t.Error("expected the rider update to be timestamped")
	}
}

func TestBroadcaster_NilIsNoop(t *testing.T) {
	t.Parallel()
	var b *Broadcaster
	b.Publish(domain.Event{Kind: domain.EventLocationPing})
}
