package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"ridepool/internal/domain"
)

// EventSink receives broadcast events. Implementations ignore kinds they do not carry.
type EventSink interface {
	Name() string
	Publish(ctx context.Context, event domain.Event) error
}

// Broadcaster publishes tracking snapshots, location pings and rider updates to every sink.
// Publishing never fails the caller: each sink runs on the async queue and its errors are logged.
type Broadcaster struct {
	queue *AsyncQueue
	sinks []EventSink
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewBroadcaster creates a Broadcaster over the given sinks.
func NewBroadcaster(queue *AsyncQueue, log logrus.FieldLogger, sinks ...EventSink) *Broadcaster {
	return &Broadcaster{queue: queue, sinks: sinks, log: log, now: time.Now}
}

// AddSink registers another sink. It must be called before the first publish.
func (b *Broadcaster) AddSink(sink EventSink) {
	b.sinks = append(b.sinks, sink)
}

// Publish hands the event to every sink asynchronously.
func (b *Broadcaster) Publish(event domain.Event) {
	if b == nil {
		return
	}
	if event.SentAt.IsZero() {
		event.SentAt = b.now()
	}
	for _, sink := range b.sinks {
		sink := sink
		b.queue.Submit(sink.Name()+":"+string(event.Kind), func(ctx context.Context) error {
			return sink.Publish(ctx, event)
		})
	}
}

// TrackingSnapshot publishes the ride-scoped view of a track.
func (b *Broadcaster) TrackingSnapshot(s domain.TrackingSnapshot) {
	b.Publish(domain.Event{Kind: domain.EventTrackingSnapshot, RideID: s.RideID, Payload: s})
}

// LocationPing publishes the lightweight position update of a ride.
func (b *Broadcaster) LocationPing(p domain.LocationPing) {
	b.Publish(domain.Event{Kind: domain.EventLocationPing, RideID: p.RideID, Payload: p})
}

// TrackingStopped tells subscribers the ride no longer reports positions.
func (b *Broadcaster) TrackingStopped(rideID string, at time.Time) {
	b.Publish(domain.Event{
		Kind:    domain.EventTrackingStopped,
		RideID:  rideID,
		Payload: domain.TrackingStopped{RideID: rideID, StoppedAt: at},
	})
}

// RiderUpdate publishes a phase change to one rider.
func (b *Broadcaster) RiderUpdate(riderID string, u domain.RiderUpdate) {
	if u.Timestamp.IsZero() {
		u.Timestamp = b.now()
	}
	b.Publish(domain.Event{Kind: domain.EventRiderUpdate, RideID: u.RideID, UserID: riderID, Payload: u})
}
