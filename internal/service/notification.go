package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ridepool/internal/domain"
	"ridepool/internal/repository"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationTrackingStarted  NotificationType = "TRACKING_STARTED"
	NotificationRideStarted      NotificationType = "RIDE_STARTED"
	NotificationPickupStarted    NotificationType = "PICKUP_STARTED"
	NotificationRiderPickedUp    NotificationType = "RIDER_PICKED_UP"
	NotificationRequestCompleted NotificationType = "REQUEST_COMPLETED"
	NotificationRideCompleted    NotificationType = "RIDE_COMPLETED"
	NotificationRideCancelled    NotificationType = "RIDE_CANCELLED"
)

// Notification represents a notification to be sent.
type Notification struct {
	Type        NotificationType
	RecipientID string // user ID
	Title       string
	Message     string
	Data        map[string]string
	CreatedAt   time.Time
}

// Dispatcher delivers a notification to a user's devices.
type Dispatcher interface {
	Dispatch(ctx context.Context, recipient *domain.User, n Notification) error
}

// LogDispatcher only logs notifications. Used when no push provider is configured.
type LogDispatcher struct {
	log logrus.FieldLogger
}

// NewLogDispatcher creates a LogDispatcher.
func NewLogDispatcher(log logrus.FieldLogger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

// Dispatch logs the notification.
func (d *LogDispatcher) Dispatch(_ context.Context, recipient *domain.User, n Notification) error {
	d.log.WithFields(logrus.Fields{
		"type":      n.Type,
		"recipient": recipient.ID,
		"title":     n.Title,
	}).Info(n.Message)
	return nil
}

// NotificationService handles notification delivery. Sends are queued and never fail the caller.
type NotificationService struct {
	users      repository.UserRepository
	dispatcher Dispatcher
	queue      *AsyncQueue
	log        logrus.FieldLogger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(users repository.UserRepository, dispatcher Dispatcher, queue *AsyncQueue, log logrus.FieldLogger) *NotificationService {
	return &NotificationService{
		users:      users,
		dispatcher: dispatcher,
		queue:      queue,
		log:        log,
	}
}

// NotifyTrackingStarted asks the driver to begin sending GPS points.
func (s *NotificationService) NotifyTrackingStarted(driverUserID, rideID string) {
	s.send(Notification{
		Type:        NotificationTrackingStarted,
		RecipientID: driverUserID,
		Title:       "Tracking Started",
		Message:     "Location tracking is on for your ride. Keep the app open.",
		Data:        map[string]string{"ride_id": rideID},
	})
}

// NotifyRideStarted confirms to the driver that the ride is under way.
func (s *NotificationService) NotifyRideStarted(driverUserID string, ride *domain.Ride) {
	s.send(Notification{
		Type:        NotificationRideStarted,
		RecipientID: driverUserID,
		Title:       "Ride Started",
		Message:     fmt.Sprintf("Your ride to %s has started", placeName(ride.EndLocation)),
		Data:        map[string]string{"ride_id": ride.ID},
	})
}

// NotifyPickup tells the driver and the rider that the passenger was picked up.
func (s *NotificationService) NotifyPickup(driverUserID string, req *domain.RideRequest) {
	s.send(Notification{
		Type:        NotificationPickupStarted,
		RecipientID: driverUserID,
		Title:       "Passenger Picked Up",
		Message:     fmt.Sprintf("Head to %s", placeName(req.Dropoff)),
		Data:        map[string]string{"ride_id": req.RideID, "request_id": req.ID},
	})
	s.send(Notification{
		Type:        NotificationRiderPickedUp,
		RecipientID: req.RiderID,
		Title:       "You're On Your Way",
		Message:     fmt.Sprintf("Your driver picked you up. Next stop: %s", placeName(req.Dropoff)),
		Data:        map[string]string{"ride_id": req.RideID, "request_id": req.ID},
	})
}

// NotifyRequestCompleted tells both parties the passenger was dropped off and charged.
func (s *NotificationService) NotifyRequestCompleted(driverUserID string, req *domain.RideRequest, settlement *domain.Settlement) {
	data := map[string]string{"ride_id": req.RideID, "request_id": req.ID}
	s.send(Notification{
		Type:        NotificationRequestCompleted,
		RecipientID: driverUserID,
		Title:       "Drop-off Complete",
		Message:     fmt.Sprintf("You earned %.2f for this passenger", settlement.DriverEarnings),
		Data:        data,
	})
	s.send(Notification{
		Type:        NotificationRequestCompleted,
		RecipientID: req.RiderID,
		Title:       "Trip Completed",
		Message:     fmt.Sprintf("You have arrived. Total fare: %.2f", req.TotalFare),
		Data:        data,
	})
}

// NotifyRideCompleted sends the driver their earnings summary.
func (s *NotificationService) NotifyRideCompleted(driverUserID string, ride *domain.Ride) {
	s.send(Notification{
		Type:        NotificationRideCompleted,
		RecipientID: driverUserID,
		Title:       "Ride Completed",
		Message:     fmt.Sprintf("Ride finished: %.1f km, earned %.2f", ride.ActualDistanceKm, ride.DriverEarnedAmount),
		Data:        map[string]string{"ride_id": ride.ID},
	})
}

// NotifyRideCancelled tells a rider their booking was cancelled.
func (s *NotificationService) NotifyRideCancelled(riderID string, ride *domain.Ride, reason string) {
	s.send(Notification{
		Type:        NotificationRideCancelled,
		RecipientID: riderID,
		Title:       "Ride Cancelled",
		Message:     "Your ride was cancelled by the driver",
		Data:        map[string]string{"ride_id": ride.ID, "reason": reason},
	})
}

// send queues delivery of a notification.
func (s *NotificationService) send(n Notification) {
	if s == nil || n.RecipientID == "" {
		return
	}
	n.CreatedAt = time.Now()

	s.queue.Submit("notify:"+string(n.Type), func(ctx context.Context) error {
		recipient, err := s.users.GetByID(ctx, n.RecipientID)
		if err != nil {
			return lookupErr(err, "user", n.RecipientID)
		}
		return s.dispatcher.Dispatch(ctx, recipient, n)
	})
}

func placeName(loc domain.Location) string {
	switch {
	case loc.Name != "":
		return loc.Name
	case loc.Address != "":
		return loc.Address
	default:
		return fmt.Sprintf("%.5f, %.5f", loc.Lat, loc.Lng)
	}
}
