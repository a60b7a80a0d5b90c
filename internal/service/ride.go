package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ridepool/internal/domain"
	"ridepool/internal/lock"
	"ridepool/internal/logger"
	"ridepool/internal/repository"
)

const (
	// PickupRadiusMeters is how close the driver must be to a pickup to start a request.
	PickupRadiusMeters = 100.0

	// DropoffRadiusMeters is how close the driver must be to a dropoff to complete a request.
	DropoffRadiusMeters = 200.0

	// DefaultMinRideInterval separates a new ride from the driver's previous active one.
	DefaultMinRideInterval = 15 * time.Minute
)

// RideServiceDeps holds the collaborators of a RideService.
type RideServiceDeps struct {
	Locker        lock.Locker
	UnitOfWork    repository.UnitOfWork
	Reads         repository.Repositories // used outside any transaction
	Pricing       repository.PricingRepository
	Routing       RoutingService
	Tracking      *TrackingService
	Settlement    *SettlementCoordinator
	Notifications *NotificationService
	Broadcaster   *Broadcaster
	MinInterval   time.Duration
	Log           logrus.FieldLogger
}

// RideService drives rides and their requests through their lifecycle.
type RideService struct {
	locker        lock.Locker
	uow           repository.UnitOfWork
	guard         rideGuard
	reads         repository.Repositories
	pricing       repository.PricingRepository
	routing       RoutingService
	tracking      *TrackingService
	settlement    *SettlementCoordinator
	notifications *NotificationService
	broadcaster   *Broadcaster
	minInterval   time.Duration
	log           logrus.FieldLogger
	now           func() time.Time
}

// NewRideService creates a new RideService.
func NewRideService(deps RideServiceDeps) *RideService {
	minInterval := deps.MinInterval
	if minInterval <= 0 {
		minInterval = DefaultMinRideInterval
	}
	log := deps.Log
	if log == nil {
		log = logger.Discard()
	}

	return &RideService{
		locker:        deps.Locker,
		uow:           deps.UnitOfWork,
		guard:         rideGuard{locker: deps.Locker, uow: deps.UnitOfWork},
		reads:         deps.Reads,
		pricing:       deps.Pricing,
		routing:       deps.Routing,
		tracking:      deps.Tracking,
		settlement:    deps.Settlement,
		notifications: deps.Notifications,
		broadcaster:   deps.Broadcaster,
		minInterval:   minInterval,
		log:           log,
		now:           time.Now,
	}
}

// CreateRideRequest contains the parameters for creating a ride.
// Each endpoint takes exactly one of a location ID or coordinates.
type CreateRideRequest struct {
	VehicleID       string
	StartLocationID string
	StartLatLng     *domain.LatLng
	EndLocationID   string
	EndLatLng       *domain.LatLng
	ScheduledTime   *time.Time // nil means the ride starts now
}

// CreateRide offers a new ride for the actor's driver profile. A ride without a scheduled time
// starts immediately and begins tracking.
func (s *RideService) CreateRide(ctx context.Context, actor domain.Actor, req CreateRideRequest) (*domain.Ride, error) {
	if err := validateEndpoint(req.StartLocationID, req.StartLatLng); err != nil {
		return nil, err
	}
	if err := validateEndpoint(req.EndLocationID, req.EndLatLng); err != nil {
		return nil, err
	}

	driver, err := s.reads.Drivers.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, lookupErr(err, "driver profile of user", actor.UserID)
	}

	release, err := s.locker.Lock(ctx, lock.DriverKey(driver.ID))
	if err != nil {
		return nil, fmt.Errorf("lock driver %s: %w", driver.ID, err)
	}
	defer release()

	now := s.now()
	immediate := req.ScheduledTime == nil
	startAt := now
	if !immediate {
		startAt = *req.ScheduledTime
	}

	var ride *domain.Ride
	err = s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		vehicle, err := repos.Vehicles.GetByID(ctx, req.VehicleID)
		if err != nil {
			return lookupErr(err, "vehicle", req.VehicleID)
		}
		if vehicle.DriverID != driver.ID {
			return ErrVehicleNotOwned
		}

		if err := s.checkInterval(ctx, repos, driver.ID, startAt); err != nil {
			return err
		}

		startLoc, err := s.resolveLocation(ctx, repos, req.StartLocationID, req.StartLatLng)
		if err != nil {
			return err
		}
		endLoc, err := s.resolveLocation(ctx, repos, req.EndLocationID, req.EndLatLng)
		if err != nil {
			return err
		}

		pricing, err := s.activePricing(ctx, now)
		if err != nil {
			return err
		}

		route, err := s.routing.GetRoute(ctx, startLoc.LatLng(), endLoc.LatLng())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRouteValidation, err)
		}

		ride = &domain.Ride{
			ID:                   uuid.New().String(),
			DriverID:             driver.ID,
			VehicleID:            vehicle.ID,
			StartLocation:        *startLoc,
			EndLocation:          *endLoc,
			Status:               domain.RideStatusScheduled,
			ScheduledTime:        startAt,
			EstimatedDistanceKm:  route.DistanceMeters / 1000,
			EstimatedDurationMin: int(math.Ceil(route.DurationSeconds / 60)),
			MaxPassengers:        1,
			CurrentPassengers:    0,
			PricingVersion:       pricing.Version,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if immediate {
			ride.Status = domain.RideStatusOngoing
			ride.StartedAt = now
		}
		return repos.Rides.Create(ctx, ride)
	})
	if err != nil {
		return nil, err
	}

	log := logger.ForRide(s.log, ride.ID).WithField("driver_id", driver.ID)
	if immediate {
		if err := s.tracking.StartTracking(ctx, ride.ID); err != nil {
			log.WithError(err).Error("failed to start tracking for immediate ride")
		}
	}
	log.WithField("status", ride.Status).Info("ride created")
	return ride, nil
}

// GetRide retrieves a ride by ID.
func (s *RideService) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	ride, err := s.reads.Rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, lookupErr(err, "ride", rideID)
	}
	return ride, nil
}

// ListDriverRides returns the actor's rides, newest first, optionally filtered by status.
func (s *RideService) ListDriverRides(ctx context.Context, actor domain.Actor, status domain.RideStatus, limit, offset int) ([]*domain.Ride, error) {
	driver, err := s.reads.Drivers.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, lookupErr(err, "driver profile of user", actor.UserID)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.reads.Rides.ListByDriver(ctx, driver.ID, status, limit, offset)
}

// StartRide moves a scheduled ride to ONGOING and starts tracking it.
func (s *RideService) StartRide(ctx context.Context, rideID string, actor domain.Actor) (*domain.Ride, error) {
	var ride *domain.Ride
	err := s.guard.run(ctx, rideID, func(ctx context.Context, tx *rideTx) error {
		driver, err := loadOwnedRide(ctx, tx.repos, tx.ride, actor)
		if err != nil {
			return err
		}
		if err := requireRideStatus(tx.ride, domain.RideStatusScheduled, "start ride"); err != nil {
			return err
		}

		now := s.now()
		if err := transitionRide(tx.ride, domain.RideStatusOngoing); err != nil {
			return err
		}
		tx.ride.StartedAt = now
		tx.ride.UpdatedAt = now
		if err := tx.repos.Rides.Update(ctx, tx.ride); err != nil {
			return err
		}

		ride = tx.ride
		tx.afterCommit(func() {
			s.notifications.NotifyRideStarted(driver.UserID, ride)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := logger.ForRide(s.log, rideID)
	if err := s.tracking.StartTracking(ctx, rideID); err != nil {
		log.WithError(err).Error("failed to start tracking")
	}
	log.Info("ride started")
	return ride, nil
}

// RideCompletion is the financial summary of a completed ride.
type RideCompletion struct {
	Ride                *domain.Ride
	TotalFareCollected  float64
	PlatformCommission  float64
	DriverEarnings      float64
	CompletedRequestIDs []string
}

// CompleteRide finishes an ONGOING ride once no passenger is waiting or on board.
func (s *RideService) CompleteRide(ctx context.Context, rideID string, actor domain.Actor) (*RideCompletion, error) {
	var result *RideCompletion
	err := s.guard.run(ctx, rideID, func(ctx context.Context, tx *rideTx) error {
		driver, err := loadOwnedRide(ctx, tx.repos, tx.ride, actor)
		if err != nil {
			return err
		}
		if err := requireRideStatus(tx.ride, domain.RideStatusOngoing, "complete ride"); err != nil {
			return err
		}

		active, err := tx.repos.Requests.ListByRide(ctx, rideID, domain.RequestStatusConfirmed, domain.RequestStatusOngoing)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			return fmt.Errorf("%w: %d request(s) still confirmed or ongoing", ErrActiveRequests, len(active))
		}

		now := s.now()
		pricing, err := s.activePricing(ctx, now)
		if err != nil {
			return err
		}

		completed, err := tx.repos.Requests.ListByRide(ctx, rideID, domain.RequestStatusCompleted)
		if err != nil {
			return err
		}
		totalFare := 0.0
		ids := make([]string, 0, len(completed))
		for _, req := range completed {
			totalFare += req.TotalFare
			ids = append(ids, req.ID)
		}
		commission := totalFare * pricing.SystemCommissionRate
		earned := totalFare - commission

		ride := tx.ride
		ride.ActualDistanceKm = s.actualDistanceKm(ctx, tx.repos, ride, true)
		ride.ActualDurationMin = elapsedMinutes(ride.StartedAt, now)
		if err := transitionRide(ride, domain.RideStatusCompleted); err != nil {
			return err
		}
		ride.CompletedAt = now
		ride.DriverEarnedAmount = earned
		ride.CompletedPricingVersion = pricing.Version
		ride.UpdatedAt = now
		if err := tx.repos.Rides.Update(ctx, ride); err != nil {
			return err
		}
		if err := tx.repos.Drivers.AddRideStats(ctx, driver.ID, earned); err != nil {
			return err
		}

		result = &RideCompletion{
			Ride:                ride,
			TotalFareCollected:  totalFare,
			PlatformCommission:  commission,
			DriverEarnings:      earned,
			CompletedRequestIDs: ids,
		}

		snap := s.tracking.snapshot(ctx, tx.repos, ride)
		tx.afterCommit(func() {
			s.broadcaster.TrackingSnapshot(snap)
			for _, req := range completed {
				s.broadcaster.RiderUpdate(req.RiderID, domain.RiderUpdate{
					RideID:         ride.ID,
					RequestID:      req.ID,
					Status:         domain.RiderStatusRideCompleted,
					Message:        "Your ride is complete. How was your driver?",
					Phase:          domain.PhaseCompleted,
					DriverID:       driver.ID,
					DriverName:     driver.Name,
					TotalFare:      req.TotalFare,
					ActualDistance: ride.ActualDistanceKm,
					ActualDuration: ride.ActualDurationMin,
					PromptRating:   true,
				})
			}
			s.notifications.NotifyRideCompleted(driver.UserID, ride)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := logger.ForRide(s.log, rideID)
	if err := s.tracking.StopTracking(ctx, rideID); err != nil {
		log.WithError(err).Warn("failed to stop tracking")
	}
	log.WithFields(logrus.Fields{
		"total_fare": result.TotalFareCollected,
		"commission": result.PlatformCommission,
		"requests":   len(result.CompletedRequestIDs),
	}).Info("ride completed")
	return result, nil
}

// CancelRide cancels a SCHEDULED or ONGOING ride and releases the funds held for every
// confirmed request. A failed release does not block the cancel. Admins may cancel any ride.
func (s *RideService) CancelRide(ctx context.Context, rideID string, actor domain.Actor, reason string) (*domain.Ride, error) {
	var (
		ride       *domain.Ride
		wasOngoing bool
	)
	err := s.guard.run(ctx, rideID, func(ctx context.Context, tx *rideTx) error {
		if !actor.IsAdmin() {
			if _, err := loadOwnedRide(ctx, tx.repos, tx.ride, actor); err != nil {
				return err
			}
		}
		if !tx.ride.Status.CanTransitionTo(domain.RideStatusCancelled) {
			return &StateError{Entity: "ride", Current: string(tx.ride.Status), Attempted: "cancel ride"}
		}

		confirmed, err := tx.repos.Requests.ListByRide(ctx, rideID, domain.RequestStatusConfirmed)
		if err != nil {
			return err
		}

		note := "Ride cancelled"
		if reason != "" {
			note += ": " + reason
		}
		// A request whose release failed stays CONFIRMED so its hold can be reconciled.
		var cancelled []*domain.RideRequest
		for _, req := range confirmed {
			if err := s.settlement.Release(ctx, req, note); err != nil {
				logger.ForRequest(s.log, rideID, req.ID).WithError(err).Error("failed to release held funds, request left confirmed")
				continue
			}
			if err := transitionRequest(req, domain.RequestStatusCancelled); err != nil {
				return err
			}
			if err := tx.repos.Requests.Update(ctx, req); err != nil {
				return err
			}
			cancelled = append(cancelled, req)
		}

		wasOngoing = tx.ride.Status == domain.RideStatusOngoing
		if err := transitionRide(tx.ride, domain.RideStatusCancelled); err != nil {
			return err
		}
		tx.ride.UpdatedAt = s.now()
		if err := tx.repos.Rides.Update(ctx, tx.ride); err != nil {
			return err
		}

		ride = tx.ride
		tx.afterCommit(func() {
			for _, req := range cancelled {
				s.broadcaster.RiderUpdate(req.RiderID, domain.RiderUpdate{
					RideID:    ride.ID,
					RequestID: req.ID,
					Status:    domain.RiderStatusRideCancelled,
					Message:   "Your ride was cancelled. Any held fare has been released.",
					Phase:     domain.PhaseCancelled,
				})
				s.notifications.NotifyRideCancelled(req.RiderID, ride, reason)
			}
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := logger.ForRide(s.log, rideID).WithField("reason", reason)
	if wasOngoing {
		if err := s.tracking.StopTracking(ctx, rideID); err != nil {
			log.WithError(err).Warn("failed to stop tracking")
		}
	}
	log.Info("ride cancelled")
	return ride, nil
}

// checkInterval rejects a ride starting before the driver's previous active ride plus the minimum interval.
func (s *RideService) checkInterval(ctx context.Context, repos repository.Repositories, driverID string, startAt time.Time) error {
	last, err := repos.Rides.GetLatestByDriverID(ctx, driverID)
	if err != nil {
		return err
	}
	if last == nil || last.Status.IsTerminal() {
		return nil
	}

	earliest := last.ReferenceTime().Add(s.minInterval)
	if startAt.Before(earliest) {
		return fmt.Errorf("%w: next ride must start at or after %s", ErrIntervalViolation, earliest.Format(time.RFC3339))
	}
	return nil
}

// resolveLocation returns the referenced location, or finds or creates one at the coordinates.
func (s *RideService) resolveLocation(ctx context.Context, repos repository.Repositories, id string, at *domain.LatLng) (*domain.Location, error) {
	if id != "" {
		loc, err := repos.Locations.GetByID(ctx, id)
		if err != nil {
			return nil, lookupErr(err, "location", id)
		}
		return loc, nil
	}

	existing, err := repos.Locations.FindByCoordinates(ctx, at.Lat, at.Lng)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	address, err := s.routing.GetAddress(ctx, *at)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"lat": at.Lat, "lng": at.Lng}).
			Warn("reverse geocoding failed, saving location without address")
		address = ""
	}

	loc := &domain.Location{
		ID:        uuid.New().String(),
		Lat:       at.Lat,
		Lng:       at.Lng,
		Address:   address,
		CreatedAt: s.now(),
	}
	if err := repos.Locations.Create(ctx, loc); err != nil {
		return nil, err
	}
	return loc, nil
}

// activePricing returns the pricing configuration in effect at t.
func (s *RideService) activePricing(ctx context.Context, at time.Time) (*domain.PricingConfig, error) {
	cfg, err := s.pricing.FindActive(ctx, at)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoActivePricing
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// actualDistanceKm prefers the recorded track, then a routing estimate when allowed, then the
// distance estimated at creation.
func (s *RideService) actualDistanceKm(ctx context.Context, repos repository.Repositories, ride *domain.Ride, allowRouting bool) float64 {
	log := logger.ForRide(s.log, ride.ID)

	track, err := repos.Tracks.GetByRideID(ctx, ride.ID)
	switch {
	case err == nil && len(track.Points) >= 2:
		return ComputeDistanceFromPoints(track.Points)
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		log.WithError(err).Warn("could not load track for distance")
	}

	if allowRouting {
		route, err := s.routing.GetRoute(ctx, ride.StartLocation.LatLng(), ride.EndLocation.LatLng())
		if err == nil {
			return route.DistanceMeters / 1000
		}
		log.WithError(err).Warn("routing fallback failed, using estimated distance")
	}
	return ride.EstimatedDistanceKm
}

func validateEndpoint(id string, at *domain.LatLng) error {
	if (id == "") == (at == nil) {
		return ErrLocationInput
	}
	if at != nil && !at.Valid() {
		return ErrInvalidCoordinates
	}
	return nil
}

func elapsedMinutes(from, to time.Time) int {
	if from.IsZero() || to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Minutes())
}
