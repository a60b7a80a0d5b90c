package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"ridepool/internal/domain"
	"ridepool/internal/geo"
	"ridepool/internal/logger"
)

// RequestCompletion is the outcome of dropping a passenger off.
type RequestCompletion struct {
	Request            *domain.RideRequest
	RideID             string
	DriverEarnings     float64
	PlatformCommission float64
	ActualDistanceKm   float64
	ActualDurationMin  int
}

// StartRequest picks a confirmed passenger up. The driver must be within PickupRadiusMeters of the pickup.
func (s *RideService) StartRequest(ctx context.Context, rideID, requestID string, actor domain.Actor) (*domain.RideRequest, error) {
	if requestID == "" {
		return nil, ErrInvalidRequestID
	}

	var started *domain.RideRequest
	err := s.guard.run(ctx, rideID, func(ctx context.Context, tx *rideTx) error {
		driver, err := loadOwnedRide(ctx, tx.repos, tx.ride, actor)
		if err != nil {
			return err
		}
		if err := requireRideStatus(tx.ride, domain.RideStatusOngoing, "start request"); err != nil {
			return err
		}
		req, err := loadRideRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if err := requireRequestStatus(req, domain.RequestStatusConfirmed, "start request"); err != nil {
			return err
		}

		pos, err := s.tracking.currentPosition(ctx, tx.repos, tx.ride)
		if err != nil {
			return err
		}
		if err := checkProximity(pos, req.Pickup, "pickup", PickupRadiusMeters); err != nil {
			return err
		}

		now := s.now()
		if err := transitionRequest(req, domain.RequestStatusOngoing); err != nil {
			return err
		}
		req.ActualPickupTime = now
		if err := tx.repos.Requests.Update(ctx, req); err != nil {
			return err
		}

		started = req
		snap := s.tracking.snapshot(ctx, tx.repos, tx.ride)
		tx.afterCommit(func() {
			s.notifications.NotifyPickup(driver.UserID, req)
			s.broadcaster.RiderUpdate(req.RiderID, domain.RiderUpdate{
				RideID:     req.RideID,
				RequestID:  req.ID,
				Status:     domain.RiderStatusPickupCompleted,
				Message:    "You have been picked up",
				Phase:      domain.PhaseToDropoff,
				DriverID:   driver.ID,
				DriverName: driver.Name,
			})
			s.broadcaster.TrackingSnapshot(snap)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.ForRequest(s.log, rideID, requestID).Info("passenger picked up")
	return started, nil
}

// CompleteRequest drops a passenger off and settles their fare. The driver must be within
// DropoffRadiusMeters of the dropoff. If settlement fails the request stays ONGOING.
func (s *RideService) CompleteRequest(ctx context.Context, rideID, requestID string, actor domain.Actor) (*RequestCompletion, error) {
	if requestID == "" {
		return nil, ErrInvalidRequestID
	}

	var result *RequestCompletion
	err := s.guard.run(ctx, rideID, func(ctx context.Context, tx *rideTx) error {
		driver, err := loadOwnedRide(ctx, tx.repos, tx.ride, actor)
		if err != nil {
			return err
		}
		if err := requireRideStatus(tx.ride, domain.RideStatusOngoing, "complete request"); err != nil {
			return err
		}
		req, err := loadRideRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if err := requireRequestStatus(req, domain.RequestStatusOngoing, "complete request"); err != nil {
			return err
		}

		pos, err := s.tracking.currentPosition(ctx, tx.repos, tx.ride)
		if err != nil {
			return err
		}
		if err := checkProximity(pos, req.Dropoff, "dropoff", DropoffRadiusMeters); err != nil {
			return err
		}

		result, err = s.completeRequestTx(ctx, tx, driver, req, true)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.ForRequest(s.log, rideID, requestID).WithFields(logrus.Fields{
		"driver_earnings": result.DriverEarnings,
		"commission":      result.PlatformCommission,
	}).Info("passenger dropped off")
	return result, nil
}

// ForceCompleteRequest completes an ONGOING request without a proximity check. It is meant for
// automated timeouts: if the ride or request is no longer ONGOING it does nothing and returns nil.
func (s *RideService) ForceCompleteRequest(ctx context.Context, rideID, requestID string, actor domain.Actor) (*RequestCompletion, error) {
	if requestID == "" {
		return nil, ErrInvalidRequestID
	}

	var result *RequestCompletion
	err := s.guard.run(ctx, rideID, func(ctx context.Context, tx *rideTx) error {
		driver, err := tx.repos.Drivers.GetByID(ctx, tx.ride.DriverID)
		if err != nil {
			return lookupErr(err, "driver", tx.ride.DriverID)
		}
		if !actor.IsSystem() && !actor.IsAdmin() && driver.UserID != actor.UserID {
			return ErrNotRideOwner
		}

		req, err := loadRideRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}

		log := logger.ForRequest(s.log, rideID, requestID)
		if tx.ride.Status != domain.RideStatusOngoing || req.Status != domain.RequestStatusOngoing {
			log.WithFields(logrus.Fields{
				"ride_status":    tx.ride.Status,
				"request_status": req.Status,
			}).Warn("force complete skipped, ride or request is not ongoing")
			return nil
		}

		result, err = s.completeRequestTx(ctx, tx, driver, req, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	if result != nil {
		logger.ForRequest(s.log, rideID, requestID).WithField("actor", actor.UserID).Info("request force completed")
	}
	return result, nil
}

// completeRequestTx settles the request and only then marks it COMPLETED.
func (s *RideService) completeRequestTx(ctx context.Context, tx *rideTx, driver *domain.Driver, req *domain.RideRequest, allowRouting bool) (*RequestCompletion, error) {
	now := s.now()
	pricing, err := s.activePricing(ctx, now)
	if err != nil {
		return nil, err
	}

	distanceKm := s.actualDistanceKm(ctx, tx.repos, tx.ride, allowRouting)
	durationMin := elapsedMinutes(tx.ride.StartedAt, now)

	settlement, err := s.settlement.Settle(ctx, req, driver, domain.NewFareBreakdown(pricing, req))
	if err != nil {
		return nil, err
	}

	if err := transitionRequest(req, domain.RequestStatusCompleted); err != nil {
		return nil, err
	}
	req.ActualDropoffTime = now
	if err := tx.repos.Requests.Update(ctx, req); err != nil {
		return nil, err
	}

	snap := s.tracking.snapshot(ctx, tx.repos, tx.ride)
	tx.afterCommit(func() {
		s.notifications.NotifyRequestCompleted(driver.UserID, req, settlement)
		s.broadcaster.RiderUpdate(req.RiderID, domain.RiderUpdate{
			RideID:         req.RideID,
			RequestID:      req.ID,
			Status:         domain.RiderStatusRequestComplete,
			Message:        "You have arrived at your destination",
			Phase:          domain.PhaseCompleted,
			DriverID:       driver.ID,
			DriverName:     driver.Name,
			TotalFare:      req.TotalFare,
			ActualDistance: distanceKm,
			ActualDuration: durationMin,
		})
		s.broadcaster.TrackingSnapshot(snap)
	})

	return &RequestCompletion{
		Request:            req,
		RideID:             req.RideID,
		DriverEarnings:     settlement.DriverEarnings,
		PlatformCommission: settlement.SystemCommission,
		ActualDistanceKm:   distanceKm,
		ActualDurationMin:  durationMin,
	}, nil
}

// loadRideRequest loads a request and checks it belongs to the locked ride.
func loadRideRequest(ctx context.Context, tx *rideTx, requestID string) (*domain.RideRequest, error) {
	req, err := tx.repos.Requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, lookupErr(err, "request", requestID)
	}
	if req.RideID != tx.ride.ID {
		return nil, ErrRequestNotInRide
	}
	return req, nil
}

// checkProximity fails when pos is more than limit meters from target. Exactly limit is allowed.
func checkProximity(pos domain.LatLng, target domain.Location, name string, limit float64) error {
	d := geo.HaversineMeters(pos.Lat, pos.Lng, target.Lat, target.Lng)
	if d > limit {
		return &ProximityError{Target: name, DistanceMeters: d, LimitMeters: limit}
	}
	return nil
}
