package service

import (
	"context"
	"fmt"

	"ridepool/internal/domain"
	"ridepool/internal/lock"
	"ridepool/internal/repository"
)

// rideTx is the state handed to a mutation running under a ride's lock.
type rideTx struct {
	repos repository.Repositories
	ride  *domain.Ride
	after []func()
}

// afterCommit registers a side effect to run only if the unit of work commits.
func (t *rideTx) afterCommit(fn func()) {
	t.after = append(t.after, fn)
}

// rideGuard serializes mutations of a ride: lock, transaction, row lock, then fn.
type rideGuard struct {
	locker lock.Locker
	uow    repository.UnitOfWork
}

// run holds the ride lock for the whole unit of work and fires after-commit effects once it commits.
func (g rideGuard) run(ctx context.Context, rideID string, fn func(ctx context.Context, tx *rideTx) error) error {
	if rideID == "" {
		return ErrInvalidRideID
	}

	release, err := g.locker.Lock(ctx, lock.RideKey(rideID))
	if err != nil {
		return fmt.Errorf("lock ride %s: %w", rideID, err)
	}
	defer release()

	var committed *rideTx
	err = g.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		ride, err := repos.Rides.GetByIDForUpdate(ctx, rideID)
		if err != nil {
			return lookupErr(err, "ride", rideID)
		}
		tx := &rideTx{repos: repos, ride: ride}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		committed = tx
		return nil
	})
	if err != nil {
		return err
	}

	for _, effect := range committed.after {
		effect()
	}
	return nil
}

// loadOwnedRide checks that the actor drives the ride and returns the driver profile.
func loadOwnedRide(ctx context.Context, repos repository.Repositories, ride *domain.Ride, actor domain.Actor) (*domain.Driver, error) {
	driver, err := repos.Drivers.GetByID(ctx, ride.DriverID)
	if err != nil {
		return nil, lookupErr(err, "driver", ride.DriverID)
	}
	if driver.UserID != actor.UserID {
		return nil, ErrNotRideOwner
	}
	return driver, nil
}

func requireRideStatus(ride *domain.Ride, want domain.RideStatus, op string) error {
	if ride.Status != want {
		return &StateError{Entity: "ride", Current: string(ride.Status), Attempted: op}
	}
	return nil
}

func requireRequestStatus(req *domain.RideRequest, want domain.RequestStatus, op string) error {
	if req.Status != want {
		return &StateError{Entity: "request", Current: string(req.Status), Attempted: op}
	}
	return nil
}

func transitionRide(ride *domain.Ride, next domain.RideStatus) error {
	if !ride.Status.CanTransitionTo(next) {
		return &StateError{Entity: "ride", Current: string(ride.Status), Attempted: "move to " + string(next)}
	}
	ride.Status = next
	return nil
}

func transitionRequest(req *domain.RideRequest, next domain.RequestStatus) error {
	if !req.Status.CanTransitionTo(next) {
		return &StateError{Entity: "request", Current: string(req.Status), Attempted: "move to " + string(next)}
	}
	req.Status = next
	return nil
}
