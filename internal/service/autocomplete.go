package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"ridepool/internal/domain"
	"ridepool/internal/repository"
)

// autoCompleteBatch caps how many overdue requests one sweep handles.
const autoCompleteBatch = 100

// AutoCompleter periodically force-completes passengers whose estimated dropoff is long past.
type AutoCompleter struct {
	rides    *RideService
	requests repository.RideRequestRepository
	every    time.Duration
	grace    time.Duration
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewAutoCompleter creates an AutoCompleter that sweeps every interval for requests more than
// grace past their estimated dropoff.
func NewAutoCompleter(rides *RideService, requests repository.RideRequestRepository, every, grace time.Duration, log logrus.FieldLogger) *AutoCompleter {
	return &AutoCompleter{
		rides:    rides,
		requests: requests,
		every:    every,
		grace:    grace,
		log:      log,
		now:      time.Now,
	}
}

// Run sweeps until ctx is done.
func (a *AutoCompleter) Run(ctx context.Context) {
	ticker := time.NewTicker(a.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Sweep(ctx)
		}
	}
}

// Sweep force-completes one batch of overdue requests and returns how many were completed.
func (a *AutoCompleter) Sweep(ctx context.Context) int {
	overdue, err := a.requests.ListOverdue(ctx, a.now().Add(-a.grace), autoCompleteBatch)
	if err != nil {
		a.log.WithError(err).Error("auto-complete: failed to list overdue requests")
		return 0
	}

	completed := 0
	for _, req := range overdue {
		if ctx.Err() != nil {
			break
		}
		result, err := a.rides.ForceCompleteRequest(ctx, req.RideID, req.ID, domain.SystemActor())
		if err != nil {
			a.log.WithError(err).WithFields(logrus.Fields{
				"ride_id":    req.RideID,
				"request_id": req.ID,
			}).Warn("auto-complete: force complete failed")
			continue
		}
		if result != nil {
			completed++
		}
	}

	if completed > 0 {
		a.log.WithField("completed", completed).Info("auto-complete sweep finished")
	}
	return completed
}
