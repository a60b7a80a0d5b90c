package service

import (
	"context"
	"fmt"

	"ridepool/internal/domain"
)

// SettleRequest asks the funds service to capture a held fare.
type SettleRequest struct {
	RiderID       string
	RequestID     string
	DriverID      string
	HoldReference string
	Note          string
	Fare          domain.FareBreakdown
}

// SettleResult is the split of a captured fare.
type SettleResult struct {
	DriverEarnings   float64
	SystemCommission float64
}

// ReleaseRequest asks the funds service to return a held fare without capture.
type ReleaseRequest struct {
	RiderID       string
	RequestID     string
	HoldReference string
	Amount        float64
	Note          string
}

// FundsService is the external service holding passenger funds.
type FundsService interface {
	Settle(ctx context.Context, req SettleRequest) (*SettleResult, error)
	Release(ctx context.Context, req ReleaseRequest) error
}

// MockFunds is an in-process FundsService. It always succeeds and splits fares by the commission rate.
type MockFunds struct{}

// NewMockFunds creates a new MockFunds.
func NewMockFunds() *MockFunds {
	return &MockFunds{}
}

// Settle splits the total into commission and driver earnings.
func (MockFunds) Settle(_ context.Context, req SettleRequest) (*SettleResult, error) {
	commission := req.Fare.Total * req.Fare.CommissionRate
	return &SettleResult{
		DriverEarnings:   req.Fare.Total - commission,
		SystemCommission: commission,
	}, nil
}

// Release always succeeds.
func (MockFunds) Release(context.Context, ReleaseRequest) error {
	return nil
}

// SettlementCoordinator turns request completions and cancellations into funds service calls.
type SettlementCoordinator struct {
	funds FundsService
}

// NewSettlementCoordinator creates a SettlementCoordinator.
func NewSettlementCoordinator(funds FundsService) *SettlementCoordinator {
	return &SettlementCoordinator{funds: funds}
}

// Settle captures the request's fare for the driver. Any failure is an ErrSettlementFailed.
func (c *SettlementCoordinator) Settle(ctx context.Context, req *domain.RideRequest, driver *domain.Driver, fare domain.FareBreakdown) (*domain.Settlement, error) {
	result, err := c.funds.Settle(ctx, SettleRequest{
		RiderID:       req.RiderID,
		RequestID:     req.ID,
		DriverID:      driver.ID,
		HoldReference: req.HoldReference,
		Note:          fmt.Sprintf("Ride %s, request %s completed", req.RideID, req.ID),
		Fare:          fare,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: request %s: %v", ErrSettlementFailed, req.ID, err)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: request %s: empty result", ErrSettlementFailed, req.ID)
	}

	return &domain.Settlement{
		RequestID:        req.ID,
		DriverEarnings:   result.DriverEarnings,
		SystemCommission: result.SystemCommission,
	}, nil
}

// Release returns the request's held fare to the rider.
func (c *SettlementCoordinator) Release(ctx context.Context, req *domain.RideRequest, note string) error {
	err := c.funds.Release(ctx, ReleaseRequest{
		RiderID:       req.RiderID,
		RequestID:     req.ID,
		HoldReference: req.HoldReference,
		Amount:        req.TotalFare,
		Note:          note,
	})
	if err != nil {
		return fmt.Errorf("%w: release request %s: %v", ErrSettlementFailed, req.ID, err)
	}
	return nil
}

var _ FundsService = MockFunds{}
