// Package payment adapts Stripe PaymentIntents to the funds service used for fare settlement.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"ridepool/internal/service"
)

// ErrNoHold is returned when a request has no authorized PaymentIntent to capture or cancel.
var ErrNoHold = errors.New("request has no payment hold")

// StripeFunds holds rider fares as uncaptured PaymentIntents. Settling captures the intent with
// the platform commission as application fee; releasing cancels it.
type StripeFunds struct {
	client *client.API
	// minorUnits converts a fare amount into the currency's smallest unit (100 for USD, 1 for VND).
	minorUnits float64
}

// NewStripeFunds creates a StripeFunds for the given secret key.
func NewStripeFunds(secretKey string, minorUnits float64) *StripeFunds {
	sc := &client.API{}
	sc.Init(secretKey, nil)

	if minorUnits <= 0 {
		minorUnits = 1
	}
	return &StripeFunds{client: sc, minorUnits: minorUnits}
}

// Settle captures the held fare. Retries with the same request ID never capture twice.
func (s *StripeFunds) Settle(ctx context.Context, req service.SettleRequest) (*service.SettleResult, error) {
	if req.HoldReference == "" {
		return nil, ErrNoHold
	}

	commission := req.Fare.Total * req.Fare.CommissionRate
	params := &stripe.PaymentIntentCaptureParams{
		AmountToCapture:      stripe.Int64(s.toMinor(req.Fare.Total)),
		ApplicationFeeAmount: stripe.Int64(s.toMinor(commission)),
	}
	params.Context = ctx
	params.SetIdempotencyKey("settle:" + req.RequestID)
	params.AddMetadata("request_id", req.RequestID)
	params.AddMetadata("driver_id", req.DriverID)
	params.AddMetadata("pricing_version", req.Fare.PricingVersion)
	params.AddMetadata("note", req.Note)

	pi, err := s.client.PaymentIntents.Capture(req.HoldReference, params)
	if err != nil {
		return nil, fmt.Errorf("failed to capture payment intent: %w", err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, fmt.Errorf("payment intent %s is %s after capture", pi.ID, pi.Status)
	}

	captured := s.fromMinor(pi.AmountReceived)
	fee := s.fromMinor(pi.ApplicationFeeAmount)
	return &service.SettleResult{
		DriverEarnings:   captured - fee,
		SystemCommission: fee,
	}, nil
}

// Release cancels the held PaymentIntent so the rider is not charged.
func (s *StripeFunds) Release(ctx context.Context, req service.ReleaseRequest) error {
	if req.HoldReference == "" {
		return ErrNoHold
	}

	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx
	params.SetIdempotencyKey("release:" + req.RequestID)

	if _, err := s.client.PaymentIntents.Cancel(req.HoldReference, params); err != nil {
		return fmt.Errorf("failed to cancel payment intent: %w", err)
	}
	return nil
}

func (s *StripeFunds) toMinor(amount float64) int64 {
	return int64(math.Round(amount * s.minorUnits))
}

func (s *StripeFunds) fromMinor(amount int64) float64 {
	return float64(amount) / s.minorUnits
}

var _ service.FundsService = (*StripeFunds)(nil)
