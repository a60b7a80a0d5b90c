package domain

import "time"

// PricingConfig is a versioned set of pricing parameters. Exactly one is active at a time.
type PricingConfig struct {
	ID                   string
	Version              string
	SystemCommissionRate float64 // 0.1 = 10% platform commission
	ValidFrom            time.Time
	ValidUntil           time.Time // zero means open-ended
}

// ActiveAt reports whether the config applies at t.
func (p *PricingConfig) ActiveAt(t time.Time) bool {
	if t.Before(p.ValidFrom) {
		return false
	}
	return p.ValidUntil.IsZero() || t.Before(p.ValidUntil)
}

// FareBreakdown is the fare of a single request as handed to the funds service.
type FareBreakdown struct {
	PricingVersion string
	DistanceMeters int
	Discount       float64
	Subtotal       float64
	Total          float64
	CommissionRate float64
}

// NewFareBreakdown builds the breakdown of a request under the given pricing config.
func NewFareBreakdown(cfg *PricingConfig, req *RideRequest) FareBreakdown {
	return FareBreakdown{
		PricingVersion: cfg.Version,
		DistanceMeters: req.DistanceMeters,
		Discount:       req.DiscountAmount,
		Subtotal:       req.SubtotalFare,
		Total:          req.TotalFare,
		CommissionRate: cfg.SystemCommissionRate,
	}
}

// Settlement is the outcome of capturing a request's funds.
type Settlement struct {
	RequestID        string
	DriverEarnings   float64
	SystemCommission float64
}
