package repository

import (
	"context"
	"time"

	"ridepool/internal/domain"
)

// PricingRepository defines read access to pricing configurations.
type PricingRepository interface {
	// FindActive retrieves the configuration in effect at the given time.
	FindActive(ctx context.Context, at time.Time) (*domain.PricingConfig, error)
}
