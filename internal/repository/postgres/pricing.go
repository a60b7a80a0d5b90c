package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ridepool/internal/domain"
	"ridepool/internal/repository"
)

// PricingRepository is a PostgreSQL implementation of repository.PricingRepository.
type PricingRepository struct {
	q Querier
}

// NewPricingRepository creates a new PostgreSQL pricing repository.
func NewPricingRepository(db *sql.DB) *PricingRepository {
	return &PricingRepository{q: db}
}

// FindActive retrieves the newest configuration whose validity window contains at.
func (r *PricingRepository) FindActive(ctx context.Context, at time.Time) (*domain.PricingConfig, error) {
	query := `
		SELECT id, version, system_commission_rate, valid_from, valid_until
		FROM pricing_configs
		WHERE valid_from <= $1 AND (valid_until IS NULL OR valid_until > $1)
		ORDER BY valid_from DESC LIMIT 1
	`

	var cfg domain.PricingConfig
	var validUntil sql.NullTime
	err := r.q.QueryRowContext(ctx, query, at).Scan(
		&cfg.ID,
		&cfg.Version,
		&cfg.SystemCommissionRate,
		&cfg.ValidFrom,
		&validUntil,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if validUntil.Valid {
		cfg.ValidUntil = validUntil.Time
	}

	return &cfg, nil
}

var _ repository.PricingRepository = (*PricingRepository)(nil)
