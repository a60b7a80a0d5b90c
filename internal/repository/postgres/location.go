package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ridepool/internal/domain"
	"ridepool/internal/repository"
)

// LocationRepository is a PostgreSQL implementation of repository.LocationRepository.
type LocationRepository struct {
	q Querier
}

// NewLocationRepository creates a new PostgreSQL location repository.
func NewLocationRepository(db *sql.DB) *LocationRepository {
	return &LocationRepository{q: db}
}

// NewLocationRepositoryWithTx creates a location repository using a transaction.
func NewLocationRepositoryWithTx(tx *sql.Tx) *LocationRepository {
	return &LocationRepository{q: tx}
}

// Create persists a new location.
func (r *LocationRepository) Create(ctx context.Context, loc *domain.Location) error {
	query := `INSERT INTO locations (id, name, lat, lng, address, is_poi, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.ExecContext(ctx, query, loc.ID, nullString(loc.Name), loc.Lat, loc.Lng, nullString(loc.Address), loc.IsPOI, loc.CreatedAt)
	return err
}

// GetByID retrieves a location by ID.
func (r *LocationRepository) GetByID(ctx context.Context, id string) (*domain.Location, error) {
	query := `SELECT id, COALESCE(name, ''), lat, lng, COALESCE(address, ''), is_poi, created_at FROM locations WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// FindByCoordinates retrieves a location with exactly these coordinates.
func (r *LocationRepository) FindByCoordinates(ctx context.Context, lat, lng float64) (*domain.Location, error) {
	query := `
		SELECT id, COALESCE(name, ''), lat, lng, COALESCE(address, ''), is_poi, created_at
		FROM locations WHERE lat = $1 AND lng = $2
		ORDER BY is_poi DESC, created_at LIMIT 1
	`
	return r.getOne(ctx, query, lat, lng)
}

func (r *LocationRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Location, error) {
	var loc domain.Location
	err := r.q.QueryRowContext(ctx, query, args...).Scan(
		&loc.ID,
		&loc.Name,
		&loc.Lat,
		&loc.Lng,
		&loc.Address,
		&loc.IsPOI,
		&loc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &loc, nil
}

var _ repository.LocationRepository = (*LocationRepository)(nil)
