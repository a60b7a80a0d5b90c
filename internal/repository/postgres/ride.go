package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ridepool/internal/domain"
	"ridepool/internal/repository"
)

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
func NewRideRepositoryWithTx(tx *sql.Tx) *RideRepository {
	return &RideRepository{q: tx}
}

const rideSelect = `
	SELECT r.id, r.driver_id, r.vehicle_id, r.status, r.scheduled_time, r.started_at, r.completed_at,
		r.estimated_distance_km, r.estimated_duration_min, r.actual_distance_km, r.actual_duration_min,
		r.max_passengers, r.current_passengers, r.driver_earned_amount,
		r.pricing_version, r.completed_pricing_version, r.created_at, r.updated_at,
		sl.id, COALESCE(sl.name, ''), sl.lat, sl.lng, COALESCE(sl.address, ''), sl.is_poi, sl.created_at,
		el.id, COALESCE(el.name, ''), el.lat, el.lng, COALESCE(el.address, ''), el.is_poi, el.created_at
	FROM rides r
	JOIN locations sl ON sl.id = r.start_location_id
	JOIN locations el ON el.id = r.end_location_id
`

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (id, driver_id, vehicle_id, start_location_id, end_location_id, status, scheduled_time, started_at, completed_at,
			estimated_distance_km, estimated_duration_min, actual_distance_km, actual_duration_min,
			max_passengers, current_passengers, driver_earned_amount, pricing_version, completed_pricing_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.DriverID,
		ride.VehicleID,
		ride.StartLocation.ID,
		ride.EndLocation.ID,
		ride.Status,
		ride.ScheduledTime,
		nullTime(ride.StartedAt),
		nullTime(ride.CompletedAt),
		ride.EstimatedDistanceKm,
		ride.EstimatedDurationMin,
		ride.ActualDistanceKm,
		ride.ActualDurationMin,
		ride.MaxPassengers,
		ride.CurrentPassengers,
		ride.DriverEarnedAmount,
		nullString(ride.PricingVersion),
		nullString(ride.CompletedPricingVersion),
		ride.CreatedAt,
		ride.UpdatedAt,
	)

	return err
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	return r.getOne(ctx, rideSelect+` WHERE r.id = $1`, id)
}

// GetByIDForUpdate retrieves a ride by ID and locks its row.
func (r *RideRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error) {
	return r.getOne(ctx, rideSelect+` WHERE r.id = $1 FOR UPDATE OF r`, id)
}

// GetLatestByDriverID retrieves the driver's most recently scheduled ride.
func (r *RideRepository) GetLatestByDriverID(ctx context.Context, driverID string) (*domain.Ride, error) {
	ride, err := r.getOne(ctx, rideSelect+` WHERE r.driver_id = $1 ORDER BY r.scheduled_time DESC LIMIT 1`, driverID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return ride, err
}

// ListByDriver retrieves a driver's rides, newest scheduled first.
func (r *RideRepository) ListByDriver(ctx context.Context, driverID string, status domain.RideStatus, limit, offset int) ([]*domain.Ride, error) {
	query := rideSelect + `
		WHERE r.driver_id = $1 AND ($2 = '' OR r.status = $2)
		ORDER BY r.scheduled_time DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.q.QueryContext(ctx, query, driverID, string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// Update updates an existing ride.
func (r *RideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	query := `
		UPDATE rides
		SET status = $1, scheduled_time = $2, started_at = $3, completed_at = $4,
			actual_distance_km = $5, actual_duration_min = $6, current_passengers = $7,
			driver_earned_amount = $8, completed_pricing_version = $9, updated_at = $10
		WHERE id = $11
	`

	result, err := r.q.ExecContext(ctx, query,
		ride.Status,
		ride.ScheduledTime,
		nullTime(ride.StartedAt),
		nullTime(ride.CompletedAt),
		ride.ActualDistanceKm,
		ride.ActualDurationMin,
		ride.CurrentPassengers,
		ride.DriverEarnedAmount,
		nullString(ride.CompletedPricingVersion),
		ride.UpdatedAt,
		ride.ID,
	)
	if err != nil {
		return err
	}

	return checkAffected(result, repository.ErrNotFound)
}

func (r *RideRepository) getOne(ctx context.Context, query string, arg string) (*domain.Ride, error) {
	ride, err := scanRide(r.q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ride, nil
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var startedAt, completedAt sql.NullTime
	var pricingVersion, completedPricingVersion sql.NullString

	err := row.Scan(
		&ride.ID,
		&ride.DriverID,
		&ride.VehicleID,
		&ride.Status,
		&ride.ScheduledTime,
		&startedAt,
		&completedAt,
		&ride.EstimatedDistanceKm,
		&ride.EstimatedDurationMin,
		&ride.ActualDistanceKm,
		&ride.ActualDurationMin,
		&ride.MaxPassengers,
		&ride.CurrentPassengers,
		&ride.DriverEarnedAmount,
		&pricingVersion,
		&completedPricingVersion,
		&ride.CreatedAt,
		&ride.UpdatedAt,
		&ride.StartLocation.ID,
		&ride.StartLocation.Name,
		&ride.StartLocation.Lat,
		&ride.StartLocation.Lng,
		&ride.StartLocation.Address,
		&ride.StartLocation.IsPOI,
		&ride.StartLocation.CreatedAt,
		&ride.EndLocation.ID,
		&ride.EndLocation.Name,
		&ride.EndLocation.Lat,
		&ride.EndLocation.Lng,
		&ride.EndLocation.Address,
		&ride.EndLocation.IsPOI,
		&ride.EndLocation.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if startedAt.Valid {
		ride.StartedAt = startedAt.Time
	}
	if completedAt.Valid {
		ride.CompletedAt = completedAt.Time
	}
	ride.PricingVersion = pricingVersion.String
	ride.CompletedPricingVersion = completedPricingVersion.String

	return &ride, nil
}

var _ repository.RideRepository = (*RideRepository)(nil)
