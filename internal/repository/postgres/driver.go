package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ridepool/internal/domain"
	"ridepool/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// NewDriverRepositoryWithTx creates a driver repository using a transaction.
func NewDriverRepositoryWithTx(tx *sql.Tx) *DriverRepository {
	return &DriverRepository{q: tx}
}

const driverSelect = `SELECT id, user_id, COALESCE(name, ''), status, total_rides, total_earned FROM drivers`

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	return r.getOne(ctx, driverSelect+` WHERE id = $1`, id)
}

// GetByUserID retrieves the driver profile of a user.
func (r *DriverRepository) GetByUserID(ctx context.Context, userID string) (*domain.Driver, error) {
	return r.getOne(ctx, driverSelect+` WHERE user_id = $1`, userID)
}

// AddRideStats credits one completed ride and its earnings to the driver.
func (r *DriverRepository) AddRideStats(ctx context.Context, driverID string, earned float64) error {
	query := `UPDATE drivers SET total_rides = total_rides + 1, total_earned = total_earned + $1 WHERE id = $2`

	result, err := r.q.ExecContext(ctx, query, earned, driverID)
	if err != nil {
		return err
	}

	return checkAffected(result, repository.ErrNotFound)
}

func (r *DriverRepository) getOne(ctx context.Context, query, arg string) (*domain.Driver, error) {
	var driver domain.Driver
	err := r.q.QueryRowContext(ctx, query, arg).Scan(
		&driver.ID,
		&driver.UserID,
		&driver.Name,
		&driver.Status,
		&driver.TotalRides,
		&driver.TotalEarned,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &driver, nil
}

// VehicleRepository is a PostgreSQL implementation of repository.VehicleRepository.
type VehicleRepository struct {
	q Querier
}

// NewVehicleRepository creates a new PostgreSQL vehicle repository.
func NewVehicleRepository(db *sql.DB) *VehicleRepository {
	return &VehicleRepository{q: db}
}

// NewVehicleRepositoryWithTx creates a vehicle repository using a transaction.
func NewVehicleRepositoryWithTx(tx *sql.Tx) *VehicleRepository {
	return &VehicleRepository{q: tx}
}

// GetByID retrieves a vehicle by ID.
func (r *VehicleRepository) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	query := `SELECT id, driver_id, plate_number, COALESCE(model, ''), capacity_seat FROM vehicles WHERE id = $1`

	var v domain.Vehicle
	err := r.q.QueryRowContext(ctx, query, id).Scan(&v.ID, &v.DriverID, &v.PlateNumber, &v.Model, &v.CapacitySeat)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

var (
	_ repository.DriverRepository  = (*DriverRepository)(nil)
	_ repository.VehicleRepository = (*VehicleRepository)(nil)
)
