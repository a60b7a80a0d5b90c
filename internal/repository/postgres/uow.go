package postgres

import (
	"context"
	"database/sql"

	"ridepool/internal/repository"
)

// NewRepositories returns repositories bound directly to the pool, for reads outside a transaction.
func NewRepositories(db *sql.DB) repository.Repositories {
	return repository.Repositories{
		Rides:     NewRideRepository(db),
		Requests:  NewRideRequestRepository(db),
		Tracks:    NewTrackRepository(db),
		Locations: NewLocationRepository(db),
		Drivers:   NewDriverRepository(db),
		Vehicles:  NewVehicleRepository(db),
		Users:     NewUserRepository(db),
	}
}

func newTxRepositories(tx *sql.Tx) repository.Repositories {
	return repository.Repositories{
		Rides:     NewRideRepositoryWithTx(tx),
		Requests:  NewRideRequestRepositoryWithTx(tx),
		Tracks:    NewTrackRepositoryWithTx(tx),
		Locations: NewLocationRepositoryWithTx(tx),
		Drivers:   NewDriverRepositoryWithTx(tx),
		Vehicles:  NewVehicleRepositoryWithTx(tx),
		Users:     NewUserRepositoryWithTx(tx),
	}
}

// UnitOfWork runs functions inside a database transaction.
type UnitOfWork struct {
	db *sql.DB
}

// NewUnitOfWork creates a transactional unit of work over db.
func NewUnitOfWork(db *sql.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// Do begins a transaction, hands fn repositories bound to it and commits if fn succeeds.
// An error or panic from fn rolls the transaction back; the panic is then re-raised.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) (err error) {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, newTxRepositories(tx)); err != nil {
		return err
	}

	return tx.Commit()
}

var _ repository.UnitOfWork = (*UnitOfWork)(nil)
