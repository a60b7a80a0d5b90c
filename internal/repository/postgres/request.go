package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"ridepool/internal/domain"
	"ridepool/internal/repository"
)

// RideRequestRepository is a PostgreSQL implementation of repository.RideRequestRepository.
type RideRequestRepository struct {
	q Querier
}

// NewRideRequestRepository creates a new PostgreSQL ride request repository.
func NewRideRequestRepository(db *sql.DB) *RideRequestRepository {
	return &RideRequestRepository{q: db}
}

// NewRideRequestRepositoryWithTx creates a ride request repository using a transaction.
func NewRideRequestRepositoryWithTx(tx *sql.Tx) *RideRequestRepository {
	return &RideRequestRepository{q: tx}
}

const requestSelect = `
	SELECT rr.id, rr.ride_id, rr.rider_id, rr.kind, rr.status, rr.distance_meters,
		rr.subtotal_fare, rr.discount_amount, rr.total_fare, rr.hold_reference,
		rr.estimated_pickup_time, rr.actual_pickup_time, rr.estimated_dropoff_time, rr.actual_dropoff_time, rr.created_at,
		pl.id, COALESCE(pl.name, ''), pl.lat, pl.lng, COALESCE(pl.address, ''), pl.is_poi, pl.created_at,
		dl.id, COALESCE(dl.name, ''), dl.lat, dl.lng, COALESCE(dl.address, ''), dl.is_poi, dl.created_at
	FROM ride_requests rr
	JOIN locations pl ON pl.id = rr.pickup_location_id
	JOIN locations dl ON dl.id = rr.dropoff_location_id
`

// GetByID retrieves a request by ID.
func (r *RideRequestRepository) GetByID(ctx context.Context, id string) (*domain.RideRequest, error) {
	req, err := scanRequest(r.q.QueryRowContext(ctx, requestSelect+` WHERE rr.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return req, nil
}

// ListByRide retrieves the requests of a ride, optionally filtered by status.
func (r *RideRequestRepository) ListByRide(ctx context.Context, rideID string, statuses ...domain.RequestStatus) ([]*domain.RideRequest, error) {
	if len(statuses) == 0 {
		return r.list(ctx, requestSelect+` WHERE rr.ride_id = $1 ORDER BY rr.created_at`, rideID)
	}

	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return r.list(ctx, requestSelect+` WHERE rr.ride_id = $1 AND rr.status = ANY($2) ORDER BY rr.created_at`, rideID, pq.Array(names))
}

// ListOverdue retrieves ONGOING requests whose estimated dropoff is before the given time.
func (r *RideRequestRepository) ListOverdue(ctx context.Context, before time.Time, limit int) ([]*domain.RideRequest, error) {
	query := requestSelect + `
		WHERE rr.status = $1 AND rr.estimated_dropoff_time IS NOT NULL AND rr.estimated_dropoff_time < $2
		ORDER BY rr.estimated_dropoff_time
		LIMIT $3
	`
	return r.list(ctx, query, domain.RequestStatusOngoing, before, limit)
}

// Update updates an existing request.
func (r *RideRequestRepository) Update(ctx context.Context, req *domain.RideRequest) error {
	query := `
		UPDATE ride_requests
		SET status = $1, actual_pickup_time = $2, actual_dropoff_time = $3, hold_reference = $4
		WHERE id = $5
	`

	result, err := r.q.ExecContext(ctx, query,
		req.Status,
		nullTime(req.ActualPickupTime),
		nullTime(req.ActualDropoffTime),
		nullString(req.HoldReference),
		req.ID,
	)
	if err != nil {
		return err
	}

	return checkAffected(result, repository.ErrNotFound)
}

func (r *RideRequestRepository) list(ctx context.Context, query string, args ...any) ([]*domain.RideRequest, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*domain.RideRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func scanRequest(row rowScanner) (*domain.RideRequest, error) {
	var req domain.RideRequest
	var holdReference sql.NullString
	var estimatedPickup, actualPickup, estimatedDropoff, actualDropoff sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.RideID,
		&req.RiderID,
		&req.Kind,
		&req.Status,
		&req.DistanceMeters,
		&req.SubtotalFare,
		&req.DiscountAmount,
		&req.TotalFare,
		&holdReference,
		&estimatedPickup,
		&actualPickup,
		&estimatedDropoff,
		&actualDropoff,
		&req.CreatedAt,
		&req.Pickup.ID,
		&req.Pickup.Name,
		&req.Pickup.Lat,
		&req.Pickup.Lng,
		&req.Pickup.Address,
		&req.Pickup.IsPOI,
		&req.Pickup.CreatedAt,
		&req.Dropoff.ID,
		&req.Dropoff.Name,
		&req.Dropoff.Lat,
		&req.Dropoff.Lng,
		&req.Dropoff.Address,
		&req.Dropoff.IsPOI,
		&req.Dropoff.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.HoldReference = holdReference.String
	if estimatedPickup.Valid {
		req.EstimatedPickupTime = estimatedPickup.Time
	}
	if actualPickup.Valid {
		req.ActualPickupTime = actualPickup.Time
	}
	if estimatedDropoff.Valid {
		req.EstimatedDropoffTime = estimatedDropoff.Time
	}
	if actualDropoff.Valid {
		req.ActualDropoffTime = actualDropoff.Time
	}

	return &req, nil
}

var _ repository.RideRequestRepository = (*RideRequestRepository)(nil)
