package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"ridepool/internal/domain"
	"ridepool/internal/repository"
)

// TrackRepository is a PostgreSQL implementation of repository.TrackRepository.
// Points are stored as a JSONB array of {lat, lng, timestamp} objects, one row per ride.
type TrackRepository struct {
	q Querier
}

// NewTrackRepository creates a new PostgreSQL track repository.
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{q: db}
}

// NewTrackRepositoryWithTx creates a track repository using a transaction.
func NewTrackRepositoryWithTx(tx *sql.Tx) *TrackRepository {
	return &TrackRepository{q: tx}
}

// GetByRideID retrieves the track of a ride.
func (r *TrackRepository) GetByRideID(ctx context.Context, rideID string) (*domain.Track, error) {
	query := `
		SELECT id, ride_id, points, is_tracking, created_at, updated_at, stopped_at
		FROM ride_tracks WHERE ride_id = $1
	`

	var track domain.Track
	var points []byte
	var stoppedAt sql.NullTime

	err := r.q.QueryRowContext(ctx, query, rideID).Scan(
		&track.ID,
		&track.RideID,
		&points,
		&track.IsTracking,
		&track.CreatedAt,
		&track.UpdatedAt,
		&stoppedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	track.Points = []domain.GPSPoint{}
	if len(points) > 0 {
		if err := json.Unmarshal(points, &track.Points); err != nil {
			return nil, err
		}
	}
	if stoppedAt.Valid {
		track.StoppedAt = stoppedAt.Time
	}

	return &track, nil
}

// Save inserts the track or replaces the stored one for the same ride.
func (r *TrackRepository) Save(ctx context.Context, track *domain.Track) error {
	points := track.Points
	if points == nil {
		points = []domain.GPSPoint{}
	}
	encoded, err := json.Marshal(points)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO ride_tracks (id, ride_id, points, is_tracking, created_at, updated_at, stopped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ride_id) DO UPDATE
		SET points = EXCLUDED.points, is_tracking = EXCLUDED.is_tracking,
			updated_at = EXCLUDED.updated_at, stopped_at = EXCLUDED.stopped_at
	`

	_, err = r.q.ExecContext(ctx, query,
		track.ID,
		track.RideID,
		encoded,
		track.IsTracking,
		track.CreatedAt,
		track.UpdatedAt,
		nullTime(track.StoppedAt),
	)
	return err
}

var _ repository.TrackRepository = (*TrackRepository)(nil)
