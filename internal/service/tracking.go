package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ridepool/internal/domain"
	"ridepool/internal/geo"
	"ridepool/internal/lock"
	"ridepool/internal/logger"
	"ridepool/internal/repository"
)

const (
	// MaxSpeedKmh is the fastest plausible speed between two consecutive GPS points.
	MaxSpeedKmh = 200.0

	// StaleBatchAge is how old the newest point of a batch may be before a warning is logged.
	StaleBatchAge = time.Minute

	// PositionStaleness is how old a position may be to count as the driver's current one.
	PositionStaleness = 3 * time.Minute
)

// TrackingStatusOK is the status reported for an accepted GPS batch.
const TrackingStatusOK = "OK"

// AppendResult is the outcome of an accepted GPS batch.
type AppendResult struct {
	DistanceKm float64 `json:"distanceKm"`
	Polyline   string  `json:"polyline"`
	Status     string  `json:"status"`
}

// TrackView is a read-only summary of a ride's track.
type TrackView struct {
	RideID     string           `json:"rideId"`
	IsTracking bool             `json:"isTracking"`
	PointCount int              `json:"pointCount"`
	DistanceKm float64          `json:"distanceKm"`
	Polyline   string           `json:"polyline"`
	Latest     *domain.GPSPoint `json:"latest,omitempty"`
}

// TrackingService records driver GPS points and derives distance, position and polyline from them.
type TrackingService struct {
	guard         rideGuard
	reads         repository.Repositories
	broadcaster   *Broadcaster
	notifications *NotificationService
	log           logrus.FieldLogger
	now           func() time.Time
}

// NewTrackingService creates a new TrackingService. reads are used outside any transaction.
func NewTrackingService(
	locker lock.Locker,
	uow repository.UnitOfWork,
	reads repository.Repositories,
	broadcaster *Broadcaster,
	notifications *NotificationService,
	log logrus.FieldLogger,
) *TrackingService {
	return &TrackingService{
		guard:         rideGuard{locker: locker, uow: uow},
		reads:         reads,
		broadcaster:   broadcaster,
		notifications: notifications,
		log:           log,
		now:           time.Now,
	}
}

// StartTracking makes sure the ride has an active track and asks the driver to send points.
func (s *TrackingService) StartTracking(ctx context.Context, rideID string) error {
	return s.guard.run(ctx, rideID, func(ctx context.Context, tx *rideTx) error {
		return s.startTrackingTx(ctx, tx)
	})
}

// startTrackingTx is StartTracking for a caller that already holds the ride.
// The track is created for any ride, but only an ONGOING ride's track is activated.
func (s *TrackingService) startTrackingTx(ctx context.Context, tx *rideTx) error {
	now := s.now()
	ongoing := tx.ride.Status == domain.RideStatusOngoing

	track, err := tx.repos.Tracks.GetByRideID(ctx, tx.ride.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		track = domain.NewTrack(uuid.New().String(), tx.ride.ID, now)
		if !ongoing {
			track.IsTracking = false
		}
	case err != nil:
		return err
	case track.IsTracking || !ongoing:
		track = nil
	default:
		track.IsTracking = true
		track.StoppedAt = time.Time{}
		track.UpdatedAt = now
	}

	if track != nil {
		if err := tx.repos.Tracks.Save(ctx, track); err != nil {
			return err
		}
	}
	if !ongoing {
		logger.ForRide(s.log, tx.ride.ID).
			WithField("status", tx.ride.Status).
			Warn("ride is not ongoing, track left inactive")
		return nil
	}
	if track == nil {
		return nil
	}

	driver, err := tx.repos.Drivers.GetByID(ctx, tx.ride.DriverID)
	if err != nil {
		return lookupErr(err, "driver", tx.ride.DriverID)
	}

	rideID := tx.ride.ID
	tx.afterCommit(func() {
		s.notifications.NotifyTrackingStarted(driver.UserID, rideID)
		logger.ForRide(s.log, rideID).Info("tracking started")
	})
	return nil
}

// StopTracking marks the ride's track as stopped. A missing ride id or track is logged and ignored.
func (s *TrackingService) StopTracking(ctx context.Context, rideID string) error {
	if rideID == "" {
		s.log.Warn("stop tracking called without a ride id")
		return nil
	}
	return s.guard.run(ctx, rideID, func(ctx context.Context, tx *rideTx) error {
		return s.stopTrackingTx(ctx, tx)
	})
}

// stopTrackingTx is StopTracking for a caller that already holds the ride.
func (s *TrackingService) stopTrackingTx(ctx context.Context, tx *rideTx) error {
	rideID := tx.ride.ID
	track, err := tx.repos.Tracks.GetByRideID(ctx, rideID)
	if errors.Is(err, repository.ErrNotFound) {
		logger.ForRide(s.log, rideID).Warn("stop tracking called but ride has no track")
		return nil
	}
	if err != nil {
		return err
	}

	now := s.now()
	track.Stop(now)
	if err := tx.repos.Tracks.Save(ctx, track); err != nil {
		return err
	}

	tx.afterCommit(func() {
		s.broadcaster.TrackingStopped(rideID, now)
		logger.ForRide(s.log, rideID).Info("tracking stopped")
	})
	return nil
}

// AppendGpsPoints validates a batch from the ride's driver and appends it to the track.
// An implausible batch is rejected whole.
func (s *TrackingService) AppendGpsPoints(ctx context.Context, rideID string, points []domain.GPSPoint, actor domain.Actor) (*AppendResult, error) {
	var result *AppendResult

	err := s.guard.run(ctx, rideID, func(ctx context.Context, tx *rideTx) error {
		if _, err := loadOwnedRide(ctx, tx.repos, tx.ride, actor); err != nil {
			return err
		}
		if err := requireRideStatus(tx.ride, domain.RideStatusOngoing, "append gps points"); err != nil {
			return err
		}
		if err := ValidateBatch(points); err != nil {
			return err
		}

		now := s.now()
		log := logger.ForRide(s.log, rideID)
		last := points[len(points)-1]
		if age := now.Sub(last.Timestamp); age > StaleBatchAge {
			log.WithField("age", age.Round(time.Second).String()).Warn("gps batch may be stale")
		}

		track, err := tx.repos.Tracks.GetByRideID(ctx, rideID)
		if errors.Is(err, repository.ErrNotFound) {
			track = domain.NewTrack(uuid.New().String(), rideID, now)
		} else if err != nil {
			return err
		}

		if prev, ok := track.Last(); ok && points[0].Timestamp.Before(prev.Timestamp) {
			log.WithField("previous", prev.Timestamp).Warn("gps batch starts before the stored track ends")
		}

		track.Append(points, now)
		if err := tx.repos.Tracks.Save(ctx, track); err != nil {
			return err
		}

		distanceKm := ComputeDistanceFromPoints(track.Points)
		polyline := EncodeTrackPolyline(track.Points)
		result = &AppendResult{DistanceKm: distanceKm, Polyline: polyline, Status: TrackingStatusOK}

		tx.afterCommit(func() {
			s.broadcaster.TrackingSnapshot(domain.TrackingSnapshot{
				RideID:            rideID,
				Polyline:          polyline,
				CurrentLat:        last.Lat,
				CurrentLng:        last.Lng,
				CurrentDistanceKm: distanceKm,
			})
			s.broadcaster.LocationPing(domain.LocationPing{
				RideID:     rideID,
				Lat:        last.Lat,
				Lng:        last.Lng,
				Timestamp:  now,
				Polyline:   polyline,
				DistanceKm: distanceKm,
			})
		})
		log.WithField("points", len(points)).Debug("gps points appended")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetLatestPosition returns the newest stored position of the ride, or nil if there is none
// or it is older than maxStaleMinutes.
func (s *TrackingService) GetLatestPosition(ctx context.Context, rideID string, maxStaleMinutes int) (*domain.LatLng, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	track, err := s.reads.Tracks.GetByRideID(ctx, rideID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.latestPosition(track, time.Duration(maxStaleMinutes)*time.Minute), nil
}

// latestPosition applies the staleness window to a loaded track.
func (s *TrackingService) latestPosition(track *domain.Track, maxStale time.Duration) *domain.LatLng {
	last, ok := track.Last()
	if !ok {
		return nil
	}
	if age := s.now().Sub(last.Timestamp); age > maxStale {
		logger.ForRide(s.log, track.RideID).
			WithField("age", age.Round(time.Second).String()).
			Warn("latest position is stale")
		return nil
	}
	pos := last.LatLng()
	return &pos
}

// currentPosition is the driver's position for a proximity check: the fresh track position,
// else the ride's start location.
func (s *TrackingService) currentPosition(ctx context.Context, repos repository.Repositories, ride *domain.Ride) (domain.LatLng, error) {
	track, err := repos.Tracks.GetByRideID(ctx, ride.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return domain.LatLng{}, err
	}
	if track != nil {
		if pos := s.latestPosition(track, PositionStaleness); pos != nil {
			return *pos, nil
		}
	}
	logger.ForRide(s.log, ride.ID).Debug("no fresh position, using ride start location")
	return ride.StartLocation.LatLng(), nil
}

// Track returns a summary of the ride's track.
func (s *TrackingService) Track(ctx context.Context, rideID string) (*TrackView, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	track, err := s.reads.Tracks.GetByRideID(ctx, rideID)
	if err != nil {
		return nil, lookupErr(err, "track", rideID)
	}

	view := &TrackView{
		RideID:     rideID,
		IsTracking: track.IsTracking,
		PointCount: len(track.Points),
		DistanceKm: ComputeDistanceFromPoints(track.Points),
		Polyline:   EncodeTrackPolyline(track.Points),
	}
	if last, ok := track.Last(); ok {
		view.Latest = &last
	}
	return view, nil
}

// ValidateBatch rejects empty batches, out-of-range coordinates and consecutive points
// implying more than MaxSpeedKmh.
func ValidateBatch(points []domain.GPSPoint) error {
	if len(points) == 0 {
		return ErrEmptyBatch
	}
	for i, p := range points {
		if !p.LatLng().Valid() {
			return ErrInvalidCoordinates
		}
		if i == 0 {
			continue
		}
		prev := points[i-1]
		elapsed := p.Timestamp.Sub(prev.Timestamp).Seconds()
		if elapsed <= 0 {
			continue
		}
		meters := geo.HaversineMeters(prev.Lat, prev.Lng, p.Lat, p.Lng)
		if speed := geo.SpeedKmh(meters, elapsed); speed > MaxSpeedKmh {
			return &SpeedError{Index: i, SpeedKmh: speed}
		}
	}
	return nil
}

// ComputeDistanceFromPoints returns the length of the path through points in kilometers.
func ComputeDistanceFromPoints(points []domain.GPSPoint) float64 {
	return geo.PathMeters(toGeoPoints(points)) / 1000
}

// EncodeTrackPolyline encodes the path through points. Fewer than two points give "".
func EncodeTrackPolyline(points []domain.GPSPoint) string {
	if len(points) < 2 {
		return ""
	}
	return geo.EncodePolyline(toGeoPoints(points))
}

func toGeoPoints(points []domain.GPSPoint) []geo.Point {
	out := make([]geo.Point, len(points))
	for i, p := range points {
		out[i] = geo.Point{Lat: p.Lat, Lng: p.Lng}
	}
	return out
}

// snapshot builds the ride-scoped view published after a phase change. Without a track the
// ride's start location stands in for the current position.
func (s *TrackingService) snapshot(ctx context.Context, repos repository.Repositories, ride *domain.Ride) domain.TrackingSnapshot {
	snap := domain.TrackingSnapshot{
		RideID:     ride.ID,
		CurrentLat: ride.StartLocation.Lat,
		CurrentLng: ride.StartLocation.Lng,
	}

	track, err := repos.Tracks.GetByRideID(ctx, ride.ID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.ForRide(s.log, ride.ID).WithError(err).Warn("could not load track for snapshot")
		}
		return snap
	}

	snap.Polyline = EncodeTrackPolyline(track.Points)
	snap.CurrentDistanceKm = ComputeDistanceFromPoints(track.Points)
	if last, ok := track.Last(); ok {
		snap.CurrentLat, snap.CurrentLng = last.Lat, last.Lng
	}
	return snap
}
