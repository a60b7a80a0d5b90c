package tests

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"ridepool/internal/domain"
	"ridepool/internal/repository"
	"ridepool/internal/service"
)

// ──────────────────────────────────────────────
// MOCK STORE
// ──────────────────────────────────────────────

// tables is one consistent copy of everything the store holds.
type tables struct {
	rides     map[string]*domain.Ride
	requests  map[string]*domain.RideRequest
	tracks    map[string]*domain.Track // keyed by ride ID
	locations map[string]*domain.Location
	drivers   map[string]*domain.Driver
	vehicles  map[string]*domain.Vehicle
	users     map[string]*domain.User
}

func newTables() *tables {
	return &tables{
		rides:     make(map[string]*domain.Ride),
		requests:  make(map[string]*domain.RideRequest),
		tracks:    make(map[string]*domain.Track),
		locations: make(map[string]*domain.Location),
		drivers:   make(map[string]*domain.Driver),
		vehicles:  make(map[string]*domain.Vehicle),
		users:     make(map[string]*domain.User),
	}
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.rides {
		c.rides[k] = copyRide(v)
	}
	for k, v := range t.requests {
		c.requests[k] = copyRequest(v)
	}
	for k, v := range t.tracks {
		c.tracks[k] = copyTrack(v)
	}
	for k, v := range t.locations {
		cp := *v
		c.locations[k] = &cp
	}
	for k, v := range t.drivers {
		cp := *v
		c.drivers[k] = &cp
	}
	for k, v := range t.vehicles {
		cp := *v
		c.vehicles[k] = &cp
	}
	for k, v := range t.users {
		cp := *v
		c.users[k] = &cp
	}
	return c
}

func copyRide(r *domain.Ride) *domain.Ride {
	cp := *r
	return &cp
}

func copyRequest(r *domain.RideRequest) *domain.RideRequest {
	cp := *r
	return &cp
}

func copyTrack(t *domain.Track) *domain.Track {
	cp := *t
	cp.Points = append([]domain.GPSPoint(nil), t.Points...)
	return &cp
}

// MockStore is an in-memory database implementing repository.UnitOfWork.
// Transactions run one at a time on a private copy that replaces the committed state on success.
type MockStore struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	state *tables

	// Counters for verification
	CommitCount   int32
	RollbackCount int32

	// Error injection
	CommitError error
}

// NewMockStore creates an empty store.
func NewMockStore() *MockStore {
	return &MockStore{state: newTables()}
}

// Do runs fn on a copy of the committed state and keeps the copy only if fn succeeds.
func (s *MockStore) Do(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.state.clone()
	s.mu.RUnlock()

	if err := fn(ctx, s.repositories(work)); err != nil {
		atomic.AddInt32(&s.RollbackCount, 1)
		return err
	}
	if s.CommitError != nil {
		atomic.AddInt32(&s.RollbackCount, 1)
		return s.CommitError
	}

	s.mu.Lock()
	s.state = work
	s.mu.Unlock()
	atomic.AddInt32(&s.CommitCount, 1)
	return nil
}

// Reads returns repositories working directly on the committed state.
func (s *MockStore) Reads() repository.Repositories {
	return s.repositories(nil)
}

func (s *MockStore) repositories(tx *tables) repository.Repositories {
	v := view{store: s, tx: tx}
	return repository.Repositories{
		Rides:     &mockRideRepository{v},
		Requests:  &mockRequestRepository{v},
		Tracks:    &mockTrackRepository{v},
		Locations: &mockLocationRepository{v},
		Drivers:   &mockDriverRepository{v},
		Vehicles:  &mockVehicleRepository{v},
		Users:     &mockUserRepository{v},
	}
}

// AddDriver stores a driver, their user account and one vehicle.
func (s *MockStore) AddDriver(d *domain.Driver, u *domain.User, v *domain.Vehicle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.drivers[d.ID] = d
	s.state.users[u.ID] = u
	if v != nil {
		s.state.vehicles[v.ID] = v
	}
}

// AddUser stores a user account.
func (s *MockStore) AddUser(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.users[u.ID] = u
}

// AddRide stores a ride as committed.
func (s *MockStore) AddRide(r *domain.Ride) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.rides[r.ID] = copyRide(r)
}

// AddRequest stores a request as committed.
func (s *MockStore) AddRequest(r *domain.RideRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.requests[r.ID] = copyRequest(r)
}

// AddTrack stores a track as committed.
func (s *MockStore) AddTrack(t *domain.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.tracks[t.RideID] = copyTrack(t)
}

// AddLocation stores a location as committed.
func (s *MockStore) AddLocation(l *domain.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *l
	s.state.locations[l.ID] = &cp
}

// Ride returns the committed ride for test assertions.
func (s *MockStore) Ride(id string) *domain.Ride {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.rides[id]
	if !ok {
		return nil
	}
	return copyRide(r)
}

// Request returns the committed request for test assertions.
func (s *MockStore) Request(id string) *domain.RideRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.requests[id]
	if !ok {
		return nil
	}
	return copyRequest(r)
}

// Track returns the committed track of a ride for test assertions.
func (s *MockStore) Track(rideID string) *domain.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.state.tracks[rideID]
	if !ok {
		return nil
	}
	return copyTrack(t)
}

// Driver returns the committed driver for test assertions.
func (s *MockStore) Driver(id string) *domain.Driver {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.state.drivers[id]
	if !ok {
		return nil
	}
	cp := *d
	return &cp
}

// view is either a transaction's private copy or, when tx is nil, the committed state.
type view struct {
	store *MockStore
	tx    *tables
}

func (v view) read(fn func(t *tables)) {
	if v.tx != nil {
		fn(v.tx)
		return
	}
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	fn(v.store.state)
}

func (v view) write(fn func(t *tables)) {
	if v.tx != nil {
		fn(v.tx)
		return
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	fn(v.store.state)
}

// ──────────────────────────────────────────────
// MOCK REPOSITORIES
// ──────────────────────────────────────────────

type mockRideRepository struct{ v view }

func (m *mockRideRepository) Create(_ context.Context, ride *domain.Ride) error {
	m.v.write(func(t *tables) { t.rides[ride.ID] = copyRide(ride) })
	return nil
}

func (m *mockRideRepository) GetByID(_ context.Context, id string) (*domain.Ride, error) {
	var out *domain.Ride
	m.v.read(func(t *tables) {
		if r, ok := t.rides[id]; ok {
			out = copyRide(r)
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (m *mockRideRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error) {
	return m.GetByID(ctx, id)
}

func (m *mockRideRepository) GetLatestByDriverID(_ context.Context, driverID string) (*domain.Ride, error) {
	var latest *domain.Ride
	m.v.read(func(t *tables) {
		for _, r := range t.rides {
			if r.DriverID != driverID {
				continue
			}
			if latest == nil || r.ScheduledTime.After(latest.ScheduledTime) {
				latest = copyRide(r)
			}
		}
	})
	return latest, nil
}

func (m *mockRideRepository) ListByDriver(_ context.Context, driverID string, status domain.RideStatus, limit, offset int) ([]*domain.Ride, error) {
	var out []*domain.Ride
	m.v.read(func(t *tables) {
		for _, r := range t.rides {
			if r.DriverID == driverID && (status == "" || r.Status == status) {
				out = append(out, copyRide(r))
			}
		}
	})
	// Newest scheduled first.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ScheduledTime.After(out[j-1].ScheduledTime); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if offset >= len(out) {
		return []*domain.Ride{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockRideRepository) Update(_ context.Context, ride *domain.Ride) error {
	var err error
	m.v.write(func(t *tables) {
		if _, ok := t.rides[ride.ID]; !ok {
			err = repository.ErrNotFound
			return
		}
		t.rides[ride.ID] = copyRide(ride)
	})
	return err
}

type mockRequestRepository struct{ v view }

func (m *mockRequestRepository) GetByID(_ context.Context, id string) (*domain.RideRequest, error) {
	var out *domain.RideRequest
	m.v.read(func(t *tables) {
		if r, ok := t.requests[id]; ok {
			out = copyRequest(r)
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (m *mockRequestRepository) ListByRide(_ context.Context, rideID string, statuses ...domain.RequestStatus) ([]*domain.RideRequest, error) {
	var out []*domain.RideRequest
	m.v.read(func(t *tables) {
		for _, r := range t.requests {
			if r.RideID == rideID && statusIn(r.Status, statuses) {
				out = append(out, copyRequest(r))
			}
		}
	})
	return out, nil
}

func (m *mockRequestRepository) ListOverdue(_ context.Context, before time.Time, limit int) ([]*domain.RideRequest, error) {
	var out []*domain.RideRequest
	m.v.read(func(t *tables) {
		for _, r := range t.requests {
			if len(out) >= limit {
				return
			}
			if r.Status == domain.RequestStatusOngoing && !r.EstimatedDropoffTime.IsZero() && r.EstimatedDropoffTime.Before(before) {
				out = append(out, copyRequest(r))
			}
		}
	})
	return out, nil
}

func (m *mockRequestRepository) Update(_ context.Context, req *domain.RideRequest) error {
	var err error
	m.v.write(func(t *tables) {
		if _, ok := t.requests[req.ID]; !ok {
			err = repository.ErrNotFound
			return
		}
		t.requests[req.ID] = copyRequest(req)
	})
	return err
}

func statusIn(s domain.RequestStatus, statuses []domain.RequestStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, want := range statuses {
		if s == want {
			return true
		}
	}
	return false
}

type mockTrackRepository struct{ v view }

func (m *mockTrackRepository) GetByRideID(_ context.Context, rideID string) (*domain.Track, error) {
	var out *domain.Track
	m.v.read(func(t *tables) {
		if tr, ok := t.tracks[rideID]; ok {
			out = copyTrack(tr)
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (m *mockTrackRepository) Save(_ context.Context, track *domain.Track) error {
	m.v.write(func(t *tables) { t.tracks[track.RideID] = copyTrack(track) })
	return nil
}

type mockLocationRepository struct{ v view }

func (m *mockLocationRepository) Create(_ context.Context, loc *domain.Location) error {
	m.v.write(func(t *tables) {
		cp := *loc
		t.locations[loc.ID] = &cp
	})
	return nil
}

func (m *mockLocationRepository) GetByID(_ context.Context, id string) (*domain.Location, error) {
	var out *domain.Location
	m.v.read(func(t *tables) {
		if l, ok := t.locations[id]; ok {
			cp := *l
			out = &cp
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (m *mockLocationRepository) FindByCoordinates(_ context.Context, lat, lng float64) (*domain.Location, error) {
	var out *domain.Location
	m.v.read(func(t *tables) {
		for _, l := range t.locations {
			if l.Lat == lat && l.Lng == lng {
				cp := *l
				out = &cp
				return
			}
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

type mockDriverRepository struct{ v view }

func (m *mockDriverRepository) GetByID(_ context.Context, id string) (*domain.Driver, error) {
	var out *domain.Driver
	m.v.read(func(t *tables) {
		if d, ok := t.drivers[id]; ok {
			cp := *d
			out = &cp
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (m *mockDriverRepository) GetByUserID(_ context.Context, userID string) (*domain.Driver, error) {
	var out *domain.Driver
	m.v.read(func(t *tables) {
		for _, d := range t.drivers {
			if d.UserID == userID {
				cp := *d
				out = &cp
				return
			}
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (m *mockDriverRepository) AddRideStats(_ context.Context, driverID string, earned float64) error {
	var err error
	m.v.write(func(t *tables) {
		d, ok := t.drivers[driverID]
		if !ok {
			err = repository.ErrNotFound
			return
		}
		d.TotalRides++
		d.TotalEarned += earned
	})
	return err
}

type mockVehicleRepository struct{ v view }

func (m *mockVehicleRepository) GetByID(_ context.Context, id string) (*domain.Vehicle, error) {
	var out *domain.Vehicle
	m.v.read(func(t *tables) {
		if veh, ok := t.vehicles[id]; ok {
			cp := *veh
			out = &cp
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

type mockUserRepository struct{ v view }

func (m *mockUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	var out *domain.User
	m.v.read(func(t *tables) {
		if u, ok := t.users[id]; ok {
			cp := *u
			out = &cp
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

// ──────────────────────────────────────────────
// MOCK PRICING REPOSITORY
// ──────────────────────────────────────────────

// MockPricingRepository serves a single pricing configuration.
type MockPricingRepository struct {
	mu     sync.RWMutex
	config *domain.PricingConfig

	FindCallCount int32
}

// NewMockPricingRepository creates a repository serving cfg. A nil cfg means no active pricing.
func NewMockPricingRepository(cfg *domain.PricingConfig) *MockPricingRepository {
	return &MockPricingRepository{config: cfg}
}

func (m *MockPricingRepository) FindActive(_ context.Context, at time.Time) (*domain.PricingConfig, error) {
	atomic.AddInt32(&m.FindCallCount, 1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil || !m.config.ActiveAt(at) {
		return nil, repository.ErrNotFound
	}
	cp := *m.config
	return &cp, nil
}

// SetConfig replaces the served configuration.
func (m *MockPricingRepository) SetConfig(cfg *domain.PricingConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = cfg
}

// ──────────────────────────────────────────────
// MOCK FUNDS SERVICE
// ──────────────────────────────────────────────

// MockFunds is a FundsService recording every call.
type MockFunds struct {
	mu       sync.Mutex
	settled  []service.SettleRequest
	released []service.ReleaseRequest

	// Counters for verification
	SettleCallCount  int32
	ReleaseCallCount int32

	// Error injection
	SettleError  error
	ReleaseError error
	// ReleaseFailures fails the release of specific requests, keyed by request ID.
	ReleaseFailures map[string]error
}

// NewMockFunds creates a new MockFunds.
func NewMockFunds() *MockFunds {
	return &MockFunds{}
}

func (m *MockFunds) Settle(_ context.Context, req service.SettleRequest) (*service.SettleResult, error) {
	atomic.AddInt32(&m.SettleCallCount, 1)
	if m.SettleError != nil {
		return nil, m.SettleError
	}
	m.mu.Lock()
	m.settled = append(m.settled, req)
	m.mu.Unlock()

	commission := req.Fare.Total * req.Fare.CommissionRate
	return &service.SettleResult{
		DriverEarnings:   req.Fare.Total - commission,
		SystemCommission: commission,
	}, nil
}

func (m *MockFunds) Release(_ context.Context, req service.ReleaseRequest) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	if m.ReleaseError != nil {
		return m.ReleaseError
	}
	if err := m.ReleaseFailures[req.RequestID]; err != nil {
		return err
	}
	m.mu.Lock()
	m.released = append(m.released, req)
	m.mu.Unlock()
	return nil
}

// Released returns the successful release calls.
func (m *MockFunds) Released() []service.ReleaseRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]service.ReleaseRequest(nil), m.released...)
}

// Settled returns the successful settle calls.
func (m *MockFunds) Settled() []service.SettleRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]service.SettleRequest(nil), m.settled...)
}

// ──────────────────────────────────────────────
// MOCK ROUTING
// ──────────────────────────────────────────────

// ErrRoutingDown is the default injected routing failure.
var ErrRoutingDown = errors.New("routing unavailable")

// MockRouting returns a fixed route and address.
type MockRouting struct {
	Route   service.Route
	Address string

	GetRouteCallCount int32

	RouteError   error
	AddressError error
}

// NewMockRouting creates a MockRouting returning a 5 km, 10 minute route.
func NewMockRouting() *MockRouting {
	return &MockRouting{
		Route:   service.Route{DistanceMeters: 5000, DurationSeconds: 600},
		Address: "1 Test Street",
	}
}

func (m *MockRouting) GetRoute(_ context.Context, _, _ domain.LatLng) (*service.Route, error) {
	atomic.AddInt32(&m.GetRouteCallCount, 1)
	if m.RouteError != nil {
		return nil, m.RouteError
	}
	r := m.Route
	return &r, nil
}

func (m *MockRouting) GetAddress(_ context.Context, _ domain.LatLng) (string, error) {
	if m.AddressError != nil {
		return "", m.AddressError
	}
	return m.Address, nil
}

// ──────────────────────────────────────────────
// RECORDING SINK AND DISPATCHER
// ──────────────────────────────────────────────

// RecordingSink keeps every broadcast event it receives.
type RecordingSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *RecordingSink) Name() string { return "recording" }

func (r *RecordingSink) Publish(_ context.Context, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns the received events of the given kind.
func (r *RecordingSink) Events(kind domain.EventKind) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// RecordingDispatcher keeps every notification it is asked to deliver.
type RecordingDispatcher struct {
	mu   sync.Mutex
	sent []service.Notification
}

func (r *RecordingDispatcher) Dispatch(_ context.Context, _ *domain.User, n service.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

// Types returns the types of the delivered notifications in order.
func (r *RecordingDispatcher) Types() []service.NotificationType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]service.NotificationType, len(r.sent))
	for i, n := range r.sent {
		out[i] = n.Type
	}
	return out
}

// Ensure mocks implement interfaces.
var (
	_ repository.UnitOfWork        = (*MockStore)(nil)
	_ repository.PricingRepository = (*MockPricingRepository)(nil)
	_ service.FundsService         = (*MockFunds)(nil)
	_ service.RoutingService       = (*MockRouting)(nil)
	_ service.EventSink            = (*RecordingSink)(nil)
	_ service.Dispatcher           = (*RecordingDispatcher)(nil)
)
