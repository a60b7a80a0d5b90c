package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"ridepool/internal/lock"
	"ridepool/internal/middleware"
	"ridepool/internal/redis"
	"ridepool/internal/repository"
	"ridepool/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("ride r1: %w", repository.ErrNotFound), http.StatusNotFound},
		{"invalid token", middleware.ErrInvalidToken, http.StatusUnauthorized},
		{"not owner", service.ErrNotRideOwner, http.StatusForbidden},
		{"state", &service.StateError{Entity: "ride", Current: "COMPLETED", Attempted: "start ride"}, http.StatusConflict},
		{"validation", service.ErrEmptyBatch, http.StatusBadRequest},
		{"speed", &service.SpeedError{Index: 1, SpeedKmh: 400}, http.StatusBadRequest},
		{"proximity", &service.ProximityError{Target: "pickup", DistanceMeters: 150, LimitMeters: 100}, http.StatusUnprocessableEntity},
		{"settlement", fmt.Errorf("%w: declined", service.ErrSettlementFailed), http.StatusBadGateway},
		{"lock timeout", fmt.Errorf("lock ride r1: %w", lock.ErrTimeout), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

type stubFinder struct {
	rides []redis.LiveRide
	err   error
	got   [3]float64
}

func (s *stubFinder) Nearby(_ context.Context, lat, lng, radiusKm float64) ([]redis.LiveRide, error) {
	s.got = [3]float64{lat, lng, radiusKm}
	return s.rides, s.err
}

func TestAdminHandler_LiveRides(t *testing.T) {
	t.Parallel()

	finder := &stubFinder{rides: []redis.LiveRide{{RideID: "r1"}}}
	r := gin.New()
	r.GET("/live", NewAdminHandler(finder).LiveRides)

	testCases := []struct {
		name  string
		query string
		want  int
	}{
		{"default radius", "?lat=12.97&lng=77.59", http.StatusOK},
		{"missing lng", "?lat=12.97", http.StatusBadRequest},
		{"radius too large", "?lat=12.97&lng=77.59&radius_km=80", http.StatusBadRequest},
		{"latitude out of range", "?lat=95&lng=77.59", http.StatusBadRequest},
	}

	for _, tc := range testCases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live"+tc.query, nil))
		if w.Code != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, w.Code)
		}
	}

	if finder.got[2] != defaultRadiusKm {
		t.Errorf("expected default radius %v, got %v", defaultRadiusKm, finder.got[2])
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live?lat=1&lng=2&radius_km=3", nil))
	var body struct {
		Rides []redis.LiveRide `json:"rides"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Rides) != 1 || finder.got != [3]float64{1, 2, 3} {
		t.Errorf("unexpected response %s for %v", w.Body.String(), finder.got)
	}
}

func TestAdminHandler_LiveRidesDisabled(t *testing.T) {
	t.Parallel()
	r := gin.New()
	r.GET("/live", NewAdminHandler(nil).LiveRides)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live?lat=1&lng=2", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestRespondError_RecordsServerErrors(t *testing.T) {
	t.Parallel()
	r := gin.New()
	var recorded int
	r.Use(func(c *gin.Context) {
		c.Next()
		recorded = len(c.Errors)
	})
	r.GET("/fail", func(c *gin.Context) { respondError(c, errors.New("db down")) })
	r.GET("/missing", func(c *gin.Context) { respondError(c, repository.ErrNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))
	if w.Code != http.StatusInternalServerError || recorded != 1 {
		t.Errorf("expected 500 with a recorded error, got %d / %d", w.Code, recorded)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if w.Code != http.StatusNotFound || recorded != 0 {
		t.Errorf("expected 404 without a recorded error, got %d / %d", w.Code, recorded)
	}
}
