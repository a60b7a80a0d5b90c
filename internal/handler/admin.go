package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ridepool/internal/redis"
)

const (
	defaultRadiusKm = 5.0
	maxRadiusKm     = 50.0
)

// LiveRideFinder looks up tracked rides near a point.
type LiveRideFinder interface {
	Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]redis.LiveRide, error)
}

// AdminHandler serves operator endpoints.
type AdminHandler struct {
	liveRides LiveRideFinder
}

// NewAdminHandler creates a new AdminHandler. A nil finder disables the live ride lookup.
func NewAdminHandler(liveRides LiveRideFinder) *AdminHandler {
	return &AdminHandler{liveRides: liveRides}
}

// LiveRides handles GET /v1/admin/rides/live?lat=&lng=&radius_km=
func (h *AdminHandler) LiveRides(c *gin.Context) {
	if h.liveRides == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "live ride index is not enabled"})
		return
	}

	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "lat and lng are required"})
		return
	}

	radius := defaultRadiusKm
	if raw := c.Query("radius_km"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil || r <= 0 || r > maxRadiusKm {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "radius_km must be in (0, 50]"})
			return
		}
		radius = r
	}

	rides, err := h.liveRides.Nearby(c.Request.Context(), lat, lng, radius)
	if err != nil {
		respondError(c, err)
		return
	}
	if rides == nil {
		rides = []redis.LiveRide{}
	}

	respondJSON(c, http.StatusOK, gin.H{"rides": rides})
}
