package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ridepool/internal/domain"
	"ridepool/internal/service"
)

// RideHandler handles HTTP requests for the ride lifecycle.
type RideHandler struct {
	rideService *service.RideService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService) *RideHandler {
	return &RideHandler{rideService: rideService}
}

// CreateRideRequest is the HTTP request body for creating a ride.
// Each endpoint takes either a location id or coordinates.
type CreateRideRequest struct {
	VehicleID       string         `json:"vehicle_id" binding:"required"`
	StartLocationID string         `json:"start_location_id,omitempty"`
	StartLatLng     *domain.LatLng `json:"start_lat_lng,omitempty"`
	EndLocationID   string         `json:"end_location_id,omitempty"`
	EndLatLng       *domain.LatLng `json:"end_lat_lng,omitempty"`
	ScheduledTime   *time.Time     `json:"scheduled_time,omitempty"`
}

// CancelRideRequest is the HTTP request body for cancelling a ride.
type CancelRideRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CompleteRideResponse is the HTTP response for completing a ride.
type CompleteRideResponse struct {
	Ride                RideResponse `json:"ride"`
	TotalFareCollected  float64      `json:"total_fare_collected"`
	PlatformCommission  float64      `json:"platform_commission"`
	DriverEarnings      float64      `json:"driver_earnings"`
	CompletedRequestIDs []string     `json:"completed_request_ids"`
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rideService.CreateRide(c.Request.Context(), actor, service.CreateRideRequest{
		VehicleID:       req.VehicleID,
		StartLocationID: req.StartLocationID,
		StartLatLng:     req.StartLatLng,
		EndLocationID:   req.EndLocationID,
		EndLatLng:       req.EndLatLng,
		ScheduledTime:   req.ScheduledTime,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRideResponse(ride))
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideService.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// ListMyRides handles GET /v1/rides?status=&limit=&offset=
func (h *RideHandler) ListMyRides(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	status := domain.RideStatus(c.Query("status"))

	rides, err := h.rideService.ListDriverRides(c.Request.Context(), actor, status, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		out = append(out, toRideResponse(r))
	}
	respondJSON(c, http.StatusOK, gin.H{"rides": out})
}

// StartRide handles POST /v1/rides/:id/start
func (h *RideHandler) StartRide(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	ride, err := h.rideService.StartRide(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// CompleteRide handles POST /v1/rides/:id/complete
func (h *RideHandler) CompleteRide(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	result, err := h.rideService.CompleteRide(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, CompleteRideResponse{
		Ride:                toRideResponse(result.Ride),
		TotalFareCollected:  result.TotalFareCollected,
		PlatformCommission:  result.PlatformCommission,
		DriverEarnings:      result.DriverEarnings,
		CompletedRequestIDs: result.CompletedRequestIDs,
	})
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req CancelRideRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}
	}

	ride, err := h.rideService.CancelRide(c.Request.Context(), c.Param("id"), actor, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}
