package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ridepool/internal/domain"
	"ridepool/internal/service"
)

const defaultMaxStaleMinutes = 3

// TrackingHandler handles GPS ingestion and position reads.
type TrackingHandler struct {
	trackingService *service.TrackingService
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(trackingService *service.TrackingService) *TrackingHandler {
	return &TrackingHandler{trackingService: trackingService}
}

// AppendPointsRequest is the HTTP request body for a GPS batch.
type AppendPointsRequest struct {
	Points []domain.GPSPoint `json:"points" binding:"required"`
}

// PositionResponse is the latest known position of a ride. Position is omitted when there is none.
type PositionResponse struct {
	RideID    string         `json:"ride_id"`
	Available bool           `json:"available"`
	Position  *domain.LatLng `json:"position,omitempty"`
}

// AppendPoints handles POST /v1/rides/:id/track
func (h *TrackingHandler) AppendPoints(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req AppendPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.trackingService.AppendGpsPoints(c.Request.Context(), c.Param("id"), req.Points, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, result)
}

// GetTrack handles GET /v1/rides/:id/track
func (h *TrackingHandler) GetTrack(c *gin.Context) {
	view, err := h.trackingService.Track(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, view)
}

// GetPosition handles GET /v1/rides/:id/position?max_stale_minutes=
func (h *TrackingHandler) GetPosition(c *gin.Context) {
	maxStale := defaultMaxStaleMinutes
	if raw := c.Query("max_stale_minutes"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "max_stale_minutes must be a non-negative integer"})
			return
		}
		maxStale = n
	}

	rideID := c.Param("id")
	pos, err := h.trackingService.GetLatestPosition(c.Request.Context(), rideID, maxStale)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, PositionResponse{RideID: rideID, Available: pos != nil, Position: pos})
}
