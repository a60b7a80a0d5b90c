package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridepool/internal/service"
)

// RequestHandler handles pickups and dropoffs of passengers within a ride.
type RequestHandler struct {
	rideService *service.RideService
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(rideService *service.RideService) *RequestHandler {
	return &RequestHandler{rideService: rideService}
}

// CompleteRequestResponse is the HTTP response for a drop-off.
type CompleteRequestResponse struct {
	Request            RequestResponse `json:"request"`
	DriverEarnings     float64         `json:"driver_earnings"`
	PlatformCommission float64         `json:"platform_commission"`
	ActualDistanceKm   float64         `json:"actual_distance_km"`
	ActualDurationMin  int             `json:"actual_duration_min"`
}

// StartRequest handles POST /v1/rides/:id/requests/:requestId/start
func (h *RequestHandler) StartRequest(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	req, err := h.rideService.StartRequest(c.Request.Context(), c.Param("id"), c.Param("requestId"), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRequestResponse(req))
}

// CompleteRequest handles POST /v1/rides/:id/requests/:requestId/complete
func (h *RequestHandler) CompleteRequest(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	result, err := h.rideService.CompleteRequest(c.Request.Context(), c.Param("id"), c.Param("requestId"), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toCompleteRequestResponse(result))
}

// ForceCompleteRequest handles POST /v1/admin/rides/:id/requests/:requestId/force-complete
// A request that is no longer ONGOING yields 204.
func (h *RequestHandler) ForceCompleteRequest(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	result, err := h.rideService.ForceCompleteRequest(c.Request.Context(), c.Param("id"), c.Param("requestId"), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	if result == nil {
		c.Status(http.StatusNoContent)
		return
	}

	respondJSON(c, http.StatusOK, toCompleteRequestResponse(result))
}

func toCompleteRequestResponse(r *service.RequestCompletion) CompleteRequestResponse {
	return CompleteRequestResponse{
		Request:            toRequestResponse(r.Request),
		DriverEarnings:     r.DriverEarnings,
		PlatformCommission: r.PlatformCommission,
		ActualDistanceKm:   r.ActualDistanceKm,
		ActualDurationMin:  r.ActualDurationMin,
	}
}
