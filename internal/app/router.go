package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"ridepool/internal/handler"
	"ridepool/internal/middleware"
	"ridepool/internal/realtime"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideHandler     *handler.RideHandler
	RequestHandler  *handler.RequestHandler
	TrackingHandler *handler.TrackingHandler
	AdminHandler    *handler.AdminHandler
	RealtimeHandler *realtime.Handler
	JWTSecret       string
	RedisClient     *redis.Client // nil disables idempotency replay
	NewRelicApp     *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	v1.Use(middleware.Auth(deps.JWTSecret))
	v1.Use(middleware.TransactionAttributes())
	v1.Use(middleware.IdempotencyMiddleware(deps.RedisClient))
	{
		v1.GET("/ws", deps.RealtimeHandler.Subscribe)

		// Ride routes.
		rides := v1.Group("/rides")
		{
			rides.POST("", deps.RideHandler.CreateRide)
			rides.GET("", deps.RideHandler.ListMyRides)
			rides.GET("/:id", deps.RideHandler.GetRide)
			rides.POST("/:id/start", deps.RideHandler.StartRide)
			rides.POST("/:id/complete", deps.RideHandler.CompleteRide)
			rides.POST("/:id/cancel", deps.RideHandler.CancelRide)

			rides.POST("/:id/requests/:requestId/start", deps.RequestHandler.StartRequest)
			rides.POST("/:id/requests/:requestId/complete", deps.RequestHandler.CompleteRequest)

			rides.POST("/:id/track", deps.TrackingHandler.AppendPoints)
			rides.GET("/:id/track", deps.TrackingHandler.GetTrack)
			rides.GET("/:id/position", deps.TrackingHandler.GetPosition)
		}

		// Admin routes.
		admin := v1.Group("/admin", middleware.AdminRequired())
		{
			admin.GET("/rides/live", deps.AdminHandler.LiveRides)
			admin.POST("/rides/:id/requests/:requestId/force-complete", deps.RequestHandler.ForceCompleteRequest)
		}
	}

	return router
}
