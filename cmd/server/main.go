package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"ridepool/internal/app"
	"ridepool/internal/config"
	"ridepool/internal/handler"
	"ridepool/internal/lock"
	"ridepool/internal/logger"
	"ridepool/internal/maps"
	"ridepool/internal/messaging"
	"ridepool/internal/payment"
	"ridepool/internal/push"
	"ridepool/internal/realtime"
	internalRedis "ridepool/internal/redis"
	"ridepool/internal/repository"
	"ridepool/internal/repository/postgres"
	"ridepool/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.WithError(err).Warn("failed to initialize New Relic")
		} else {
			log.WithField("app", cfg.NewRelic.AppName).Info("New Relic enabled")
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	log.Info("connected to PostgreSQL")

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info("connected to Redis")
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Wire dependencies.
	srv, err := wireServer(runCtx, db, redisClient, nrApp, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to wire server")
	}
	defer srv.close()

	srv.queue.Start()
	go srv.hub.Run(runCtx)
	if srv.autoCompleter != nil {
		go srv.autoCompleter.Run(runCtx)
	}

	// Start server in goroutine.
	go func() {
		log.WithField("port", cfg.Server.Port).Info("starting server")
		if err := srv.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown.
	<-runCtx.Done()
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.http.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	if err := srv.queue.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("broadcast queue did not drain")
	}

	log.Info("server exited")
}

// server is everything main starts and stops.
type server struct {
	http          *http.Server
	queue         *service.AsyncQueue
	hub           *realtime.Hub
	autoCompleter *service.AutoCompleter
	closers       []func() error
	log           logrus.FieldLogger
}

func (s *server) close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			s.log.WithError(err).Warn("close failed")
		}
	}
}

// wireServer wires all dependencies and returns the server.
func wireServer(ctx context.Context, db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config, log *logrus.Logger) (*server, error) {
	srv := &server{log: log}

	// Initialize repositories.
	reads := postgres.NewRepositories(db)
	uow := postgres.NewUnitOfWork(db)

	var pricing repository.PricingRepository = postgres.NewPricingRepository(db)
	if redisClient != nil {
		pricing = internalRedis.NewPricingCache(redisClient, pricing, cfg.Broadcast.PricingCacheTTL)
	}

	// Per-ride lock.
	var locker lock.Locker
	switch cfg.Lifecycle.LockBackend {
	case "redis":
		if redisClient == nil {
			return nil, errors.New("LOCK_BACKEND=redis requires REDIS_ENABLED")
		}
		locker = internalRedis.NewLockStore(redisClient, cfg.Lifecycle.LockTTL, cfg.Lifecycle.LockWait)
	case "memory", "":
		locker = lock.WithWait(lock.NewKeyedMutex(), cfg.Lifecycle.LockWait)
	default:
		return nil, fmt.Errorf("unknown LOCK_BACKEND %q", cfg.Lifecycle.LockBackend)
	}
	log.WithField("backend", cfg.Lifecycle.LockBackend).Info("ride lock configured")

	// Broadcast sinks.
	srv.queue = service.NewAsyncQueue(cfg.Broadcast.QueueSize, cfg.Broadcast.Workers, log)
	srv.hub = realtime.NewHub(log)
	broadcaster := service.NewBroadcaster(srv.queue, log, srv.hub)

	var liveRides handler.LiveRideFinder
	if redisClient != nil {
		index := internalRedis.NewPositionIndex(redisClient)
		broadcaster.AddSink(index)
		liveRides = index
		if cfg.Broadcast.RedisEnabled {
			broadcaster.AddSink(internalRedis.NewPublisher(redisClient))
		}
	}
	if cfg.Broadcast.RabbitMQURL != "" {
		rabbit, err := messaging.NewRabbitPublisher(cfg.Broadcast.RabbitMQURL, cfg.Broadcast.RabbitMQExchange, log)
		if err != nil {
			return nil, err
		}
		broadcaster.AddSink(rabbit)
		srv.closers = append(srv.closers, rabbit.Close)
	}
	if len(cfg.Broadcast.KafkaBrokers) > 0 {
		kafka, err := messaging.NewKafkaPublisher(cfg.Broadcast.KafkaBrokers, cfg.Broadcast.KafkaLocationTopic)
		if err != nil {
			return nil, err
		}
		broadcaster.AddSink(kafka)
		srv.closers = append(srv.closers, kafka.Close)
	}

	// External collaborators.
	var routing service.RoutingService = service.StraightLineRouting{}
	if cfg.Maps.APIKey != "" {
		google, err := maps.NewGoogleRouting(cfg.Maps.APIKey)
		if err != nil {
			return nil, err
		}
		routing = google
	}

	var funds service.FundsService = service.NewMockFunds()
	if cfg.Stripe.SecretKey != "" {
		funds = payment.NewStripeFunds(cfg.Stripe.SecretKey, cfg.Stripe.MinorUnits)
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, using in-process funds service")
	}

	var dispatcher service.Dispatcher = service.NewLogDispatcher(log)
	if cfg.Firebase.CredentialsFile != "" {
		fcm, err := push.NewFCMDispatcher(ctx, cfg.Firebase.CredentialsFile, log)
		if err != nil {
			return nil, err
		}
		dispatcher = fcm
	}

	// Initialize services.
	notificationService := service.NewNotificationService(reads.Users, dispatcher, srv.queue, log)
	trackingService := service.NewTrackingService(locker, uow, reads, broadcaster, notificationService, log)
	rideService := service.NewRideService(service.RideServiceDeps{
		Locker:        locker,
		UnitOfWork:    uow,
		Reads:         reads,
		Pricing:       pricing,
		Routing:       routing,
		Tracking:      trackingService,
		Settlement:    service.NewSettlementCoordinator(funds),
		Notifications: notificationService,
		Broadcaster:   broadcaster,
		MinInterval:   cfg.Lifecycle.RideMinInterval,
		Log:           log,
	})

	if cfg.Lifecycle.AutoCompleteEnabled {
		srv.autoCompleter = service.NewAutoCompleter(
			rideService,
			reads.Requests,
			cfg.Lifecycle.AutoCompleteEvery,
			cfg.Lifecycle.AutoCompleteGrace,
			log,
		)
	}

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		RideHandler:     handler.NewRideHandler(rideService),
		RequestHandler:  handler.NewRequestHandler(rideService),
		TrackingHandler: handler.NewTrackingHandler(trackingService),
		AdminHandler:    handler.NewAdminHandler(liveRides),
		RealtimeHandler: realtime.NewHandler(srv.hub),
		JWTSecret:       cfg.Auth.JWTSecret,
		RedisClient:     redisClient,
		NewRelicApp:     nrApp,
	})

	// Create HTTP server.
	srv.http = &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return srv, nil
}
