package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pillbox/pillbox-backend/internal/dispenser/events"
	"github.com/pillbox/pillbox-backend/internal/dispenser/handler"
	"github.com/pillbox/pillbox-backend/internal/dispenser/mqtt"
	"github.com/pillbox/pillbox-backend/internal/dispenser/repository"
	"github.com/pillbox/pillbox-backend/internal/dispenser/service"
	"github.com/pillbox/pillbox-backend/pkg/config"
	"github.com/pillbox/pillbox-backend/pkg/database"
	"github.com/pillbox/pillbox-backend/pkg/httputil"
	"github.com/pillbox/pillbox-backend/pkg/logger"
	"github.com/pillbox/pillbox-backend/pkg/messaging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceName = "dispenser-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Int("boxes", cfg.Device.BoxCount).Msg("starting Dispenser Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Select the medication store
	var (
		db    *database.DB
		store service.MedicationStore
	)
	switch cfg.Database.Driver {
	case config.DriverMemory:
		log.Warn().Msg("using in-memory medication store; data is lost on restart")
		store = repository.NewMemoryStore()
	default:
		db, err = database.New(&cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		repo := repository.NewMedicationRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to apply schema")
		}
		store = repo
	}
	defer db.Close()

	// Connect to RabbitMQ when configured
	var (
		rmq       *messaging.RabbitMQ
		publisher *events.DispenserEventPublisher
	)
	if cfg.RabbitMQ.Enabled() {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		publisher, err = events.NewDispenserEventPublisher(rmq, cfg.RabbitMQ.Exchange, serviceName, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
	} else {
		log.Info().Msg("RabbitMQ not configured, event publishing disabled")
	}
	defer rmq.Close()

	// Initialize service
	dispenserService := service.NewDispenserService(store, publisher, cfg.Device.BoxCount, log)

	// Start MQTT ingestion when configured
	var subscriber *mqtt.Subscriber
	if cfg.MQTT.Enabled() {
		subscriber = mqtt.NewSubscriber(&cfg.MQTT, dispenserService, cfg.Device.APIKey, log.WithComponent("mqtt"))
		if err := subscriber.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start MQTT subscriber")
		}
	}
	defer subscriber.Stop()

	// Periodic stock scan
	var scheduler *service.StockScheduler
	if cfg.Device.ScanInterval > 0 {
		scheduler = service.NewStockScheduler(dispenserService, cfg.Device.ScanInterval, log.WithComponent("scheduler"))
		scheduler.Start(ctx)
	}
	defer scheduler.Stop()

	// Initialize handlers; only device reports are rate limited
	deviceHandler := handler.NewDeviceHandler(dispenserService, cfg.Device.APIKey, log.WithComponent("device"))
	limiter := httputil.NewRateLimiter(cfg.Device.RateLimitRPS, cfg.Device.RateLimitBurst, http.HandlerFunc(handler.RateLimited))
	dashboardHandler := handler.NewDashboardHandler(
		dispenserService,
		limiter.Handler(http.HandlerFunc(deviceHandler.Report)),
		log.WithComponent("dashboard"),
	)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(httputil.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-KEY", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  serviceName,
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
			"mqtt":     subscriber.Health(),
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	// Dashboard and device reports
	handler.Mount(r, dashboardHandler)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop the scheduler
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
