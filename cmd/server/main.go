package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cleanmarket/service-booking/internal/application"
	"github.com/cleanmarket/service-booking/internal/config"
	bookingEvents "github.com/cleanmarket/service-booking/internal/events"
	"github.com/cleanmarket/service-booking/internal/handler"
	"github.com/cleanmarket/service-booking/internal/pkg/auth"
	"github.com/cleanmarket/service-booking/internal/pkg/database"
	"github.com/cleanmarket/service-booking/internal/pkg/health"
	"github.com/cleanmarket/service-booking/internal/pkg/kafka"
	"github.com/cleanmarket/service-booking/internal/pkg/logger"
	"github.com/cleanmarket/service-booking/internal/pkg/middleware"
	"github.com/cleanmarket/service-booking/internal/repository"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "service-booking")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-booking",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.AppEnv),
	)

	// Connect to database
	db, err := database.Connect(cfg.DBConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(&repository.BookingModel{}, &repository.PaymentMethodModel{}, &repository.EventConsumedModel{}); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DBConfig.DatabaseURL(), cfg.MigrationsDir, log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWTConfig.Secret, 15*time.Minute)

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Initialize store and application services
	store := repository.NewGormBookingStore(db)
	engine := application.NewLifecycleEngine(store, kafkaProducer, log)
	intake := application.NewIntakeService(store, store, kafkaProducer, log)
	reporting := application.NewReportingService(store)

	// Start the job/cleaner event consumer in a goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	groupID := cfg.KafkaConfig.GroupPrefix + "booking-service"
	lifecycleConsumer := bookingEvents.NewLifecycleEventConsumer(
		cfg.KafkaConfig.Brokers,
		groupID,
		intake,
		log,
	)
	defer func() { _ = lifecycleConsumer.Close() }()

	go func() {
		log.Info("starting lifecycle event consumer")
		if err := lifecycleConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("lifecycle event consumer error", zap.Error(err))
		}
	}()

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(db, "service-booking")
	healthHandler.RegisterRoutes(router)

	// Register routes
	handler.NewBookingHandler(engine).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewPaymentMethodHandler(engine).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewAdminBookingHandler(reporting).RegisterRoutes(&router.RouterGroup, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-booking...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-booking stopped")
}
