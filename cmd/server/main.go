package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"forecast-platform/internal/config"
	"forecast-platform/internal/ensemble"
	"forecast-platform/internal/forecast"
	"forecast-platform/internal/handlers"
	"forecast-platform/internal/liveweather"
	"forecast-platform/internal/repository"
	"forecast-platform/internal/scheduler"
	"forecast-platform/internal/services"
	"forecast-platform/pkg/database"
	"forecast-platform/pkg/logging"
	"forecast-platform/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := logging.NewStructuredLogger("forecast-api", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting forecast platform API server", logging.Fields{
		"version":     "1.0.0",
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"db_host":     cfg.Database.Host,
		"db_name":     cfg.Database.Database,
		"models_dir":  cfg.Models.Dir,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("forecast_platform")

	// Load model artifacts. Startup fails on a missing or corrupt artifact;
	// the service never runs with a partial ensemble.
	models, err := ensemble.Load(cfg.Models.Dir)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to load model artifacts", logging.Fields{
			"models_dir": cfg.Models.Dir,
		}, err)
	}

	logger.Info(ctx, "[MODELS_LOADED] Model ensemble loaded", logging.Fields{
		"feature_count": len(models.ExpectedFeatures()),
	})

	// Initialize database
	dbConfig := &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}

	db, err := database.NewPostgresDB(dbConfig, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Initialize repository
	observationRepo := repository.NewObservationRepository(db, logger, metricsCollector)

	// Initialize engine and services
	engine := forecast.NewEngine(models, logger, metricsCollector)
	forecastService := services.NewForecastService(observationRepo, engine, cfg.Forecast, logger, metricsCollector)

	// Initialize handlers
	forecastHandler := handlers.NewForecastHandler(forecastService, logger, metricsCollector)

	// Setup router
	router := mux.NewRouter()

	// Register routes
	forecastHandler.RegisterRoutes(router)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Start the live collection job if enabled
	var sched *scheduler.Scheduler
	if cfg.Collector.Enabled {
		client := liveweather.NewClient(cfg.LiveWeather.BaseURL, cfg.LiveWeather.APIKey, nil)
		collector := services.NewCollectorService(observationRepo, client, cfg.LiveWeather.City, logger, metricsCollector)

		sched = scheduler.New(collector, cfg.Collector.Interval, logger)
		if err := sched.Start(); err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to start collection scheduler", logging.Fields{}, err)
		}
		defer sched.Stop()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
