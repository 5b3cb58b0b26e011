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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"station-review/internal/config"
	"station-review/internal/handlers"
	"station-review/internal/services"
	"station-review/pkg/logging"
	"station-review/pkg/metrics"
)

const version = "1.0.0"

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

	logLevel, _ := logging.ParseLevel(cfg.Logging.Level)
	logger := logging.NewStructuredLogger("station-review", version, logLevel)

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting station review API server", logging.Fields{
		"version":           version,
		"server_host":       cfg.Server.Host,
		"server_port":       cfg.Server.Port,
		"source":            cfg.Review.Source,
		"metadata_url":      cfg.Metadata.BaseURL,
		"page_size":         cfg.Review.PageSize,
		"ungoverned_policy": string(cfg.Review.UngovernedPolicy),
	})

	metricsCollector := metrics.NewCollector("station_review", prometheus.DefaultRegisterer)

	backends, err := services.OpenBackends(ctx, cfg, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to open snapshot source", logging.Fields{
			"source": cfg.Review.Source,
		}, err)
	}
	defer backends.Close()

	// Initialize services
	statsService := services.NewStatisticsService(logger.Named("statistics"), metricsCollector)
	reviewService := services.NewReviewService(
		backends.Source,
		backends.Client,
		statsService,
		services.ReviewOptionsFrom(cfg),
		logger.Named("review"),
		metricsCollector,
	)
	importService := services.NewImportService(backends.Client, logger.Named("import"), metricsCollector)

	// The repository is nil for the http source, so /health then only
	// reports the process as up
	var health handlers.HealthChecker
	if backends.Repository != nil {
		health = backends.Repository
	}
	reviewHandler := handlers.NewReviewHandler(reviewService, importService, health, logger.Named("api"), metricsCollector)

	// Setup router
	router := mux.NewRouter()
	router.Use(handlers.RequestID, handlers.Metrics(metricsCollector))
	reviewHandler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
