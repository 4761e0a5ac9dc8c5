// jobs-service is the HTTP API server for managing templated batch jobs.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobforge/internal/api"
	"jobforge/internal/backend/kube"
	"jobforge/internal/config"
	"jobforge/internal/health"
	"jobforge/internal/manager"
	"jobforge/internal/observability"
	"jobforge/internal/register"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.Default()

	// Load configuration
	cfg := config.LoadServiceConfig()

	// Setup metrics
	metrics, err := observability.New()
	if err != nil {
		return err
	}

	// Connect to the cluster
	clientset, err := kube.NewClientset(cfg.KubeconfigPath)
	if err != nil {
		return err
	}
	backend := kube.New(clientset, cfg.Namespace, logger)
	slog.Info("Connected to cluster", "namespace", cfg.Namespace)

	// Build the job lifecycle core
	reg := register.NewReloadingRegister(cfg.DefinitionsPath, backend, logger)
	signer := manager.NewSigner(cfg.Signature)
	jobManager := manager.New(reg, signer, backend, metrics, logger,
		manager.WithTailLines(int64(cfg.LogTailLines)))
	deleter := manager.NewDeleter(jobManager, cfg.RetentionPeriod, metrics, logger)

	healthChecker := health.NewChecker(backend, 10*time.Second)

	// Start the background cleanup loop
	stopCleanup := deleter.StartBackgroundCleanup(cfg.CleanupInterval)

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		Manager:       jobManager,
		Metrics:       metrics,
		HealthChecker: healthChecker,
		APIKey:        cfg.APIKey,
	})

	if cfg.APIKey != "" {
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled - no API_KEY configured")
	}

	// Create API server
	apiServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Create metrics server
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metrics.Handler())
	metricsServer := &http.Server{
		Addr:         ":" + cfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Channel to capture server errors
	serverErr := make(chan error, 1)

	// Start API server
	go func() {
		slog.Info("Starting API server", "port", cfg.Port)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Start metrics server
	go func() {
		slog.Info("Starting metrics server", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// shutdown closes both servers gracefully
	shutdown := func(timeout time.Duration) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}

	// Wait for interrupt signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		slog.Error("Server failed to start", "error", err)
		stopCleanup()
		shutdown(5 * time.Second)
		return err
	}

	// Phase 1: Mark service as unhealthy for load balancer draining
	healthChecker.SetShuttingDown()

	// Wait for load balancers to stop sending traffic
	if cfg.ShutdownDrainWait > 0 {
		slog.Info("Waiting for traffic to drain", "duration", cfg.ShutdownDrainWait)
		time.Sleep(cfg.ShutdownDrainWait)
	}

	// Phase 2: Graceful shutdown - stop accepting new connections, finish in-flight requests
	slog.Info("Starting graceful shutdown")
	shutdown(25 * time.Second)

	// Phase 3: Stop the cleanup loop and wait for the current pass
	slog.Info("Stopping background cleanup")
	stopCleanup()

	// Jobs already submitted keep running in the cluster; the job controller
	// owns them and a later instance picks up cleanup where this one stopped.
	slog.Info("Submitted jobs continue under the cluster's control")
	slog.Info("Shutdown complete")
	return nil
}
