// gpuqueue-service is the HTTP API server that queues LLM jobs and
// drains them through an on-demand GPU worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gpuqueue/internal/api"
	"gpuqueue/internal/config"
	"gpuqueue/internal/dispatch"
	"gpuqueue/internal/health"
	"gpuqueue/internal/lifecycle"
	"gpuqueue/internal/observability"
	"gpuqueue/internal/provider"
	"gpuqueue/internal/queue"
	"gpuqueue/internal/reporter"
	"gpuqueue/internal/worker"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load configuration
	svcCfg := config.LoadServiceConfig()
	provCfg := config.LoadProviderConfig()
	workerCfg := config.LoadWorkerConfig()
	for _, v := range []interface{ Validate() error }{svcCfg, provCfg, workerCfg} {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}

	// Queue first: the metrics gauge observes its depth.
	jobQueue := queue.NewManager()

	// Setup metrics
	metrics, metricsHandler, err := observability.NewMetrics(ctx, jobQueue)
	if err != nil {
		return err
	}

	// Select the provider backend
	prov, err := newProvider(provCfg)
	if err != nil {
		return err
	}
	defer prov.Close()
	slog.Info("Provider configured", "kind", provCfg.Kind)

	// Worker client (readiness probe + job execution)
	workerClient := worker.NewClient(worker.Config{
		BaseURL:        workerCfg.URL,
		Token:          workerCfg.Token,
		ExecuteTimeout: workerCfg.ExecuteTimeout,
	})

	// Lifecycle controller: start, poll readiness, stop
	controller := lifecycle.NewController(lifecycle.Config{
		Provider:      prov,
		Prober:        workerClient,
		ReadyTimeout:  workerCfg.ReadyTimeout,
		ReadyInterval: workerCfg.ReadyInterval,
	})

	// Callback reporter
	outcomeReporter := reporter.New(0, metrics)

	// Dispatch loop
	loop := dispatch.New(dispatch.Config{
		Queue:     jobQueue,
		Lifecycle: controller,
		Executor:  workerClient,
		Reporter:  outcomeReporter,
		Metrics:   metrics,
	})

	// Create health checker
	healthChecker := health.NewChecker(prov)

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		Handler: api.NewHandler(api.HandlerConfig{
			Queue:        jobQueue,
			Loop:         loop,
			Metrics:      metrics,
			Health:       healthChecker,
			DefaultModel: svcCfg.DefaultModel,
		}),
		Metrics:      metrics,
		TriggerToken: svcCfg.TriggerToken,
	})

	// Create API server
	apiServer := &http.Server{
		Addr:         ":" + svcCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Create metrics server
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + svcCfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Channel to capture server errors
	serverErr := make(chan error, 1)

	// Start API server
	go func() {
		slog.Info("Starting API server", "port", svcCfg.Port)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Start metrics server
	go func() {
		slog.Info("Starting metrics server", "port", svcCfg.MetricsPort)
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
		shutdown(5 * time.Second)
		return err
	}

	// Phase 1: Mark service as unhealthy for load balancer draining
	healthChecker.SetShuttingDown()

	// Wait for load balancers to stop sending traffic
	if svcCfg.ShutdownDrainWait > 0 {
		slog.Info("Waiting for traffic to drain", "duration", svcCfg.ShutdownDrainWait)
		time.Sleep(svcCfg.ShutdownDrainWait)
	}

	// Phase 2: Graceful shutdown - stop accepting new connections, finish in-flight requests
	slog.Info("Starting graceful shutdown")
	shutdown(25 * time.Second)

	// An active dispatch run keeps going until its drain completes; the
	// queue itself is in-memory, so anything still queued is lost. Log
	// enough to reconstruct what was abandoned.
	if n := jobQueue.Len(); n > 0 {
		slog.Warn("Shutting down with jobs still queued", "queue", n, "processing", jobQueue.Processing())
	}

	stats := outcomeReporter.Stats()
	slog.Info("Reporter stats",
		"delivered", stats.Delivered,
		"failed", stats.Failed,
	)

	slog.Info("Shutdown complete")
	return nil
}

// newProvider builds the configured provider backend.
func newProvider(cfg *config.ProviderConfig) (provider.Provider, error) {
	switch cfg.Kind {
	case config.ProviderDocker:
		return provider.NewDockerProvider(cfg.ContainerName)
	default:
		return provider.NewRESTClient(provider.RESTConfig{
			BaseURL:    cfg.APIURL,
			APIKey:     cfg.APIKey,
			InstanceID: cfg.InstanceID,
			Timeout:    cfg.HTTPTimeout,
		}), nil
	}
}
