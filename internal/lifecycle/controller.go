// Package lifecycle provides idempotent state transitions for the remote
// worker: ensure-running, wait-until-ready, ensure-stopped.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gpuqueue/internal/apperrors"
	"gpuqueue/internal/provider"
)

// ReadinessProber performs a single readiness check against the worker's
// execution surface. Implemented by the worker client.
type ReadinessProber interface {
	ProbeReady(ctx context.Context) bool
}

// Controller drives the worker's lifecycle through the provider.
//
// The controller never reads structured lifecycle state back from the
// provider mid-loop. It only asserts desired state and probes readiness
// empirically, which keeps it decoupled from the provider's state
// vocabulary and tolerant of out-of-band drift (e.g. a manual restart, or
// an instance left running by a previous stop failure).
type Controller struct {
	provider provider.Provider
	prober   ReadinessProber
	timeout  time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// Config holds the controller's dependencies and poll settings.
type Config struct {
	Provider      provider.Provider
	Prober        ReadinessProber
	ReadyTimeout  time.Duration // default: 3m
	ReadyInterval time.Duration // default: 5s
	Logger        *slog.Logger
}

// NewController creates a lifecycle controller.
func NewController(cfg Config) *Controller {
	timeout := cfg.ReadyTimeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	interval := cfg.ReadyInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		provider: cfg.Provider,
		prober:   cfg.Prober,
		timeout:  timeout,
		interval: interval,
		logger:   logger.With("component", "lifecycle"),
	}
}

// EnsureRunning asserts the Running desired state. Safe to call when the
// worker is already running or mid-start.
func (c *Controller) EnsureRunning(ctx context.Context) error {
	c.logger.Info("Asserting worker running")
	return c.provider.SetDesiredState(ctx, provider.Running)
}

// EnsureStopped asserts the Stopped desired state, tolerating the worker
// already being stopped.
func (c *Controller) EnsureStopped(ctx context.Context) error {
	c.logger.Info("Asserting worker stopped")
	return c.provider.SetDesiredState(ctx, provider.Stopped)
}

// WaitUntilReady polls the readiness probe on a fixed interval until the
// worker answers or the configured timeout elapses. An immediately-ready
// worker (left running by an earlier run) passes on the first probe.
func (c *Controller) WaitUntilReady(ctx context.Context) error {
	start := time.Now()
	deadline := start.Add(c.timeout)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		if c.prober.ProbeReady(ctx) {
			c.logger.Info("Worker ready",
				"attempts", attempt,
				"waited", time.Since(start).Round(time.Millisecond),
			)
			return nil
		}

		if time.Now().Add(c.interval).After(deadline) {
			return apperrors.WorkerUnreachable(
				fmt.Sprintf("worker not ready after %s (%d probes)", c.timeout, attempt))
		}

		c.logger.Debug("Worker not ready yet", "attempt", attempt)

		select {
		case <-ctx.Done():
			return apperrors.WorkerUnreachable(fmt.Sprintf("readiness wait cancelled: %v", ctx.Err()))
		case <-ticker.C:
		}
	}
}
