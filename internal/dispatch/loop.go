// Package dispatch implements the control loop that brings the worker
// up, drains the job queue strictly in order, and brings the worker
// back down.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"gpuqueue/internal/observability"
	"gpuqueue/internal/queue"
	"gpuqueue/internal/reporter"
)

// Status reports what a trigger call did. The values double as the
// wire-level status strings returned by POST /trigger.
type Status string

const (
	// StatusStarted means this trigger started a new dispatch run.
	StatusStarted Status = "processing"
	// StatusAlreadyRunning means a run was already active; queued jobs
	// will be picked up by it (or by a later trigger).
	StatusAlreadyRunning Status = "queued"
)

// Lifecycle drives the worker's start/ready/stop transitions.
type Lifecycle interface {
	EnsureRunning(ctx context.Context) error
	WaitUntilReady(ctx context.Context) error
	EnsureStopped(ctx context.Context) error
}

// Executor submits one job to the worker and returns its output.
type Executor interface {
	Execute(ctx context.Context, job *queue.Job) (string, error)
}

// OutcomeReporter delivers one job's outcome to its callback address.
type OutcomeReporter interface {
	Report(ctx context.Context, job *queue.Job, outcome reporter.Outcome)
}

// Loop is the dispatch loop. At most one run is active at a time; the
// queue manager's CAS guard enforces that, and the guard is released on
// every exit path.
type Loop struct {
	queue     *queue.Manager
	lifecycle Lifecycle
	executor  Executor
	reporter  OutcomeReporter
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// Config holds the loop's dependencies.
type Config struct {
	Queue     *queue.Manager
	Lifecycle Lifecycle
	Executor  Executor
	Reporter  OutcomeReporter
	Metrics   *observability.Metrics // optional
	Logger    *slog.Logger
}

// New creates a dispatch loop.
func New(cfg Config) *Loop {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		queue:     cfg.Queue,
		lifecycle: cfg.Lifecycle,
		executor:  cfg.Executor,
		reporter:  cfg.Reporter,
		metrics:   cfg.Metrics,
		logger:    logger.With("component", "dispatch"),
	}
}

// Trigger starts a dispatch run unless one is already active. The run is
// a detached goroutine: the caller gets an immediate answer and never
// waits for the drain. Repeated triggers are safe; the CAS guard admits
// exactly one.
func (l *Loop) Trigger() Status {
	if !l.queue.BeginRun() {
		l.logger.Debug("Trigger coalesced, run already active")
		return StatusAlreadyRunning
	}
	go l.run(context.Background())
	return StatusStarted
}

// run executes one full dispatch cycle. The guard reset is deferred so it
// holds on every exit path; a stuck Processing flag would permanently
// deadlock dispatch.
func (l *Loop) run(ctx context.Context) {
	defer l.queue.EndRun()

	if l.queue.Len() == 0 {
		l.logger.Debug("Queue empty, nothing to dispatch")
		return
	}

	start := time.Now()
	l.logger.Info("Dispatch run starting", "queued", l.queue.Len())

	// Start and readiness failures abort with the queue untouched: no
	// job has been dequeued yet, so a later trigger simply retries.
	if err := l.lifecycle.EnsureRunning(ctx); err != nil {
		l.logger.Error("Failed to start worker, run aborted", "error", err)
		l.recordRun(ctx, "start_failed", start)
		return
	}
	if l.metrics != nil {
		l.metrics.RecordWorkerStart(ctx)
	}

	readyStart := time.Now()
	if err := l.lifecycle.WaitUntilReady(ctx); err != nil {
		l.logger.Error("Worker never became ready, run aborted", "error", err)
		l.recordRun(ctx, "unreachable", start)
		return
	}
	if l.metrics != nil {
		l.metrics.RecordReadinessWait(ctx, time.Since(readyStart).Seconds())
	}

	// Drain to empty. Per-job failures are isolated: reported via the
	// job's callback, never re-enqueued, never fatal to the run.
	executed := 0
	for {
		job, ok := l.queue.Dequeue()
		if !ok {
			break
		}
		l.process(ctx, job)
		executed++
	}

	outcome := "completed"
	if err := l.lifecycle.EnsureStopped(ctx); err != nil {
		// The worker may be left running and billing; an operator or a
		// subsequent trigger has to reconcile.
		l.logger.Error("Failed to stop worker after drain", "error", err)
		outcome = "stop_failed"
	} else if l.metrics != nil {
		l.metrics.RecordWorkerStop(ctx)
	}

	l.recordRun(ctx, outcome, start)
	l.logger.Info("Dispatch run finished",
		"executed", executed,
		"outcome", outcome,
		"duration", time.Since(start).Round(time.Millisecond),
	)
}

// process executes one job and reports its outcome.
func (l *Loop) process(ctx context.Context, job *queue.Job) {
	logger := l.logger.With("jobId", job.ID, "model", job.Model)
	start := time.Now()

	output, err := l.executor.Execute(ctx, job)
	duration := time.Since(start)

	if err != nil {
		logger.Warn("Job failed", "error", err, "duration", duration.Round(time.Millisecond))
		if l.metrics != nil {
			l.metrics.RecordJobExecuted(ctx, job.Model, false, duration.Seconds())
		}
		l.reporter.Report(ctx, job, reporter.Failure(job, err))
		return
	}

	logger.Info("Job completed", "duration", duration.Round(time.Millisecond))
	if l.metrics != nil {
		l.metrics.RecordJobExecuted(ctx, job.Model, true, duration.Seconds())
	}
	l.reporter.Report(ctx, job, reporter.Success(job, output))
}

func (l *Loop) recordRun(ctx context.Context, outcome string, start time.Time) {
	if l.metrics != nil {
		l.metrics.RecordDrainRun(ctx, outcome, time.Since(start).Seconds())
	}
}
