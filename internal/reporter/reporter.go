// Package reporter delivers per-job outcomes to caller-supplied callback
// URLs. Delivery is best-effort: one attempt, failures are logged and
// counted, never propagated to the dispatch loop.
package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"gpuqueue/internal/observability"
	"gpuqueue/internal/queue"
)

// Outcome statuses reported to callbacks.
const (
	StatusComplete = "complete"
	StatusError    = "error"
)

// Outcome is the result of one job's execution.
type Outcome struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Status string `json:"status"` // "complete" or "error"
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Success builds a complete outcome for a job.
func Success(job *queue.Job, output string) Outcome {
	return Outcome{
		ID:     job.ID,
		Kind:   job.Kind,
		Status: StatusComplete,
		Output: output,
	}
}

// Failure builds an error outcome for a job.
func Failure(job *queue.Job, err error) Outcome {
	return Outcome{
		ID:     job.ID,
		Kind:   job.Kind,
		Status: StatusError,
		Error:  err.Error(),
	}
}

// Stats holds delivery counters.
type Stats struct {
	Delivered int64
	Failed    int64
}

// Reporter posts outcomes over HTTP.
type Reporter struct {
	client  *http.Client
	logger  *slog.Logger
	metrics *observability.Metrics

	delivered atomic.Int64
	failed    atomic.Int64
}

// New creates a reporter with the given per-delivery timeout.
// Metrics may be nil.
func New(timeout time.Duration, metrics *observability.Metrics) *Reporter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Reporter{
		metrics: metrics,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: slog.With("component", "reporter"),
	}
}

// Report issues one POST to the job's callback URL with the outcome
// payload, merging in the job's extra headers. Any delivery failure is
// swallowed: the dispatch loop's forward progress must never depend on a
// callback landing.
func (r *Reporter) Report(ctx context.Context, job *queue.Job, outcome Outcome) {
	if err := r.send(ctx, job, outcome); err != nil {
		r.failed.Add(1)
		if r.metrics != nil {
			r.metrics.RecordCallbackFailed(ctx)
		}
		r.logger.Warn("Callback delivery failed",
			"jobId", job.ID,
			"status", outcome.Status,
			"error", err,
		)
		return
	}
	r.delivered.Add(1)
	if r.metrics != nil {
		r.metrics.RecordCallbackDelivered(ctx)
	}
	r.logger.Info("Callback delivered", "jobId", job.ID, "status", outcome.Status)
}

// Stats returns delivery counters.
func (r *Reporter) Stats() Stats {
	return Stats{
		Delivered: r.delivered.Load(),
		Failed:    r.failed.Load(),
	}
}

func (r *Reporter) send(ctx context.Context, job *queue.Job, outcome Outcome) error {
	body, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.CallbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range job.Headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("callback returned %d", resp.StatusCode)
}
