package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// QueueLener reports the current queue depth. Implemented by the queue
// manager; kept as a tiny interface so metrics don't import it.
type QueueLener interface {
	Len() int
}

// Metrics holds all application metrics implementing the golden 4 signals:
// - Latency: How long requests/jobs/drain runs take
// - Traffic: Request/job throughput
// - Errors: Rate of failures
// - Saturation: Queue depth
type Metrics struct {
	meter metric.Meter

	// HTTP metrics (Latency, Traffic, Errors)
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	// Job metrics (Latency, Traffic, Errors)
	JobsEnqueued   metric.Int64Counter
	JobDuration    metric.Float64Histogram
	JobsExecuted   metric.Int64Counter
	JobErrorsTotal metric.Int64Counter

	// Drain run metrics
	DrainRuns      metric.Int64Counter
	DrainDuration  metric.Float64Histogram
	WorkerStarts   metric.Int64Counter
	WorkerStops    metric.Int64Counter
	ReadinessWait  metric.Float64Histogram

	// Callback metrics
	CallbacksDelivered metric.Int64Counter
	CallbacksFailed    metric.Int64Counter
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
// The queue is observed via an async gauge (saturation signal).
func NewMetrics(ctx context.Context, queue QueueLener) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("gpuqueue")
	m := &Metrics{meter: meter}

	// HTTP metrics
	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPErrorsTotal, err = meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Job metrics
	m.JobsEnqueued, err = meter.Int64Counter(
		"jobs_enqueued_total",
		metric.WithDescription("Total number of jobs admitted to the queue"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobDuration, err = meter.Float64Histogram(
		"job_duration_seconds",
		metric.WithDescription("Per-job execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 5, 10, 30, 60, 120, 300, 600),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsExecuted, err = meter.Int64Counter(
		"jobs_executed_total",
		metric.WithDescription("Total number of jobs executed (success or failure)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobErrorsTotal, err = meter.Int64Counter(
		"job_errors_total",
		metric.WithDescription("Total number of failed jobs"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Drain run metrics
	m.DrainRuns, err = meter.Int64Counter(
		"drain_runs_total",
		metric.WithDescription("Total number of dispatch runs"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DrainDuration, err = meter.Float64Histogram(
		"drain_duration_seconds",
		metric.WithDescription("Full drain duration (worker start to stop) in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(5, 15, 30, 60, 120, 300, 600, 1800, 3600),
	)
	if err != nil {
		return nil, nil, err
	}

	m.WorkerStarts, err = meter.Int64Counter(
		"worker_starts_total",
		metric.WithDescription("Total Running state assertions against the provider"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.WorkerStops, err = meter.Int64Counter(
		"worker_stops_total",
		metric.WithDescription("Total Stopped state assertions against the provider"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ReadinessWait, err = meter.Float64Histogram(
		"worker_readiness_wait_seconds",
		metric.WithDescription("Time spent waiting for the worker to become ready"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, nil, err
	}

	// Callback metrics
	m.CallbacksDelivered, err = meter.Int64Counter(
		"callbacks_delivered_total",
		metric.WithDescription("Total outcomes successfully delivered to callbacks"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.CallbacksFailed, err = meter.Int64Counter(
		"callbacks_failed_total",
		metric.WithDescription("Total outcome deliveries that failed"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Queue depth gauge (saturation)
	if queue != nil {
		_, err = meter.Int64ObservableGauge(
			"queue_depth",
			metric.WithDescription("Current number of jobs waiting in the queue"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(int64(queue.Len()))
				return nil
			}),
		)
		if err != nil {
			return nil, nil, err
		}
	}

	return m, promhttp.Handler(), nil
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		pathAttr(path),
		statusAttr(statusCode),
	)

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)

	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordJobEnqueued records a job admitted to the queue.
func (m *Metrics) RecordJobEnqueued(ctx context.Context, model string) {
	m.JobsEnqueued.Add(ctx, 1, metric.WithAttributes(modelAttr(model)))
}

// RecordJobExecuted records one job execution (success or failure).
func (m *Metrics) RecordJobExecuted(ctx context.Context, model string, success bool, durationSeconds float64) {
	attrs := metric.WithAttributes(modelAttr(model), successAttr(success))
	m.JobDuration.Record(ctx, durationSeconds, attrs)
	m.JobsExecuted.Add(ctx, 1, attrs)

	if !success {
		m.JobErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordDrainRun records a completed dispatch run with its outcome.
func (m *Metrics) RecordDrainRun(ctx context.Context, outcome string, durationSeconds float64) {
	m.DrainRuns.Add(ctx, 1, metric.WithAttributes(outcomeAttr(outcome)))
	m.DrainDuration.Record(ctx, durationSeconds)
}

// RecordWorkerStart records a Running assertion against the provider.
func (m *Metrics) RecordWorkerStart(ctx context.Context) {
	m.WorkerStarts.Add(ctx, 1)
}

// RecordWorkerStop records a Stopped assertion against the provider.
func (m *Metrics) RecordWorkerStop(ctx context.Context) {
	m.WorkerStops.Add(ctx, 1)
}

// RecordReadinessWait records the time spent waiting for worker readiness.
func (m *Metrics) RecordReadinessWait(ctx context.Context, durationSeconds float64) {
	m.ReadinessWait.Record(ctx, durationSeconds)
}

// RecordCallbackDelivered records a successful outcome delivery.
func (m *Metrics) RecordCallbackDelivered(ctx context.Context) {
	m.CallbacksDelivered.Add(ctx, 1)
}

// RecordCallbackFailed records a failed outcome delivery.
func (m *Metrics) RecordCallbackFailed(ctx context.Context) {
	m.CallbacksFailed.Add(ctx, 1)
}
