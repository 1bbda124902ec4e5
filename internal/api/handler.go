// Package api provides the HTTP admission surface: job submission,
// trigger, and health endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"gpuqueue/internal/apperrors"
	"gpuqueue/internal/dispatch"
	"gpuqueue/internal/health"
	"gpuqueue/internal/observability"
	"gpuqueue/internal/queue"
)

// maxRequestBodySize limits request body to 1MB to prevent memory exhaustion
const maxRequestBodySize = 1 << 20 // 1 MB

// EnqueueRequest is the submission payload for POST /enqueue.
// "type" and "kind" are accepted interchangeably; clients predating the
// rename still send "type".
type EnqueueRequest struct {
	Type        string            `json:"type,omitempty"`
	Kind        string            `json:"kind,omitempty"`
	Prompt      string            `json:"prompt"`
	Model       string            `json:"model,omitempty"`
	CallbackURL string            `json:"callbackUrl"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// EnqueueResponse acknowledges an accepted job.
type EnqueueResponse struct {
	OK       bool   `json:"ok"`
	Enqueued string `json:"enqueued"`
	Size     int    `json:"size"`
}

// TriggerResponse reports what a trigger call did.
type TriggerResponse struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
}

// HealthResponse is the lightweight queue snapshot for GET /health.
type HealthResponse struct {
	OK         bool `json:"ok"`
	Queue      int  `json:"queue"`
	Processing bool `json:"processing"`
}

// Handler contains the HTTP handlers for the admission API.
type Handler struct {
	queue        *queue.Manager
	loop         *dispatch.Loop
	metrics      *observability.Metrics
	health       *health.Checker
	defaultModel string
}

// HandlerConfig holds the handler's dependencies.
type HandlerConfig struct {
	Queue        *queue.Manager
	Loop         *dispatch.Loop
	Metrics      *observability.Metrics // optional
	Health       *health.Checker
	DefaultModel string
}

// NewHandler creates a new API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		queue:        cfg.Queue,
		loop:         cfg.Loop,
		metrics:      cfg.Metrics,
		health:       cfg.Health,
		defaultModel: cfg.DefaultModel,
	}
}

// Enqueue handles POST /enqueue. The job is validated, assigned an ID,
// and appended to the queue; nothing starts until a trigger arrives.
func (h *Handler) Enqueue(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	job, err := h.buildJob(r, &req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	size := h.queue.Enqueue(job)
	if h.metrics != nil {
		h.metrics.RecordJobEnqueued(r.Context(), job.Model)
	}
	slog.InfoContext(r.Context(), "Job enqueued",
		"jobId", job.ID,
		"model", job.Model,
		"queue", size,
	)

	h.writeJSON(w, http.StatusOK, EnqueueResponse{
		OK:       true,
		Enqueued: job.ID,
		Size:     size,
	})
}

// buildJob validates a submission and freezes it into an immutable record.
func (h *Handler) buildJob(r *http.Request, req *EnqueueRequest) (*queue.Job, error) {
	kind := req.Kind
	if kind == "" {
		kind = req.Type
	}
	if kind == "" {
		kind = r.Header.Get("X-Job-Type")
	}
	if kind == "" {
		kind = queue.KindLLM
	}
	if kind != queue.KindLLM {
		return nil, apperrors.Validation("kind", "unsupported job kind: "+kind)
	}

	if strings.TrimSpace(req.Prompt) == "" {
		return nil, apperrors.Validation("prompt", "prompt is required")
	}
	if req.CallbackURL == "" {
		return nil, apperrors.Validation("callbackUrl", "callbackUrl is required")
	}
	if u, err := url.Parse(req.CallbackURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, apperrors.Validation("callbackUrl", "callbackUrl must be an absolute URL")
	}

	model := req.Model
	if model == "" {
		model = h.defaultModel
	}

	// Copy headers so later mutation of the request map can't reach the record.
	var headers map[string]string
	if len(req.Headers) > 0 {
		headers = make(map[string]string, len(req.Headers))
		for k, v := range req.Headers {
			headers[k] = v
		}
	}

	return &queue.Job{
		ID:          uuid.New().String(),
		Kind:        kind,
		Prompt:      req.Prompt,
		Model:       model,
		CallbackURL: req.CallbackURL,
		Headers:     headers,
	}, nil
}

// Trigger handles POST /trigger. Auth is enforced by middleware; the
// call returns immediately with what it did, never waiting for a drain.
func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	status := h.loop.Trigger()
	h.writeJSON(w, http.StatusOK, TriggerResponse{
		OK:     true,
		Status: string(status),
	})
}

// Health handles GET /health - queue depth and run state at a glance.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{
		OK:         true,
		Queue:      h.queue.Len(),
		Processing: h.queue.Processing(),
	})
}

// Livez handles GET /livez - liveness probe.
// Returns 200 if the process is alive. Does not check dependencies.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.health.Liveness(r.Context()))
}

// Readyz handles GET /readyz - readiness probe.
// Returns 503 if the provider control plane is unreachable.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsHealthy() {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]any{"ok": false, "error": message})
}

// handleError maps domain errors to HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		slog.Error("Internal error", "error", err, "path", r.URL.Path)
	} else {
		slog.Warn("Client error", "error", err, "path", r.URL.Path, "status", status)
	}

	msg := err.Error()
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	h.writeError(w, status, msg)
}
