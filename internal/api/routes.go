package api

import (
	"net/http"

	"gpuqueue/internal/observability"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Handler      *Handler
	Metrics      *observability.Metrics
	TriggerToken string
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoints (liveness/readiness probes) - no auth required
	mux.HandleFunc("GET /livez", cfg.Handler.Livez)
	mux.HandleFunc("GET /readyz", cfg.Handler.Readyz)
	mux.HandleFunc("GET /health", cfg.Handler.Health)

	// Submission is open; only the trigger is gated, since it is what
	// spends money by starting the worker.
	mux.HandleFunc("POST /enqueue", cfg.Handler.Enqueue)

	authMiddleware := AuthMiddleware(cfg.TriggerToken)
	mux.Handle("POST /trigger", authMiddleware(http.HandlerFunc(cfg.Handler.Trigger)))

	// Apply middleware chain (order matters: outermost first)
	var h http.Handler = mux
	h = ContentTypeMiddleware()(h)
	h = CORSMiddleware()(h)
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}
