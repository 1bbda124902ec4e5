// worker-sim is a stand-in for the GPU worker, for local development and
// end-to-end testing. It fakes the model load with a warmup delay, then
// serves /health and /generate with the worker's wire contract.
package main

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gpuqueue/internal/config"
)

type generateRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

type generateResponse struct {
	Text string `json:"text"`
}

type server struct {
	token   string
	readyAt time.Time
	delay   time.Duration // simulated per-request inference time
}

func (s *server) authorized(r *http.Request) bool {
	if s.token == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) == 1
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	// Still "loading the model" until warmup elapses.
	if time.Now().Before(s.readyAt) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *server) generate(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if time.Now().Before(s.readyAt) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		http.Error(w, "prompt is required", http.StatusBadRequest)
		return
	}

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	slog.Info("Generated completion", "model", req.Model, "promptLen", len(req.Prompt))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(generateResponse{
		Text: fmt.Sprintf("[%s] echo: %s", req.Model, req.Prompt),
	})
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	port := config.GetEnv("PORT", "8081")
	warmup := config.GetDurationEnv("SIM_WARMUP", 10*time.Second)
	s := &server{
		token:   config.GetSecretEnv("WORKER_TOKEN"),
		readyAt: time.Now().Add(warmup),
		delay:   config.GetDurationEnv("SIM_GENERATE_DELAY", 500*time.Millisecond),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("POST /generate", s.generate)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
	}

	go func() {
		slog.Info("Starting simulated worker", "port", port, "warmup", warmup)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down")
	srv.Close()
}
