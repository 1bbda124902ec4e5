package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpuqueue/internal/apperrors"
	"gpuqueue/internal/queue"
)

func newTestWorker(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{BaseURL: server.URL, Token: "worker-token"})
}

func TestProbeReady(t *testing.T) {
	t.Parallel()

	c := newTestWorker(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		assert.Equal(t, "Bearer worker-token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	})

	assert.True(t, c.ProbeReady(context.Background()))
}

func TestProbeReadyNotReady(t *testing.T) {
	t.Parallel()

	c := newTestWorker(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	assert.False(t, c.ProbeReady(context.Background()))
}

func TestProbeReadyTransportFailureIsNotReady(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := NewClient(Config{BaseURL: server.URL, Token: "worker-token"})
	assert.False(t, c.ProbeReady(context.Background()), "transport failure must read as not ready, not fatal")
}

func TestExecute(t *testing.T) {
	t.Parallel()

	c := newTestWorker(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/generate", r.URL.Path)
		assert.Equal(t, "Bearer worker-token", r.Header.Get("Authorization"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "write a haiku", req.Prompt)
		assert.Equal(t, "llama3", req.Model)

		json.NewEncoder(w).Encode(generateResponse{Text: "an old silent pond"})
	})

	out, err := c.Execute(context.Background(), &queue.Job{
		ID:     "job-1",
		Kind:   queue.KindLLM,
		Prompt: "write a haiku",
		Model:  "llama3",
	})
	require.NoError(t, err)
	assert.Equal(t, "an old silent pond", out)
}

func TestExecuteWorkerError(t *testing.T) {
	t.Parallel()

	c := newTestWorker(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("CUDA out of memory"))
	})

	_, err := c.Execute(context.Background(), &queue.Job{ID: "job-1", Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrExecution))

	var structured *apperrors.Error
	require.True(t, errors.As(err, &structured))
	assert.Equal(t, http.StatusInternalServerError, structured.StatusCode)
	assert.Contains(t, structured.Message, "CUDA out of memory")
}

func TestExecuteTransportError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := NewClient(Config{BaseURL: server.URL, Token: "worker-token"})
	_, err := c.Execute(context.Background(), &queue.Job{ID: "job-1", Prompt: "hi"})
	assert.True(t, errors.Is(err, apperrors.ErrTransport))
}
