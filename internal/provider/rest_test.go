package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"gpuqueue/internal/apperrors"
)

func newTestClient(serverURL string) *RESTClient {
	return NewRESTClient(RESTConfig{
		BaseURL:    serverURL,
		APIKey:     "test-key",
		InstanceID: "inst-42",
	})
}

func TestSetDesiredState(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v1/instances/inst-42/state" {
			t.Errorf("path = %s, want /v1/instances/inst-42/state", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want bearer key", got)
		}

		var req stateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if req.Desired != Running {
			t.Errorf("desired = %q, want %q", req.Desired, Running)
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if err := c.SetDesiredState(context.Background(), Running); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestSetDesiredStateProviderError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte("instance is mid-migration"))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	err := c.SetDesiredState(context.Background(), Stopped)
	if !errors.Is(err, apperrors.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}

	var structured *apperrors.Error
	if !errors.As(err, &structured) {
		t.Fatal("expected structured error")
	}
	if structured.StatusCode != http.StatusConflict {
		t.Errorf("StatusCode = %d, want 409", structured.StatusCode)
	}
}

func TestSetDesiredStateNetworkFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused

	c := newTestClient(server.URL)
	err := c.SetDesiredState(context.Background(), Running)
	if !errors.Is(err, apperrors.ErrProvider) {
		t.Fatalf("expected ErrProvider on transport failure, got %v", err)
	}
}

func TestReady(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/instances/inst-42" {
			t.Errorf("path = %s, want /v1/instances/inst-42", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if err := c.Ready(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestReadyUnreachable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if err := c.Ready(context.Background()); err == nil {
		t.Error("expected error for 500 response")
	}
}
