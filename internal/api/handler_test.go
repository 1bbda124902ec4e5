package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpuqueue/internal/dispatch"
	"gpuqueue/internal/health"
	"gpuqueue/internal/queue"
	"gpuqueue/internal/reporter"
	"gpuqueue/internal/testutil"
)

type nopLifecycle struct{}

func (nopLifecycle) EnsureRunning(ctx context.Context) error  { return nil }
func (nopLifecycle) WaitUntilReady(ctx context.Context) error { return nil }
func (nopLifecycle) EnsureStopped(ctx context.Context) error  { return nil }

type nopExecutor struct{}

func (nopExecutor) Execute(ctx context.Context, job *queue.Job) (string, error) {
	return "done", nil
}

type nopReporter struct{}

func (nopReporter) Report(ctx context.Context, job *queue.Job, outcome reporter.Outcome) {}

type readyProvider struct{}

func (readyProvider) Ready(ctx context.Context) error { return nil }

func newTestRouter(t *testing.T, token string) (http.Handler, *queue.Manager) {
	t.Helper()
	q := queue.NewManager()
	loop := dispatch.New(dispatch.Config{
		Queue:     q,
		Lifecycle: nopLifecycle{},
		Executor:  nopExecutor{},
		Reporter:  nopReporter{},
	})
	handler := NewHandler(HandlerConfig{
		Queue:        q,
		Loop:         loop,
		Health:       health.NewChecker(readyProvider{}),
		DefaultModel: "llama3",
	})
	return NewRouter(RouterConfig{Handler: handler, TriggerToken: token}), q
}

func postJSON(t *testing.T, h http.Handler, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestEnqueueAccepted(t *testing.T) {
	t.Parallel()
	router, q := newTestRouter(t, "")

	rec := postJSON(t, router, "/enqueue",
		`{"kind":"llm","prompt":"write a haiku","callbackUrl":"http://example.com/cb"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp EnqueueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.NotEmpty(t, resp.Enqueued)
	assert.Equal(t, 1, resp.Size)
	assert.Equal(t, 1, q.Len())
}

func TestEnqueueDefaultsModelAndKind(t *testing.T) {
	t.Parallel()
	router, q := newTestRouter(t, "")

	rec := postJSON(t, router, "/enqueue",
		`{"prompt":"hi","callbackUrl":"http://example.com/cb"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	job, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, queue.KindLLM, job.Kind)
	assert.Equal(t, "llama3", job.Model)
}

func TestEnqueueLegacyTypeField(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, "")

	rec := postJSON(t, router, "/enqueue",
		`{"type":"llm","prompt":"hi","callbackUrl":"http://example.com/cb"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEnqueueValidation(t *testing.T) {
	t.Parallel()
	router, q := newTestRouter(t, "")

	tests := []struct {
		name string
		body string
	}{
		{"unsupported kind", `{"kind":"image","prompt":"p","callbackUrl":"http://x.test/cb"}`},
		{"missing prompt", `{"kind":"llm","callbackUrl":"http://x.test/cb"}`},
		{"blank prompt", `{"kind":"llm","prompt":"   ","callbackUrl":"http://x.test/cb"}`},
		{"missing callback", `{"kind":"llm","prompt":"p"}`},
		{"relative callback", `{"kind":"llm","prompt":"p","callbackUrl":"/cb"}`},
		{"malformed body", `{"kind":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, router, "/enqueue", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"ok":false`)
		})
	}
	assert.Equal(t, 0, q.Len(), "rejected submissions must not reach the queue")
}

func TestEnqueueHeadersAreCopied(t *testing.T) {
	t.Parallel()
	router, q := newTestRouter(t, "")

	rec := postJSON(t, router, "/enqueue",
		`{"prompt":"p","callbackUrl":"http://x.test/cb","headers":{"X-Batch-Id":"42"}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	job, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "42", job.Headers["X-Batch-Id"])
}

func TestTriggerRequiresToken(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, "sesame")

	rec := postJSON(t, router, "/trigger", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(t, router, "/trigger", "", map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTriggerResponses(t *testing.T) {
	t.Parallel()
	router, q := newTestRouter(t, "sesame")
	auth := map[string]string{"Authorization": "Bearer sesame"}

	rec := postJSON(t, router, "/trigger", "", auth)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TriggerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "processing", resp.Status)

	testutil.MustWaitFor(t, func() bool { return !q.Processing() })
}

func TestHealthSnapshot(t *testing.T) {
	t.Parallel()
	router, q := newTestRouter(t, "")
	q.Enqueue(&queue.Job{ID: "a"})
	q.Enqueue(&queue.Job{ID: "b"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, 2, resp.Queue)
	assert.False(t, resp.Processing)
}

func TestProbes(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, "")

	for _, path := range []string{"/livez", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.True(t, strings.Contains(rec.Body.String(), "healthy"), path)
	}
}

func TestContentTypeEnforced(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodPost, "/enqueue", bytes.NewBufferString("prompt=hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}
