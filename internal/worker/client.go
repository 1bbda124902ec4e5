// Package worker provides the HTTP client for the remote worker's
// execution surface: a readiness probe and a generate call.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"gpuqueue/internal/apperrors"
	"gpuqueue/internal/queue"
)

// maxErrorBodySize caps how much of a worker error response is kept.
const maxErrorBodySize = 16 << 10 // 16 KB

// Client talks to the worker over HTTP, authorized by a shared token.
type Client struct {
	baseURL      string
	token        string
	client       *http.Client
	probeTimeout time.Duration
}

// Config holds configuration for the worker client.
type Config struct {
	BaseURL        string
	Token          string
	ExecuteTimeout time.Duration // per-job timeout (default: 5m)
	ProbeTimeout   time.Duration // per-probe timeout (default: 5s)
}

// NewClient creates a worker client.
func NewClient(cfg Config) *Client {
	executeTimeout := cfg.ExecuteTimeout
	if executeTimeout <= 0 {
		executeTimeout = 5 * time.Minute
	}
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client: &http.Client{
			// Generation runs for minutes; probes get their own short
			// deadline via context in ProbeReady.
			Timeout: executeTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		probeTimeout: probeTimeout,
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

type generateResponse struct {
	Text string `json:"text"`
}

// ProbeReady performs a single readiness check against the worker's
// control surface. "Not yet ready" is not an error: transport failures
// and non-2xx responses both report false.
func (c *Client) ProbeReady(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Execute submits one job's payload to the worker and returns the
// generated text. Non-success responses become execution errors carrying
// the worker's status code and body; network failures become transport
// errors.
func (c *Client) Execute(ctx context.Context, job *queue.Job) (string, error) {
	body, err := json.Marshal(generateRequest{
		Prompt: job.Prompt,
		Model:  job.Model,
	})
	if err != nil {
		return "", apperrors.Internal("worker.execute", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return "", apperrors.Internal("worker.execute", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", apperrors.Transport("worker.execute", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return "", apperrors.Execution(resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", apperrors.Transport("worker.execute", err)
	}
	return result.Text, nil
}
