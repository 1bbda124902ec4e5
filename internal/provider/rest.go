package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gpuqueue/internal/apperrors"
)

// maxErrorBodySize caps how much of a provider error response is kept.
const maxErrorBodySize = 4 << 10 // 4 KB

// RESTClient implements Provider against a cloud GPU provider's HTTP API.
// The instance is pre-provisioned; the client only flips its desired
// state, keyed by the configured instance identifier.
type RESTClient struct {
	baseURL    string
	apiKey     string
	instanceID string
	client     *http.Client
}

// RESTConfig holds configuration for the REST provider client.
type RESTConfig struct {
	BaseURL    string
	APIKey     string
	InstanceID string
	Timeout    time.Duration
}

// NewRESTClient creates a provider client for the configured instance.
func NewRESTClient(cfg RESTConfig) *RESTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RESTClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		instanceID: cfg.InstanceID,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type stateRequest struct {
	Desired DesiredState `json:"desired"`
}

// SetDesiredState asserts the instance's desired state via
// POST /v1/instances/{id}/state.
func (c *RESTClient) SetDesiredState(ctx context.Context, state DesiredState) error {
	body, err := json.Marshal(stateRequest{Desired: state})
	if err != nil {
		return apperrors.Internal("provider.setDesiredState", err)
	}

	url := fmt.Sprintf("%s/v1/instances/%s/state", c.baseURL, c.instanceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return apperrors.Internal("provider.setDesiredState", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.Provider("provider.setDesiredState", 0, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	return apperrors.Provider("provider.setDesiredState", resp.StatusCode, strings.TrimSpace(string(msg)))
}

// Ready checks that the provider API answers for the configured instance.
func (c *RESTClient) Ready(ctx context.Context) error {
	url := fmt.Sprintf("%s/v1/instances/%s", c.baseURL, c.instanceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("provider returned %d", resp.StatusCode)
}

// Close releases idle connections.
func (c *RESTClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// Verify RESTClient implements Provider
var _ Provider = (*RESTClient)(nil)
