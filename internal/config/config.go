// Package config provides configuration loading from environment variables.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Provider kinds selectable via PROVIDER_KIND.
const (
	ProviderREST   = "rest"
	ProviderDocker = "docker"
)

// ServiceConfig holds configuration for the HTTP service itself.
type ServiceConfig struct {
	Port              string
	MetricsPort       string
	TriggerToken      string        // shared secret for POST /trigger
	DefaultModel      string        // model used when a job omits one
	ShutdownDrainWait time.Duration // Time to wait for load balancer to drain (0 to skip)
}

// ProviderConfig holds configuration for the instance provider boundary.
type ProviderConfig struct {
	Kind          string // "rest" (cloud API) or "docker" (local container)
	APIURL        string // base URL of the provider API (rest)
	APIKey        string // provider API key (rest)
	InstanceID    string // provider instance identifier (rest)
	ContainerName string // worker container name (docker)
	HTTPTimeout   time.Duration
}

// WorkerConfig holds configuration for the remote worker's execution surface.
type WorkerConfig struct {
	URL            string        // base URL of the worker
	Token          string        // shared token for the worker API
	ReadyTimeout   time.Duration // how long to wait for the worker to become ready
	ReadyInterval  time.Duration // readiness poll interval
	ExecuteTimeout time.Duration // per-job execution timeout
}

// LoadServiceConfig loads service configuration from environment variables.
func LoadServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Port:              GetEnv("PORT", "8080"),
		MetricsPort:       GetEnv("METRICS_PORT", "9090"),
		TriggerToken:      GetSecretEnv("TRIGGER_TOKEN"),
		DefaultModel:      GetEnv("DEFAULT_MODEL", "llama3"),
		ShutdownDrainWait: GetDurationEnv("SHUTDOWN_DRAIN_WAIT", 5*time.Second),
	}
}

// LoadProviderConfig loads provider configuration from environment variables.
func LoadProviderConfig() *ProviderConfig {
	return &ProviderConfig{
		Kind:          GetEnv("PROVIDER_KIND", ProviderREST),
		APIURL:        GetEnv("PROVIDER_API_URL", ""),
		APIKey:        GetSecretEnv("PROVIDER_API_KEY"),
		InstanceID:    GetEnv("PROVIDER_INSTANCE_ID", ""),
		ContainerName: GetEnv("PROVIDER_CONTAINER_NAME", ""),
		HTTPTimeout:   GetDurationEnv("PROVIDER_HTTP_TIMEOUT", 30*time.Second),
	}
}

// LoadWorkerConfig loads worker configuration from environment variables.
func LoadWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		URL:            GetEnv("WORKER_URL", ""),
		Token:          GetSecretEnv("WORKER_TOKEN"),
		ReadyTimeout:   GetDurationEnv("WORKER_READY_TIMEOUT", 3*time.Minute),
		ReadyInterval:  GetDurationEnv("WORKER_READY_INTERVAL", 5*time.Second),
		ExecuteTimeout: GetDurationEnv("WORKER_EXECUTE_TIMEOUT", 5*time.Minute),
	}
}

// Validate checks that all required service settings are present.
func (c *ServiceConfig) Validate() error {
	if c.TriggerToken == "" {
		return fmt.Errorf("TRIGGER_TOKEN (or TRIGGER_TOKEN_FILE) is required")
	}
	return nil
}

// Validate checks that the selected provider kind has its required settings.
func (c *ProviderConfig) Validate() error {
	switch c.Kind {
	case ProviderREST:
		if c.APIURL == "" {
			return fmt.Errorf("PROVIDER_API_URL is required when PROVIDER_KIND is %q", ProviderREST)
		}
		if _, err := url.ParseRequestURI(c.APIURL); err != nil {
			return fmt.Errorf("PROVIDER_API_URL: invalid URL %q: %w", c.APIURL, err)
		}
		if c.APIKey == "" {
			return fmt.Errorf("PROVIDER_API_KEY (or PROVIDER_API_KEY_FILE) is required")
		}
		if c.InstanceID == "" {
			return fmt.Errorf("PROVIDER_INSTANCE_ID is required")
		}
	case ProviderDocker:
		if c.ContainerName == "" {
			return fmt.Errorf("PROVIDER_CONTAINER_NAME is required when PROVIDER_KIND is %q", ProviderDocker)
		}
	default:
		return fmt.Errorf("PROVIDER_KIND %q is not supported (supported: %s, %s)", c.Kind, ProviderREST, ProviderDocker)
	}
	return nil
}

// Validate checks that all required worker settings are present and sane.
func (c *WorkerConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("WORKER_URL is required")
	}
	parsed, err := url.ParseRequestURI(c.URL)
	if err != nil {
		return fmt.Errorf("WORKER_URL: invalid URL %q: %w", c.URL, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("WORKER_URL scheme must be http or https, got %q", parsed.Scheme)
	}
	if c.Token == "" {
		return fmt.Errorf("WORKER_TOKEN (or WORKER_TOKEN_FILE) is required")
	}
	if c.ReadyInterval <= 0 {
		return fmt.Errorf("WORKER_READY_INTERVAL must be positive")
	}
	if c.ReadyTimeout < c.ReadyInterval {
		return fmt.Errorf("WORKER_READY_TIMEOUT (%s) must be at least WORKER_READY_INTERVAL (%s)", c.ReadyTimeout, c.ReadyInterval)
	}
	return nil
}
