package provider

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"gpuqueue/internal/apperrors"
)

// DockerProvider implements Provider against a local Docker daemon. The
// worker runs as a pre-created container (e.g. a local inference server)
// identified by name. Meant for development; the REST provider is the
// production boundary.
type DockerProvider struct {
	client        *client.Client
	containerName string
}

// NewDockerProvider creates a provider that starts and stops the named
// container.
func NewDockerProvider(containerName string) (*DockerProvider, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &DockerProvider{
		client:        dockerClient,
		containerName: containerName,
	}, nil
}

// SetDesiredState starts or stops the worker container. Both operations
// are idempotent at the daemon: starting a running container and stopping
// a stopped one are no-ops.
func (p *DockerProvider) SetDesiredState(ctx context.Context, state DesiredState) error {
	switch state {
	case Running:
		if err := p.client.ContainerStart(ctx, p.containerName, container.StartOptions{}); err != nil {
			return apperrors.Provider("docker.containerStart", 0, err.Error())
		}
		return nil
	case Stopped:
		if err := p.client.ContainerStop(ctx, p.containerName, container.StopOptions{}); err != nil {
			return apperrors.Provider("docker.containerStop", 0, err.Error())
		}
		return nil
	default:
		return apperrors.Internal("docker.setDesiredState", fmt.Errorf("unknown desired state %q", state))
	}
}

// Ready checks if the Docker daemon is reachable and responsive.
func (p *DockerProvider) Ready(ctx context.Context) error {
	_, err := p.client.Ping(ctx)
	return err
}

// Close releases the Docker client.
func (p *DockerProvider) Close() error {
	return p.client.Close()
}

// Verify DockerProvider implements Provider
var _ Provider = (*DockerProvider)(nil)
