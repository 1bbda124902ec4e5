// Package provider defines the instance provider boundary: the three
// lifecycle primitives the service needs from whoever rents us the GPU.
package provider

import "context"

// DesiredState is the state asserted against the provider. The provider
// API is declarative: asserting Running against an already-running
// instance (or Stopped against a stopped one) is a no-op, not an error.
type DesiredState string

const (
	Running DesiredState = "running"
	Stopped DesiredState = "stopped"
)

// Provider drives the lifecycle of the rented worker instance.
//
// Implementations never expose the provider's own state vocabulary;
// callers only assert desired state and probe the worker empirically.
// This tolerates state drift, e.g. an instance restarted out-of-band.
type Provider interface {
	// SetDesiredState asserts the instance's desired state. Idempotent.
	// Returns a provider error carrying the remote status code and
	// message on any non-success response.
	SetDesiredState(ctx context.Context, state DesiredState) error

	// Ready checks that the provider control plane is reachable.
	// Used by the readiness probe, never by the dispatch loop.
	Ready(ctx context.Context) error

	// Close releases resources held by the provider client.
	Close() error
}
