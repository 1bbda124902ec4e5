// Package queue provides the in-memory FIFO job queue and the run-state
// guard that serializes dispatch runs.
package queue

// KindLLM is the only job kind the queue accepts. The queue is
// intentionally single-purpose; admission rejects everything else.
const KindLLM = "llm"

// Job is one unit of requested work. A Job is immutable once admitted:
// it is only read and then removed from the queue, never mutated or
// re-enqueued.
type Job struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	Prompt      string            `json:"prompt"`
	Model       string            `json:"model"`
	CallbackURL string            `json:"callbackUrl"`
	Headers     map[string]string `json:"headers,omitempty"`
}
