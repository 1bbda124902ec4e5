package queue

import (
	"sync"
	"sync/atomic"
)

// Manager owns the job queue and the Idle/Processing guard flag. It is
// constructed once at process start and shared by reference between the
// admission API and the dispatch loop.
//
// The guard is an atomic compare-and-swap: "check idle, then become
// processing" is a single indivisible operation, so two triggers arriving
// back-to-back can never both start a run.
type Manager struct {
	mu   sync.Mutex
	jobs []*Job

	processing atomic.Bool
}

// NewManager creates an empty queue manager.
func NewManager() *Manager {
	return &Manager{}
}

// Enqueue appends a job to the tail of the queue and returns the new
// queue length.
func (m *Manager) Enqueue(job *Job) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	return len(m.jobs)
}

// Dequeue removes and returns the head of the queue. The job leaves the
// queue at this moment, not when execution finishes; a failed job is
// never re-enqueued.
func (m *Manager) Dequeue() (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.jobs) == 0 {
		return nil, false
	}
	job := m.jobs[0]
	m.jobs = m.jobs[1:]
	return job, true
}

// Len returns the current queue length.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// Processing reports whether a dispatch run is currently active.
func (m *Manager) Processing() bool {
	return m.processing.Load()
}

// BeginRun attempts the Idle -> Processing transition. It returns false
// if a run is already active.
func (m *Manager) BeginRun() bool {
	return m.processing.CompareAndSwap(false, true)
}

// EndRun returns the guard to Idle. It must run on every exit path of a
// dispatch run; a stuck Processing flag would deadlock all future
// triggers.
func (m *Manager) EndRun() {
	m.processing.Store(false)
}
