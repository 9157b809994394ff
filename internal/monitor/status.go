package monitor

import (
	"maps"
	"sync"
	"time"

	"github.com/attendsync/attendance-monitor/internal/queue"
)

// Status is a snapshot of the monitor for the status server and the CLI.
type Status struct {
	Running             bool         `json:"running"`
	Folder              string       `json:"folder"`
	StartedAt           *time.Time   `json:"started_at,omitempty"`
	Queue               queue.Stats  `json:"queue"`
	LastBatch           *BatchReport `json:"last_batch,omitempty"`
	Batches             int          `json:"batches"`
	WatcherRestarts     int          `json:"watcher_restarts"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	LastError           string       `json:"last_error,omitempty"`
	LastErrorAt         *time.Time   `json:"last_error_at,omitempty"`
}

type statusTracker struct {
	mu                  sync.RWMutex
	startedAt           time.Time
	lastBatch           *BatchReport
	batches             int
	watcherRestarts     int
	consecutiveFailures int
	lastError           string
	lastErrorAt         time.Time
}

func (s *statusTracker) started(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startedAt = at
	s.consecutiveFailures = 0
}

func (s *statusTracker) stopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startedAt = time.Time{}
}

func (s *statusTracker) batchDone(r *BatchReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastBatch = r
	s.batches++
}

func (s *statusTracker) failure(err error, consecutive int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveFailures = consecutive
	s.lastError = err.Error()
	s.lastErrorAt = time.Now()
}

func (s *statusTracker) watcherRestarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watcherRestarts++
	s.consecutiveFailures = 0
}

// Status returns a consistent snapshot. It is safe to call from any goroutine.
func (m *Monitor) Status() Status {
	st := Status{
		Running: m.IsRunning(),
		Folder:  m.watch.Folder,
		Queue:   m.deps.Queue.Stats(),
	}

	s := &m.status
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.startedAt.IsZero() {
		t := s.startedAt
		st.StartedAt = &t
	}
	if s.lastBatch != nil {
		b := *s.lastBatch
		b.Outcomes = maps.Clone(s.lastBatch.Outcomes)
		st.LastBatch = &b
	}
	st.Batches = s.batches
	st.WatcherRestarts = s.watcherRestarts
	st.ConsecutiveFailures = s.consecutiveFailures
	st.LastError = s.lastError
	if !s.lastErrorAt.IsZero() {
		t := s.lastErrorAt
		st.LastErrorAt = &t
	}
	return st
}
