// Package queue holds files waiting to be processed and remembers the ones
// already processed.
//
// Files are identified by base name: the watched folder is not recursive, so
// names are unique within it. Enqueue ignores a name that is pending, in
// flight or in the processed history. Drain hands out a snapshot of the
// pending files; files enqueued while that snapshot is being processed wait
// for the next Drain.
package queue

import (
	"path/filepath"
	"sync"

	"github.com/attendsync/attendance-monitor/internal/conf"
)

// Defaults used when settings leave a value unset.
const (
	DefaultHistoryCapacity = 1000
	DefaultEvictFraction   = 0.2
)

// Stats is a point-in-time view of the queue.
type Stats struct {
	Pending  int `json:"pending"`
	InFlight int `json:"in_flight"`
	History  int `json:"history"`
	Evicted  int `json:"evicted"`
}

// Queue is an ordered, deduplicating work queue of file paths. It is safe for
// concurrent use.
type Queue struct {
	mu       sync.Mutex
	pending  []string
	queued   map[string]struct{} // names pending
	inFlight map[string]struct{} // names handed out by Drain and not yet completed
	history  *history
}

// New creates an empty queue.
func New(settings conf.QueueSettings) *Queue {
	capacity := settings.HistoryCapacity
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	fraction := settings.EvictFraction
	if fraction <= 0 || fraction > 1 {
		fraction = DefaultEvictFraction
	}
	return &Queue{
		queued:   make(map[string]struct{}),
		inFlight: make(map[string]struct{}),
		history:  newHistory(capacity, fraction),
	}
}

// Key returns the identity of path within the queue.
func Key(path string) string {
	return filepath.Base(path)
}

// Enqueue adds path unless its name is already pending, in flight or processed.
// It reports whether the path was added.
func (q *Queue) Enqueue(path string) bool {
	name := Key(path)

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.queued[name]; ok {
		return false
	}
	if _, ok := q.inFlight[name]; ok {
		return false
	}
	if q.history.contains(name) {
		return false
	}
	q.queued[name] = struct{}{}
	q.pending = append(q.pending, path)
	return true
}

// Drain removes and returns every pending path in arrival order. The names
// stay in flight until Complete is called for them.
func (q *Queue) Drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil
	}
	batch := q.pending
	q.pending = nil
	for _, path := range batch {
		name := Key(path)
		delete(q.queued, name)
		q.inFlight[name] = struct{}{}
	}
	return batch
}

// Complete releases an in-flight path. When processed is true its name joins
// the processed history and later events for it are ignored.
func (q *Queue) Complete(path string, processed bool) {
	name := Key(path)

	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.inFlight, name)
	if processed {
		q.history.add(name)
	}
}

// Retry releases an in-flight path and queues it again for the next batch.
func (q *Queue) Retry(path string) bool {
	q.Complete(path, false)
	return q.Enqueue(path)
}

// Forget removes name from the processed history so the file can be queued again.
func (q *Queue) Forget(path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.history.remove(Key(path))
}

// IsProcessed reports whether the name of path is in the processed history.
func (q *Queue) IsProcessed(path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.history.contains(Key(path))
}

// Len returns the number of pending paths.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// HistoryLen returns the number of remembered processed names.
func (q *Queue) HistoryLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.history.len()
}

// TrimHistory keeps only the keep most recent processed names and returns how
// many were dropped.
func (q *Queue) TrimHistory(keep int) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.history.trim(keep)
}

// Stats returns a snapshot of the queue sizes.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:  len(q.pending),
		InFlight: len(q.inFlight),
		History:  q.history.len(),
		Evicted:  q.history.evicted,
	}
}
