// interfaces.go: persistence boundary used by the reconciler and the query surfaces
package datastore

import (
	"context"
	"time"
)

// Store is what the reconciler needs. Every write is atomic at single-row
// granularity; Transaction groups the writes for one attendance row.
type Store interface {
	// FindByKey returns ErrRecordNotFound when no record exists for the key.
	FindByKey(ctx context.Context, punchDate time.Time, employeeID string) (*AttendanceRecord, error)
	// Insert returns ErrDuplicateKey when the (date, employee) key already exists.
	Insert(ctx context.Context, rec *AttendanceRecord) error
	Update(ctx context.Context, rec *AttendanceRecord) error
	AppendDuplicateLog(ctx context.Context, entry *DuplicateLog) error
	AppendEventLog(ctx context.Context, entry *EventLog) error
	FileFullyReconciled(ctx context.Context, contentHash string) (bool, error)
	MarkFileReconciled(ctx context.Context, pf *ProcessedFile) error
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// Querier serves read-only lookups for the CLI and the status server.
type Querier interface {
	RecordsByDate(ctx context.Context, punchDate time.Time) ([]AttendanceRecord, error)
	// RecordsByEmployee treats a zero from or to as an open bound.
	RecordsByEmployee(ctx context.Context, employeeID string, from, to time.Time) ([]AttendanceRecord, error)
	EmployeeSuggestions(ctx context.Context, query string, limit int) ([]Employee, error)
	RecentEvents(ctx context.Context, limit int, eventType EventType) ([]EventLog, error)
	RecentDuplicates(ctx context.Context, limit int) ([]DuplicateLog, error)
	Stats(ctx context.Context) (Stats, error)
}

// Interface is the full attendance store including connection lifecycle.
type Interface interface {
	Store
	Querier
	Ping(ctx context.Context) error
	// EnsureConnected pings and reconnects with bounded attempts on failure.
	EnsureConnected(ctx context.Context) error
	Close() error
}
