// Package metrics provides Prometheus collectors for the attendance pipeline.
package metrics

// File outcome labels.
const (
	FileProcessed = "processed"
	FileSkipped   = "skipped"
	FileVanished  = "vanished"
	FileRejected  = "rejected" // file-fatal ingestion error
	FileFailed    = "failed"   // transient failure, retried later
)

// Row outcome labels.
const (
	RowInserted  = "inserted"
	RowUpdated   = "updated"
	RowDuplicate = "duplicate"
	RowRejected  = "rejected"
	RowError     = "error"
)

// Notification delivery status labels.
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusRateLimited = "rate_limited"
)
