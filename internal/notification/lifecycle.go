package notification

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/attendsync/attendance-monitor/internal/privacy"
)

// Lifecycle event names stored under MetadataKeyEvent.
const (
	EventAppStarted        = "app.started"
	EventAppExiting        = "app.exiting"
	EventStoreConnected    = "store.connected"
	EventStoreFailed       = "store.failed"
	EventMonitoringStarted = "monitoring.started"
	EventMonitoringStopped = "monitoring.stopped"
	EventWatcherRestarted  = "monitoring.watcher_restarted"
	EventBatchStarted      = "batch.started"
	EventBatchCompleted    = "batch.completed"
	EventFileProcessed     = "file.processed"
	EventFileSkipped       = "file.skipped"
	EventFileError         = "file.error"
	EventFileVanished      = "file.vanished"
)

// Counts are the reconciliation totals reported for a file or a batch.
type Counts struct {
	Rows       int `json:"rows"`
	Inserted   int `json:"inserted"`
	Updated    int `json:"updated"`
	Duplicates int `json:"duplicates"`
	Rejected   int `json:"rejected"`
	Errors     int `json:"errors"`
}

// Add accumulates c2 into c.
func (c *Counts) Add(c2 Counts) {
	c.Rows += c2.Rows
	c.Inserted += c2.Inserted
	c.Updated += c2.Updated
	c.Duplicates += c2.Duplicates
	c.Rejected += c2.Rejected
	c.Errors += c2.Errors
}

func (c Counts) attach(n *Notification) *Notification {
	return n.WithMetadata("rows", c.Rows).
		WithMetadata("inserted", c.Inserted).
		WithMetadata("updated", c.Updated).
		WithMetadata("duplicates", c.Duplicates).
		WithMetadata("rejected", c.Rejected).
		WithMetadata("errors", c.Errors)
}

func event(t Type, p Priority, component, name, title, message string) *Notification {
	return NewNotification(t, p, title, message).
		WithComponent(component).
		WithMetadata(MetadataKeyEvent, name)
}

func (s *Service) AppStarted(name, version string) {
	s.Notify(event(TypeSystem, PriorityLow, "app", EventAppStarted,
		"Application Started", fmt.Sprintf("%s %s started", name, version)))
}

func (s *Service) AppExiting(reason string) {
	s.Notify(event(TypeSystem, PriorityLow, "app", EventAppExiting,
		"Application Exiting", reason))
}

func (s *Service) StoreConnected(storeType string) {
	s.Notify(event(TypeSystem, PriorityLow, "datastore", EventStoreConnected,
		"Database Connected", fmt.Sprintf("Connected to %s attendance store", storeType)))
}

// StoreFailed reports that reconnecting to the store was given up.
func (s *Service) StoreFailed(err error) {
	s.Notify(event(TypeError, PriorityCritical, "datastore", EventStoreFailed,
		"Database Connection Failed", privacy.ScrubMessage(err.Error())))
}

func (s *Service) MonitoringStarted(folder string) {
	s.Notify(event(TypeSystem, PriorityMedium, "monitor", EventMonitoringStarted,
		"Monitoring Started", "Watching folder: "+folder).
		WithMetadata("folder", folder))
}

func (s *Service) MonitoringStopped(folder string) {
	s.Notify(event(TypeSystem, PriorityMedium, "monitor", EventMonitoringStopped,
		"Service Stopped", "File monitoring service has been stopped.").
		WithMetadata("folder", folder))
}

func (s *Service) WatcherRestarted(folder string, failures int) {
	s.Notify(event(TypeWarning, PriorityHigh, "monitor", EventWatcherRestarted,
		"Watcher Restarted",
		fmt.Sprintf("Folder watcher restarted after %d consecutive failures", failures)).
		WithMetadata("folder", folder).
		WithMetadata("failures", failures))
}

func (s *Service) BatchStarted(files int) {
	s.Notify(event(TypeInfo, PriorityLow, "monitor", EventBatchStarted,
		"Batch Started", fmt.Sprintf("Processing %d file(s)", files)).
		WithMetadata("files", files))
}

func (s *Service) BatchCompleted(files int, totals Counts, elapsed time.Duration) {
	msg := fmt.Sprintf("%d file(s): %d rows, %d inserted, %d updated, %d duplicates, %d errors",
		files, totals.Rows, totals.Inserted, totals.Updated, totals.Duplicates, totals.Errors)
	p := PriorityLow
	if totals.Errors > 0 {
		p = PriorityHigh
	}
	n := event(TypeInfo, p, "monitor", EventBatchCompleted, "Batch Completed", msg).
		WithMetadata("files", files).
		WithMetadata("duration_ms", elapsed.Milliseconds())
	s.Notify(totals.attach(n))
}

// FileProcessed reports a reconciled file; summary is the reconciler's human-readable line.
func (s *Service) FileProcessed(path string, counts Counts, summary string) {
	p := PriorityMedium
	if counts.Errors > 0 {
		p = PriorityHigh
	}
	n := event(TypeInfo, p, "processor", EventFileProcessed,
		"File Processed", fmt.Sprintf("Successfully processed: %s. %s", filepath.Base(path), summary)).
		WithMetadata("file", filepath.Base(path))
	s.Notify(counts.attach(n))
}

func (s *Service) FileSkipped(path string) {
	s.Notify(event(TypeInfo, PriorityLow, "processor", EventFileSkipped,
		"File Skipped", fmt.Sprintf("File %s was already processed.", filepath.Base(path))).
		WithMetadata("file", filepath.Base(path)))
}

func (s *Service) FileError(path string, err error) {
	s.Notify(event(TypeError, PriorityHigh, "processor", EventFileError,
		"Processing Error",
		fmt.Sprintf("Error processing %s: %s", filepath.Base(path), privacy.ScrubMessage(err.Error()))).
		WithMetadata("file", filepath.Base(path)))
}

func (s *Service) FileVanished(path string) {
	s.Notify(event(TypeWarning, PriorityLow, "processor", EventFileVanished,
		"File Vanished", fmt.Sprintf("File %s disappeared before it could be processed.", filepath.Base(path))).
		WithMetadata("file", filepath.Base(path)))
}
