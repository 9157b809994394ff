// Package processor runs one spreadsheet through the pipeline: readiness gate,
// ingestion, reconciliation, then notifications and metrics. It decides how
// the queue should settle the file but never touches the queue itself.
package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/attendsync/attendance-monitor/internal/conf"
	"github.com/attendsync/attendance-monitor/internal/datastore"
	"github.com/attendsync/attendance-monitor/internal/errors"
	"github.com/attendsync/attendance-monitor/internal/ingest"
	"github.com/attendsync/attendance-monitor/internal/logger"
	"github.com/attendsync/attendance-monitor/internal/notification"
	"github.com/attendsync/attendance-monitor/internal/observability/metrics"
	"github.com/attendsync/attendance-monitor/internal/readiness"
	"github.com/attendsync/attendance-monitor/internal/reconcile"
)

// Outcome is the final disposition of one file.
type Outcome int

const (
	// Processed: rows were reconciled (possibly with row errors).
	Processed Outcome = iota
	// Skipped: identical content was already fully reconciled.
	Skipped
	// Vanished: the file disappeared before it could be read.
	Vanished
	// Rejected: the file is unreadable or violates the column contract.
	Rejected
	// Retry: the store was unavailable or the pass was cancelled.
	Retry
)

func (o Outcome) String() string {
	switch o {
	case Processed:
		return metrics.FileProcessed
	case Skipped:
		return metrics.FileSkipped
	case Vanished:
		return metrics.FileVanished
	case Rejected:
		return metrics.FileRejected
	case Retry:
		return metrics.FileFailed
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result describes what happened to one file.
type Result struct {
	Path      string
	Outcome   Outcome
	Readiness readiness.Outcome
	Summary   reconcile.Summary
	Err       error
	Duration  time.Duration
}

// Completed reports whether the pipeline ran the file to the end.
func (r Result) Completed() bool {
	return r.Outcome == Processed || r.Outcome == Skipped
}

// Settled reports whether the file should be remembered as processed so that
// later events for it are ignored. Rejected and vanished files are not, so a
// corrected re-save is picked up. Neither is a file with row errors; its
// content is not fingerprinted and a re-delivery reconciles it again.
func (r Result) Settled() bool {
	switch r.Outcome {
	case Skipped:
		return true
	case Processed:
		return r.Summary.Errors == 0
	default:
		return false
	}
}

// Recorder receives per-file pipeline metrics.
type Recorder interface {
	RecordFile(outcome string, d time.Duration)
	RecordRows(inserted, updated, duplicates, rejected, errs int)
}

type noopRecorder struct{}

func (noopRecorder) RecordFile(string, time.Duration)   {}
func (noopRecorder) RecordRows(int, int, int, int, int) {}

// Deps are the collaborators of a Processor. Notifier and Metrics are optional.
type Deps struct {
	Gate       *readiness.Gate
	Ingestor   *ingest.Ingestor
	Reconciler *reconcile.Reconciler
	Events     datastore.Store // receives file-level Error and Warning events
	Notifier   *notification.Service
	Metrics    Recorder
	Log        logger.Logger
}

// Processor handles one file at a time. It is safe for concurrent use when
// its collaborators are.
type Processor struct {
	deps         Deps
	readyTimeout time.Duration
	errLimit     int
	log          logger.Logger
}

// New creates a Processor.
func New(deps Deps, readinessSettings conf.ReadinessSettings, reconcileSettings conf.ReconcileSettings) *Processor {
	if deps.Metrics == nil {
		deps.Metrics = noopRecorder{}
	}
	log := deps.Log
	if log == nil {
		log = logger.Global().Module("processor")
	}
	limit := reconcileSettings.ErrorMessageLimit
	if limit <= 0 {
		limit = reconcile.DefaultErrorMessageLimit
	}
	return &Processor{
		deps:         deps,
		readyTimeout: readinessSettings.Timeout,
		errLimit:     limit,
		log:          log,
	}
}

// Process runs path through the pipeline. It never panics on bad input and
// always logs exactly one outcome line.
func (p *Processor) Process(ctx context.Context, path string) Result {
	start := time.Now()
	res := Result{Path: path}
	name := filepath.Base(path)
	log := p.log.With(logger.String("file", name))

	defer func() {
		res.Duration = time.Since(start)
		p.deps.Metrics.RecordFile(res.Outcome.String(), res.Duration)
	}()

	ready, err := p.deps.Gate.AwaitReady(ctx, path, p.readyTimeout)
	res.Readiness = ready
	if err != nil {
		res.Outcome, res.Err = Retry, err
		log.Warn("readiness wait interrupted, file will be retried", logger.Error(err))
		return res
	}
	switch ready {
	case readiness.Vanished:
		p.vanished(ctx, log, &res, name)
		return res
	case readiness.TimedOutProceedAnyway:
		log.Warn("file did not stabilize in time, processing anyway",
			logger.Duration("timeout", p.readyTimeout))
	}

	loaded, err := p.deps.Ingestor.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			p.vanished(ctx, log, &res, name)
			return res
		}
		p.rejected(ctx, log, &res, name, err)
		return res
	}

	summary, err := p.deps.Reconciler.Reconcile(ctx, reconcile.BatchFromResult(loaded))
	res.Summary = summary
	if err != nil {
		res.Outcome, res.Err = Retry, err
		log.Error("reconciliation stopped early, file will be retried",
			logger.Int("rows_done", summary.Total),
			logger.Error(err))
		return res
	}

	if summary.Skipped {
		res.Outcome = Skipped
		log.Info("file skipped, already reconciled")
		p.deps.Notifier.FileSkipped(path)
		return res
	}

	res.Outcome = Processed
	p.deps.Metrics.RecordRows(summary.Inserted, summary.Updated, summary.DuplicatesLogged, summary.Rejected, summary.Errors)
	fields := []logger.Field{
		logger.Int("rows", summary.Total),
		logger.Int("inserted", summary.Inserted),
		logger.Int("updated", summary.Updated),
		logger.Int("duplicates", summary.DuplicatesLogged),
		logger.Int("rejected", summary.Rejected),
		logger.Int("errors", summary.Errors),
		logger.Duration("elapsed", time.Since(start)),
	}
	if summary.Errors > 0 {
		log.Warn("file processed with row errors", fields...)
	} else {
		log.Info("file processed", fields...)
	}
	p.deps.Notifier.FileProcessed(path, CountsOf(summary), summary.String())
	return res
}

func (p *Processor) vanished(ctx context.Context, log logger.Logger, res *Result, name string) {
	res.Outcome = Vanished
	log.Info("file vanished before processing, skipped")
	p.appendEvent(ctx, log, datastore.EventWarning, name,
		fmt.Sprintf("File %s disappeared before it could be processed", name))
	p.deps.Notifier.FileVanished(res.Path)
}

// rejected records a file-fatal error: one Error event, no attendance writes.
func (p *Processor) rejected(ctx context.Context, log logger.Logger, res *Result, name string, err error) {
	res.Outcome, res.Err = Rejected, err
	log.Error("file rejected", logger.Error(err))
	p.appendEvent(ctx, log, datastore.EventError, name,
		reconcile.Truncate(fmt.Sprintf("Error processing file %s: %v", name, err), p.errLimit))
	p.deps.Notifier.FileError(res.Path, err)
}

func (p *Processor) appendEvent(ctx context.Context, log logger.Logger, eventType datastore.EventType, name, description string) {
	if p.deps.Events == nil {
		return
	}
	err := p.deps.Events.AppendEventLog(ctx, &datastore.EventLog{
		EventType:   eventType,
		Description: description,
		FileName:    name,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		log.Warn("failed to write event log entry",
			logger.String("event_type", string(eventType)),
			logger.Error(err))
	}
}

// CountsOf converts a reconcile summary into notification counts.
func CountsOf(s reconcile.Summary) notification.Counts {
	return notification.Counts{
		Rows:       s.Total,
		Inserted:   s.Inserted,
		Updated:    s.Updated,
		Duplicates: s.DuplicatesLogged,
		Rejected:   s.Rejected,
		Errors:     s.Errors,
	}
}
