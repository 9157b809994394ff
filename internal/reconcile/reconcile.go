// Package reconcile merges ingested attendance rows into the attendance store.
//
// Every row is decided under its own transaction: a new (date, employee) key
// is inserted, an existing one is merged keeping the earliest punch-in and the
// latest punch-out. Every conflict decision is written to the duplicate log and
// every batch ends with a Summary event. A failing row is logged and skipped;
// it never aborts the batch.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/attendsync/attendance-monitor/internal/conf"
	"github.com/attendsync/attendance-monitor/internal/datastore"
	"github.com/attendsync/attendance-monitor/internal/errors"
	"github.com/attendsync/attendance-monitor/internal/ingest"
	"github.com/attendsync/attendance-monitor/internal/logger"
	"github.com/attendsync/attendance-monitor/internal/timeval"
)

// DefaultErrorMessageLimit bounds row error text stored in the event log.
const DefaultErrorMessageLimit = 200

// ReasonNoChange is the duplicate log reason when a merge changes nothing.
const ReasonNoChange = "Record exists, no change needed"

// Batch is one file's worth of ingested rows.
type Batch struct {
	FileName    string
	ContentHash string
	Rows        []ingest.Row
	Rejected    []ingest.Rejected
}

// BatchFromResult adapts an ingest result.
func BatchFromResult(res *ingest.Result) Batch {
	return Batch{
		FileName:    res.FileName,
		ContentHash: res.ContentHash,
		Rows:        res.Rows,
		Rejected:    res.Rejected,
	}
}

type outcome int

const (
	outcomeInserted outcome = iota
	outcomeUpdated
	outcomeDuplicate
)

// Reconciler applies the insert / merge / log-duplicate policy.
type Reconciler struct {
	store    datastore.Store
	log      logger.Logger
	errLimit int
	now      func() time.Time
}

// New creates a reconciler writing to store.
func New(store datastore.Store, settings conf.ReconcileSettings, log logger.Logger) *Reconciler {
	if log == nil {
		log = logger.Global().Module("reconcile")
	}
	limit := settings.ErrorMessageLimit
	if limit <= 0 {
		limit = DefaultErrorMessageLimit
	}
	return &Reconciler{
		store:    store,
		log:      log,
		errLimit: limit,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile writes batch into the store and returns its summary.
//
// A batch whose content hash was already fully reconciled is skipped without
// touching attendance records. Row failures are counted in Summary.Errors. An
// error is returned only when the store is unreachable (the pass stopped early
// and the file should be retried) or ctx ends.
func (r *Reconciler) Reconcile(ctx context.Context, batch Batch) (Summary, error) {
	start := time.Now()
	summary := Summary{FileName: batch.FileName, ContentHash: batch.ContentHash}
	log := r.log.With(logger.String("file", batch.FileName))

	if batch.ContentHash != "" {
		done, err := r.store.FileFullyReconciled(ctx, batch.ContentHash)
		if err != nil {
			return summary, r.storeError(err, batch, "check_fingerprint")
		}
		if done {
			summary.Skipped = true
			summary.Duration = time.Since(start)
			r.appendEvent(ctx, log, datastore.EventSkipped, batch.FileName,
				fmt.Sprintf("File %s already reconciled (hash %s), skipped", batch.FileName, shortHash(batch.ContentHash)))
			log.Debug("file skipped, content already reconciled", logger.String("hash", shortHash(batch.ContentHash)))
			return summary, nil
		}
	}

	r.appendEvent(ctx, log, datastore.EventProcessing, batch.FileName,
		fmt.Sprintf("Processing %d records from %s", len(batch.Rows), batch.FileName))

	for _, rej := range batch.Rejected {
		summary.Rejected++
		r.appendEvent(ctx, log, datastore.EventWarning, batch.FileName,
			fmt.Sprintf("Row %d skipped: %s", rej.Line, rej.Reason))
		log.Warn("row rejected",
			logger.Int("line", rej.Line),
			logger.String("employee_id", rej.EmployeeID),
			logger.String("reason", rej.Reason))
	}

	for i := range batch.Rows {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		row := &batch.Rows[i]
		summary.Total++

		var result outcome
		err := r.store.Transaction(ctx, func(tx datastore.Store) error {
			var rowErr error
			result, rowErr = r.reconcileRow(ctx, tx, batch, row)
			return rowErr
		})
		if err != nil {
			if datastore.IsTransient(err) || ctx.Err() != nil {
				summary.Errors++
				summary.Duration = time.Since(start)
				return summary, r.storeError(err, batch, "reconcile_row")
			}
			summary.Errors++
			r.appendEvent(ctx, log, datastore.EventError, batch.FileName,
				Truncate(fmt.Sprintf("Row %d (%s, %s): %v", row.Line, row.DateString(), row.EmployeeID, err), r.errLimit))
			log.Error("row failed",
				logger.Int("line", row.Line),
				logger.String("employee_id", row.EmployeeID),
				logger.Error(err))
			continue
		}

		switch result {
		case outcomeInserted:
			summary.Inserted++
		case outcomeUpdated:
			summary.Updated++
		case outcomeDuplicate:
			summary.DuplicatesLogged++
		}
	}

	summary.Duration = time.Since(start)
	r.appendEvent(ctx, log, datastore.EventSummary, batch.FileName, summary.String())

	if summary.Errors == 0 && batch.ContentHash != "" {
		if err := r.store.MarkFileReconciled(ctx, &datastore.ProcessedFile{
			ContentHash: batch.ContentHash,
			FileName:    batch.FileName,
			Rows:        summary.Total,
			Inserted:    summary.Inserted,
			Updated:     summary.Updated,
			Duplicates:  summary.DuplicatesLogged,
			Errors:      summary.Errors,
		}); err != nil {
			return summary, r.storeError(err, batch, "mark_file_reconciled")
		}
		r.appendEvent(ctx, log, datastore.EventSuccess, batch.FileName,
			fmt.Sprintf("File %s reconciled successfully", batch.FileName))
	}

	log.Debug("file reconciled",
		logger.Int("total", summary.Total),
		logger.Int("inserted", summary.Inserted),
		logger.Int("updated", summary.Updated),
		logger.Int("duplicates", summary.DuplicatesLogged),
		logger.Int("rejected", summary.Rejected),
		logger.Int("errors", summary.Errors),
		logger.Duration("elapsed", summary.Duration))

	return summary, nil
}

// reconcileRow decides one row inside tx.
func (r *Reconciler) reconcileRow(ctx context.Context, tx datastore.Store, batch Batch, row *ingest.Row) (outcome, error) {
	existing, err := tx.FindByKey(ctx, row.PunchDate, row.EmployeeID)
	switch {
	case errors.Is(err, datastore.ErrRecordNotFound):
		rec := r.newRecord(batch, row)
		err = tx.Insert(ctx, rec)
		if err == nil {
			return outcomeInserted, nil
		}
		if !errors.Is(err, datastore.ErrDuplicateKey) {
			return 0, err
		}
		// Another writer created the key since the lookup; merge into it instead.
		existing, err = tx.FindByKey(ctx, row.PunchDate, row.EmployeeID)
		if err != nil {
			return 0, err
		}
	case err != nil:
		return 0, err
	}
	return r.merge(ctx, tx, batch, row, existing)
}

func (r *Reconciler) newRecord(batch Batch, row *ingest.Row) *datastore.AttendanceRecord {
	return &datastore.AttendanceRecord{
		PunchDate:    row.PunchDate,
		EmployeeID:   row.EmployeeID,
		EmployeeName: row.EmployeeName,
		ShiftIn:      row.ShiftIn,
		PunchInTime:  row.PunchIn,
		PunchOutTime: row.PunchOut,
		ShiftOut:     row.ShiftOut,
		LateBy:       row.LateBy,
		HoursWorked:  row.HoursWorked,
		Status:       row.Status,
		FileHash:     batch.ContentHash,
		ProcessedAt:  r.now(),
	}
}

// merge applies the earliest-in / latest-out rule to an existing record.
func (r *Reconciler) merge(ctx context.Context, tx datastore.Store, batch Batch, row *ingest.Row, existing *datastore.AttendanceRecord) (outcome, error) {
	finalIn := timeval.EarliestNonNull(existing.PunchInTime, row.PunchIn)
	finalOut := timeval.LatestNonNull(existing.PunchOutTime, row.PunchOut)

	entry := &datastore.DuplicateLog{
		PunchDate:    row.PunchDate,
		EmployeeID:   row.EmployeeID,
		EmployeeName: row.EmployeeName,
		FileName:     batch.FileName,
		LoggedAt:     r.now(),
	}

	if finalIn == existing.PunchInTime && finalOut == existing.PunchOutTime {
		entry.Reason = ReasonNoChange
		if err := tx.AppendDuplicateLog(ctx, entry); err != nil {
			return 0, err
		}
		return outcomeDuplicate, nil
	}

	entry.Reason = changeReason(row, existing, finalIn, finalOut)

	updated := *existing
	updated.EmployeeName = row.EmployeeName
	updated.ShiftIn = row.ShiftIn
	updated.ShiftOut = row.ShiftOut
	updated.PunchInTime = finalIn
	updated.PunchOutTime = finalOut
	updated.HoursWorked = row.HoursWorked
	updated.Status = row.Status
	updated.LateBy = row.LateBy
	updated.FileHash = batch.ContentHash
	updated.ProcessedAt = r.now()

	if err := tx.Update(ctx, &updated); err != nil {
		return 0, err
	}
	if err := tx.AppendDuplicateLog(ctx, entry); err != nil {
		return 0, err
	}
	return outcomeUpdated, nil
}

func changeReason(row *ingest.Row, existing *datastore.AttendanceRecord, finalIn, finalOut timeval.Optional) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Record updated for date %s and employee %s.", row.DateString(), row.EmployeeID)
	if finalIn != existing.PunchInTime {
		fmt.Fprintf(&b, " Punch-in updated from %s to %s.", existing.PunchInTime, finalIn)
	}
	if finalOut != existing.PunchOutTime {
		fmt.Fprintf(&b, " Punch-out updated from %s to %s.", existing.PunchOutTime, finalOut)
	}
	return b.String()
}

// appendEvent writes an event log entry. Failures are logged only; the event
// log is for observability and never decides an outcome.
func (r *Reconciler) appendEvent(ctx context.Context, log logger.Logger, eventType datastore.EventType, fileName, description string) {
	err := r.store.AppendEventLog(ctx, &datastore.EventLog{
		EventType:   eventType,
		Description: description,
		FileName:    fileName,
		Timestamp:   r.now(),
	})
	if err != nil {
		log.Warn("failed to write event log entry",
			logger.String("event_type", string(eventType)),
			logger.Error(err))
	}
}

func (r *Reconciler) storeError(err error, batch Batch, operation string) error {
	return errors.New(err).
		Component("reconcile").
		Category(errors.CategoryDatabase).
		Context("file", batch.FileName).
		Context("operation", operation).
		Build()
}

// Truncate shortens s to at most limit characters.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
