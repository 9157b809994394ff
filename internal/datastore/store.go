// store.go: reconciler-facing writes and lookups
package datastore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/attendsync/attendance-monitor/internal/errors"
	"github.com/attendsync/attendance-monitor/internal/logger"
)

// FindByKey looks up the record for one (punch date, employee) pair.
func (ds *DataStore) FindByKey(ctx context.Context, punchDate time.Time, employeeID string) (*AttendanceRecord, error) {
	db, err := ds.handle(ctx)
	if err != nil {
		return nil, err
	}

	var rec AttendanceRecord
	err = db.Where("punch_date = ? AND employee_id = ?", DateOnly(punchDate), employeeID).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, dbError(err, "find_by_key",
			"punch_date", punchDate.Format(time.DateOnly),
			"employee_id", employeeID)
	}
	return &rec, nil
}

// Insert creates a new attendance record.
func (ds *DataStore) Insert(ctx context.Context, rec *AttendanceRecord) error {
	db, err := ds.handle(ctx)
	if err != nil {
		return err
	}

	rec.PunchDate = DateOnly(rec.PunchDate)
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = time.Now().UTC()
	}

	if err := db.Create(rec).Error; err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s/%s", ErrDuplicateKey, rec.PunchDate.Format(time.DateOnly), rec.EmployeeID)
		}
		return dbError(err, "insert_attendance",
			"punch_date", rec.PunchDate.Format(time.DateOnly),
			"employee_id", rec.EmployeeID)
	}
	return nil
}

// Update rewrites every mutable field of an existing record identified by rec.ID.
func (ds *DataStore) Update(ctx context.Context, rec *AttendanceRecord) error {
	if rec.ID == 0 {
		return errors.Newf("update requires a persisted record").
			Component("datastore").
			Category(errors.CategoryValidation).
			Context("employee_id", rec.EmployeeID).
			Build()
	}
	db, err := ds.handle(ctx)
	if err != nil {
		return err
	}

	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = time.Now().UTC()
	}

	result := db.Model(&AttendanceRecord{}).Where("id = ?", rec.ID).Updates(map[string]any{
		"employee_name":  rec.EmployeeName,
		"shift_in":       rec.ShiftIn,
		"punch_in_time":  rec.PunchInTime,
		"punch_out_time": rec.PunchOutTime,
		"shift_out":      rec.ShiftOut,
		"late_by":        rec.LateBy,
		"hours_worked":   rec.HoursWorked,
		"status":         rec.Status,
		"file_hash":      rec.FileHash,
		"processed_at":   rec.ProcessedAt,
	})
	if result.Error != nil {
		return dbError(result.Error, "update_attendance",
			"id", rec.ID,
			"employee_id", rec.EmployeeID)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// AppendDuplicateLog writes one audit entry.
func (ds *DataStore) AppendDuplicateLog(ctx context.Context, entry *DuplicateLog) error {
	db, err := ds.handle(ctx)
	if err != nil {
		return err
	}
	entry.PunchDate = DateOnly(entry.PunchDate)
	if entry.LoggedAt.IsZero() {
		entry.LoggedAt = time.Now().UTC()
	}
	if err := db.Create(entry).Error; err != nil {
		return dbError(err, "append_duplicate_log", "employee_id", entry.EmployeeID)
	}
	return nil
}

// AppendEventLog writes one operational log entry.
func (ds *DataStore) AppendEventLog(ctx context.Context, entry *EventLog) error {
	db, err := ds.handle(ctx)
	if err != nil {
		return err
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if err := db.Create(entry).Error; err != nil {
		return dbError(err, "append_event_log", "event_type", string(entry.EventType))
	}
	return nil
}

// FileFullyReconciled reports whether a file with this content hash has been
// reconciled without row errors. Positive answers are cached.
func (ds *DataStore) FileFullyReconciled(ctx context.Context, contentHash string) (bool, error) {
	if _, found := ds.conn.fingerprints.Get(contentHash); found {
		return true, nil
	}
	db, err := ds.handle(ctx)
	if err != nil {
		return false, err
	}

	var count int64
	if err := db.Model(&ProcessedFile{}).Where("content_hash = ?", contentHash).Count(&count).Error; err != nil {
		return false, dbError(err, "file_fully_reconciled")
	}
	if count == 0 {
		return false, nil
	}
	ds.conn.fingerprints.SetDefault(contentHash, struct{}{})
	return true, nil
}

// MarkFileReconciled records a fully reconciled file. Recording the same hash
// twice is not an error.
func (ds *DataStore) MarkFileReconciled(ctx context.Context, pf *ProcessedFile) error {
	db, err := ds.handle(ctx)
	if err != nil {
		return err
	}
	if pf.ReconciledAt.IsZero() {
		pf.ReconciledAt = time.Now().UTC()
	}
	if err := db.Create(pf).Error; err != nil {
		if !isDuplicateKey(err) {
			return dbError(err, "mark_file_reconciled", "file", pf.FileName)
		}
		ds.conn.log.Debug("file fingerprint already recorded", logger.String("file", pf.FileName))
	}
	ds.conn.fingerprints.SetDefault(pf.ContentHash, struct{}{})
	return nil
}

// Transaction runs fn against a store bound to one database transaction.
// Nested calls reuse the outer transaction.
func (ds *DataStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if ds.tx != nil {
		return fn(ds)
	}
	db, err := ds.handle(ctx)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		return fn(&DataStore{conn: ds.conn, tx: tx})
	})
}
