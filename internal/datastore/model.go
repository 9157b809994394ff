// model.go: persisted attendance entities
package datastore

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/attendsync/attendance-monitor/internal/timeval"
)

// AttendanceRecord is the single row kept per (punch date, employee).
type AttendanceRecord struct {
	ID           uint                `gorm:"primaryKey" json:"id"`
	PunchDate    time.Time           `gorm:"type:date;not null;uniqueIndex:idx_attendance_date_employee,priority:1" json:"punch_date"`
	EmployeeID   string              `gorm:"type:varchar(50);not null;uniqueIndex:idx_attendance_date_employee,priority:2;index:idx_attendance_employee" json:"employee_id"`
	EmployeeName string              `gorm:"type:varchar(100)" json:"employee_name"`
	ShiftIn      timeval.Optional    `json:"shift_in"`
	PunchInTime  timeval.Optional    `json:"punch_in_time"`
	PunchOutTime timeval.Optional    `json:"punch_out_time"`
	ShiftOut     timeval.Optional    `json:"shift_out"`
	LateBy       timeval.Optional    `json:"late_by"`
	HoursWorked  decimal.NullDecimal `gorm:"type:decimal(6,2)" json:"hours_worked"`
	Status       string              `gorm:"type:varchar(50)" json:"status"`
	FileHash     string              `gorm:"type:varchar(64)" json:"file_hash"`
	ProcessedAt  time.Time           `json:"processed_at"`
}

// TableName keeps the table name used by existing installations.
func (AttendanceRecord) TableName() string { return "biometric_attendance" }

// DuplicateLog is an append-only audit row for every conflict decision.
type DuplicateLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	PunchDate    time.Time `gorm:"type:date;index:idx_duplicates_date" json:"punch_date"`
	EmployeeID   string    `gorm:"type:varchar(50)" json:"employee_id"`
	EmployeeName string    `gorm:"type:varchar(100)" json:"employee_name"`
	FileName     string    `gorm:"type:varchar(255)" json:"file_name"`
	Reason       string    `gorm:"type:text" json:"reason"`
	LoggedAt     time.Time `gorm:"index:idx_duplicates_logged_at" json:"logged_at"`
}

func (DuplicateLog) TableName() string { return "duplicate_records_log" }

// EventType classifies operational log entries.
type EventType string

const (
	EventProcessing EventType = "Processing"
	EventSuccess    EventType = "Success"
	EventError      EventType = "Error"
	EventWarning    EventType = "Warning"
	EventSkipped    EventType = "Skipped"
	EventSummary    EventType = "Summary"
)

// EventLog is an append-only operational log entry.
type EventLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	EventType   EventType `gorm:"type:varchar(50);index:idx_logs_type" json:"event_type"`
	Description string    `gorm:"column:event_description;type:text" json:"description"`
	FileName    string    `gorm:"type:varchar(255)" json:"file_name"`
	Timestamp   time.Time `gorm:"index:idx_logs_timestamp" json:"timestamp"`
}

func (EventLog) TableName() string { return "logs" }

// ProcessedFile records a file whose every row reconciled without error.
type ProcessedFile struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ContentHash  string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_processed_files_hash" json:"content_hash"`
	FileName     string    `gorm:"type:varchar(255)" json:"file_name"`
	Rows         int       `json:"rows"`
	Inserted     int       `json:"inserted"`
	Updated      int       `json:"updated"`
	Duplicates   int       `json:"duplicates"`
	Errors       int       `json:"errors"`
	ReconciledAt time.Time `json:"reconciled_at"`
}

func (ProcessedFile) TableName() string { return "processed_files" }

// Employee is a distinct (id, name) pair seen in attendance records.
type Employee struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
}

// Stats holds row counts of the persisted tables.
type Stats struct {
	Records        int64 `json:"records"`
	Duplicates     int64 `json:"duplicates"`
	Events         int64 `json:"events"`
	ProcessedFiles int64 `json:"processed_files"`
}

// DateOnly truncates t to UTC midnight of its calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func allModels() []any {
	return []any{&AttendanceRecord{}, &DuplicateLog{}, &EventLog{}, &ProcessedFile{}}
}
