package ingest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/attendsync/attendance-monitor/internal/timeval"
)

// EmployeeIDLength is the exact length of a valid employee identifier.
const EmployeeIDLength = 8

// Row is one normalized attendance line from a spreadsheet.
type Row struct {
	Line         int       // 1-based spreadsheet row, header is line 1
	PunchDate    time.Time // UTC midnight of the punch date
	EmployeeID   string
	EmployeeName string
	ShiftIn      timeval.Optional
	ShiftOut     timeval.Optional
	PunchIn      timeval.Optional
	PunchOut     timeval.Optional
	LateBy       timeval.Optional
	HoursWorked  decimal.NullDecimal
	Status       string
}

// DateString formats the punch date as YYYY-MM-DD.
func (r Row) DateString() string {
	return r.PunchDate.Format(time.DateOnly)
}

// Rejected is a row excluded from reconciliation during validation.
type Rejected struct {
	Line         int
	PunchDate    time.Time
	EmployeeID   string
	EmployeeName string
	Reason       string
}

// Result is the outcome of loading one spreadsheet.
type Result struct {
	FileName    string
	ContentHash string // hex SHA-256 of the raw file bytes
	Rows        []Row
	Rejected    []Rejected
}
