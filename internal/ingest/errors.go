package ingest

import (
	"fmt"
	"strings"

	"github.com/attendsync/attendance-monitor/internal/errors"
)

// ErrEmptyWorkbook is returned when the workbook has no sheet or no header row.
var ErrEmptyWorkbook = errors.NewStd("workbook has no header row")

// MissingColumnsError rejects a file lacking required columns.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// FormatError rejects a file containing a value that cannot be trusted, such as an
// unparseable punch date.
type FormatError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("row %d column %s: invalid value %q: %v", e.Row, e.Column, e.Value, e.Err)
	}
	return fmt.Sprintf("row %d column %s: invalid value %q", e.Row, e.Column, e.Value)
}

func (e *FormatError) Unwrap() error { return e.Err }
