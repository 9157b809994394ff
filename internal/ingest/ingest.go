// Package ingest loads biometric time-clock spreadsheet exports into
// normalized attendance rows.
package ingest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"

	"github.com/attendsync/attendance-monitor/internal/errors"
	"github.com/attendsync/attendance-monitor/internal/logger"
	"github.com/attendsync/attendance-monitor/internal/timeval"
)

// dateLayouts are the textual punch date forms accepted besides spreadsheet serials.
var dateLayouts = []string{
	time.DateOnly,
	"2006/01/02",
	"02-01-2006",
	"02/01/2006",
	"02-Jan-2006",
	time.DateTime,
	"2006-01-02T15:04:05",
}

// Ingestor reads spreadsheets from a filesystem.
type Ingestor struct {
	fs  afero.Fs
	log logger.Logger
}

// NewIngestor creates an ingestor reading from fsys.
func NewIngestor(fsys afero.Fs, log logger.Logger) *Ingestor {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if log == nil {
		log = logger.Global().Module("ingest")
	}
	return &Ingestor{fs: fsys, log: log}
}

// Load reads path, fingerprints its bytes and parses its first sheet.
// MissingColumnsError, FormatError and ErrEmptyWorkbook reject the whole file.
func (i *Ingestor) Load(path string) (*Result, error) {
	name := filepath.Base(path)
	data, err := afero.ReadFile(i.fs, path)
	if err != nil {
		return nil, errors.New(err).
			Component("ingest").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Context("operation", "read_spreadsheet").
			Build()
	}
	return i.Parse(name, data)
}

// Fingerprint returns the hex SHA-256 digest of data.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Parse parses spreadsheet bytes. name is used only for reporting.
func (i *Ingestor) Parse(name string, data []byte) (*Result, error) {
	start := time.Now()
	result := &Result{FileName: name, ContentHash: Fingerprint(data)}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.New(err).
			Component("ingest").
			Category(errors.CategoryFileParsing).
			Context("file", name).
			Context("operation", "open_workbook").
			Build()
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			i.log.Debug("failed to close workbook", logger.String("file", name), logger.Error(cerr))
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyWorkbook
	}
	sheet := sheets[0]

	formatted, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.New(err).
			Component("ingest").
			Category(errors.CategoryFileParsing).
			Context("file", name).
			Context("sheet", sheet).
			Build()
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.New(err).
			Component("ingest").
			Category(errors.CategoryFileParsing).
			Context("file", name).
			Context("sheet", sheet).
			Build()
	}

	headerAt := firstNonBlank(formatted)
	if headerAt < 0 {
		return nil, ErrEmptyWorkbook
	}

	cols, missing := indexHeader(formatted[headerAt])
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Missing: missing}
	}

	for r := headerAt + 1; r < len(formatted); r++ {
		values := formatted[r]
		if isBlankRow(values) {
			continue
		}
		var rawValues []string
		if r < len(raw) {
			rawValues = raw[r]
		}

		row, rejectReason, err := buildRow(cols, r+1, values, rawValues)
		if err != nil {
			return nil, err
		}
		if rejectReason != "" {
			result.Rejected = append(result.Rejected, Rejected{
				Line:         row.Line,
				PunchDate:    row.PunchDate,
				EmployeeID:   row.EmployeeID,
				EmployeeName: row.EmployeeName,
				Reason:       rejectReason,
			})
			continue
		}
		result.Rows = append(result.Rows, row)
	}

	i.log.Debug("spreadsheet parsed",
		logger.String("file", name),
		logger.String("sheet", sheet),
		logger.Int("rows", len(result.Rows)),
		logger.Int("rejected", len(result.Rejected)),
		logger.Duration("elapsed", time.Since(start)))

	return result, nil
}

// buildRow normalizes one data line. A non-empty reject reason excludes the row
// from reconciliation; an error rejects the file.
func buildRow(cols columnIndex, line int, values, raw []string) (Row, string, error) {
	row := Row{
		Line:         line,
		EmployeeID:   cols.cell(values, ColEmployeeID),
		EmployeeName: cols.cell(values, ColEmployeeName),
		Status:       cols.cell(values, ColStatus),
	}

	date, err := parsePunchDate(cols.cell(raw, ColPunchDate), cols.cell(values, ColPunchDate))
	if err != nil {
		return row, "", &FormatError{
			Row:    line,
			Column: ColPunchDate,
			Value:  cols.cell(values, ColPunchDate),
			Err:    err,
		}
	}
	row.PunchDate = date

	row.ShiftIn = timeCell(cols, ColShiftIn, values, raw)
	row.ShiftOut = timeCell(cols, ColShiftOut, values, raw)
	row.PunchIn = timeCell(cols, ColPunchIn, values, raw)
	row.PunchOut = timeCell(cols, ColPunchOut, values, raw)
	row.LateBy = timeCell(cols, ColLateBy, values, raw)

	row.HoursWorked = timeval.NormalizeHours(cols.cell(values, ColHoursWorked))
	if !row.HoursWorked.Valid {
		if f, ok := parseFloat(cols.cell(raw, ColHoursWorked)); ok {
			// Raw duration cells hold fractions of a day.
			row.HoursWorked = timeval.NormalizeHours(time.Duration(f * float64(24*time.Hour)))
		}
	}

	if reason := validateEmployeeID(row.EmployeeID); reason != "" {
		return row, reason, nil
	}
	return row, "", nil
}

// timeCell prefers the displayed text and falls back to the raw serial. A
// date-time serial (one or more whole days) contributes its time part.
func timeCell(cols columnIndex, col string, values, raw []string) timeval.Optional {
	if t := timeval.Normalize(cols.cell(values, col), timeval.LayoutAny); t.Valid {
		return t
	}
	if f, ok := parseFloat(cols.cell(raw, col)); ok {
		if f >= 1 {
			f -= math.Floor(f)
		}
		return timeval.Normalize(f, timeval.LayoutAny)
	}
	return timeval.Absent
}

// parsePunchDate accepts a spreadsheet date serial or one of dateLayouts.
func parsePunchDate(raw, display string) (time.Time, error) {
	if serial, ok := parseFloat(raw); ok && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, err
		}
		return dateOnly(t), nil
	}

	for _, candidate := range []string{display, raw} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, candidate); err == nil {
				return dateOnly(t), nil
			}
		}
	}
	if strings.TrimSpace(display) == "" && strings.TrimSpace(raw) == "" {
		return time.Time{}, errors.NewStd("punch date is empty")
	}
	return time.Time{}, errors.NewStd("unrecognized date format")
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// validateEmployeeID returns a reject reason, or "" when id is acceptable.
func validateEmployeeID(id string) string {
	if id == "" {
		return "employee id is empty"
	}
	if strings.IndexFunc(id, unicode.IsSpace) >= 0 {
		return fmt.Sprintf("employee id %q contains whitespace", id)
	}
	if n := utf8.RuneCountInString(id); n != EmployeeIDLength {
		return fmt.Sprintf("employee id %q has %d characters, expected %d", id, n, EmployeeIDLength)
	}
	return ""
}

func isBlankRow(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func firstNonBlank(rows [][]string) int {
	for i, r := range rows {
		if !isBlankRow(r) {
			return i
		}
	}
	return -1
}
