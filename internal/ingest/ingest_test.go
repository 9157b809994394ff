package ingest

import (
	"io"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendsync/attendance-monitor/internal/errors"
	"github.com/attendsync/attendance-monitor/internal/logger"
	"github.com/attendsync/attendance-monitor/internal/testutil"
	"github.com/attendsync/attendance-monitor/internal/timeval"
)

func newTestIngestor(t *testing.T, files map[string][]byte) *Ingestor {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, data := range files {
		require.NoError(t, afero.WriteFile(fsys, name, data, 0o644))
	}
	return NewIngestor(fsys, logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC))
}

func TestIngestor_Load_NormalizesRows(t *testing.T) {
	t.Parallel()

	data := testutil.Workbook(t,
		testutil.Header,
		[]any{"2024-03-01", " EMP12345 ", "Ada Lovelace", "09:00", "08:58", "17:40", "18:00", "", "8:42:00", "Present"},
		[]any{"02/03/2024", "EMP00002", "Alan Turing", "", "9:15 AM", "", "", "00:15", "7.5", "Late"},
	)
	ing := newTestIngestor(t, map[string][]byte{"/in/march.xlsx": data})

	res, err := ing.Load("/in/march.xlsx")
	require.NoError(t, err)

	assert.Equal(t, "march.xlsx", res.FileName)
	assert.Equal(t, Fingerprint(data), res.ContentHash)
	assert.Len(t, res.ContentHash, 64)
	assert.Empty(t, res.Rejected)
	require.Len(t, res.Rows, 2)

	first := res.Rows[0]
	assert.Equal(t, 2, first.Line)
	assert.Equal(t, "2024-03-01", first.DateString())
	assert.Equal(t, "EMP12345", first.EmployeeID)
	assert.Equal(t, "Ada Lovelace", first.EmployeeName)
	assert.Equal(t, timeval.Some(timeval.MustTimeOfDay(9, 0, 0)), first.ShiftIn)
	assert.Equal(t, timeval.Some(timeval.MustTimeOfDay(8, 58, 0)), first.PunchIn)
	assert.Equal(t, timeval.Some(timeval.MustTimeOfDay(17, 40, 0)), first.PunchOut)
	assert.Equal(t, timeval.Absent, first.LateBy)
	require.True(t, first.HoursWorked.Valid)
	assert.Equal(t, "8.7", first.HoursWorked.Decimal.String())
	assert.Equal(t, "Present", first.Status)

	second := res.Rows[1]
	assert.Equal(t, "2024-03-02", second.DateString())
	assert.Equal(t, timeval.Some(timeval.MustTimeOfDay(9, 15, 0)), second.PunchIn)
	assert.Equal(t, timeval.Absent, second.PunchOut)
	assert.Equal(t, timeval.Some(timeval.MustTimeOfDay(0, 15, 0)), second.LateBy)
	assert.Equal(t, "7.5", second.HoursWorked.Decimal.String())
}

func TestIngestor_Load_NativeCellValues(t *testing.T) {
	t.Parallel()

	data := testutil.Workbook(t,
		[]any{"Punch_Date", "Employee_ID", "Employee_Name", "Punch_In_Time", "Punch_Out_Time"},
		[]any{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "EMP12345", "Ada", 0.375, 0.75},
	)
	ing := newTestIngestor(t, map[string][]byte{"/in/native.xlsx": data})

	res, err := ing.Load("/in/native.xlsx")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	row := res.Rows[0]
	assert.Equal(t, "2024-03-01", row.DateString())
	assert.Equal(t, timeval.Some(timeval.MustTimeOfDay(9, 0, 0)), row.PunchIn)
	assert.Equal(t, timeval.Some(timeval.MustTimeOfDay(18, 0, 0)), row.PunchOut)
	assert.False(t, row.HoursWorked.Valid)
}

func TestIngestor_Load_DateTimePunchCells(t *testing.T) {
	t.Parallel()

	// 45352 is 2024-03-01; the fraction carries the clock time.
	data := testutil.Workbook(t,
		[]any{"Punch_Date", "Employee_ID", "Employee_Name", "Punch_In_Time", "Punch_Out_Time", "Shift_In"},
		[]any{"2024-03-01", "EMP12345", "Ada", time.Date(2024, 3, 1, 8, 58, 0, 0, time.UTC), 45352.736458333, 45352.0},
	)
	ing := newTestIngestor(t, map[string][]byte{"/in/datetime.xlsx": data})

	res, err := ing.Load("/in/datetime.xlsx")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	row := res.Rows[0]
	assert.Equal(t, timeval.Some(timeval.MustTimeOfDay(8, 58, 0)), row.PunchIn)
	assert.Equal(t, timeval.Some(timeval.MustTimeOfDay(17, 40, 30)), row.PunchOut)
	assert.Equal(t, timeval.Some(timeval.MustTimeOfDay(0, 0, 0)), row.ShiftIn, "whole-day serial is midnight")
}

func TestIngestor_Load_HeaderMatchingIgnoresCaseAndSpacing(t *testing.T) {
	t.Parallel()

	data := testutil.Workbook(t,
		[]any{"punch date", "EMPLOYEE_ID", "Employee Name", "Punch In Time", "punch_out_time"},
		[]any{"2024-03-01", "EMP12345", "Ada", "09:00", "17:00"},
	)
	ing := newTestIngestor(t, map[string][]byte{"/in/x.xlsx": data})

	res, err := ing.Load("/in/x.xlsx")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, timeval.Some(timeval.MustTimeOfDay(17, 0, 0)), res.Rows[0].PunchOut)
}

func TestIngestor_Load_MissingColumnRejectsFile(t *testing.T) {
	t.Parallel()

	data := testutil.Workbook(t,
		[]any{"Punch_Date", "Employee_ID", "Employee_Name", "Punch_Out_Time"},
		[]any{"2024-03-01", "EMP12345", "Ada", "17:00"},
	)
	ing := newTestIngestor(t, map[string][]byte{"/in/bad.xlsx": data})

	res, err := ing.Load("/in/bad.xlsx")
	require.Error(t, err)
	assert.Nil(t, res)

	var missing *MissingColumnsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{ColPunchIn}, missing.Missing)
	assert.Contains(t, err.Error(), "Punch_In_Time")
}

func TestIngestor_Load_InvalidDateRejectsFile(t *testing.T) {
	t.Parallel()

	data := testutil.Workbook(t,
		testutil.Header,
		[]any{"2024-03-01", "EMP12345", "Ada", "", "09:00", "17:00"},
		[]any{"not a date", "EMP00002", "Alan", "", "09:00", "17:00"},
	)
	ing := newTestIngestor(t, map[string][]byte{"/in/dates.xlsx": data})

	_, err := ing.Load("/in/dates.xlsx")
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, 3, formatErr.Row)
	assert.Equal(t, ColPunchDate, formatErr.Column)
	assert.Equal(t, "not a date", formatErr.Value)
}

func TestIngestor_Load_RejectsInvalidEmployeeIDs(t *testing.T) {
	t.Parallel()

	data := testutil.Workbook(t,
		testutil.Header,
		[]any{"2024-03-01", "ABC12", "Short", "", "09:00", "17:00"},
		[]any{"2024-03-01", "EMP12345", "Valid", "", "09:00", "17:00"},
		[]any{"2024-03-01", "EMP 1234", "Spaced", "", "09:00", "17:00"},
		[]any{"2024-03-01", "", "Nobody", "", "09:00", "17:00"},
	)
	ing := newTestIngestor(t, map[string][]byte{"/in/ids.xlsx": data})

	res, err := ing.Load("/in/ids.xlsx")
	require.NoError(t, err)

	require.Len(t, res.Rows, 1)
	assert.Equal(t, "EMP12345", res.Rows[0].EmployeeID)

	require.Len(t, res.Rejected, 3)
	assert.Equal(t, "ABC12", res.Rejected[0].EmployeeID)
	assert.Equal(t, 2, res.Rejected[0].Line)
	assert.Contains(t, res.Rejected[0].Reason, "5 characters")
	assert.Contains(t, res.Rejected[1].Reason, "whitespace")
	assert.Contains(t, res.Rejected[2].Reason, "empty")
}

func TestIngestor_Load_SkipsBlankRowsAndKeepsOrder(t *testing.T) {
	t.Parallel()

	data := testutil.Workbook(t,
		testutil.Header,
		[]any{"2024-03-02", "EMP00002", "B", "", "09:00", "17:00"},
		[]any{"", "", "", "", "", ""},
		[]any{"2024-03-01", "EMP00001", "A", "", "09:00", "17:00"},
	)
	ing := newTestIngestor(t, map[string][]byte{"/in/order.xlsx": data})

	res, err := ing.Load("/in/order.xlsx")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "EMP00002", res.Rows[0].EmployeeID)
	assert.Equal(t, "EMP00001", res.Rows[1].EmployeeID)
	assert.Equal(t, 4, res.Rows[1].Line)
}

func TestIngestor_Load_MalformedTimesAreAbsent(t *testing.T) {
	t.Parallel()

	data := testutil.Workbook(t,
		testutil.Header,
		[]any{"2024-03-01", "EMP12345", "Ada", "", "25:99", "--", "", "", "n/a"},
	)
	ing := newTestIngestor(t, map[string][]byte{"/in/soft.xlsx": data})

	res, err := ing.Load("/in/soft.xlsx")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.False(t, res.Rows[0].PunchIn.Valid)
	assert.False(t, res.Rows[0].PunchOut.Valid)
	assert.False(t, res.Rows[0].HoursWorked.Valid)
}

func TestIngestor_Load_CorruptFile(t *testing.T) {
	t.Parallel()

	ing := newTestIngestor(t, map[string][]byte{"/in/corrupt.xlsx": []byte("not a zip archive")})

	_, err := ing.Load("/in/corrupt.xlsx")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
}

func TestIngestor_Load_MissingFile(t *testing.T) {
	t.Parallel()

	ing := newTestIngestor(t, nil)

	_, err := ing.Load("/in/absent.xlsx")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}

func TestIngestor_Parse_EmptyWorkbook(t *testing.T) {
	t.Parallel()

	ing := newTestIngestor(t, nil)
	_, err := ing.Parse("empty.xlsx", testutil.Workbook(t))
	require.ErrorIs(t, err, ErrEmptyWorkbook)
}

func TestFingerprint_DiffersOnAnyByte(t *testing.T) {
	t.Parallel()

	a := Fingerprint([]byte("attendance"))
	b := Fingerprint([]byte("attendancf"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Fingerprint([]byte("attendance")))
}

func TestHeaderKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, headerKey("Punch_In_Time"), headerKey("  punch in   time "))
	assert.Equal(t, headerKey("EMPLOYEE_ID"), headerKey("Employee Id"))
	assert.NotEqual(t, headerKey("Punch_In"), headerKey("Punch_In_Time"))
}
