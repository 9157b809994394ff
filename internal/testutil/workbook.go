package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// Header is the column row of a standard biometric export.
var Header = []any{
	"Punch_Date", "Employee_ID", "Employee_Name", "Shift_In", "Punch_In_Time",
	"Punch_Out_Time", "Shift_Out", "Late_By", "Hours_Worked", "Status",
}

// Workbook renders rows onto Sheet1 starting at A1 and returns the xlsx bytes.
// Callers include the header row themselves.
func Workbook(t testing.TB, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// AttendanceWorkbook renders Header followed by rows.
func AttendanceWorkbook(t testing.TB, rows ...[]any) []byte {
	t.Helper()
	return Workbook(t, append([][]any{Header}, rows...)...)
}
