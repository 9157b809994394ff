package ingest

import (
	"strings"

	"golang.org/x/text/cases"
)

// Canonical column names of the time-clock export.
const (
	ColPunchDate    = "Punch_Date"
	ColEmployeeID   = "Employee_ID"
	ColEmployeeName = "Employee_Name"
	ColPunchIn      = "Punch_In_Time"
	ColPunchOut     = "Punch_Out_Time"
	ColShiftIn      = "Shift_In"
	ColShiftOut     = "Shift_Out"
	ColLateBy       = "Late_By"
	ColHoursWorked  = "Hours_Worked"
	ColStatus       = "Status"
)

// RequiredColumns must all be present or the file is rejected.
var RequiredColumns = []string{ColPunchDate, ColEmployeeID, ColEmployeeName, ColPunchIn, ColPunchOut}

var optionalColumns = []string{ColShiftIn, ColShiftOut, ColLateBy, ColHoursWorked, ColStatus}

var folder = cases.Fold()

// headerKey folds case and treats spaces and underscores alike.
func headerKey(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Join(strings.Fields(strings.ReplaceAll(s, "_", " ")), "_")
	return folder.String(s)
}

// columnIndex maps canonical column names to their position in the header row.
type columnIndex map[string]int

func indexHeader(header []string) (columnIndex, []string) {
	byKey := make(map[string]int, len(header))
	for i, h := range header {
		key := headerKey(h)
		if key == "" {
			continue
		}
		if _, dup := byKey[key]; !dup {
			byKey[key] = i
		}
	}

	idx := make(columnIndex)
	var missing []string
	for _, col := range RequiredColumns {
		if i, ok := byKey[headerKey(col)]; ok {
			idx[col] = i
		} else {
			missing = append(missing, col)
		}
	}
	for _, col := range optionalColumns {
		if i, ok := byKey[headerKey(col)]; ok {
			idx[col] = i
		}
	}
	return idx, missing
}

// cell returns the trimmed value of col in row, or "" when absent.
func (c columnIndex) cell(row []string, col string) string {
	i, ok := c[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
