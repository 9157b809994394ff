// queries.go: read-only lookups for the CLI and status server
package datastore

import (
	"context"
	"strings"
	"time"
)

const (
	defaultSuggestionLimit = 10
	defaultRecentLimit     = 50
	maxRecentLimit         = 1000
)

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, maxRecentLimit)
}

// RecordsByDate returns every record of one punch date ordered by employee id.
func (ds *DataStore) RecordsByDate(ctx context.Context, punchDate time.Time) ([]AttendanceRecord, error) {
	db, err := ds.handle(ctx)
	if err != nil {
		return nil, err
	}
	var records []AttendanceRecord
	if err := db.Where("punch_date = ?", DateOnly(punchDate)).
		Order("employee_id").
		Find(&records).Error; err != nil {
		return nil, dbError(err, "records_by_date", "punch_date", punchDate.Format(time.DateOnly))
	}
	return records, nil
}

// RecordsByEmployee returns one employee's records ordered by date.
func (ds *DataStore) RecordsByEmployee(ctx context.Context, employeeID string, from, to time.Time) ([]AttendanceRecord, error) {
	db, err := ds.handle(ctx)
	if err != nil {
		return nil, err
	}
	query := db.Where("employee_id = ?", employeeID)
	if !from.IsZero() {
		query = query.Where("punch_date >= ?", DateOnly(from))
	}
	if !to.IsZero() {
		query = query.Where("punch_date <= ?", DateOnly(to))
	}

	var records []AttendanceRecord
	if err := query.Order("punch_date").Find(&records).Error; err != nil {
		return nil, dbError(err, "records_by_employee", "employee_id", employeeID)
	}
	return records, nil
}

// likeEscape is accepted as an escape character by both SQLite and MySQL without quoting rules.
const likeEscape = "!"

// escapeLike escapes LIKE wildcards with likeEscape.
func escapeLike(s string) string {
	return strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_").Replace(s)
}

// EmployeeSuggestions returns distinct employees whose id or name contains query.
func (ds *DataStore) EmployeeSuggestions(ctx context.Context, query string, limit int) ([]Employee, error) {
	db, err := ds.handle(ctx)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit, defaultSuggestionLimit)
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"

	var employees []Employee
	if err := db.Model(&AttendanceRecord{}).
		Distinct("employee_id", "employee_name").
		Where("employee_id LIKE ? ESCAPE '"+likeEscape+"' OR employee_name LIKE ? ESCAPE '"+likeEscape+"'", pattern, pattern).
		Order("employee_id").
		Order("employee_name").
		Limit(limit).
		Scan(&employees).Error; err != nil {
		return nil, dbError(err, "employee_suggestions", "query", query)
	}
	return employees, nil
}

// RecentEvents returns the newest event log entries, optionally of one type.
func (ds *DataStore) RecentEvents(ctx context.Context, limit int, eventType EventType) ([]EventLog, error) {
	db, err := ds.handle(ctx)
	if err != nil {
		return nil, err
	}
	query := db.Model(&EventLog{})
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}

	var events []EventLog
	if err := query.Order("timestamp DESC").Order("id DESC").
		Limit(clampLimit(limit, defaultRecentLimit)).
		Find(&events).Error; err != nil {
		return nil, dbError(err, "recent_events")
	}
	return events, nil
}

// RecentDuplicates returns the newest duplicate log entries.
func (ds *DataStore) RecentDuplicates(ctx context.Context, limit int) ([]DuplicateLog, error) {
	db, err := ds.handle(ctx)
	if err != nil {
		return nil, err
	}
	var entries []DuplicateLog
	if err := db.Order("logged_at DESC").Order("id DESC").
		Limit(clampLimit(limit, defaultRecentLimit)).
		Find(&entries).Error; err != nil {
		return nil, dbError(err, "recent_duplicates")
	}
	return entries, nil
}

// Stats counts the rows of every table.
func (ds *DataStore) Stats(ctx context.Context) (Stats, error) {
	db, err := ds.handle(ctx)
	if err != nil {
		return Stats{}, err
	}
	var stats Stats
	counts := []struct {
		model any
		dst   *int64
	}{
		{&AttendanceRecord{}, &stats.Records},
		{&DuplicateLog{}, &stats.Duplicates},
		{&EventLog{}, &stats.Events},
		{&ProcessedFile{}, &stats.ProcessedFiles},
	}
	for _, c := range counts {
		if err := db.Model(c.model).Count(c.dst).Error; err != nil {
			return Stats{}, dbError(err, "stats")
		}
	}
	return stats, nil
}
