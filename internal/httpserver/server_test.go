package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendsync/attendance-monitor/internal/conf"
	"github.com/attendsync/attendance-monitor/internal/datastore"
	"github.com/attendsync/attendance-monitor/internal/logger"
	"github.com/attendsync/attendance-monitor/internal/monitor"
	"github.com/attendsync/attendance-monitor/internal/notification"
	"github.com/attendsync/attendance-monitor/internal/observability"
	"github.com/attendsync/attendance-monitor/internal/timeval"
)

func quietLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

type fakeMonitor struct{ status monitor.Status }

func (f fakeMonitor) Status() monitor.Status { return f.status }

func newStore(t *testing.T) *datastore.DataStore {
	t.Helper()
	ds, err := datastore.New(conf.DatabaseSettings{
		Type:              conf.DatabaseSQLite,
		SQLite:            conf.SQLiteSettings{Path: ":memory:"},
		ReconnectAttempts: 1,
	}, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })

	ctx := context.Background()
	for _, rec := range []datastore.AttendanceRecord{
		{PunchDate: date(2024, 3, 1), EmployeeID: "E1", EmployeeName: "Ada Lovelace", PunchInTime: timeval.Some(timeval.MustTimeOfDay(9, 5, 0))},
		{PunchDate: date(2024, 3, 2), EmployeeID: "E1", EmployeeName: "Ada Lovelace"},
		{PunchDate: date(2024, 3, 1), EmployeeID: "E2", EmployeeName: "Alan Turing"},
	} {
		require.NoError(t, ds.Insert(ctx, &rec))
	}
	require.NoError(t, ds.AppendEventLog(ctx, &datastore.EventLog{EventType: datastore.EventError, Description: "bad file", FileName: "x.xlsx"}))
	require.NoError(t, ds.AppendEventLog(ctx, &datastore.EventLog{EventType: datastore.EventSuccess, Description: "ok", FileName: "y.xlsx"}))
	require.NoError(t, ds.AppendDuplicateLog(ctx, &datastore.DuplicateLog{PunchDate: date(2024, 3, 1), EmployeeID: "E1", Reason: "same punches"}))
	return ds
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return New(conf.WebServerSettings{Enabled: true, Listen: "127.0.0.1:0"}, opts...)
}

func get(t *testing.T, s *Server, target string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestHealth(t *testing.T) {
	t.Parallel()
	ds := newStore(t)
	s := newServer(t, WithStore(ds), WithMonitor(fakeMonitor{monitor.Status{Running: true}}))

	var body map[string]any
	assert.Equal(t, http.StatusOK, get(t, s, "/healthz", &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["store"])
	assert.Equal(t, true, body["monitoring"])

	require.NoError(t, ds.Close())
	assert.Equal(t, http.StatusServiceUnavailable, get(t, s, "/healthz", &body))
	assert.Equal(t, "degraded", body["status"])
}

func TestStatus(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	var errResp ErrorResponse
	assert.Equal(t, http.StatusServiceUnavailable, get(t, s, "/api/v1/status", &errResp))
	assert.NotEmpty(t, errResp.CorrelationID)

	s = newServer(t, WithMonitor(fakeMonitor{monitor.Status{Running: true, Folder: "/in", Batches: 3}}))
	var st monitor.Status
	assert.Equal(t, http.StatusOK, get(t, s, "/api/v1/status", &st))
	assert.Equal(t, "/in", st.Folder)
	assert.Equal(t, 3, st.Batches)
}

func TestAttendance(t *testing.T) {
	t.Parallel()
	s := newServer(t, WithStore(newStore(t)))

	var records []datastore.AttendanceRecord
	assert.Equal(t, http.StatusOK, get(t, s, "/api/v1/attendance?date=2024-03-01", &records))
	assert.Len(t, records, 2)

	assert.Equal(t, http.StatusOK, get(t, s, "/api/v1/attendance?employee_id=E1", &records))
	require.Len(t, records, 2)
	assert.True(t, records[0].PunchInTime.Valid)

	assert.Equal(t, http.StatusOK, get(t, s, "/api/v1/attendance?employee_id=E1&from=2024-03-02", &records))
	assert.Len(t, records, 1)

	assert.Equal(t, http.StatusOK, get(t, s, "/api/v1/attendance?date=2023-01-01", &records))
	assert.Empty(t, records)
	assert.NotNil(t, records)

	tests := []struct {
		name   string
		target string
	}{
		{"no filter", "/api/v1/attendance"},
		{"bad date", "/api/v1/attendance?date=01/03/2024"},
		{"bad range", "/api/v1/attendance?employee_id=E1&from=yesterday"},
		{"inverted range", "/api/v1/attendance?employee_id=E1&from=2024-03-05&to=2024-03-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp ErrorResponse
			assert.Equal(t, http.StatusBadRequest, get(t, s, tt.target, &resp))
			assert.Equal(t, http.StatusBadRequest, resp.Code)
		})
	}
}

func TestEmployees(t *testing.T) {
	t.Parallel()
	s := newServer(t, WithStore(newStore(t)))

	var list []datastore.Employee
	assert.Equal(t, http.StatusOK, get(t, s, "/api/v1/employees?q=turing", &list))
	require.Len(t, list, 1)
	assert.Equal(t, "E2", list[0].EmployeeID)

	assert.Equal(t, http.StatusOK, get(t, s, "/api/v1/employees?q=E&limit=1", &list))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusOK, get(t, s, "/api/v1/employees", &list))
	assert.Empty(t, list)
}

func TestEventsAndDuplicates(t *testing.T) {
	t.Parallel()
	s := newServer(t, WithStore(newStore(t)))

	var events []datastore.EventLog
	assert.Equal(t, http.StatusOK, get(t, s, "/api/v1/events", &events))
	assert.Len(t, events, 2)

	assert.Equal(t, http.StatusOK, get(t, s, "/api/v1/events?type=Error", &events))
	require.Len(t, events, 1)
	assert.Equal(t, "bad file", events[0].Description)

	var dups []datastore.DuplicateLog
	assert.Equal(t, http.StatusOK, get(t, s, "/api/v1/duplicates?limit=10", &dups))
	assert.Len(t, dups, 1)

	var st datastore.Stats
	assert.Equal(t, http.StatusOK, get(t, s, "/api/v1/stats", &st))
	assert.EqualValues(t, 3, st.Records)
	assert.EqualValues(t, 2, st.Events)
}

func TestStoreMissing(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	for _, target := range []string{"/api/v1/attendance?date=2024-03-01", "/api/v1/employees?q=a", "/api/v1/events", "/api/v1/duplicates", "/api/v1/stats"} {
		assert.Equal(t, http.StatusServiceUnavailable, get(t, s, target, nil), target)
	}
}

func TestNotifications(t *testing.T) {
	t.Parallel()
	svc := notification.NewService(conf.NotificationSettings{}, quietLogger())
	t.Cleanup(svc.Close)
	svc.FileSkipped("/in/a.xlsx")
	svc.FileVanished("/in/b.xlsx")

	s := newServer(t, WithNotifier(svc))
	var list []notification.Notification
	assert.Equal(t, http.StatusOK, get(t, s, "/api/v1/notifications?limit=1", &list))
	require.Len(t, list, 1)
	assert.Contains(t, list[0].Message, "b.xlsx")
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	m, err := observability.NewMetrics()
	require.NoError(t, err)
	m.Pipeline.RecordBatch()

	s := newServer(t, WithMetrics(m))
	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "batches_total")
}

func TestStartShutdown(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	assert.Empty(t, s.Addr())
	require.NoError(t, s.Start())

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Shutdown(context.Background()))
}

func TestStartFailsOnBadAddress(t *testing.T) {
	t.Parallel()
	s := New(conf.WebServerSettings{Listen: "256.0.0.1:bad"}, WithLogger(quietLogger()))
	assert.Error(t, s.Start())
}
