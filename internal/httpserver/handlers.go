package httpserver

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/attendsync/attendance-monitor/internal/datastore"
	"github.com/attendsync/attendance-monitor/internal/logger"
)

const (
	dateLayout   = "2006-01-02"
	defaultLimit = 50
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

func (s *Server) fail(c echo.Context, err error, message string, code int) error {
	resp := ErrorResponse{Message: message, Code: code, CorrelationID: uuid.NewString()[:8]}
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Error = message
	}
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed",
			logger.String("correlation_id", resp.CorrelationID),
			logger.String("path", c.Path()),
			logger.String("message", message),
			logger.Error(err))
	}
	return c.JSON(code, resp)
}

func parseLimit(c echo.Context) int {
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultLimit
}

// parseDate reads a YYYY-MM-DD query parameter; an empty value is the zero time.
func parseDate(c echo.Context, name string) (time.Time, error) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(dateLayout, v, time.UTC)
}

func (s *Server) health(c echo.Context) error {
	body := map[string]any{"status": "ok"}
	code := http.StatusOK

	if p, ok := s.store.(Pinger); ok {
		if err := p.Ping(c.Request().Context()); err != nil {
			body["status"] = "degraded"
			body["store"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			body["store"] = "ok"
		}
	}
	if s.monitor != nil {
		body["monitoring"] = s.monitor.Status().Running
	}
	return c.JSON(code, body)
}

func (s *Server) status(c echo.Context) error {
	if s.monitor == nil {
		return s.fail(c, nil, "monitor is not running in this process", http.StatusServiceUnavailable)
	}
	return c.JSON(http.StatusOK, s.monitor.Status())
}

func (s *Server) requireStore() bool {
	return s.store != nil
}

func (s *Server) stats(c echo.Context) error {
	if !s.requireStore() {
		return s.fail(c, nil, "store not available", http.StatusServiceUnavailable)
	}
	st, err := s.store.Stats(c.Request().Context())
	if err != nil {
		return s.fail(c, err, "failed to read store statistics", http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) attendance(c echo.Context) error {
	if !s.requireStore() {
		return s.fail(c, nil, "store not available", http.StatusServiceUnavailable)
	}
	ctx := c.Request().Context()

	date, err := parseDate(c, "date")
	if err != nil {
		return s.fail(c, err, "date must be YYYY-MM-DD", http.StatusBadRequest)
	}
	employeeID := strings.TrimSpace(c.QueryParam("employee_id"))

	var records []datastore.AttendanceRecord
	switch {
	case !date.IsZero():
		records, err = s.store.RecordsByDate(ctx, date)
	case employeeID != "":
		from, ferr := parseDate(c, "from")
		to, terr := parseDate(c, "to")
		if ferr != nil || terr != nil {
			return s.fail(c, nil, "from and to must be YYYY-MM-DD", http.StatusBadRequest)
		}
		if !from.IsZero() && !to.IsZero() && to.Before(from) {
			return s.fail(c, nil, "to must not be before from", http.StatusBadRequest)
		}
		records, err = s.store.RecordsByEmployee(ctx, employeeID, from, to)
	default:
		return s.fail(c, nil, "either date or employee_id is required", http.StatusBadRequest)
	}
	if err != nil {
		return s.fail(c, err, "failed to query attendance", http.StatusInternalServerError)
	}
	if records == nil {
		records = []datastore.AttendanceRecord{}
	}
	return c.JSON(http.StatusOK, records)
}

func (s *Server) employees(c echo.Context) error {
	if !s.requireStore() {
		return s.fail(c, nil, "store not available", http.StatusServiceUnavailable)
	}
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return c.JSON(http.StatusOK, []datastore.Employee{})
	}
	list, err := s.store.EmployeeSuggestions(c.Request().Context(), q, parseLimit(c))
	if err != nil {
		return s.fail(c, err, "failed to search employees", http.StatusInternalServerError)
	}
	if list == nil {
		list = []datastore.Employee{}
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) events(c echo.Context) error {
	if !s.requireStore() {
		return s.fail(c, nil, "store not available", http.StatusServiceUnavailable)
	}
	eventType := datastore.EventType(c.QueryParam("type"))
	list, err := s.store.RecentEvents(c.Request().Context(), parseLimit(c), eventType)
	if err != nil {
		return s.fail(c, err, "failed to read event log", http.StatusInternalServerError)
	}
	if list == nil {
		list = []datastore.EventLog{}
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) duplicates(c echo.Context) error {
	if !s.requireStore() {
		return s.fail(c, nil, "store not available", http.StatusServiceUnavailable)
	}
	list, err := s.store.RecentDuplicates(c.Request().Context(), parseLimit(c))
	if err != nil {
		return s.fail(c, err, "failed to read duplicate log", http.StatusInternalServerError)
	}
	if list == nil {
		list = []datastore.DuplicateLog{}
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) notifications(c echo.Context) error {
	if s.notifier == nil {
		return s.fail(c, nil, "notification service not available", http.StatusServiceUnavailable)
	}
	return c.JSON(http.StatusOK, s.notifier.Recent(parseLimit(c)))
}
