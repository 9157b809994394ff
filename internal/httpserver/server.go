// Package httpserver serves the read-only status and query API of a running
// monitor.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/attendsync/attendance-monitor/internal/conf"
	"github.com/attendsync/attendance-monitor/internal/datastore"
	"github.com/attendsync/attendance-monitor/internal/logger"
	"github.com/attendsync/attendance-monitor/internal/monitor"
	"github.com/attendsync/attendance-monitor/internal/notification"
	"github.com/attendsync/attendance-monitor/internal/observability"
)

const shutdownTimeout = 5 * time.Second

// StatusSource reports the state of the folder monitor.
type StatusSource interface {
	Status() monitor.Status
}

// Pinger is implemented by stores that can report their connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the status HTTP server.
type Server struct {
	echo     *echo.Echo
	settings conf.WebServerSettings
	log      logger.Logger

	store    datastore.Querier
	monitor  StatusSource
	notifier *notification.Service
	metrics  *observability.Metrics

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithStore sets the attendance store used by the query endpoints.
func WithStore(store datastore.Querier) Option {
	return func(s *Server) { s.store = store }
}

// WithMonitor sets the monitor reported by /api/v1/status.
func WithMonitor(m StatusSource) Option {
	return func(s *Server) { s.monitor = m }
}

// WithNotifier sets the notification service reported by /api/v1/notifications.
func WithNotifier(n *notification.Service) Option {
	return func(s *Server) { s.notifier = n }
}

// WithMetrics exposes the registry on /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the server logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New builds a server and registers its routes. It does not listen until Start.
func New(settings conf.WebServerSettings, opts ...Option) *Server {
	s := &Server{settings: settings}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Global().Module("httpserver")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v echomw.RequestLoggerValues) error {
			s.log.Debug("request",
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.Duration("latency", v.Latency))
			return nil
		},
	}))
	s.echo = e
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/healthz", s.health)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	api := s.echo.Group("/api/v1")
	api.GET("/status", s.status)
	api.GET("/stats", s.stats)
	api.GET("/attendance", s.attendance)
	api.GET("/employees", s.employees)
	api.GET("/events", s.events)
	api.GET("/duplicates", s.duplicates)
	api.GET("/notifications", s.notifications)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.settings.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.settings.Listen, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.echo.Listener = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("status server stopped", logger.Error(err))
		}
	}()
	s.log.Info("status server listening", logger.String("address", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.wg.Wait()
	return nil
}
