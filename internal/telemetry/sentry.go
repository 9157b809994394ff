// Package telemetry reports errors to Sentry when the user opts in.
package telemetry

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/attendsync/attendance-monitor/internal/buildinfo"
	"github.com/attendsync/attendance-monitor/internal/conf"
	"github.com/attendsync/attendance-monitor/internal/errors"
	"github.com/attendsync/attendance-monitor/internal/logger"
	"github.com/attendsync/attendance-monitor/internal/privacy"
)

const flushTimeout = 2 * time.Second

var initialized atomic.Bool

// InitSentry initializes the Sentry SDK and installs the error reporter.
// It does nothing unless telemetry is enabled. transport is nil outside tests.
func InitSentry(settings conf.SentrySettings, build *buildinfo.Context, transport sentry.Transport, log logger.Logger) error {
	if log == nil {
		log = logger.Global().Module("telemetry")
	}
	if !settings.Enabled {
		log.Debug("sentry telemetry is disabled")
		return nil
	}

	environment := settings.Environment
	if environment == "" {
		environment = "production"
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.DSN,
		Transport:        transport,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      environment,
		ServerName:       "",
		Release:          "attendance-monitor@" + build.GetVersion(),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("system_id", build.ShortSystemID())
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
		scope.SetContext("application", map[string]any{
			"version":    build.GetVersion(),
			"build_date": build.GetBuildDate(),
			"go_version": runtime.Version(),
		})
	})

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	initialized.Store(true)
	log.Info("sentry telemetry enabled", logger.String("environment", environment))
	return nil
}

// Flush waits for buffered events and detaches the error reporter.
func Flush() {
	if !initialized.CompareAndSwap(true, false) {
		return
	}
	errors.SetTelemetryReporter(nil)
	sentry.Flush(flushTimeout)
}

// applyPrivacyFilters strips host identity and scrubs credentials from messages.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	event.Message = privacy.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = privacy.ScrubMessage(event.Exception[i].Value)
	}
	return event
}
