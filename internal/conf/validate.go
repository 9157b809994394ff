// conf/validate.go

package conf

import (
	"fmt"
	"strings"
	"time"
)

// Supported store types.
const (
	DatabaseSQLite = "sqlite"
	DatabaseMySQL  = "mysql"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the entire Settings struct and reports every problem at once.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}
	add := func(errs []string) { ve.Errors = append(ve.Errors, errs...) }

	add(validateWatchSettings(&settings.Watch))
	add(validateReadinessSettings(&settings.Readiness))
	add(validateQueueSettings(&settings.Queue))
	add(validateDatabaseSettings(&settings.Database))
	add(validateNotificationSettings(&settings.Notification))
	add(validateResourceSettings(&settings.Resources))

	if settings.Reconcile.ErrorMessageLimit < 1 {
		ve.Errors = append(ve.Errors, "reconcile.errormessagelimit must be positive")
	}
	if settings.Logging.DefaultLevel != "" && !isValidLogLevel(settings.Logging.DefaultLevel) {
		ve.Errors = append(ve.Errors, fmt.Sprintf("logging.default_level %q is not a valid level", settings.Logging.DefaultLevel))
	}
	if settings.WebServer.Enabled && settings.WebServer.Listen == "" {
		ve.Errors = append(ve.Errors, "webserver.listen is required when the web server is enabled")
	}
	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry.dsn is required when sentry is enabled")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// RequireWatchFolder reports whether the settings can drive a folder monitor.
func RequireWatchFolder(settings *Settings) error {
	if strings.TrimSpace(settings.Watch.Folder) == "" {
		return ValidationError{Errors: []string{"watch.folder is required to start monitoring"}}
	}
	return nil
}

func validateWatchSettings(s *WatchSettings) []string {
	var errs []string
	if !strings.HasPrefix(s.Extension, ".") || len(s.Extension) < 2 {
		errs = append(errs, fmt.Sprintf("watch.extension %q must start with a dot", s.Extension))
	}
	return errs
}

func validateReadinessSettings(s *ReadinessSettings) []string {
	var errs []string
	errs = appendIfNotPositive(errs, "readiness.pollinterval", s.PollInterval)
	errs = appendIfNotPositive(errs, "readiness.timeout", s.Timeout)
	if s.PollInterval > 0 && s.Timeout > 0 && s.Timeout < s.PollInterval {
		errs = append(errs, "readiness.timeout must not be shorter than readiness.pollinterval")
	}
	return errs
}

func validateQueueSettings(s *QueueSettings) []string {
	var errs []string
	if s.HistoryCapacity < 1 {
		errs = append(errs, "queue.historycapacity must be positive")
	}
	if s.EvictFraction <= 0 || s.EvictFraction > 1 {
		errs = append(errs, "queue.evictfraction must be in (0, 1]")
	}
	if s.MaxConsecutiveFailures < 1 {
		errs = append(errs, "queue.maxconsecutivefailures must be at least 1")
	}
	errs = appendIfNotPositive(errs, "queue.tickinterval", s.TickInterval)
	errs = appendIfNotPositive(errs, "queue.errorbackoff", s.ErrorBackoff)
	errs = appendIfNotPositive(errs, "queue.stoptimeout", s.StopTimeout)
	return errs
}

func validateDatabaseSettings(s *DatabaseSettings) []string {
	var errs []string
	switch strings.ToLower(s.Type) {
	case DatabaseSQLite:
		if s.SQLite.Path == "" {
			errs = append(errs, "database.sqlite.path is required for the sqlite store")
		}
	case DatabaseMySQL:
		if s.MySQL.Host == "" {
			errs = append(errs, "database.mysql.host is required for the mysql store")
		}
		if s.MySQL.Database == "" {
			errs = append(errs, "database.mysql.database is required for the mysql store")
		}
		if s.MySQL.Port < 1 || s.MySQL.Port > 65535 {
			errs = append(errs, "database.mysql.port must be between 1 and 65535")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.type %q is not supported (use sqlite or mysql)", s.Type))
	}
	if s.ReconnectAttempts < 1 {
		errs = append(errs, "database.reconnectattempts must be at least 1")
	}
	if s.ReconnectDelay < 0 {
		errs = append(errs, "database.reconnectdelay must not be negative")
	}
	return errs
}

func validateNotificationSettings(s *NotificationSettings) []string {
	var errs []string
	if s.Push.Enabled && len(s.Push.URLs) == 0 {
		errs = append(errs, "notification.push.urls must list at least one URL when push is enabled")
	}
	switch s.Push.MinPriority {
	case "", "low", "medium", "high", "critical":
	default:
		errs = append(errs, fmt.Sprintf("notification.push.minpriority %q is not a valid priority", s.Push.MinPriority))
	}
	if s.MQTT.Enabled {
		if s.MQTT.Broker == "" {
			errs = append(errs, "notification.mqtt.broker is required when mqtt is enabled")
		}
		if s.MQTT.Topic == "" {
			errs = append(errs, "notification.mqtt.topic is required when mqtt is enabled")
		}
	}
	if s.RateLimit.PerMinute < 0 || s.RateLimit.Burst < 0 {
		errs = append(errs, "notification.ratelimit values must not be negative")
	}
	return errs
}

func validateResourceSettings(s *ResourceSettings) []string {
	if !s.Enabled {
		return nil
	}
	var errs []string
	errs = appendIfNotPositive(errs, "resources.interval", s.Interval)
	if s.TrimMemoryMB > 0 && s.WarnMemoryMB > s.TrimMemoryMB {
		errs = append(errs, "resources.warnmemorymb must not exceed resources.trimmemorymb")
	}
	if s.WarnCPU < 0 {
		errs = append(errs, "resources.warncpu must not be negative")
	}
	if s.TrimKeep < 0 || s.TrimKeep > s.TrimTrigger {
		errs = append(errs, "resources.trimkeep must be between 0 and resources.trimtrigger")
	}
	return errs
}

func appendIfNotPositive(errs []string, key string, d time.Duration) []string {
	if d <= 0 {
		return append(errs, key+" must be positive")
	}
	return errs
}

func isValidLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "trace", "debug", "info", "warn", "warning", "error":
		return true
	default:
		return false
	}
}
