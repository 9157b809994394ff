// Package conf loads and validates attendance-monitor settings.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/attendsync/attendance-monitor/internal/errors"
	"github.com/attendsync/attendance-monitor/internal/logger"
	"github.com/attendsync/attendance-monitor/internal/secrets"
)

// Settings is the root configuration. Every component receives the sub-struct it needs.
type Settings struct {
	Debug bool // enable debug logging for all modules

	Main struct {
		Name     string // instance name, used as MQTT client id and notification component
		LockFile string // single-instance lock file path
	}

	Watch        WatchSettings
	Readiness    ReadinessSettings
	Queue        QueueSettings
	Reconcile    ReconcileSettings
	Database     DatabaseSettings
	Logging      logger.LoggingConfig
	Notification NotificationSettings
	WebServer    WebServerSettings
	Resources    ResourceSettings
	Sentry       SentrySettings
}

// WatchSettings configures the folder watcher.
type WatchSettings struct {
	Folder         string   // directory receiving spreadsheet exports
	Extension      string   // spreadsheet extension, including the dot
	ScanExisting   bool     // enqueue files already present when monitoring starts
	IgnorePrefixes []string // name prefixes to ignore, e.g. office lock files "~$"
}

// ReadinessSettings configures the file readiness gate.
type ReadinessSettings struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

// QueueSettings configures the processing queue and the worker loop.
type QueueSettings struct {
	HistoryCapacity        int           // processed file names remembered
	EvictFraction          float64       // share of oldest history evicted when capacity is exceeded
	TickInterval           time.Duration // worker loop cadence
	ErrorBackoff           time.Duration // sleep after a loop-level failure
	MaxConsecutiveFailures int           // loop failures before the watcher is restarted
	StopTimeout            time.Duration // bounded join on shutdown
}

// ReconcileSettings configures the reconciler.
type ReconcileSettings struct {
	ErrorMessageLimit int // max characters of a row error stored in the event log
}

// DatabaseSettings selects and configures the attendance store.
type DatabaseSettings struct {
	Type                string // sqlite or mysql
	SQLite              SQLiteSettings
	MySQL               MySQLSettings
	ReconnectAttempts   int
	ReconnectDelay      time.Duration
	SlowQueryThreshold  time.Duration
	FingerprintCacheTTL time.Duration
}

// SQLiteSettings configures the embedded store.
type SQLiteSettings struct {
	Path string
}

// MySQLSettings configures a MySQL/MariaDB store.
type MySQLSettings struct {
	Host         string
	Port         int
	Username     string
	Password     string // literal or ${VAR} reference
	PasswordFile string // secret file, takes precedence over Password
	Database     string
	MaxOpenConns int
	MaxIdleConns int
}

// NotificationSettings configures human-facing status delivery.
type NotificationSettings struct {
	HistorySize int // notifications kept in memory for the status server
	RateLimit   struct {
		PerMinute int // outbound pushes per minute across providers
		Burst     int
	}
	Push PushSettings
	MQTT MQTTSettings
}

// PushSettings configures shoutrrr push delivery.
type PushSettings struct {
	Enabled     bool
	URLs        []string // shoutrrr service URLs
	MinPriority string   // low, medium, high or critical
	Timeout     time.Duration
}

// MQTTSettings configures batch summary publishing over MQTT.
type MQTTSettings struct {
	Enabled      bool
	Broker       string
	Topic        string
	Username     string
	Password     string
	PasswordFile string
	Retain       bool
}

// WebServerSettings configures the optional status server.
type WebServerSettings struct {
	Enabled bool
	Listen  string
}

// ResourceSettings configures the process memory monitor.
type ResourceSettings struct {
	Enabled      bool
	Interval     time.Duration
	WarnMemoryMB uint64  // log a warning above this RSS
	WarnCPU      float64 // log a warning above this process CPU percentage, 0 disables
	TrimMemoryMB uint64  // trim processed history above this RSS
	TrimTrigger  int     // only trim when history holds more entries than this
	TrimKeep     int     // entries kept after trimming
}

// SentrySettings configures optional error telemetry.
type SentrySettings struct {
	Enabled     bool
	DSN         string
	DSNFile     string
	Environment string
}

// Load reads defaults, the optional .env file, environment variables and the
// config file (configFile, or the first config.yaml found on the search path)
// into a Settings value and validates it.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if v == nil {
		v = viper.New()
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	if err := initViper(v, configFile); err != nil {
		return nil, errors.New(err).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Context("operation", "init_viper").
			Build()
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
	}

	if err := resolveSecrets(settings); err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// resolveSecrets replaces credential settings with their resolved values.
// Each may be a literal, a ${VAR} or ${VAR:-default} reference, or come from
// the matching *File setting.
func resolveSecrets(settings *Settings) error {
	fields := []struct {
		key   string
		file  string
		value *string
	}{
		{"database.mysql.password", settings.Database.MySQL.PasswordFile, &settings.Database.MySQL.Password},
		{"notification.mqtt.username", "", &settings.Notification.MQTT.Username},
		{"notification.mqtt.password", settings.Notification.MQTT.PasswordFile, &settings.Notification.MQTT.Password},
		{"sentry.dsn", settings.Sentry.DSNFile, &settings.Sentry.DSN},
	}
	for _, f := range fields {
		resolved, err := secrets.Resolve(f.file, *f.value)
		if err != nil {
			return secretError(err, f.key)
		}
		*f.value = resolved
	}

	for i, url := range settings.Notification.Push.URLs {
		resolved, err := secrets.ExpandString(url)
		if err != nil {
			return secretError(err, fmt.Sprintf("notification.push.urls[%d]", i))
		}
		settings.Notification.Push.URLs[i] = resolved
	}
	return nil
}

func secretError(err error, key string) error {
	return errors.New(err).
		Component("configuration").
		Category(errors.CategoryConfiguration).
		Context("operation", "resolve_secret").
		Context("setting", key).
		Build()
}

// loadDotEnv loads KEY=VALUE pairs into the process environment without
// overriding variables that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.New(err).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Context("file", path).
			Build()
	}
	return nil
}

func initViper(v *viper.Viper, configFile string) error {
	setDefaultConfig(v)

	if err := bindEnvVars(v); err != nil {
		return err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	paths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Defaults and environment are enough to run.
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// Defaults returns Settings populated only from built-in defaults.
func Defaults() (*Settings, error) {
	v := viper.New()
	setDefaultConfig(v)
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling defaults: %w", err)
	}
	return settings, nil
}

// SaveYAMLConfig writes settings to configPath atomically (temp file + rename).
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}
	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
