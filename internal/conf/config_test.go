package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults_MatchPipelineConstants(t *testing.T) {
	t.Parallel()

	s, err := Defaults()
	require.NoError(t, err)

	assert.Equal(t, ".xlsx", s.Watch.Extension)
	assert.Equal(t, 500*time.Millisecond, s.Readiness.PollInterval)
	assert.Equal(t, 20*time.Second, s.Readiness.Timeout)
	assert.Equal(t, 1000, s.Queue.HistoryCapacity)
	assert.InDelta(t, 0.2, s.Queue.EvictFraction, 1e-9)
	assert.Equal(t, time.Second, s.Queue.TickInterval)
	assert.Equal(t, 5*time.Second, s.Queue.ErrorBackoff)
	assert.Equal(t, 3, s.Queue.MaxConsecutiveFailures)
	assert.Equal(t, 3, s.Database.ReconnectAttempts)
	assert.Equal(t, 3*time.Second, s.Database.ReconnectDelay)
	assert.Equal(t, 200, s.Reconcile.ErrorMessageLimit)
	assert.Equal(t, uint64(500), s.Resources.WarnMemoryMB)
	assert.Equal(t, uint64(800), s.Resources.TrimMemoryMB)
	assert.Equal(t, "info", s.Logging.DefaultLevel)
	require.NotNil(t, s.Logging.Console)
	assert.True(t, s.Logging.Console.Enabled)

	require.NoError(t, ValidateSettings(s))
}

func TestLoad_ConfigFileOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
watch:
  folder: /data/exports
  extension: .xlsx
queue:
  historycapacity: 50
  errorbackoff: 2s
database:
  type: mysql
  mysql:
    host: db.internal
    port: 3307
    database: hr
logging:
  default_level: debug
`)

	s, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "/data/exports", s.Watch.Folder)
	assert.Equal(t, 50, s.Queue.HistoryCapacity)
	assert.Equal(t, 2*time.Second, s.Queue.ErrorBackoff)
	assert.Equal(t, DatabaseMySQL, s.Database.Type)
	assert.Equal(t, "db.internal", s.Database.MySQL.Host)
	assert.Equal(t, 3307, s.Database.MySQL.Port)
	assert.Equal(t, "debug", s.Logging.DefaultLevel)
	// untouched keys keep their defaults
	assert.Equal(t, 20*time.Second, s.Readiness.Timeout)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "watch:\n  folder: /from/file\n")
	t.Setenv("ATTENDANCE_WATCH_FOLDER", "/from/env")
	t.Setenv("ATTENDANCE_SQLITE_PATH", "/var/lib/attendance/attendance.db")

	s, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "/from/env", s.Watch.Folder)
	assert.Equal(t, "/var/lib/attendance/attendance.db", s.Database.SQLite.Path)
}

func TestLoad_InvalidEnvironmentValue(t *testing.T) {
	path := writeConfig(t, "{}\n")
	t.Setenv("ATTENDANCE_DB_TYPE", "postgres")

	_, err := Load(viper.New(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ATTENDANCE_DB_TYPE")
}

func TestLoad_ValidationErrorsAreAggregated(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
watch:
  extension: xlsx
queue:
  historycapacity: 0
database:
  type: oracle
`)

	_, err := Load(viper.New(), path)
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 3)
}

func TestLoad_DebugRaisesLogLevel(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "debug: true\n")
	s, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "debug", s.Logging.DefaultLevel)
}

func TestSaveYAMLConfig_LoadsBack(t *testing.T) {
	t.Parallel()

	s, err := Defaults()
	require.NoError(t, err)
	s.Watch.Folder = `C:\Biometric\Exports`
	s.Notification.Push.URLs = []string{"ntfy://ntfy.sh/attendance"}

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveYAMLConfig(path, s))

	loaded, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, s.Watch.Folder, loaded.Watch.Folder)
	assert.Equal(t, s.Notification.Push.URLs, loaded.Notification.Push.URLs)
	assert.Equal(t, s.Readiness.Timeout, loaded.Readiness.Timeout)
	assert.Equal(t, s.Logging.FileOutput.Path, loaded.Logging.FileOutput.Path)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ATTENDANCE_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ATTENDANCE_TEST_DOTENV") })

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("ATTENDANCE_TEST_DOTENV"))

	require.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestRequireWatchFolder(t *testing.T) {
	t.Parallel()

	s, err := Defaults()
	require.NoError(t, err)
	require.Error(t, RequireWatchFolder(s))

	s.Watch.Folder = "/data/exports"
	require.NoError(t, RequireWatchFolder(s))
}

func TestLoad_ResolvesSecrets(t *testing.T) {
	secretFile := filepath.Join(t.TempDir(), "mqtt_password")
	require.NoError(t, os.WriteFile(secretFile, []byte("from-file\n"), 0o600))
	t.Setenv("TEST_DB_PASSWORD", "hunter2")
	t.Setenv("TEST_PUSH_TOKEN", "abc123")
	t.Setenv("ATTENDANCE_MQTT_PASSWORD_FILE", secretFile)

	path := writeConfig(t, `
database:
  mysql:
    password: ${TEST_DB_PASSWORD}
notification:
  push:
    urls:
      - generic://hooks.example.com/${TEST_PUSH_TOKEN}
  mqtt:
    username: ${TEST_MQTT_USER:-monitor}
`)

	s, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "hunter2", s.Database.MySQL.Password)
	assert.Equal(t, "from-file", s.Notification.MQTT.Password)
	assert.Equal(t, "monitor", s.Notification.MQTT.Username)
	assert.Equal(t, []string{"generic://hooks.example.com/abc123"}, s.Notification.Push.URLs)
}

func TestLoad_MissingSecretVariable(t *testing.T) {
	path := writeConfig(t, "sentry:\n  dsn: ${TEST_UNSET_SENTRY_DSN}\n")

	_, err := Load(viper.New(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_UNSET_SENTRY_DSN")
}
