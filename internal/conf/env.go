// env.go - environment variable configuration and validation
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"watch.folder", "ATTENDANCE_WATCH_FOLDER", nil},
		{"database.type", "ATTENDANCE_DB_TYPE", validateEnvDatabaseType},
		{"database.sqlite.path", "ATTENDANCE_SQLITE_PATH", nil},
		{"database.mysql.host", "ATTENDANCE_MYSQL_HOST", nil},
		{"database.mysql.port", "ATTENDANCE_MYSQL_PORT", validateEnvPort},
		{"database.mysql.username", "ATTENDANCE_MYSQL_USERNAME", nil},
		{"database.mysql.password", "ATTENDANCE_MYSQL_PASSWORD", nil},
		{"database.mysql.passwordfile", "ATTENDANCE_MYSQL_PASSWORD_FILE", nil},
		{"database.mysql.database", "ATTENDANCE_MYSQL_DATABASE", nil},
		{"logging.default_level", "ATTENDANCE_LOG_LEVEL", validateEnvLogLevel},
		{"notification.mqtt.password", "ATTENDANCE_MQTT_PASSWORD", nil},
		{"notification.mqtt.passwordfile", "ATTENDANCE_MQTT_PASSWORD_FILE", nil},
		{"sentry.dsn", "ATTENDANCE_SENTRY_DSN", nil},
		{"webserver.listen", "ATTENDANCE_LISTEN", nil},
	}
}

// bindEnvVars binds every known environment variable and validates set values.
func bindEnvVars(v *viper.Viper) error {
	var problems []string
	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			problems = append(problems, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}
		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" {
			if err := binding.Validate(value); err != nil {
				problems = append(problems, fmt.Sprintf("invalid %s value %q: %v", binding.EnvVar, value, err))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func validateEnvDatabaseType(value string) error {
	switch strings.ToLower(value) {
	case DatabaseSQLite, DatabaseMySQL:
		return nil
	default:
		return fmt.Errorf("must be %q or %q", DatabaseSQLite, DatabaseMySQL)
	}
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("not a number")
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("must be between 1 and 65535")
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	if !isValidLogLevel(value) {
		return fmt.Errorf("must be one of trace, debug, info, warn, error")
	}
	return nil
}
