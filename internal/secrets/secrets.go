// Package secrets resolves credentials given as literals, ${VAR} references
// or mounted secret files.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/attendsync/attendance-monitor/internal/logger"
)

const maxFileSize = 64 * 1024

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandString expands ${VAR} and ${VAR:-default} references in s. A bare
// $ is kept as is. A referenced variable that is unset or empty and has no
// default is an error.
func ExpandString(s string) (string, error) {
	var missing []string
	expanded := envRef.ReplaceAllStringFunc(s, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if v := os.Getenv(m[1]); v != "" {
			return v
		}
		if m[2] != "" {
			return m[3]
		}
		missing = append(missing, m[1])
		return ""
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}
	return expanded, nil
}

// ReadFile reads a secret file such as /run/secrets/db_password. Trailing
// newlines are dropped; an empty file is an error.
func ReadFile(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("secret file path is empty")
	}
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return "", fmt.Errorf("secret file not found: %s", path)
	case err != nil:
		return "", fmt.Errorf("failed to stat secret file %s: %w", path, err)
	case !info.Mode().IsRegular():
		return "", fmt.Errorf("secret path is not a regular file: %s", path)
	case info.Size() > maxFileSize:
		return "", fmt.Errorf("secret file too large (max %d bytes): %s", maxFileSize, path)
	}

	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Global().Module("secrets").Warn("secret file is readable by group or others",
			logger.String("path", path),
			logger.String("mode", fmt.Sprintf("%04o", perm)))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", path, err)
	}
	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fmt.Errorf("secret file is empty: %s", path)
	}
	return secret, nil
}

// Resolve returns the secret from filePath when set, otherwise value with
// environment references expanded.
func Resolve(filePath, value string) (string, error) {
	if filePath != "" {
		return ReadFile(filePath)
	}
	return ExpandString(value)
}
