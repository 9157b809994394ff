package conf

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/attendsync/attendance-monitor/internal/errors"
)

const appDirName = "attendance-monitor"

// GetDefaultConfigPaths returns the directories searched for config.yaml, in order.
// The working directory always comes first.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Component("configuration").
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	paths := []string{"."}
	if runtime.GOOS == "windows" {
		if exePath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Dir(exePath))
		}
		return append(paths, filepath.Join(homeDir, "AppData", "Roaming", appDirName)), nil
	}
	return append(paths,
		filepath.Join(homeDir, ".config", appDirName),
		filepath.Join("/etc", appDirName),
	), nil
}

// DefaultConfigPath is where `config init` writes a new file.
func DefaultConfigPath() (string, error) {
	paths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}
	return filepath.Join(paths[1], "config.yaml"), nil
}
