// Package buildinfo holds build-time metadata injected through -ldflags.
package buildinfo

import (
	"os"
	"strings"

	"github.com/google/uuid"
)

// UnknownValue is reported for metadata the build did not set.
const UnknownValue = "unknown"

// Set with -ldflags "-X github.com/attendsync/attendance-monitor/internal/buildinfo.version=..."
var (
	version   string
	buildDate string
)

// Context is the build metadata of the running binary.
type Context struct {
	Version   string
	BuildDate string
	// SystemID identifies this installation in telemetry and MQTT client ids.
	SystemID string
}

// NewContext builds a Context from explicit values.
func NewContext(version, buildDate, systemID string) *Context {
	return &Context{Version: version, BuildDate: buildDate, SystemID: systemID}
}

// Current returns the metadata linked into the binary. The system id is read
// from idFile, or generated and written there when the file does not exist.
// An empty idFile yields a fresh id per process.
func Current(idFile string) *Context {
	return NewContext(version, buildDate, loadSystemID(idFile))
}

func loadSystemID(idFile string) string {
	if idFile == "" {
		return uuid.NewString()
	}
	if data, err := os.ReadFile(idFile); err == nil {
		if id := strings.TrimSpace(string(data)); uuid.Validate(id) == nil {
			return id
		}
	}
	id := uuid.NewString()
	// Best effort: an unwritable id file only costs a stable id.
	_ = os.WriteFile(idFile, []byte(id+"\n"), 0o644)
	return id
}

// GetVersion returns the version tag, or UnknownValue.
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate returns the build date, or UnknownValue.
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// GetSystemID returns the installation id, or UnknownValue.
func (c *Context) GetSystemID() string {
	if c == nil || c.SystemID == "" {
		return UnknownValue
	}
	return c.SystemID
}

// ShortSystemID returns the first eight characters of the system id.
func (c *Context) ShortSystemID() string {
	id := c.GetSystemID()
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
