// Package app loads configuration and assembles the processing pipeline
// shared by the CLI commands.
package app

import (
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/attendsync/attendance-monitor/internal/buildinfo"
	"github.com/attendsync/attendance-monitor/internal/conf"
	"github.com/attendsync/attendance-monitor/internal/logger"
)

const systemIDFile = "system-id"

// Context carries state from the root command into subcommands.
type Context struct {
	Viper      *viper.Viper
	ConfigFile string
	Settings   *conf.Settings
	Build      *buildinfo.Context

	central *logger.CentralLogger
}

// NewContext returns an unloaded context with its own viper instance.
func NewContext() *Context {
	return &Context{Viper: viper.New()}
}

// Load reads the configuration and installs the central logger as the global logger.
func (c *Context) Load() error {
	settings, err := conf.Load(c.Viper, c.ConfigFile)
	if err != nil {
		return err
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return err
	}
	logger.SetGlobal(central)

	idFile := ""
	if used := c.Viper.ConfigFileUsed(); used != "" {
		idFile = filepath.Join(filepath.Dir(used), systemIDFile)
	}

	c.Settings = settings
	c.Build = buildinfo.Current(idFile)
	c.central = central
	return nil
}

// Log returns a module logger of the installed central logger.
func (c *Context) Log(module string) logger.Logger {
	if c.central != nil {
		return c.central.Module(module)
	}
	return logger.Global().Module(module)
}

// Close flushes and closes log outputs.
func (c *Context) Close() error {
	if c.central == nil {
		return nil
	}
	return c.central.Close()
}
