// Package config implements configuration file helpers.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/attendsync/attendance-monitor/internal/app"
	"github.com/attendsync/attendance-monitor/internal/conf"
)

const redacted = "***"

// Command creates the config command. skipLoad is the annotation that
// keeps the root command from loading configuration before init runs.
func Command(appCtx *app.Context, skipLoad string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:         "init [path]",
		Short:       "Write a config.yaml holding the default settings",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipLoad: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "config.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			return Init(path, force, cmd.OutOrStdout())
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := yaml.Marshal(Redact(appCtx.Settings))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

// Init writes default settings to path. An existing file is kept unless force is set.
func Init(path string, force bool, out io.Writer) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}
	settings, err := conf.Defaults()
	if err != nil {
		return err
	}
	if err := conf.SaveYAMLConfig(path, settings); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "wrote default configuration to %s\n", path)
	return err
}

// Redact returns a copy of settings with passwords and tokens masked.
func Redact(settings *conf.Settings) conf.Settings {
	out := *settings
	if out.Database.MySQL.Password != "" {
		out.Database.MySQL.Password = redacted
	}
	if out.Notification.MQTT.Password != "" {
		out.Notification.MQTT.Password = redacted
	}
	if out.Sentry.DSN != "" {
		out.Sentry.DSN = redacted
	}
	if len(out.Notification.Push.URLs) > 0 {
		urls := make([]string, len(out.Notification.Push.URLs))
		for i := range urls {
			urls[i] = redacted
		}
		out.Notification.Push.URLs = urls
	}
	return out
}
