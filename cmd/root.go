// Package cmd builds the attendance-monitor command tree.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/attendsync/attendance-monitor/cmd/config"
	"github.com/attendsync/attendance-monitor/cmd/ingest"
	"github.com/attendsync/attendance-monitor/cmd/query"
	"github.com/attendsync/attendance-monitor/cmd/version"
	"github.com/attendsync/attendance-monitor/cmd/watch"
	"github.com/attendsync/attendance-monitor/internal/app"
)

// SkipLoadAnnotation marks commands that run without loading the configuration.
const SkipLoadAnnotation = "skip-config-load"

// RootCommand creates the root command and its subcommands.
func RootCommand(appCtx *app.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "attendance-monitor",
		Short:         "Biometric attendance spreadsheet ingestion",
		Long:          "Watches a folder for biometric attendance exports and reconciles them into the attendance store.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd, appCtx); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		watch.Command(appCtx),
		ingest.Command(appCtx),
		query.Command(appCtx),
		config.Command(appCtx, SkipLoadAnnotation),
		version.Command(SkipLoadAnnotation),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if _, skip := cmd.Annotations[SkipLoadAnnotation]; skip {
			return nil
		}
		return appCtx.Load()
	}
	rootCmd.PersistentPostRunE = func(*cobra.Command, []string) error {
		return appCtx.Close()
	}

	return rootCmd
}

// setupFlags defines the global flags and binds them to configuration keys.
func setupFlags(rootCmd *cobra.Command, appCtx *app.Context) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&appCtx.ConfigFile, "config", "c", "", "Path to config.yaml (default: search the working, user and system config directories)")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("database", "", "Store type: sqlite or mysql")
	flags.String("sqlite", "", "SQLite database file")

	bindings := map[string]string{
		"debug":    "debug",
		"database": "database.type",
		"sqlite":   "database.sqlite.path",
	}
	for flag, key := range bindings {
		if err := appCtx.Viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
