// Package version prints build metadata.
package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/attendsync/attendance-monitor/internal/buildinfo"
)

// Command creates the version command.
func Command(skipLoad string) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipLoad: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			build := buildinfo.Current("")
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "attendance-monitor %s (built %s, %s %s/%s)\n",
				build.GetVersion(), build.GetBuildDate(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return err
		},
	}
}
