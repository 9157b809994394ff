// Package ingest implements one-shot processing of attendance files.
package ingest

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/attendsync/attendance-monitor/internal/app"
	"github.com/attendsync/attendance-monitor/internal/processor"
)

// Command creates the ingest command.
func Command(appCtx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Process attendance spreadsheets once and exit",
		Long: "Runs each file through the same readiness, ingestion and reconciliation steps " +
			"as the folder monitor. Files whose content was already reconciled are skipped.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), appCtx, args, cmd.OutOrStdout())
		},
	}
}

// Run processes paths in order and writes one result line per file to out.
func Run(ctx context.Context, appCtx *app.Context, paths []string, out io.Writer) error {
	pipeline, err := app.NewPipeline(ctx, appCtx.Settings, appCtx.Build, app.PipelineOptions{})
	if err != nil {
		return err
	}
	defer pipeline.Close()

	failed := 0
	for _, path := range paths {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		res := pipeline.Processor.Process(ctx, path)
		fmt.Fprintln(out, formatResult(res))
		if !res.Completed() {
			failed++
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files were not processed", failed, len(paths))
	}
	return nil
}

func formatResult(res processor.Result) string {
	name := filepath.Base(res.Path)
	switch res.Outcome {
	case processor.Processed:
		s := res.Summary
		return fmt.Sprintf("%s: processed %d rows (inserted %d, updated %d, duplicates %d, rejected %d, errors %d) in %s",
			name, s.Total, s.Inserted, s.Updated, s.DuplicatesLogged, s.Rejected, s.Errors, res.Duration.Round(time.Millisecond))
	case processor.Skipped:
		return fmt.Sprintf("%s: skipped, content already processed", name)
	case processor.Vanished:
		return fmt.Sprintf("%s: file not found", name)
	default:
		if res.Err != nil {
			return fmt.Sprintf("%s: %s: %v", name, res.Outcome, res.Err)
		}
		return fmt.Sprintf("%s: %s", name, res.Outcome)
	}
}
