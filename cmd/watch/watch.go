// Package watch implements the long-running folder monitor command.
package watch

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/attendsync/attendance-monitor/internal/app"
	"github.com/attendsync/attendance-monitor/internal/conf"
	"github.com/attendsync/attendance-monitor/internal/errors"
	"github.com/attendsync/attendance-monitor/internal/httpserver"
	"github.com/attendsync/attendance-monitor/internal/instancelock"
	"github.com/attendsync/attendance-monitor/internal/logger"
	"github.com/attendsync/attendance-monitor/internal/monitor"
	"github.com/attendsync/attendance-monitor/internal/telemetry"
)

// Command creates the watch command.
func Command(appCtx *app.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Monitor a folder and ingest attendance exports as they arrive",
		Long: "Watches the configured folder, waits for each new or modified spreadsheet to finish " +
			"writing and reconciles its rows into the attendance store until interrupted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Run(cmd.Context(), appCtx)
		},
	}

	if err := setupFlags(cmd, appCtx); err != nil {
		panic(err)
	}
	return cmd
}

func setupFlags(cmd *cobra.Command, appCtx *app.Context) error {
	cmd.Flags().String("folder", "", "Folder receiving attendance exports")
	cmd.Flags().Bool("web", false, "Enable the status server")
	cmd.Flags().String("listen", "", "Status server listen address")

	bindings := map[string]string{
		"folder": "watch.folder",
		"web":    "webserver.enabled",
		"listen": "webserver.listen",
	}
	for flag, key := range bindings {
		if err := appCtx.Viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// Run monitors the folder until ctx is cancelled.
func Run(ctx context.Context, appCtx *app.Context) error {
	settings := appCtx.Settings
	if err := conf.RequireWatchFolder(settings); err != nil {
		return err
	}
	log := appCtx.Log("watch")

	lock, err := instancelock.Acquire(settings.Main.LockFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warn("failed to release instance lock", logger.Error(err))
		}
	}()

	if err := telemetry.InitSentry(settings.Sentry, appCtx.Build, nil, appCtx.Log("telemetry")); err != nil {
		log.Warn("telemetry disabled", logger.Error(err))
	}
	defer telemetry.Flush()

	pipeline, err := app.NewPipeline(ctx, settings, appCtx.Build, app.PipelineOptions{Providers: true})
	if err != nil {
		log.Error("failed to connect to the attendance store", logger.Error(err))
		return err
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			log.Warn("failed to close pipeline", logger.Error(err))
		}
	}()

	pipeline.Notifier.AppStarted(settings.Main.Name, appCtx.Build.GetVersion())
	pipeline.Notifier.StoreConnected(settings.Database.Type)

	mon := monitor.New(settings.Watch, settings.Queue, monitor.Deps{
		Processor:    pipeline.Processor,
		Store:        pipeline.Store,
		Notifier:     pipeline.Notifier,
		Metrics:      pipeline.Metrics.Pipeline,
		StoreMetrics: pipeline.Metrics.Datastore,
		Log:          appCtx.Log("monitor"),
	})

	g, gctx := errgroup.WithContext(ctx)
	if err := mon.Start(gctx); err != nil {
		return err
	}

	if settings.Resources.Enabled {
		rm, err := monitor.NewResourceMonitor(settings.Resources, mon.Queue(), pipeline.Metrics.Pipeline, nil, appCtx.Log("resources"))
		if err != nil {
			log.Warn("resource monitor unavailable", logger.Error(err))
		} else {
			g.Go(func() error { return rm.Run(gctx) })
		}
	}

	var srv *httpserver.Server
	if settings.WebServer.Enabled {
		srv = httpserver.New(settings.WebServer,
			httpserver.WithStore(pipeline.Store),
			httpserver.WithMonitor(mon),
			httpserver.WithNotifier(pipeline.Notifier),
			httpserver.WithMetrics(pipeline.Metrics),
			httpserver.WithLogger(appCtx.Log("httpserver")))
		if err := srv.Start(); err != nil {
			_ = mon.Stop()
			return err
		}
	}

	log.Info("attendance monitor running",
		logger.String("folder", settings.Watch.Folder),
		logger.String("version", appCtx.Build.GetVersion()))

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		var errs []error
		if srv != nil {
			errs = append(errs, srv.Shutdown(context.Background()))
		}
		errs = append(errs, mon.Stop())
		return errors.Join(errs...)
	})

	runErr := g.Wait()
	reason := "shutdown requested"
	if runErr != nil {
		reason = runErr.Error()
	}
	pipeline.Notifier.AppExiting(reason)
	return runErr
}
