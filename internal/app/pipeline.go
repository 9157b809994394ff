package app

import (
	"context"

	"github.com/spf13/afero"

	"github.com/attendsync/attendance-monitor/internal/buildinfo"
	"github.com/attendsync/attendance-monitor/internal/conf"
	"github.com/attendsync/attendance-monitor/internal/datastore"
	"github.com/attendsync/attendance-monitor/internal/ingest"
	"github.com/attendsync/attendance-monitor/internal/logger"
	"github.com/attendsync/attendance-monitor/internal/notification"
	"github.com/attendsync/attendance-monitor/internal/observability"
	"github.com/attendsync/attendance-monitor/internal/processor"
	"github.com/attendsync/attendance-monitor/internal/readiness"
	"github.com/attendsync/attendance-monitor/internal/reconcile"
)

// Pipeline is the assembled single-file processing path and its collaborators.
type Pipeline struct {
	Store     *datastore.DataStore
	Notifier  *notification.Service
	Metrics   *observability.Metrics
	Processor *processor.Processor
	Fs        afero.Fs
}

// PipelineOptions tunes NewPipeline.
type PipelineOptions struct {
	// Providers enables the configured push and MQTT deliveries.
	Providers bool
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
	// Store replaces the configured store, mainly for tests.
	Store *datastore.DataStore
}

// NewPipeline opens the store and wires readiness, ingestion and
// reconciliation behind a processor.
func NewPipeline(ctx context.Context, settings *conf.Settings, build *buildinfo.Context, opts PipelineOptions) (*Pipeline, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}

	store := opts.Store
	if store == nil {
		store, err = datastore.New(settings.Database, logger.Global().Module("datastore"))
		if err != nil {
			metrics.Datastore.SetConnected(false)
			return nil, err
		}
	}
	if err := store.EnsureConnected(ctx); err != nil {
		metrics.Datastore.SetConnected(false)
		_ = store.Close()
		return nil, err
	}
	metrics.Datastore.SetConnected(true)

	notifyOpts := []notification.ServiceOption{notification.WithDeliveryRecorder(metrics.Notification)}
	if opts.Providers {
		notifyOpts = append(notifyOpts, notification.WithProviders(providers(settings, build, metrics.MQTT)...))
	}
	notifier := notification.NewService(settings.Notification, logger.Global().Module("notification"), notifyOpts...)

	log := logger.Global().Module("processor")
	proc := processor.New(processor.Deps{
		Gate:       readiness.NewGate(fs, settings.Readiness.PollInterval, logger.Global().Module("readiness")),
		Ingestor:   ingest.NewIngestor(fs, logger.Global().Module("ingest")),
		Reconciler: reconcile.New(store, settings.Reconcile, logger.Global().Module("reconcile")),
		Events:     store,
		Notifier:   notifier,
		Metrics:    metrics.Pipeline,
		Log:        log,
	}, settings.Readiness, settings.Reconcile)

	return &Pipeline{
		Store:     store,
		Notifier:  notifier,
		Metrics:   metrics,
		Processor: proc,
		Fs:        fs,
	}, nil
}

func providers(settings *conf.Settings, build *buildinfo.Context, mqttMetrics notification.MQTTRecorder) []notification.Provider {
	var list []notification.Provider
	if settings.Notification.Push.Enabled {
		list = append(list, notification.NewShoutrrrProvider(settings.Notification.Push))
	}
	if settings.Notification.MQTT.Enabled {
		clientID := settings.Main.Name + "-" + build.ShortSystemID()
		list = append(list, notification.NewMQTTProvider(settings.Notification.MQTT, clientID,
			mqttMetrics, logger.Global().Module("mqtt")))
	}
	return list
}

// Close stops notification delivery and closes the store.
func (p *Pipeline) Close() error {
	p.Notifier.Close()
	return p.Store.Close()
}
