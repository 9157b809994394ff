// Package observability owns the Prometheus registry of the attendance monitor.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/attendsync/attendance-monitor/internal/errors"
	"github.com/attendsync/attendance-monitor/internal/observability/metrics"
)

// Metrics groups every collector on a private registry.
type Metrics struct {
	registry     *prometheus.Registry
	Pipeline     *metrics.PipelineMetrics
	Datastore    *metrics.DatastoreMetrics
	Notification *metrics.NotificationMetrics
	MQTT         *metrics.MQTTMetrics
}

// NewMetrics creates a registry with process and Go runtime collectors plus
// the attendance collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{registry: registry}
	var err error
	if m.Pipeline, err = metrics.NewPipelineMetrics(registry); err != nil {
		return nil, wrap(err, "pipeline")
	}
	if m.Datastore, err = metrics.NewDatastoreMetrics(registry); err != nil {
		return nil, wrap(err, "datastore")
	}
	if m.Notification, err = metrics.NewNotificationMetrics(registry); err != nil {
		return nil, wrap(err, "notification")
	}
	if m.MQTT, err = metrics.NewMQTTMetrics(registry); err != nil {
		return nil, wrap(err, "mqtt")
	}
	return m, nil
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

func wrap(err error, collector string) error {
	return errors.New(err).
		Component("observability").
		Category(errors.CategorySystem).
		Context("collector", collector).
		Build()
}
