package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics tracks attendance store availability.
type DatastoreMetrics struct {
	ConnectionStatus  prometheus.Gauge
	ReconnectsTotal   *prometheus.CounterVec
	TransientFailures prometheus.Counter
}

// NewDatastoreMetrics creates and registers the datastore collectors.
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register datastore metrics: %w", err)
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() {
	m.ConnectionStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "attendance_store_connection_status",
		Help: "Attendance store reachability at the last check (1 connected, 0 unavailable)",
	})
	m.ReconnectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_store_reconnects_total",
		Help: "Store reconnection checks, by result",
	}, []string{"status"})
	m.TransientFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_store_transient_failures_total",
		Help: "Files returned to the queue because the store was unavailable",
	})
}

// SetConnected records the result of a connection check.
func (m *DatastoreMetrics) SetConnected(ok bool) {
	if ok {
		m.ConnectionStatus.Set(1)
		m.ReconnectsTotal.WithLabelValues(StatusSuccess).Inc()
		return
	}
	m.ConnectionStatus.Set(0)
	m.ReconnectsTotal.WithLabelValues(StatusError).Inc()
}

func (m *DatastoreMetrics) IncTransientFailures() { m.TransientFailures.Inc() }

// Collect implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.ConnectionStatus
	m.ReconnectsTotal.Collect(ch)
	ch <- m.TransientFailures
}

// Describe implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.ConnectionStatus.Desc()
	m.ReconnectsTotal.Describe(ch)
	ch <- m.TransientFailures.Desc()
}
