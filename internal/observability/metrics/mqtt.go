package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTTMetrics tracks the batch summary publisher.
type MQTTMetrics struct {
	ConnectionStatus  prometheus.Gauge
	MessagesPublished prometheus.Counter
	Errors            *prometheus.CounterVec
	PublishLatency    prometheus.Histogram
}

// NewMQTTMetrics creates and registers the MQTT collectors.
func NewMQTTMetrics(registry *prometheus.Registry) (*MQTTMetrics, error) {
	m := &MQTTMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

func (m *MQTTMetrics) initMetrics() {
	m.ConnectionStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "attendance_mqtt_connection_status",
		Help: "MQTT broker connection status (1 connected, 0 disconnected)",
	})
	m.MessagesPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_mqtt_messages_published_total",
		Help: "Batch summaries published to the broker",
	})
	m.Errors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_mqtt_errors_total",
		Help: "MQTT errors, by stage",
	}, []string{"stage"})
	m.PublishLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "attendance_mqtt_publish_latency_seconds",
		Help:    "Time from publish call to broker acknowledgement",
		Buckets: prometheus.DefBuckets,
	})
}

func (m *MQTTMetrics) SetConnected(ok bool) {
	if ok {
		m.ConnectionStatus.Set(1)
	} else {
		m.ConnectionStatus.Set(0)
	}
}

func (m *MQTTMetrics) RecordPublish(seconds float64) {
	m.MessagesPublished.Inc()
	m.PublishLatency.Observe(seconds)
}

func (m *MQTTMetrics) IncError(stage string) { m.Errors.WithLabelValues(stage).Inc() }

// Collect implements the prometheus.Collector interface.
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.ConnectionStatus
	ch <- m.MessagesPublished
	m.Errors.Collect(ch)
	ch <- m.PublishLatency
}

// Describe implements the prometheus.Collector interface.
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.ConnectionStatus.Desc()
	ch <- m.MessagesPublished.Desc()
	m.Errors.Describe(ch)
	ch <- m.PublishLatency.Desc()
}
