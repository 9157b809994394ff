package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetrics tracks outbound notification delivery per provider.
type NotificationMetrics struct {
	DeliveriesTotal  *prometheus.CounterVec
	DeliveryDuration *prometheus.HistogramVec
}

// NewNotificationMetrics creates and registers the notification collectors.
func NewNotificationMetrics(registry *prometheus.Registry) (*NotificationMetrics, error) {
	m := &NotificationMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register notification metrics: %w", err)
	}
	return m, nil
}

func (m *NotificationMetrics) initMetrics() {
	m.DeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_notification_deliveries_total",
		Help: "Notification deliveries, by provider and status",
	}, []string{"provider", "status"})
	m.DeliveryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "attendance_notification_delivery_duration_seconds",
		Help:    "Time spent delivering one notification",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
}

// RecordDelivery counts a delivery attempt. A zero duration is not observed.
func (m *NotificationMetrics) RecordDelivery(provider, status string, d time.Duration) {
	m.DeliveriesTotal.WithLabelValues(provider, status).Inc()
	if d > 0 {
		m.DeliveryDuration.WithLabelValues(provider).Observe(d.Seconds())
	}
}

// Collect implements the prometheus.Collector interface.
func (m *NotificationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.DeliveriesTotal.Collect(ch)
	m.DeliveryDuration.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *NotificationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.DeliveriesTotal.Describe(ch)
	m.DeliveryDuration.Describe(ch)
}
