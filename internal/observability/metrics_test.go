package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendsync/attendance-monitor/internal/observability/metrics"
)

func TestNewMetrics_RegistersCollectors(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	require.NotNil(t, m.Pipeline)
	require.NotNil(t, m.Datastore)
	require.NotNil(t, m.Notification)
	require.NotNil(t, m.MQTT)

	m.Pipeline.RecordFile(metrics.FileProcessed, 250*time.Millisecond)
	m.Pipeline.RecordFile(metrics.FileSkipped, time.Millisecond)
	m.Pipeline.RecordRows(3, 1, 1, 2, 0)
	m.Pipeline.SetQueueDepth(4)

	assert.InDelta(t, 1, testutil.ToFloat64(m.Pipeline.FilesTotal.WithLabelValues(metrics.FileProcessed)), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.Pipeline.RowsTotal.WithLabelValues(metrics.RowInserted)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.Pipeline.RowsTotal.WithLabelValues(metrics.RowRejected)), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(m.Pipeline.QueueDepth), 0)
}

func TestNewMetrics_Concurrent(t *testing.T) {
	t.Parallel()

	// Each instance owns its registry, so parallel construction never collides.
	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := NewMetrics(); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("NewMetrics: %v", err)
	}
}

func TestDatastoreMetrics_SetConnected(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.Datastore.SetConnected(false)
	assert.InDelta(t, 0, testutil.ToFloat64(m.Datastore.ConnectionStatus), 0)
	m.Datastore.SetConnected(true)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Datastore.ConnectionStatus), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Datastore.ReconnectsTotal.WithLabelValues(metrics.StatusError)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Datastore.ReconnectsTotal.WithLabelValues(metrics.StatusSuccess)), 0)
}

func TestHandler_ExposesMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	// Vectors export nothing until a label set has been observed.
	m.Pipeline.RecordFile(metrics.FileProcessed, 40*time.Millisecond)
	m.Notification.RecordDelivery("shoutrrr", metrics.StatusSuccess, 20*time.Millisecond)
	m.MQTT.RecordPublish(0.01)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, name := range []string{
		`attendance_files_total{outcome="processed"} 1`,
		"attendance_queue_depth",
		"attendance_store_connection_status",
		`attendance_notification_deliveries_total{provider="shoutrrr",status="success"} 1`,
		"attendance_mqtt_messages_published_total 1",
		"go_goroutines",
	} {
		assert.True(t, strings.Contains(body, name), "missing %s", name)
	}
}
