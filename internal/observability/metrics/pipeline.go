package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics covers the watcher, queue, worker loop and per-file processing.
type PipelineMetrics struct {
	FilesTotal      *prometheus.CounterVec
	RowsTotal       *prometheus.CounterVec
	FileDuration    prometheus.Histogram
	BatchesTotal    prometheus.Counter
	QueueDepth      prometheus.Gauge
	HistorySize     prometheus.Gauge
	LoopFailures    prometheus.Counter
	WatcherRestarts prometheus.Counter
	MemoryRSS       prometheus.Gauge
}

// NewPipelineMetrics creates and registers the pipeline collectors.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.FilesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_files_total",
		Help: "Spreadsheet files handled, by outcome",
	}, []string{"outcome"})

	m.RowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_rows_total",
		Help: "Attendance rows reconciled, by outcome",
	}, []string{"outcome"})

	m.FileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "attendance_file_duration_seconds",
		Help:    "Time from dequeue to final outcome of one file, including the readiness wait",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	m.BatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_batches_total",
		Help: "Queue drain passes that processed at least one file",
	})

	m.QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "attendance_queue_depth",
		Help: "Files waiting for the next batch",
	})

	m.HistorySize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "attendance_processed_history_size",
		Help: "File names remembered as processed",
	})

	m.LoopFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_loop_failures_total",
		Help: "Worker loop iterations that failed",
	})

	m.WatcherRestarts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_watcher_restarts_total",
		Help: "Folder watcher restarts after consecutive loop failures",
	})

	m.MemoryRSS = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "attendance_process_memory_rss_bytes",
		Help: "Resident set size of the monitor process at the last sample",
	})
}

// RecordFile counts one file outcome and its duration.
func (m *PipelineMetrics) RecordFile(outcome string, d time.Duration) {
	m.FilesTotal.WithLabelValues(outcome).Inc()
	m.FileDuration.Observe(d.Seconds())
}

// RecordRows adds per-row reconciliation counts.
func (m *PipelineMetrics) RecordRows(inserted, updated, duplicates, rejected, errs int) {
	m.RowsTotal.WithLabelValues(RowInserted).Add(float64(inserted))
	m.RowsTotal.WithLabelValues(RowUpdated).Add(float64(updated))
	m.RowsTotal.WithLabelValues(RowDuplicate).Add(float64(duplicates))
	m.RowsTotal.WithLabelValues(RowRejected).Add(float64(rejected))
	m.RowsTotal.WithLabelValues(RowError).Add(float64(errs))
}

func (m *PipelineMetrics) RecordBatch()              { m.BatchesTotal.Inc() }
func (m *PipelineMetrics) SetQueueDepth(n int)       { m.QueueDepth.Set(float64(n)) }
func (m *PipelineMetrics) SetHistorySize(n int)      { m.HistorySize.Set(float64(n)) }
func (m *PipelineMetrics) IncLoopFailures()          { m.LoopFailures.Inc() }
func (m *PipelineMetrics) IncWatcherRestarts()       { m.WatcherRestarts.Inc() }
func (m *PipelineMetrics) SetMemoryRSS(bytes uint64) { m.MemoryRSS.Set(float64(bytes)) }

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.FilesTotal.Collect(ch)
	m.RowsTotal.Collect(ch)
	ch <- m.FileDuration
	ch <- m.BatchesTotal
	ch <- m.QueueDepth
	ch <- m.HistorySize
	ch <- m.LoopFailures
	ch <- m.WatcherRestarts
	ch <- m.MemoryRSS
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.FilesTotal.Describe(ch)
	m.RowsTotal.Describe(ch)
	ch <- m.FileDuration.Desc()
	ch <- m.BatchesTotal.Desc()
	ch <- m.QueueDepth.Desc()
	ch <- m.HistorySize.Desc()
	ch <- m.LoopFailures.Desc()
	ch <- m.WatcherRestarts.Desc()
	ch <- m.MemoryRSS.Desc()
}
