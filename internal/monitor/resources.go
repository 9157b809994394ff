package monitor

import (
	"context"
	"os"
	"runtime/debug"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/attendsync/attendance-monitor/internal/conf"
	"github.com/attendsync/attendance-monitor/internal/logger"
	"github.com/attendsync/attendance-monitor/internal/queue"
)

const bytesPerMB = 1024 * 1024

// ResourceSample is one reading of the monitor process.
type ResourceSample struct {
	RSS        uint64
	CPUPercent float64
}

// SampleFunc reads the current process resources.
type SampleFunc func() (ResourceSample, error)

// ResourceMonitor samples process memory and CPU, warns above thresholds and
// trims the processed-file history under memory pressure.
type ResourceMonitor struct {
	settings conf.ResourceSettings
	queue    *queue.Queue
	metrics  PipelineRecorder
	sample   SampleFunc
	log      logger.Logger
}

// ProcessSampler samples the current process with gopsutil.
func ProcessSampler() (SampleFunc, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return func() (ResourceSample, error) {
		mem, err := proc.MemoryInfo()
		if err != nil {
			return ResourceSample{}, err
		}
		// Percent(0) compares against the previous call; the first reading is 0.
		cpu, err := proc.Percent(0)
		if err != nil {
			return ResourceSample{RSS: mem.RSS}, nil
		}
		return ResourceSample{RSS: mem.RSS, CPUPercent: cpu}, nil
	}, nil
}

// NewResourceMonitor creates a monitor. A nil sample uses ProcessSampler.
func NewResourceMonitor(settings conf.ResourceSettings, q *queue.Queue, metrics PipelineRecorder, sample SampleFunc, log logger.Logger) (*ResourceMonitor, error) {
	if log == nil {
		log = logger.Global().Module("monitor")
	}
	if metrics == nil {
		metrics = noopPipeline{}
	}
	if sample == nil {
		var err error
		if sample, err = ProcessSampler(); err != nil {
			return nil, err
		}
	}
	if settings.Interval <= 0 {
		settings.Interval = time.Minute
	}
	return &ResourceMonitor{
		settings: settings,
		queue:    q,
		metrics:  metrics,
		sample:   sample,
		log:      log,
	}, nil
}

// Run samples on every interval until ctx is done.
func (r *ResourceMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.settings.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Check()
		}
	}
}

// Check takes one sample and acts on it. It returns how many history entries were trimmed.
func (r *ResourceMonitor) Check() int {
	s, err := r.sample()
	if err != nil {
		r.log.Debug("resource sample failed", logger.Error(err))
		return 0
	}
	r.metrics.SetMemoryRSS(s.RSS)

	memMB := float64(s.RSS) / bytesPerMB
	if r.settings.WarnMemoryMB > 0 && s.RSS > r.settings.WarnMemoryMB*bytesPerMB {
		r.log.Warn("high memory usage", logger.Float64("rss_mb", memMB))
	}
	if r.settings.WarnCPU > 0 && s.CPUPercent > r.settings.WarnCPU {
		r.log.Warn("high CPU usage", logger.Float64("cpu_percent", s.CPUPercent))
	}

	if r.settings.TrimMemoryMB == 0 || s.RSS <= r.settings.TrimMemoryMB*bytesPerMB || r.queue == nil {
		return 0
	}
	before := r.queue.HistoryLen()
	if before <= r.settings.TrimTrigger {
		return 0
	}
	dropped := r.queue.TrimHistory(r.settings.TrimKeep)
	r.metrics.SetHistorySize(r.queue.HistoryLen())
	debug.FreeOSMemory()
	r.log.Info("trimmed processed file history under memory pressure",
		logger.Float64("rss_mb", memMB),
		logger.Int("before", before),
		logger.Int("after", before-dropped))
	return dropped
}
