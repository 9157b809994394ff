// Package monitor runs the long-lived folder monitoring loop: it feeds watcher
// events into the processing queue and drains the queue in batches on a
// single worker goroutine.
package monitor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"github.com/attendsync/attendance-monitor/internal/conf"
	"github.com/attendsync/attendance-monitor/internal/errors"
	"github.com/attendsync/attendance-monitor/internal/logger"
	"github.com/attendsync/attendance-monitor/internal/notification"
	"github.com/attendsync/attendance-monitor/internal/processor"
	"github.com/attendsync/attendance-monitor/internal/queue"
	"github.com/attendsync/attendance-monitor/internal/watcher"
)

var (
	// ErrAlreadyRunning is returned by Start on a running monitor.
	ErrAlreadyRunning = errors.NewStd("monitor is already running")
	// ErrStopTimeout is returned when the worker does not finish within the stop timeout.
	ErrStopTimeout = errors.NewStd("monitor did not stop within the timeout")
)

// Watcher is the event source of the monitor.
type Watcher interface {
	Events() <-chan watcher.Event
	Errors() <-chan error
	Close() error
}

// WatcherFactory opens a watcher on the configured folder.
type WatcherFactory func(settings conf.WatchSettings, log logger.Logger) (Watcher, error)

// DefaultWatcherFactory opens an fsnotify folder watcher.
func DefaultWatcherFactory(settings conf.WatchSettings, log logger.Logger) (Watcher, error) {
	w, err := watcher.New(settings, log)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// FileProcessor handles a single file.
type FileProcessor interface {
	Process(ctx context.Context, path string) processor.Result
}

// Store is the connection lifecycle the worker checks before each batch.
type Store interface {
	EnsureConnected(ctx context.Context) error
}

// PipelineRecorder receives worker loop metrics.
type PipelineRecorder interface {
	RecordBatch()
	SetQueueDepth(n int)
	SetHistorySize(n int)
	IncLoopFailures()
	IncWatcherRestarts()
	SetMemoryRSS(bytes uint64)
}

// StoreRecorder receives store availability metrics.
type StoreRecorder interface {
	SetConnected(ok bool)
	IncTransientFailures()
}

// Deps are the collaborators of a Monitor. Notifier, metrics, Fs and
// NewWatcher are optional.
type Deps struct {
	Processor    FileProcessor
	Store        Store
	Queue        *queue.Queue
	Notifier     *notification.Service
	Metrics      PipelineRecorder
	StoreMetrics StoreRecorder
	Fs           afero.Fs // used for the startup scan
	NewWatcher   WatcherFactory
	Log          logger.Logger
}

// Monitor owns the worker goroutine. At most one batch runs at any time.
type Monitor struct {
	watch  conf.WatchSettings
	queueS conf.QueueSettings
	deps   Deps
	log    logger.Logger

	running atomic.Bool
	batchMu sync.Mutex

	mu     sync.Mutex // guards cancel and done
	cancel context.CancelFunc
	done   chan struct{}

	status statusTracker
}

// New creates a stopped monitor.
func New(watch conf.WatchSettings, queueSettings conf.QueueSettings, deps Deps) *Monitor {
	if deps.Log == nil {
		deps.Log = logger.Global().Module("monitor")
	}
	if deps.Queue == nil {
		deps.Queue = queue.New(queueSettings)
	}
	if deps.NewWatcher == nil {
		deps.NewWatcher = DefaultWatcherFactory
	}
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	if deps.Metrics == nil {
		deps.Metrics = noopPipeline{}
	}
	if deps.StoreMetrics == nil {
		deps.StoreMetrics = noopStore{}
	}
	if queueSettings.TickInterval <= 0 {
		queueSettings.TickInterval = time.Second
	}
	if queueSettings.ErrorBackoff <= 0 {
		queueSettings.ErrorBackoff = 5 * time.Second
	}
	if queueSettings.MaxConsecutiveFailures <= 0 {
		queueSettings.MaxConsecutiveFailures = 3
	}
	if queueSettings.StopTimeout <= 0 {
		queueSettings.StopTimeout = 10 * time.Second
	}
	return &Monitor{
		watch:  watch,
		queueS: queueSettings,
		deps:   deps,
		log:    deps.Log,
	}
}

// Queue returns the processing queue.
func (m *Monitor) Queue() *queue.Queue { return m.deps.Queue }

// IsRunning reports whether the worker loop is active.
func (m *Monitor) IsRunning() bool { return m.running.Load() }

// Start opens the watcher, enqueues files already in the folder when
// configured, and starts the worker loop. The loop ends when ctx is done or
// Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	w, err := m.deps.NewWatcher(m.watch, m.log)
	if err != nil {
		m.running.Store(false)
		return err
	}

	if m.watch.ScanExisting {
		m.scanExisting()
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.mu.Lock()
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	m.status.started(time.Now())
	go m.loop(loopCtx, w, done)

	m.log.Info("monitoring started",
		logger.String("folder", m.watch.Folder),
		logger.Duration("tick", m.queueS.TickInterval))
	m.deps.Notifier.MonitoringStarted(m.watch.Folder)
	return nil
}

func (m *Monitor) scanExisting() {
	paths, err := watcher.Scan(m.deps.Fs, m.watch)
	if err != nil {
		m.log.Warn("startup scan failed", logger.Error(err))
		return
	}
	added := 0
	for _, p := range paths {
		if m.deps.Queue.Enqueue(p) {
			added++
		}
	}
	if added > 0 {
		m.log.Info("existing files queued", logger.Int("files", added))
	}
}

// Stop ends the worker loop and waits up to the configured stop timeout.
func (m *Monitor) Stop() error {
	return m.StopWithTimeout(m.queueS.StopTimeout)
}

// StopWithTimeout ends the worker loop and waits up to timeout for it to
// finish the file in hand. Stopping a stopped monitor is a no-op.
func (m *Monitor) StopWithTimeout(timeout time.Duration) error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
	case <-time.After(timeout):
		m.log.Error("worker did not stop in time", logger.Duration("timeout", timeout))
		return ErrStopTimeout
	}

	m.mu.Lock()
	if m.done == done {
		m.cancel, m.done = nil, nil
	}
	m.mu.Unlock()
	return nil
}

func (m *Monitor) loop(ctx context.Context, w Watcher, done chan struct{}) {
	defer close(done)
	defer func() {
		if w != nil {
			if err := w.Close(); err != nil {
				m.log.Warn("failed to close watcher", logger.Error(err))
			}
		}
		m.running.Store(false)
		m.status.stopped()
		m.log.Info("monitoring stopped", logger.String("folder", m.watch.Folder))
		m.deps.Notifier.MonitoringStopped(m.watch.Folder)
	}()

	ticker := time.NewTicker(m.queueS.TickInterval)
	defer ticker.Stop()

	failures := 0
	for {
		var events <-chan watcher.Event
		var errs <-chan error
		if w != nil {
			events, errs = w.Events(), w.Errors()
		}

		var loopErr error
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				loopErr = errors.NewStd("watcher event stream closed")
				break
			}
			if m.deps.Queue.Enqueue(ev.Path) {
				m.log.Debug("file queued", logger.String("file", queue.Key(ev.Path)), logger.String("op", ev.Op.String()))
				m.deps.Metrics.SetQueueDepth(m.deps.Queue.Len())
			}
			continue
		case err := <-errs:
			loopErr = fmt.Errorf("watcher: %w", err)
		case <-ticker.C:
			if w == nil {
				loopErr = errors.NewStd("folder watcher is not running")
				break
			}
			loopErr = m.safeRunBatch(ctx)
		}

		if loopErr == nil {
			failures = 0
			continue
		}
		if ctx.Err() != nil {
			return
		}

		failures++
		m.deps.Metrics.IncLoopFailures()
		m.status.failure(loopErr, failures)
		m.log.Error("worker loop iteration failed",
			logger.Int("consecutive_failures", failures),
			logger.Error(loopErr))

		if failures >= m.queueS.MaxConsecutiveFailures {
			w = m.restartWatcher(w, failures)
			failures = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.queueS.ErrorBackoff):
		}
	}
}

// restartWatcher replaces w. It returns nil when a new watcher cannot be opened;
// the loop then keeps failing and retrying.
func (m *Monitor) restartWatcher(w Watcher, failures int) Watcher {
	if w != nil {
		if err := w.Close(); err != nil {
			m.log.Warn("failed to close watcher before restart", logger.Error(err))
		}
	}
	m.deps.Metrics.IncWatcherRestarts()
	m.status.watcherRestarted()

	next, err := m.deps.NewWatcher(m.watch, m.log)
	if err != nil {
		m.log.Error("watcher restart failed", logger.Error(err))
		return nil
	}
	m.log.Warn("watcher restarted", logger.Int("after_failures", failures))
	m.deps.Notifier.WatcherRestarted(m.watch.Folder, failures)
	return next
}

// safeRunBatch turns a panic while processing into a loop failure.
func (m *Monitor) safeRunBatch(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic in worker batch",
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())))
			err = errors.Newf("panic in worker batch: %v", r).
				Component("monitor").
				Category(errors.CategoryQueue).
				Build()
		}
	}()
	_, err = m.RunBatch(ctx)
	return err
}

// BatchReport summarizes one drain of the queue.
type BatchReport struct {
	Files      int                 `json:"files"`
	Outcomes   map[string]int      `json:"outcomes"`
	Totals     notification.Counts `json:"totals"`
	StartedAt  time.Time           `json:"started_at"`
	Duration   time.Duration       `json:"duration"`
	Transients int                 `json:"transient_failures"`
}

// RunBatch drains the queue once and processes every drained file in order.
// It returns (nil, nil) when the queue is empty or another batch is running.
// An error means the batch could not run or a file hit a transient store
// failure; affected files stay queued.
func (m *Monitor) RunBatch(ctx context.Context) (*BatchReport, error) {
	if !m.batchMu.TryLock() {
		return nil, nil
	}
	defer m.batchMu.Unlock()

	q := m.deps.Queue
	defer func() {
		m.deps.Metrics.SetQueueDepth(q.Len())
		m.deps.Metrics.SetHistorySize(q.HistoryLen())
	}()

	if q.Len() == 0 {
		return nil, nil
	}

	if err := m.deps.Store.EnsureConnected(ctx); err != nil {
		m.deps.StoreMetrics.SetConnected(false)
		m.deps.Notifier.StoreFailed(err)
		return nil, err
	}
	m.deps.StoreMetrics.SetConnected(true)

	paths := q.Drain()
	report := &BatchReport{
		Files:     len(paths),
		Outcomes:  make(map[string]int),
		StartedAt: time.Now(),
	}
	m.log.Info("batch started", logger.Int("files", len(paths)))
	m.deps.Notifier.BatchStarted(len(paths))

	var firstTransient error
	for i, path := range paths {
		if ctx.Err() != nil {
			for _, rest := range paths[i:] {
				q.Retry(rest)
			}
			break
		}

		res := m.deps.Processor.Process(ctx, path)
		report.Outcomes[res.Outcome.String()]++
		report.Totals.Add(processor.CountsOf(res.Summary))

		switch {
		case res.Completed():
			q.Complete(path, res.Settled())
		case res.Outcome == processor.Retry:
			q.Retry(path)
			if ctx.Err() == nil {
				report.Transients++
				m.deps.StoreMetrics.IncTransientFailures()
				if firstTransient == nil {
					firstTransient = res.Err
				}
			}
		default:
			q.Complete(path, false)
		}
	}

	report.Duration = time.Since(report.StartedAt)
	m.deps.Metrics.RecordBatch()
	m.status.batchDone(report)
	m.log.Info("batch completed",
		logger.Int("files", report.Files),
		logger.Any("outcomes", report.Outcomes),
		logger.Int("inserted", report.Totals.Inserted),
		logger.Int("updated", report.Totals.Updated),
		logger.Int("errors", report.Totals.Errors),
		logger.Duration("elapsed", report.Duration))
	m.deps.Notifier.BatchCompleted(report.Files, report.Totals, report.Duration)

	if firstTransient != nil {
		return report, firstTransient
	}
	return report, nil
}

type noopPipeline struct{}

func (noopPipeline) RecordBatch()        {}
func (noopPipeline) SetQueueDepth(int)   {}
func (noopPipeline) SetHistorySize(int)  {}
func (noopPipeline) IncLoopFailures()    {}
func (noopPipeline) IncWatcherRestarts() {}
func (noopPipeline) SetMemoryRSS(uint64) {}

type noopStore struct{}

func (noopStore) SetConnected(bool)     {}
func (noopStore) IncTransientFailures() {}
