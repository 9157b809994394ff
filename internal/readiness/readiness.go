// Package readiness decides when a freshly dropped file is completely written.
package readiness

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/attendsync/attendance-monitor/internal/logger"
)

// Outcome is the result of waiting for a file.
type Outcome int

const (
	// Ready means the file opened for shared read and its size held across two polls.
	Ready Outcome = iota
	// TimedOutProceedAnyway means the file never stabilized; callers still process it
	// and let a truncated write surface as a parse error.
	TimedOutProceedAnyway
	// Vanished means the file was removed while waiting; callers skip it.
	Vanished
)

func (o Outcome) String() string {
	switch o {
	case Ready:
		return "ready"
	case TimedOutProceedAnyway:
		return "timed-out-proceed-anyway"
	case Vanished:
		return "vanished"
	default:
		return "unknown"
	}
}

// DefaultPollInterval is the pause between two readiness probes.
const DefaultPollInterval = 500 * time.Millisecond

// logEvery limits "still waiting" messages to one per this many polls.
const logEvery = 4

// Gate probes a file until it is safe to read. It never claims exclusivity;
// the file may change again after AwaitReady returns.
type Gate struct {
	fs           afero.Fs
	pollInterval time.Duration
	log          logger.Logger
}

// NewGate creates a readiness gate over fsys. A non-positive interval uses DefaultPollInterval.
func NewGate(fsys afero.Fs, pollInterval time.Duration, log logger.Logger) *Gate {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if log == nil {
		log = logger.Global().Module("readiness")
	}
	return &Gate{fs: fsys, pollInterval: pollInterval, log: log}
}

// AwaitReady blocks until path is ready, vanishes, or timeout elapses.
// The only error returned is the context's, when ctx ends first.
func (g *Gate) AwaitReady(ctx context.Context, path string, timeout time.Duration) (Outcome, error) {
	name := filepath.Base(path)
	deadline := time.Now().Add(timeout)
	lastSize := int64(-1)

	for attempt := 0; ; attempt++ {
		size, err := g.probe(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			g.log.Debug("file disappeared while waiting", logger.String("file", name))
			return Vanished, nil
		case err != nil:
			// Held open exclusively by the writer, or a transient stat failure.
			lastSize = -1
			if attempt%logEvery == 0 {
				g.log.Debug("file not readable yet, waiting",
					logger.String("file", name),
					logger.Error(err))
			}
		case size > 0 && size == lastSize:
			g.log.Debug("file ready",
				logger.String("file", name),
				logger.Int64("size", size),
				logger.Int("polls", attempt+1))
			return Ready, nil
		default:
			if attempt%logEvery == 0 && lastSize >= 0 {
				g.log.Debug("file still growing",
					logger.String("file", name),
					logger.Int64("previous_size", lastSize),
					logger.Int64("size", size))
			}
			lastSize = size
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			g.log.Debug("timeout waiting for file, proceeding anyway",
				logger.String("file", name),
				logger.Duration("timeout", timeout))
			return TimedOutProceedAnyway, nil
		}

		wait := min(g.pollInterval, remaining)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return TimedOutProceedAnyway, ctx.Err()
		case <-timer.C:
		}
	}
}

// probe opens the file read-only and returns its current size.
func (g *Gate) probe(path string) (int64, error) {
	f, err := g.fs.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return info.Size(), nil
}
