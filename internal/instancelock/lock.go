// Package instancelock keeps a second monitor from watching the same folder.
//
// The lock is a file created with O_EXCL holding the owner's PID. A lock whose
// PID no longer runs is stale and is taken over.
package instancelock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/attendsync/attendance-monitor/internal/errors"
)

// ErrAlreadyLocked is returned when a live process holds the lock.
var ErrAlreadyLocked = errors.NewStd("another instance is already running")

// Lock is a held instance lock.
type Lock struct {
	path string
	once sync.Once
}

// pidAlive is replaced in tests.
var pidAlive = func(pid int) bool {
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}

// Acquire creates the lock file at path. A stale lock left by a dead process
// is removed and acquisition is retried once.
func Acquire(path string) (*Lock, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, lockError(err, path, "create_dir")
		}
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, lockError(errors.Join(werr, cerr), path, "write_pid")
			}
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, lockError(err, path, "create")
		}

		pid, readErr := readPID(path)
		if readErr == nil && pid != os.Getpid() && pidAlive(pid) {
			return nil, fmt.Errorf("%w (pid %d, lock %s)", ErrAlreadyLocked, pid, path)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, lockError(err, path, "remove_stale")
		}
	}
	return nil, fmt.Errorf("%w (lock %s)", ErrAlreadyLocked, path)
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release removes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	var err error
	l.once.Do(func() {
		if rerr := os.Remove(l.path); rerr != nil && !os.IsNotExist(rerr) {
			err = lockError(rerr, l.path, "release")
		}
	})
	return err
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func lockError(err error, path, op string) error {
	return errors.New(err).
		Component("instancelock").
		Category(errors.CategoryFileIO).
		Context("operation", op).
		FileContext(path, 0).
		Build()
}
