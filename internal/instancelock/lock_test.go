package instancelock

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendsync/attendance-monitor/internal/errors"
)

func withPidAlive(t *testing.T, fn func(int) bool) {
	t.Helper()
	orig := pidAlive
	pidAlive = fn
	t.Cleanup(func() { pidAlive = orig })
}

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "monitor.lock")

	lock, err := Acquire(path)
	require.NoError(t, err)
	assert.Equal(t, path, lock.Path())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	require.NoError(t, lock.Release())
	assert.NoFileExists(t, path)
	require.NoError(t, lock.Release())
}

func TestAcquire_HeldByLiveProcess(t *testing.T) {
	withPidAlive(t, func(int) bool { return true })
	path := filepath.Join(t.TempDir(), "monitor.lock")
	require.NoError(t, os.WriteFile(path, []byte("424242"), 0o644))

	_, err := Acquire(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyLocked))
	assert.FileExists(t, path, "a live lock is left alone")
}

func TestAcquire_StaleLockIsTakenOver(t *testing.T) {
	withPidAlive(t, func(int) bool { return false })
	path := filepath.Join(t.TempDir(), "monitor.lock")
	require.NoError(t, os.WriteFile(path, []byte("424242"), 0o644))

	lock, err := Acquire(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lock.Release() })

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}

func TestAcquire_GarbageLockIsStale(t *testing.T) {
	withPidAlive(t, func(int) bool { return true })
	path := filepath.Join(t.TempDir(), "monitor.lock")
	require.NoError(t, os.WriteFile(path, []byte("not a pid"), 0o644))

	lock, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

func TestAcquire_OwnPIDIsReclaimed(t *testing.T) {
	withPidAlive(t, func(int) bool { return true })
	path := filepath.Join(t.TempDir(), "monitor.lock")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644))

	lock, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

func TestPidAlive_CurrentProcess(t *testing.T) {
	assert.True(t, pidAlive(os.Getpid()))
}
