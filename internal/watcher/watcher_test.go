package watcher

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/attendsync/attendance-monitor/internal/conf"
	"github.com/attendsync/attendance-monitor/internal/logger"
	"github.com/attendsync/attendance-monitor/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

func settingsFor(dir string) conf.WatchSettings {
	return conf.WatchSettings{Folder: dir, Extension: ".xlsx", IgnorePrefixes: []string{"~$", "."}}
}

func waitEvent(t *testing.T, w *FolderWatcher) Event {
	t.Helper()
	return testutil.WaitFor(t, w.Events(), testutil.DefaultTimeout, "no watcher event")
}

func TestFolderWatcher_ReportsMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := New(settingsFor(dir), quietLogger())
	require.NoError(t, err)
	defer w.Close()

	// Ignored files first, so the first delivered event must be the spreadsheet.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "~$march.xlsx"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "march.xlsx"), []byte("x"), 0o644))

	ev := waitEvent(t, w)
	assert.Equal(t, filepath.Join(dir, "march.xlsx"), ev.Path)
	assert.Contains(t, []Op{Created, Modified}, ev.Op)
}

func TestFolderWatcher_CloseIsIdempotent(t *testing.T) {
	w, err := New(settingsFor(t.TempDir()), quietLogger())
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.NotPanics(t, func() { _ = w.Close() })
}

func TestNew_MissingFolder(t *testing.T) {
	_, err := New(settingsFor(filepath.Join(t.TempDir(), "absent")), quietLogger())
	require.Error(t, err)
}

func TestNew_FolderIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	_, err := New(settingsFor(path), quietLogger())
	require.Error(t, err)
}

func TestFilter_Match(t *testing.T) {
	t.Parallel()
	f := NewFilter(settingsFor("/in"))

	assert.True(t, f.Match("/in/march.xlsx"))
	assert.True(t, f.Match("/in/MARCH.XLSX"))
	assert.False(t, f.Match("/in/~$march.xlsx"))
	assert.False(t, f.Match("/in/.hidden.xlsx"))
	assert.False(t, f.Match("/in/march.xls"))
	assert.False(t, f.Match("/in/march.csv"))
	assert.True(t, Filter{}.Match("anything"))
}

func TestScan(t *testing.T) {
	t.Parallel()
	fsys := afero.NewMemMapFs()
	for _, name := range []string{"b.xlsx", "a.xlsx", "~$a.xlsx", "c.csv"} {
		require.NoError(t, afero.WriteFile(fsys, filepath.Join("/in", name), []byte("x"), 0o644))
	}
	require.NoError(t, fsys.MkdirAll("/in/sub.xlsx", 0o755))

	paths, err := Scan(fsys, settingsFor("/in"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("/in", "a.xlsx"), filepath.Join("/in", "b.xlsx")}, paths)

	_, err = Scan(fsys, settingsFor("/missing"))
	require.Error(t, err)
}

func TestOp_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "created", Created.String())
	assert.Equal(t, "modified", Modified.String())
	assert.Equal(t, "unknown", Op(0).String())
}
