// Package watcher reports spreadsheets created or modified in one folder.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/attendsync/attendance-monitor/internal/conf"
	"github.com/attendsync/attendance-monitor/internal/errors"
	"github.com/attendsync/attendance-monitor/internal/logger"
)

// Op is the kind of change observed.
type Op int

const (
	Created Op = iota + 1
	Modified
)

func (o Op) String() string {
	switch o {
	case Created:
		return "created"
	case Modified:
		return "modified"
	default:
		return "unknown"
	}
}

// Event is one relevant change in the watched folder.
type Event struct {
	Path string
	Op   Op
}

const eventBuffer = 256

// Filter decides which file names are relevant.
type Filter struct {
	Extension      string
	IgnorePrefixes []string
}

// NewFilter builds a filter from watch settings.
func NewFilter(settings conf.WatchSettings) Filter {
	return Filter{Extension: settings.Extension, IgnorePrefixes: settings.IgnorePrefixes}
}

// Match reports whether name has the watched extension and no ignored prefix.
func (f Filter) Match(name string) bool {
	base := filepath.Base(name)
	for _, prefix := range f.IgnorePrefixes {
		if prefix != "" && strings.HasPrefix(base, prefix) {
			return false
		}
	}
	if f.Extension == "" {
		return true
	}
	return strings.EqualFold(filepath.Ext(base), f.Extension)
}

// FolderWatcher watches one directory without recursion.
type FolderWatcher struct {
	folder string
	filter Filter
	log    logger.Logger

	fsw    *fsnotify.Watcher
	events chan Event
	errs   chan error
	done   chan struct{}

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New starts watching settings.Folder. The folder must exist.
func New(settings conf.WatchSettings, log logger.Logger) (*FolderWatcher, error) {
	if log == nil {
		log = logger.Global().Module("watcher")
	}

	info, err := os.Stat(settings.Folder)
	if err != nil {
		return nil, errors.New(err).
			Component("watcher").
			Category(errors.CategoryFileIO).
			Context("folder", settings.Folder).
			Build()
	}
	if !info.IsDir() {
		return nil, errors.Newf("watch folder %s is not a directory", settings.Folder).
			Component("watcher").
			Category(errors.CategoryConfiguration).
			Build()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.New(err).
			Component("watcher").
			Category(errors.CategorySystem).
			Context("operation", "create_watcher").
			Build()
	}
	if err := fsw.Add(settings.Folder); err != nil {
		_ = fsw.Close()
		return nil, errors.New(err).
			Component("watcher").
			Category(errors.CategoryFileIO).
			Context("folder", settings.Folder).
			Context("operation", "add_watch").
			Build()
	}

	w := &FolderWatcher{
		folder: settings.Folder,
		filter: NewFilter(settings),
		log:    log,
		fsw:    fsw,
		events: make(chan Event, eventBuffer),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()

	log.Info("watching folder",
		logger.String("folder", settings.Folder),
		logger.String("extension", settings.Extension))
	return w, nil
}

// Events delivers created and modified spreadsheets.
func (w *FolderWatcher) Events() <-chan Event { return w.events }

// Errors delivers watcher faults. Only the latest undelivered fault is kept.
func (w *FolderWatcher) Errors() <-chan error { return w.errs }

// Folder returns the watched directory.
func (w *FolderWatcher) Folder() string { return w.folder }

func (w *FolderWatcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", logger.Error(err))
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

func (w *FolderWatcher) handle(ev fsnotify.Event) {
	var op Op
	switch {
	case ev.Has(fsnotify.Create):
		op = Created
	case ev.Has(fsnotify.Write):
		op = Modified
	default:
		return
	}
	if !w.filter.Match(ev.Name) {
		return
	}

	w.log.Debug("file event", logger.String("file", filepath.Base(ev.Name)), logger.String("op", op.String()))
	select {
	case w.events <- Event{Path: ev.Name, Op: op}:
	case <-w.done:
	}
}

// Close stops watching. It is safe to call more than once.
func (w *FolderWatcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()
		w.log.Debug("watcher closed", logger.String("folder", w.folder))
	})
	return err
}

// Scan lists matching files already present in folder, sorted by name.
func Scan(fsys afero.Fs, settings conf.WatchSettings) ([]string, error) {
	entries, err := afero.ReadDir(fsys, settings.Folder)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", settings.Folder, err)
	}
	filter := NewFilter(settings)
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !filter.Match(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(settings.Folder, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
