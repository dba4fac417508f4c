package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ritzau/rag-pipeline-designer/pkg/logging"
)

// ChangeType represents the type of file change detected
type ChangeType int

const (
	ChangeTypeWrite ChangeType = iota
	ChangeTypeRemove
)

func (t ChangeType) String() string {
	if t == ChangeTypeRemove {
		return "remove"
	}
	return "write"
}

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// batchWindow groups the burst of events a single atomic replace produces
const batchWindow = 20 * time.Millisecond

// FileWatcher watches one file. The parent directory is watched rather than the file
// itself so that replace-by-rename keeps being observed.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	events  chan ChangeEvent
	done    chan struct{}
	once    sync.Once
}

// NewFileWatcher creates a new file system watcher for path
func NewFileWatcher(path string) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher: watcher,
		path:    abs,
		events:  make(chan ChangeEvent, 100),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching for file changes. The parent directory is created if missing.
func (fw *FileWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(fw.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := fw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	logging.Info("started watching projection", "path", fw.path)

	go fw.processEvents(ctx)
	return nil
}

// processEvents filters events down to the watched file and batches them.
// The last operation in a batch decides its type, so replace-by-rename is a write.
func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.events)

	var paths []string
	var removed bool

	flushTimer := time.NewTimer(batchWindow)
	flushTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			fw.Stop()
			return

		case <-fw.done:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}

			switch {
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				// a rename away from the path; a rename onto it arrives as Create
				removed = true
			case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
				removed = false
			default:
				continue
			}
			paths = append(paths, event.Name)
			flushTimer.Reset(batchWindow)

		case <-flushTimer.C:
			if len(paths) == 0 {
				continue
			}
			changeType := ChangeTypeWrite
			if removed {
				changeType = ChangeTypeRemove
			}
			fw.send(ChangeEvent{Type: changeType, Paths: paths, Timestamp: time.Now()})
			paths = nil

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

func (fw *FileWatcher) send(event ChangeEvent) {
	select {
	case fw.events <- event:
	case <-fw.done:
	}
}

// Events returns the channel of change events
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Stop stops the file watcher. Safe to call more than once.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.once.Do(func() {
		close(fw.done)
		err = fw.watcher.Close()
	})
	return err
}
