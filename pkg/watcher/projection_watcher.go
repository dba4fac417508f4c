package watcher

import (
	"context"
	"time"

	"github.com/ritzau/rag-pipeline-designer/pkg/logging"
	"github.com/ritzau/rag-pipeline-designer/pkg/persistence"
)

// ProjectionWatcher follows a published projection file and emits one Update per
// observable change. The current state is emitted first.
type ProjectionWatcher struct {
	files    *FileWatcher
	store    *persistence.FileStore
	detector *ChangeDetector
	quiet    time.Duration
	maxWait  time.Duration
	updates  chan Update
}

// NewProjectionWatcher creates a watcher for the projection at path
func NewProjectionWatcher(path string, quiet, maxWait time.Duration) (*ProjectionWatcher, error) {
	files, err := NewFileWatcher(path)
	if err != nil {
		return nil, err
	}
	store := persistence.NewFileStore(files.path)
	return &ProjectionWatcher{
		files:    files,
		store:    store,
		detector: NewChangeDetector(store),
		quiet:    quiet,
		maxWait:  maxWait,
		updates:  make(chan Update, 10),
	}, nil
}

// Start begins watching. Updates stop and the channel closes when ctx is done.
func (pw *ProjectionWatcher) Start(ctx context.Context) error {
	if err := pw.files.Start(ctx); err != nil {
		return err
	}

	debouncer := NewDebouncer(pw.files.Events(), pw.quiet, pw.maxWait)
	debouncer.Start(ctx)

	go func() {
		defer close(pw.updates)

		initial, _ := pw.detector.Detect(ctx, ChangeEvent{Type: ChangeTypeWrite, Timestamp: time.Now()})
		if !pw.emit(ctx, initial) {
			return
		}

		for event := range debouncer.Output() {
			update, changed := pw.detector.Detect(ctx, event)
			if !changed {
				logging.Debug("projection unchanged", "paths", len(event.Paths))
				continue
			}
			logging.Info("projection changed", "present", update.Present, "nodes", len(update.Projection.Nodes))
			if !pw.emit(ctx, update) {
				return
			}
		}
	}()

	return nil
}

func (pw *ProjectionWatcher) emit(ctx context.Context, update Update) bool {
	select {
	case pw.updates <- update:
		return true
	case <-ctx.Done():
		return false
	}
}

// Updates returns the channel of projection updates
func (pw *ProjectionWatcher) Updates() <-chan Update {
	return pw.updates
}

// Stop stops watching
func (pw *ProjectionWatcher) Stop() error {
	return pw.files.Stop()
}
