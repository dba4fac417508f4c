package watcher

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ritzau/rag-pipeline-designer/pkg/model"
	"github.com/ritzau/rag-pipeline-designer/pkg/persistence"
)

func TestDebouncerCoalescesBurst(t *testing.T) {
	input := make(chan ChangeEvent)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDebouncer(input, 30*time.Millisecond, time.Second)
	d.Start(ctx)

	for i := 0; i < 5; i++ {
		input <- ChangeEvent{Type: ChangeTypeWrite, Paths: []string{"a"}, Timestamp: time.Now()}
	}

	select {
	case event := <-d.Output():
		if len(event.Paths) != 5 {
			t.Errorf("Expected 5 accumulated paths, got %d", len(event.Paths))
		}
	case <-time.After(time.Second):
		t.Fatal("Expected a flushed event")
	}

	select {
	case event := <-d.Output():
		t.Errorf("Expected a single flush, got a second one: %+v", event)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestDebouncerMaxWait(t *testing.T) {
	input := make(chan ChangeEvent)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDebouncer(input, 50*time.Millisecond, 120*time.Millisecond)
	d.Start(ctx)

	stop := time.After(400 * time.Millisecond)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case input <- ChangeEvent{Type: ChangeTypeWrite, Paths: []string{"a"}}:
				case <-ctx.Done():
					return
				}
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	// a steady stream never goes quiet, so only maxWait can flush it
	select {
	case <-d.Output():
	case <-time.After(300 * time.Millisecond):
		t.Fatal("Expected maxWait to force a flush")
	}
}

func TestDebouncerFlushesOnClose(t *testing.T) {
	input := make(chan ChangeEvent, 1)
	d := NewDebouncer(input, time.Hour, time.Hour)
	d.Start(context.Background())

	input <- ChangeEvent{Type: ChangeTypeRemove, Paths: []string{"a"}}
	close(input)

	event, ok := <-d.Output()
	if !ok || event.Type != ChangeTypeRemove {
		t.Fatalf("Expected pending remove to be flushed, got %+v ok=%v", event, ok)
	}
	if _, ok := <-d.Output(); ok {
		t.Error("Expected output to close")
	}
}

func TestChangeDetector(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	cd := NewChangeDetector(store)

	update, changed := cd.Detect(ctx, ChangeEvent{Type: ChangeTypeWrite})
	if !changed || update.Present {
		t.Fatalf("First detection should report an absent projection, got changed=%v present=%v", changed, update.Present)
	}

	if _, changed := cd.Detect(ctx, ChangeEvent{Type: ChangeTypeWrite}); changed {
		t.Error("Still absent should not be a change")
	}

	nodes := model.DefaultGraph().Nodes()
	stamp := time.UnixMilli(1_700_000_000_000)
	if err := store.Publish(ctx, nodes, stamp); err != nil {
		t.Fatal(err)
	}

	update, changed = cd.Detect(ctx, ChangeEvent{Type: ChangeTypeWrite})
	if !changed || !update.Present || len(update.Projection.Nodes) != len(nodes) {
		t.Fatalf("Expected published projection, got changed=%v %+v", changed, update)
	}

	if _, changed := cd.Detect(ctx, ChangeEvent{Type: ChangeTypeWrite}); changed {
		t.Error("Re-reading the same projection should not be a change")
	}

	update, changed = cd.Detect(ctx, ChangeEvent{Type: ChangeTypeRemove})
	if !changed || update.Present {
		t.Errorf("Removal should report absent, got changed=%v present=%v", changed, update.Present)
	}
}

func TestProjectionWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projection", "active_pipeline.json")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pw, err := NewProjectionWatcher(path, 20*time.Millisecond, 200*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if err := pw.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer pw.Stop()

	initial := next(t, pw)
	if initial.Present {
		t.Fatal("Expected no projection before the first publish")
	}

	store := persistence.NewFileStore(path)
	nodes := model.DefaultGraph().Nodes()
	if err := store.Publish(ctx, nodes, time.Now()); err != nil {
		t.Fatal(err)
	}

	update := next(t, pw)
	if !update.Present {
		t.Fatal("Expected the published projection")
	}
	if len(update.Projection.Nodes) != len(nodes) {
		t.Errorf("Expected %d nodes, got %d", len(nodes), len(update.Projection.Nodes))
	}
}

func TestProjectionWatcherStopsWithContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "active_pipeline.json")
	ctx, cancel := context.WithCancel(context.Background())

	pw, err := NewProjectionWatcher(path, 10*time.Millisecond, 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if err := pw.Start(ctx); err != nil {
		t.Fatal(err)
	}
	next(t, pw)
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-pw.Updates():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("Expected updates channel to close")
		}
	}
}

func next(t *testing.T, pw *ProjectionWatcher) Update {
	t.Helper()
	select {
	case update, ok := <-pw.Updates():
		if !ok {
			t.Fatal("updates channel closed")
		}
		return update
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
	}
	return Update{}
}

func TestChangeTypeString(t *testing.T) {
	if ChangeTypeWrite.String() != "write" || ChangeTypeRemove.String() != "remove" {
		t.Errorf("unexpected change type names %q %q", ChangeTypeWrite, ChangeTypeRemove)
	}
}
