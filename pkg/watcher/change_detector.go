package watcher

import (
	"context"

	"github.com/ritzau/rag-pipeline-designer/pkg/diff"
	"github.com/ritzau/rag-pipeline-designer/pkg/persistence"
)

// Update is what a consumer sees after the projection changed
type Update struct {
	Projection persistence.Projection
	Present    bool // false when the projection is missing or unreadable
	Paths      []string
}

// ChangeDetector re-reads the projection after a change event and suppresses
// events that leave the observable content unchanged
type ChangeDetector struct {
	reader      persistence.ProjectionReader
	initialized bool
	lastPresent bool
	lastHash    string
	lastStamp   int64
}

// NewChangeDetector creates a detector reading through reader
func NewChangeDetector(reader persistence.ProjectionReader) *ChangeDetector {
	return &ChangeDetector{reader: reader}
}

// Detect reads the projection and reports whether it differs from the last one seen
func (cd *ChangeDetector) Detect(ctx context.Context, event ChangeEvent) (Update, bool) {
	update := Update{Paths: event.Paths}
	if event.Type != ChangeTypeRemove {
		update.Projection, update.Present = cd.reader.Read(ctx)
	}

	hash := ""
	if update.Present {
		hash = diff.HashNodes(update.Projection.Nodes)
	}

	changed := !cd.initialized ||
		update.Present != cd.lastPresent ||
		hash != cd.lastHash ||
		update.Projection.UpdatedAt != cd.lastStamp

	cd.initialized = true
	cd.lastPresent = update.Present
	cd.lastHash = hash
	cd.lastStamp = update.Projection.UpdatedAt

	return update, changed
}
