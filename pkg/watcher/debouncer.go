package watcher

import (
	"context"
	"time"

	"github.com/ritzau/rag-pipeline-designer/pkg/logging"
)

// Debouncer batches rapid change events so a burst of publications is handled once
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a new event debouncer. A burst is flushed after quietPeriod
// without events, or after maxWait since its first event, whichever comes first.
func NewDebouncer(input <-chan ChangeEvent, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan ChangeEvent, 10),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start begins processing events with debouncing
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

// run processes events and applies debouncing logic. Only the last event type of a
// burst survives; paths are accumulated.
func (d *Debouncer) run(ctx context.Context) {
	defer close(d.output)

	var (
		pending    *ChangeEvent
		eventCount int
		quiet      <-chan time.Time
		deadline   <-chan time.Time
	)

	flush := func() {
		if pending == nil {
			return
		}
		logging.Debug("flushing accumulated events", "count", eventCount, "type", pending.Type)

		select {
		case d.output <- *pending:
		case <-ctx.Done():
		}
		pending = nil
		eventCount = 0
		quiet = nil
		deadline = nil
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-d.input:
			if !ok {
				flush()
				return
			}

			if pending == nil {
				pending = &ChangeEvent{}
				deadline = time.After(d.maxWait)
			}
			pending.Type = event.Type
			pending.Paths = append(pending.Paths, event.Paths...)
			pending.Timestamp = event.Timestamp
			eventCount++

			quiet = time.After(d.quietPeriod)

		case <-quiet:
			flush()

		case <-deadline:
			flush()
		}
	}
}

// Output returns the channel of debounced events
func (d *Debouncer) Output() <-chan ChangeEvent {
	return d.output
}
