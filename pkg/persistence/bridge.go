package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/ritzau/rag-pipeline-designer/pkg/diff"
	"github.com/ritzau/rag-pipeline-designer/pkg/logging"
	"github.com/ritzau/rag-pipeline-designer/pkg/model"
)

const publishTimeout = 5 * time.Second

// Bridge forwards node-set changes to a PipelinePublisher from its own goroutine.
// Notify never waits on the publisher: it leaves the latest node set in a one-slot
// mailbox, so a slow store only ever sees the newest state. Each distinct node set is
// queued at most once; publisher errors are logged and dropped.
type Bridge struct {
	publisher PipelinePublisher
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	now        func() time.Time
	lastHash   string
	pending    []model.Node
	pendingCtx context.Context
	hasPending bool
	busy       bool
	idle       chan struct{} // closed when the mailbox drains, created by Flush
}

// NewBridge creates a bridge in front of publisher. A nil publisher disables publication.
func NewBridge(publisher PipelinePublisher) *Bridge {
	b := &Bridge{
		publisher: publisher,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		now:       time.Now,
	}
	if publisher != nil {
		go b.run()
	}
	return b
}

// SetClock replaces the timestamp source
func (b *Bridge) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Notify queues nodes for publication if they differ from the last queued set.
// Returns true if the set was queued. It does not block on the publisher.
func (b *Bridge) Notify(ctx context.Context, nodes []model.Node) bool {
	if b == nil || b.publisher == nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	hash := diff.HashNodes(nodes)
	if hash != "" && hash == b.lastHash {
		return false
	}
	b.lastHash = hash

	b.pending = model.Snapshot{Nodes: nodes}.Clone().Nodes
	b.pendingCtx = context.WithoutCancel(ctx)
	b.hasPending = true

	select {
	case b.wake <- struct{}{}:
	default:
	}
	return true
}

// Flush waits until every queued node set has been handed to the publisher
func (b *Bridge) Flush(ctx context.Context) error {
	if b == nil || b.publisher == nil {
		return nil
	}

	b.mu.Lock()
	if !b.hasPending && !b.busy {
		b.mu.Unlock()
		return nil
	}
	if b.idle == nil {
		b.idle = make(chan struct{})
	}
	idle := b.idle
	b.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the publishing goroutine. A publication in progress is finished first;
// anything still queued is dropped.
func (b *Bridge) Close() {
	if b == nil {
		return
	}
	b.closeOnce.Do(func() { close(b.done) })
}

func (b *Bridge) run() {
	for {
		select {
		case <-b.wake:
		case <-b.done:
			return
		}

		for {
			b.mu.Lock()
			if !b.hasPending {
				b.busy = false
				if b.idle != nil {
					close(b.idle)
					b.idle = nil
				}
				b.mu.Unlock()
				break
			}
			nodes, ctx, now := b.pending, b.pendingCtx, b.now
			b.pending, b.pendingCtx, b.hasPending = nil, nil, false
			b.busy = true
			b.mu.Unlock()

			b.publish(ctx, nodes, now())

			select {
			case <-b.done:
				return
			default:
			}
		}
	}
}

func (b *Bridge) publish(ctx context.Context, nodes []model.Node, updatedAt time.Time) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := b.publisher.Publish(ctx, nodes, updatedAt); err != nil {
		logging.WarnContext(ctx, "failed to publish pipeline", "nodes", len(nodes), "error", err)
		return
	}
	logging.DebugContext(ctx, "published pipeline", "nodes", len(nodes))
}
