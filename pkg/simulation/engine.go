package simulation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ritzau/rag-pipeline-designer/pkg/cycles"
	pgraph "github.com/ritzau/rag-pipeline-designer/pkg/graph"
	"github.com/ritzau/rag-pipeline-designer/pkg/logging"
	"github.com/ritzau/rag-pipeline-designer/pkg/model"
	"github.com/ritzau/rag-pipeline-designer/pkg/pubsub"
)

var ErrAlreadyRunning = errors.New("simulation: already running")

// State is the engine lifecycle: Idle -> Running -> (Idle | Cancelled).
// Cancelled behaves exactly like Idle.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCancelled State = "cancelled"
)

// Timing controls the pacing of a run
type Timing struct {
	Ticks        int           // ticks spent on every node
	TickInterval time.Duration // wall time per tick
	EdgePause    time.Duration // wall time spent on an edge transition
}

// DefaultTiming returns 10 ticks of 50ms per node and an 800ms edge pause
func DefaultTiming() Timing {
	return Timing{
		Ticks:        10,
		TickInterval: 50 * time.Millisecond,
		EdgePause:    800 * time.Millisecond,
	}
}

// GraphReader is the read-only view of the pipeline the engine needs.
// It is read again at every node so edits made during a run are observed.
type GraphReader interface {
	Snapshot() model.Snapshot
	Node(id string) (model.Node, bool)
	OutgoingEdges(id string) []model.Edge
}

// Status is a point-in-time view of the engine
type Status struct {
	State       State    `json:"state"`
	RunID       string   `json:"runId,omitempty"`
	ElapsedMs   float64  `json:"elapsedMs"`
	CurrentNode string   `json:"currentNode,omitempty"`
	CurrentEdge string   `json:"currentEdge,omitempty"`
	Visited     []string `json:"visited"`
	Reason      Reason   `json:"reason,omitempty"`
}

// Engine animates a single traversal of the pipeline, one node at a time.
// It never mutates the graph.
type Engine struct {
	graph  GraphReader
	events pubsub.Publisher
	timing Timing

	mu          sync.Mutex
	state       State
	runID       string
	elapsed     float64
	currentNode string
	currentEdge string
	visited     []string
	reason      Reason
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewEngine creates an idle engine. A nil publisher drops all events.
func NewEngine(graph GraphReader, events pubsub.Publisher, timing Timing) *Engine {
	if events == nil {
		events = pubsub.Discard
	}
	if timing.Ticks < 1 {
		timing.Ticks = 1
	}

	done := make(chan struct{})
	close(done)

	return &Engine{
		graph:  graph,
		events: events,
		timing: timing,
		state:  StateIdle,
		done:   done,
	}
}

// Start begins a run in the background. It fails with ErrAlreadyRunning while a run is
// in progress and with a *cycles.CycleError if the graph is cyclic. An empty graph
// finishes immediately with zero elapsed time. Cancelling ctx cancels the run.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRunning {
		return ErrAlreadyRunning
	}

	snapshot := e.graph.Snapshot()
	if err := cycles.Check(snapshot); err != nil {
		logging.WarnContext(ctx, "simulation rejected", "error", err)
		return err
	}

	e.runID = uuid.NewString()
	e.elapsed = 0
	e.currentNode = ""
	e.currentEdge = ""
	e.visited = []string{}
	e.reason = ""

	entry, ok := pgraph.NewIndex(snapshot).EntryPoint()
	if !ok {
		e.state = StateIdle
		e.reason = ReasonEmpty
		e.publish(EventFinished, Finished{RunID: e.runID, ElapsedMs: 0, Visited: []string{}, Reason: ReasonEmpty})
		logging.InfoContext(ctx, "simulation finished on empty pipeline")
		return nil
	}

	runCtx, cancel := context.WithCancel(logging.WithRunID(ctx, e.runID))
	e.state = StateRunning
	e.cancel = cancel
	e.done = make(chan struct{})

	e.publish(EventStarted, Started{RunID: e.runID, Entry: entry})
	logging.InfoContext(runCtx, "simulation started", "entry", entry)

	go e.run(runCtx, e.runID, entry, e.done)
	return nil
}

// Cancel stops the current run within one tick. It is a no-op when nothing is running.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRunning && e.cancel != nil {
		e.cancel()
	}
}

// State returns the lifecycle state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Elapsed returns the simulated time accumulated by the current or last run
func (e *Engine) Elapsed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.elapsed
}

// Status returns a copy of the engine's progress
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	visited := make([]string, len(e.visited))
	copy(visited, e.visited)
	return Status{
		State:       e.state,
		RunID:       e.runID,
		ElapsedMs:   e.elapsed,
		CurrentNode: e.currentNode,
		CurrentEdge: e.currentEdge,
		Visited:     visited,
		Reason:      e.reason,
	}
}

// Done returns a channel closed when the current run ends.
// With no run in progress the channel is already closed.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// Wait blocks until the current run ends or ctx is done
func (e *Engine) Wait(ctx context.Context) error {
	select {
	case <-e.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) run(ctx context.Context, runID, entry string, done chan struct{}) {
	defer close(done)

	seen := make(map[string]bool)
	current := entry

	for {
		if ctx.Err() != nil {
			e.abort(ctx)
			return
		}

		node, ok := e.graph.Node(current)
		if !ok {
			e.finish(ctx, ReasonNodeRemoved)
			return
		}
		if seen[current] {
			// the graph was edited into a loop after Start
			e.finish(ctx, ReasonCycle)
			return
		}
		seen[current] = true

		e.mu.Lock()
		e.currentNode = current
		e.currentEdge = ""
		e.visited = append(e.visited, current)
		base := e.elapsed
		e.mu.Unlock()

		e.publish(EventNodeActive, NodeActive{RunID: runID, NodeID: current})
		logging.DebugContext(ctx, "node active", "node", current, "active", node.Active)

		latency := node.EffectiveLatencyMs()
		for tick := 1; tick <= e.timing.Ticks; tick++ {
			if !sleep(ctx, e.timing.TickInterval) {
				e.abort(ctx)
				return
			}

			e.mu.Lock()
			e.elapsed = base + latency*float64(tick)/float64(e.timing.Ticks)
			elapsed := e.elapsed
			e.mu.Unlock()

			e.publish(EventElapsed, Elapsed{RunID: runID, ElapsedMs: elapsed})
			logging.TraceContext(ctx, "tick", "node", current, "tick", tick, "elapsedMs", elapsed)
		}

		edges := e.graph.OutgoingEdges(current)
		if len(edges) == 0 {
			e.finish(ctx, ReasonSink)
			return
		}

		if ctx.Err() != nil {
			e.abort(ctx)
			return
		}

		// only the first edge is followed
		edge := edges[0]
		e.mu.Lock()
		e.currentNode = ""
		e.currentEdge = edge.ID
		e.mu.Unlock()

		e.publish(EventEdgeActive, EdgeActive{RunID: runID, EdgeID: edge.ID, Source: edge.Source, Target: edge.Target})
		if !sleep(ctx, e.timing.EdgePause) {
			e.abort(ctx)
			return
		}

		current = edge.Target
	}
}

func (e *Engine) finish(ctx context.Context, reason Reason) {
	e.mu.Lock()
	e.state = StateIdle
	e.reason = reason
	e.currentNode = ""
	e.currentEdge = ""
	event := Finished{RunID: e.runID, ElapsedMs: e.elapsed, Visited: append([]string(nil), e.visited...), Reason: reason}
	e.cancel()
	e.publish(EventFinished, event)
	e.mu.Unlock()

	logging.InfoContext(ctx, "simulation finished", "reason", reason, "elapsedMs", event.ElapsedMs, "visited", len(event.Visited))
}

func (e *Engine) abort(ctx context.Context) {
	e.mu.Lock()
	e.state = StateCancelled
	e.reason = ""
	e.currentNode = ""
	e.currentEdge = ""
	event := Cancelled{RunID: e.runID, ElapsedMs: e.elapsed}
	e.cancel()
	e.publish(EventCancelled, event)
	e.mu.Unlock()

	logging.InfoContext(ctx, "simulation cancelled", "elapsedMs", event.ElapsedMs)
}

func (e *Engine) publish(eventType string, data interface{}) {
	if err := e.events.Publish(pubsub.TopicSimulation, eventType, data); err != nil {
		logging.Debug("simulation event not delivered", "type", eventType, "error", err)
	}
}

// sleep waits for d or until ctx is done. Returns false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return ctx.Err() == nil
	case <-ctx.Done():
		return false
	}
}
