package designer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/ritzau/rag-pipeline-designer/pkg/diff"
	"github.com/ritzau/rag-pipeline-designer/pkg/history"
	"github.com/ritzau/rag-pipeline-designer/pkg/logging"
	"github.com/ritzau/rag-pipeline-designer/pkg/model"
	"github.com/ritzau/rag-pipeline-designer/pkg/persistence"
	"github.com/ritzau/rag-pipeline-designer/pkg/presets"
	"github.com/ritzau/rag-pipeline-designer/pkg/pubsub"
)

var (
	ErrInvalidEndpoint   = errors.New("designer: invalid endpoint")
	ErrInvalidNodeConfig = errors.New("designer: invalid node config")
	ErrUnknownPreset     = presets.ErrUnknownPreset
)

// NodeConfig describes a node to be added. Kind, Label and Model are required.
type NodeConfig struct {
	Kind               model.Kind      `json:"kind"`
	Label              string          `json:"label"`
	Model              string          `json:"model"`
	BaseLatencyMs      float64         `json:"baseLatencyMs"`
	BaseCostPerMillion float64         `json:"baseCostPerMillion"`
	Position           *model.Position `json:"position,omitempty"`
}

// Validate reports the first missing or out-of-range field
func (c NodeConfig) Validate() error {
	switch {
	case !c.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidNodeConfig, c.Kind)
	case strings.TrimSpace(c.Label) == "":
		return fmt.Errorf("%w: label is required", ErrInvalidNodeConfig)
	case strings.TrimSpace(c.Model) == "":
		return fmt.Errorf("%w: model is required", ErrInvalidNodeConfig)
	case !nonNegative(c.BaseLatencyMs):
		return fmt.Errorf("%w: baseLatencyMs must be a non-negative number", ErrInvalidNodeConfig)
	case !nonNegative(c.BaseCostPerMillion):
		return fmt.Errorf("%w: baseCostPerMillion must be a non-negative number", ErrInvalidNodeConfig)
	}
	return nil
}

func nonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 1)
}

// Options configures a Designer. Zero values select the defaults.
type Options struct {
	Graph           *model.Graph               // initial graph, model.DefaultGraph() if nil
	HistoryCapacity int                        // history.DefaultCapacity if < 1
	Presets         *presets.Registry          // built-ins if nil
	Events          pubsub.Publisher           // pubsub.Discard if nil
	Bridge          *persistence.Bridge        // no publication if nil
	NewID           func(prefix string) string // prefix + uuid if nil
}

// Designer is the only way to change the pipeline graph. Every successful mutation
// records exactly one history entry; calls that change nothing record none.
// It is safe for concurrent use: the simulation reads while the renderer edits.
type Designer struct {
	mu           sync.RWMutex
	graph        *model.Graph
	history      *history.Manager
	activePreset string

	// notifyMu keeps change notifications in commit order without holding mu
	notifyMu sync.Mutex

	presets *presets.Registry
	events  pubsub.Publisher
	bridge  *persistence.Bridge
	newID   func(prefix string) string
}

// New creates a designer and records the initial graph as history entry 0
func New(opts Options) *Designer {
	d := &Designer{
		graph:   opts.Graph,
		history: history.NewManager(opts.HistoryCapacity),
		presets: opts.Presets,
		events:  opts.Events,
		bridge:  opts.Bridge,
		newID:   opts.NewID,
	}
	if d.graph == nil {
		d.graph = model.DefaultGraph()
	} else {
		d.graph = d.graph.Clone()
	}
	if d.presets == nil {
		d.presets = presets.NewRegistry()
	}
	if d.events == nil {
		d.events = pubsub.Discard
	}
	if d.newID == nil {
		d.newID = func(prefix string) string { return prefix + uuid.NewString() }
	}

	initial := d.graph.Snapshot()
	d.history.Init(initial)
	d.notify(Change{Action: ActionLoaded, Diff: diff.Full(initial), History: d.historyState()}, initial.Nodes)

	logging.Info("pipeline loaded", "nodes", len(initial.Nodes), "edges", len(initial.Edges))
	return d
}

// AddNode appends an active node built from config and returns its id
func (d *Designer) AddNode(config NodeConfig) (string, error) {
	if err := config.Validate(); err != nil {
		return "", err
	}

	var id string
	d.update(ActionNodeAdded, recordPush, func(g *model.Graph) bool {
		id = d.uniqueID("n-", g.HasNode)
		node := model.Node{
			ID:                 id,
			Kind:               config.Kind,
			Label:              config.Label,
			Model:              config.Model,
			Active:             true,
			BaseLatencyMs:      config.BaseLatencyMs,
			BaseCostPerMillion: config.BaseCostPerMillion,
			Position:           config.Position,
		}
		return g.AddNode(node) == nil
	})

	logging.Info("node added", "node", id, "kind", config.Kind)
	return id, nil
}

// DeleteNodes removes the nodes and every edge incident to one of them.
// Unknown ids are ignored. Returns false if nothing was removed.
func (d *Designer) DeleteNodes(ids []string) bool {
	removed := 0
	changed := d.update(ActionNodesDeleted, recordPush, func(g *model.Graph) bool {
		removed = g.RemoveNodes(ids)
		return removed > 0
	})
	if changed {
		logging.Info("nodes deleted", "count", removed)
	}
	return changed
}

// DeleteEdges removes edges by id. Unknown ids are ignored.
func (d *Designer) DeleteEdges(ids []string) bool {
	return d.update(ActionEdgesDeleted, recordPush, func(g *model.Graph) bool {
		return g.RemoveEdges(ids) > 0
	})
}

// Connect adds an edge from source to target and returns its id.
// Duplicates and cycles are accepted; the simulation rejects cycles when it starts.
func (d *Designer) Connect(source, target string) (string, error) {
	var id string
	var err error
	d.update(ActionEdgeAdded, recordPush, func(g *model.Graph) bool {
		if !g.HasNode(source) || !g.HasNode(target) {
			err = fmt.Errorf("%w: %s -> %s", ErrInvalidEndpoint, source, target)
			return false
		}
		id = d.uniqueID("e-", g.HasEdge)
		err = g.AddEdge(model.Edge{ID: id, Source: source, Target: target})
		return err == nil
	})
	if err != nil {
		return "", err
	}

	logging.Info("nodes connected", "edge", id, "source", source, "target", target)
	return id, nil
}

// ToggleActive flips the active flag of a node. Returns false for an unknown id.
func (d *Designer) ToggleActive(id string) bool {
	return d.update(ActionNodeToggled, recordPush, func(g *model.Graph) bool {
		node, ok := g.Node(id)
		if !ok {
			return false
		}
		node.Active = !node.Active
		d.activePreset = ""
		return g.UpdateNode(node)
	})
}

// SetModel replaces the model of a node. Returns false for an unknown id.
func (d *Designer) SetModel(id, modelName string) bool {
	return d.update(ActionModelChanged, recordPush, func(g *model.Graph) bool {
		node, ok := g.Node(id)
		if !ok {
			return false
		}
		node.Model = modelName
		d.activePreset = ""
		return g.UpdateNode(node)
	})
}

// SelectModel replaces the model of a node and re-derives its latency and cost
// from the model tier. Returns false for an unknown id.
func (d *Designer) SelectModel(id, modelName string) bool {
	return d.update(ActionModelChanged, recordPush, func(g *model.Graph) bool {
		node, ok := g.Node(id)
		if !ok {
			return false
		}
		tier := TierFor(modelName)
		node.Model = modelName
		node.BaseLatencyMs = tier.LatencyMs
		node.BaseCostPerMillion = tier.CostPerMillion
		d.activePreset = ""
		return g.UpdateNode(node)
	})
}

// Place stores a renderer layout position. It amends the current history entry
// instead of recording a new one. Returns false for an unknown id.
func (d *Designer) Place(id string, pos model.Position) bool {
	return d.update(ActionNodePlaced, recordAmend, func(g *model.Graph) bool {
		node, ok := g.Node(id)
		if !ok {
			return false
		}
		node.Position = &pos
		return g.UpdateNode(node)
	})
}

// ApplyPreset rewrites every node with the named preset as a single history step
func (d *Designer) ApplyPreset(name string) error {
	preset, err := d.presets.Get(name)
	if err != nil {
		return err
	}

	d.update(ActionPresetApplied, recordPush, func(g *model.Graph) bool {
		for _, node := range g.Nodes() {
			g.UpdateNode(preset.Apply(node))
		}
		d.activePreset = preset.Name
		return true
	})

	logging.Info("preset applied", "preset", preset.Name)
	return nil
}

// Undo restores the previous history entry. Returns false if there is none.
func (d *Designer) Undo() bool {
	return d.travel(ActionUndo, d.history.Undo)
}

// Redo restores the next history entry. Returns false if there is none.
func (d *Designer) Redo() bool {
	return d.travel(ActionRedo, d.history.Redo)
}

func (d *Designer) travel(action Action, step func() (model.Snapshot, bool)) bool {
	d.mu.Lock()
	before := d.graph.Snapshot()
	s, ok := step()
	if !ok {
		d.mu.Unlock()
		return false
	}
	d.graph.Restore(s)
	change := Change{Action: action, Diff: diff.Compute(before, s), History: d.historyState(), ActivePreset: d.activePreset}
	d.handoff(change, s.Nodes)

	logging.Info("history restored", "action", action, "pointer", change.History.Pointer)
	return true
}

// ActivePreset returns the name of the last applied preset, or "" once a node
// has been edited since
func (d *Designer) ActivePreset() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.activePreset
}

// Snapshot returns a copy of the current graph
func (d *Designer) Snapshot() model.Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.graph.Snapshot()
}

// Node returns a copy of the node with the given id
func (d *Designer) Node(id string) (model.Node, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.graph.Node(id)
}

// OutgoingEdges returns the edges leaving a node in insertion order
func (d *Designer) OutgoingEdges(id string) []model.Edge {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.graph.OutgoingEdges(id)
}

// History reports the undo/redo position
func (d *Designer) History() HistoryState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.historyState()
}

// Presets returns the preset registry in use
func (d *Designer) Presets() *presets.Registry {
	return d.presets
}

type recordMode int

const (
	recordPush recordMode = iota
	recordAmend
)

// update runs fn against the live graph under the write lock. If fn reports a
// change, the new state is recorded and observers are notified.
func (d *Designer) update(action Action, mode recordMode, fn func(g *model.Graph) bool) bool {
	d.mu.Lock()
	before := d.graph.Snapshot()
	if !fn(d.graph) {
		d.mu.Unlock()
		return false
	}

	after := d.graph.Snapshot()
	switch mode {
	case recordPush:
		d.history.Push(after)
	case recordAmend:
		d.history.Amend(after)
	}

	change := Change{Action: action, Diff: diff.Compute(before, after), History: d.historyState(), ActivePreset: d.activePreset}
	d.handoff(change, after.Nodes)
	return true
}

// handoff releases mu and notifies observers. Must be called with mu held.
func (d *Designer) handoff(change Change, nodes []model.Node) {
	d.notifyMu.Lock()
	d.mu.Unlock()
	defer d.notifyMu.Unlock()
	d.notify(change, nodes)
}

func (d *Designer) notify(change Change, nodes []model.Node) {
	if err := d.events.Publish(pubsub.TopicPipeline, string(change.Action), change); err != nil {
		logging.Debug("pipeline event not delivered", "action", change.Action, "error", err)
	}
	d.bridge.Notify(context.Background(), nodes)
}

func (d *Designer) historyState() HistoryState {
	return HistoryState{
		Pointer:  d.history.Pointer(),
		Len:      d.history.Len(),
		Capacity: d.history.Capacity(),
		CanUndo:  d.history.CanUndo(),
		CanRedo:  d.history.CanRedo(),
	}
}

func (d *Designer) uniqueID(prefix string, taken func(string) bool) string {
	for {
		if id := d.newID(prefix); !taken(id) {
			return id
		}
	}
}
