package designer

import (
	"strings"

	"github.com/ritzau/rag-pipeline-designer/pkg/diff"
)

// Action names a kind of graph change. It is also the event type on the pipeline topic.
type Action string

const (
	ActionLoaded        Action = "loaded"
	ActionNodeAdded     Action = "node_added"
	ActionNodesDeleted  Action = "nodes_deleted"
	ActionEdgeAdded     Action = "edge_added"
	ActionEdgesDeleted  Action = "edges_deleted"
	ActionNodeToggled   Action = "node_toggled"
	ActionModelChanged  Action = "model_changed"
	ActionNodePlaced    Action = "node_placed"
	ActionPresetApplied Action = "preset_applied"
	ActionUndo          Action = "undo"
	ActionRedo          Action = "redo"
)

// HistoryState is the undo/redo position after a change
type HistoryState struct {
	Pointer  int  `json:"pointer"`
	Len      int  `json:"len"`
	Capacity int  `json:"capacity"`
	CanUndo  bool `json:"canUndo"`
	CanRedo  bool `json:"canRedo"`
}

// Change is the payload published on the pipeline topic
type Change struct {
	Action       Action         `json:"action"`
	Diff         diff.GraphDiff `json:"diff"`
	History      HistoryState   `json:"history"`
	ActivePreset string         `json:"activePreset,omitempty"`
}

// Tier is the latency and cost profile a model name implies
type Tier struct {
	LatencyMs      float64
	CostPerMillion float64
}

var (
	premiumTier  = Tier{LatencyMs: 300, CostPerMillion: 1.5}
	standardTier = Tier{LatencyMs: 80, CostPerMillion: 0.2}
)

// premiumMarkers are substrings that mark a model as heavyweight
var premiumMarkers = []string{"Pro", "ColBERT", "CoT"}

// TierFor classifies a model name. Matching is case-sensitive.
func TierFor(modelName string) Tier {
	for _, marker := range premiumMarkers {
		if strings.Contains(modelName, marker) {
			return premiumTier
		}
	}
	return standardTier
}
