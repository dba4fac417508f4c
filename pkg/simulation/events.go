package simulation

// Event types published on the simulation topic
const (
	EventStarted    = "started"
	EventNodeActive = "node_active"
	EventElapsed    = "elapsed"
	EventEdgeActive = "edge_active"
	EventFinished   = "finished"
	EventCancelled  = "cancelled"
)

// Reason explains why a run finished
type Reason string

const (
	ReasonSink        Reason = "sink"         // reached a node without outgoing edges
	ReasonNodeRemoved Reason = "node_removed" // the next node was deleted during the run
	ReasonCycle       Reason = "cycle"        // a node was reached twice
	ReasonEmpty       Reason = "empty"        // nothing to traverse
)

type Started struct {
	RunID string `json:"runId"`
	Entry string `json:"entry"`
}

type NodeActive struct {
	RunID  string `json:"runId"`
	NodeID string `json:"nodeId"`
}

type Elapsed struct {
	RunID     string  `json:"runId"`
	ElapsedMs float64 `json:"elapsedMs"`
}

type EdgeActive struct {
	RunID  string `json:"runId"`
	EdgeID string `json:"edgeId"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type Finished struct {
	RunID     string   `json:"runId"`
	ElapsedMs float64  `json:"elapsedMs"`
	Visited   []string `json:"visited"`
	Reason    Reason   `json:"reason"`
}

type Cancelled struct {
	RunID     string  `json:"runId"`
	ElapsedMs float64 `json:"elapsedMs"`
}
