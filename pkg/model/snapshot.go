package model

// Snapshot is an immutable capture of a graph at one point in time.
// Callers receive copies, so mutating a returned slice never reaches back into history.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Clone returns a deep copy of the snapshot
func (s Snapshot) Clone() Snapshot {
	c := Snapshot{
		Nodes: make([]Node, len(s.Nodes)),
		Edges: make([]Edge, len(s.Edges)),
	}
	for i, node := range s.Nodes {
		c.Nodes[i] = node.clone()
	}
	copy(c.Edges, s.Edges)
	return c
}

// Equal reports structural equality of nodes and edges, including order
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s.Nodes) != len(o.Nodes) || len(s.Edges) != len(o.Edges) {
		return false
	}
	for i := range s.Nodes {
		if !s.Nodes[i].Equal(o.Nodes[i]) {
			return false
		}
	}
	for i := range s.Edges {
		if s.Edges[i] != o.Edges[i] {
			return false
		}
	}
	return true
}
