package model

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateNode = errors.New("model: duplicate node id")
	ErrDuplicateEdge = errors.New("model: duplicate edge id")
	ErrDanglingEdge  = errors.New("model: edge references unknown node")
)

// Graph holds the pipeline nodes and edges.
// Nodes and edges are stored by id, with separate slices remembering insertion order
// so that iteration (and "first outgoing edge") is deterministic.
type Graph struct {
	nodes     map[string]Node
	nodeOrder []string
	edges     map[string]Edge
	edgeOrder []string
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]Node),
		edges: make(map[string]Edge),
	}
}

// AddNode appends a node to the graph.
func (g *Graph) AddNode(node Node) error {
	if _, exists := g.nodes[node.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, node.ID)
	}
	g.nodes[node.ID] = node.clone()
	g.nodeOrder = append(g.nodeOrder, node.ID)
	return nil
}

// UpdateNode replaces an existing node. Returns false if the id is unknown.
func (g *Graph) UpdateNode(node Node) bool {
	if _, exists := g.nodes[node.ID]; !exists {
		return false
	}
	g.nodes[node.ID] = node.clone()
	return true
}

// Node returns a copy of the node with the given id
func (g *Graph) Node(id string) (Node, bool) {
	node, exists := g.nodes[id]
	if !exists {
		return Node{}, false
	}
	return node.clone(), true
}

// HasNode reports whether a node with the given id exists
func (g *Graph) HasNode(id string) bool {
	_, exists := g.nodes[id]
	return exists
}

// Nodes returns copies of all nodes in insertion order
func (g *Graph) Nodes() []Node {
	nodes := make([]Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		nodes = append(nodes, g.nodes[id].clone())
	}
	return nodes
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return len(g.nodeOrder)
}

// RemoveNodes deletes the given nodes and every edge incident to one of them.
// Unknown ids are ignored. Returns the number of nodes actually removed.
func (g *Graph) RemoveNodes(ids []string) int {
	doomed := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, exists := g.nodes[id]; exists {
			doomed[id] = true
		}
	}
	if len(doomed) == 0 {
		return 0
	}

	nodeOrder := make([]string, 0, len(g.nodeOrder)-len(doomed))
	for _, id := range g.nodeOrder {
		if doomed[id] {
			delete(g.nodes, id)
			continue
		}
		nodeOrder = append(nodeOrder, id)
	}
	g.nodeOrder = nodeOrder

	edgeOrder := make([]string, 0, len(g.edgeOrder))
	for _, id := range g.edgeOrder {
		edge := g.edges[id]
		if doomed[edge.Source] || doomed[edge.Target] {
			delete(g.edges, id)
			continue
		}
		edgeOrder = append(edgeOrder, id)
	}
	g.edgeOrder = edgeOrder

	return len(doomed)
}

// RemoveEdges deletes the given edges. Unknown ids are ignored.
// Returns the number of edges actually removed.
func (g *Graph) RemoveEdges(ids []string) int {
	removed := 0
	for _, id := range ids {
		if _, exists := g.edges[id]; exists {
			delete(g.edges, id)
			removed++
		}
	}
	if removed == 0 {
		return 0
	}

	edgeOrder := make([]string, 0, len(g.edgeOrder)-removed)
	for _, id := range g.edgeOrder {
		if _, exists := g.edges[id]; exists {
			edgeOrder = append(edgeOrder, id)
		}
	}
	g.edgeOrder = edgeOrder
	return removed
}

// AddEdge appends an edge. Both endpoints must exist.
// Duplicate source/target pairs and cycles are allowed.
func (g *Graph) AddEdge(edge Edge) error {
	if _, exists := g.edges[edge.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEdge, edge.ID)
	}
	if !g.HasNode(edge.Source) || !g.HasNode(edge.Target) {
		return fmt.Errorf("%w: %s -> %s", ErrDanglingEdge, edge.Source, edge.Target)
	}
	g.edges[edge.ID] = edge
	g.edgeOrder = append(g.edgeOrder, edge.ID)
	return nil
}

// HasEdge reports whether an edge with the given id exists
func (g *Graph) HasEdge(id string) bool {
	_, exists := g.edges[id]
	return exists
}

// Edges returns all edges in insertion order
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, len(g.edgeOrder))
	for _, id := range g.edgeOrder {
		edges = append(edges, g.edges[id])
	}
	return edges
}

// OutgoingEdges returns the edges leaving the given node in insertion order
func (g *Graph) OutgoingEdges(id string) []Edge {
	var out []Edge
	for _, edgeID := range g.edgeOrder {
		if edge := g.edges[edgeID]; edge.Source == id {
			out = append(out, edge)
		}
	}
	return out
}

// Validate checks the graph invariants: unique ids and no dangling edges
func (g *Graph) Validate() error {
	if len(g.nodes) != len(g.nodeOrder) {
		return ErrDuplicateNode
	}
	for _, id := range g.edgeOrder {
		edge := g.edges[id]
		if !g.HasNode(edge.Source) || !g.HasNode(edge.Target) {
			return fmt.Errorf("%w: edge %s (%s -> %s)", ErrDanglingEdge, edge.ID, edge.Source, edge.Target)
		}
	}
	return nil
}

// Clone returns a deep copy of the graph
func (g *Graph) Clone() *Graph {
	clone := NewGraph()
	clone.Restore(g.Snapshot())
	return clone
}

// Snapshot captures the current state. The snapshot shares no memory with the graph.
func (g *Graph) Snapshot() Snapshot {
	return Snapshot{
		Nodes: g.Nodes(),
		Edges: g.Edges(),
	}
}

// Restore replaces the graph contents with the given snapshot
func (g *Graph) Restore(s Snapshot) {
	g.nodes = make(map[string]Node, len(s.Nodes))
	g.nodeOrder = make([]string, 0, len(s.Nodes))
	g.edges = make(map[string]Edge, len(s.Edges))
	g.edgeOrder = make([]string, 0, len(s.Edges))

	for _, node := range s.Nodes {
		g.nodes[node.ID] = node.clone()
		g.nodeOrder = append(g.nodeOrder, node.ID)
	}
	for _, edge := range s.Edges {
		g.edges[edge.ID] = edge
		g.edgeOrder = append(g.edgeOrder, edge.ID)
	}
}

// FromSnapshot builds a graph from a snapshot and validates it
func FromSnapshot(s Snapshot) (*Graph, error) {
	g := NewGraph()
	for _, node := range s.Nodes {
		if err := g.AddNode(node); err != nil {
			return nil, err
		}
	}
	for _, edge := range s.Edges {
		if err := g.AddEdge(edge); err != nil {
			return nil, err
		}
	}
	return g, nil
}
