package graph

import (
	"github.com/ritzau/rag-pipeline-designer/pkg/model"
	"gonum.org/v1/gonum/graph/simple"
)

// Index is a read-only structural view of a pipeline snapshot backed by a gonum directed graph.
// It answers degree and reachability questions; the pipeline itself stays in model.Graph.
type Index struct {
	graph     *simple.DirectedGraph
	order     []string         // node ids in pipeline order
	ids       map[string]int64 // node id -> gonum id
	names     map[int64]string // gonum id -> node id
	selfLoops map[string]bool  // gonum simple graphs reject self edges, so they are tracked here
}

// NewIndex builds an index over the given snapshot.
// Duplicate source/target pairs collapse into a single gonum edge.
func NewIndex(s model.Snapshot) *Index {
	idx := &Index{
		graph:     simple.NewDirectedGraph(),
		order:     make([]string, 0, len(s.Nodes)),
		ids:       make(map[string]int64, len(s.Nodes)),
		names:     make(map[int64]string, len(s.Nodes)),
		selfLoops: make(map[string]bool),
	}

	for i, node := range s.Nodes {
		gid := int64(i)
		idx.order = append(idx.order, node.ID)
		idx.ids[node.ID] = gid
		idx.names[gid] = node.ID
		idx.graph.AddNode(simple.Node(gid))
	}

	for _, edge := range s.Edges {
		sourceID, okSource := idx.ids[edge.Source]
		targetID, okTarget := idx.ids[edge.Target]
		if !okSource || !okTarget {
			continue
		}
		if sourceID == targetID {
			idx.selfLoops[edge.Source] = true
			continue
		}
		if !idx.graph.HasEdgeFromTo(sourceID, targetID) {
			idx.graph.SetEdge(idx.graph.NewEdge(idx.graph.Node(sourceID), idx.graph.Node(targetID)))
		}
	}

	return idx
}

// Graph returns the underlying directed graph
func (idx *Index) Graph() *simple.DirectedGraph {
	return idx.graph
}

// NodeID maps a gonum id back to the pipeline node id
func (idx *Index) NodeID(id int64) (string, bool) {
	name, ok := idx.names[id]
	return name, ok
}

// SelfLoops returns the ids of nodes that have an edge to themselves, in pipeline order
func (idx *Index) SelfLoops() []string {
	var loops []string
	for _, id := range idx.order {
		if idx.selfLoops[id] {
			loops = append(loops, id)
		}
	}
	return loops
}

// InDegree returns the number of distinct predecessors of a node, counting a self loop
func (idx *Index) InDegree(id string) int {
	gid, exists := idx.ids[id]
	if !exists {
		return 0
	}
	degree := idx.graph.To(gid).Len()
	if idx.selfLoops[id] {
		degree++
	}
	return degree
}

// Sources returns nodes with no incoming edges, in pipeline order
func (idx *Index) Sources() []string {
	var sources []string
	for _, id := range idx.order {
		if idx.InDegree(id) == 0 {
			sources = append(sources, id)
		}
	}
	return sources
}

// Sinks returns nodes with no outgoing edges, in pipeline order
func (idx *Index) Sinks() []string {
	var sinks []string
	for _, id := range idx.order {
		if idx.graph.From(idx.ids[id]).Len() == 0 && !idx.selfLoops[id] {
			sinks = append(sinks, id)
		}
	}
	return sinks
}

// EntryPoint picks where a traversal starts: the first source node in pipeline order,
// falling back to the first node when every node has a predecessor.
// Returns false for an empty graph.
func (idx *Index) EntryPoint() (string, bool) {
	if len(idx.order) == 0 {
		return "", false
	}
	if sources := idx.Sources(); len(sources) > 0 {
		return sources[0], true
	}
	return idx.order[0], true
}

// Successors returns the distinct direct successors of a node
func (idx *Index) Successors(id string) []string {
	gid, exists := idx.ids[id]
	if !exists {
		return nil
	}

	var succ []string
	iter := idx.graph.From(gid)
	for iter.Next() {
		if name, ok := idx.names[iter.Node().ID()]; ok {
			succ = append(succ, name)
		}
	}
	if idx.selfLoops[id] {
		succ = append(succ, id)
	}
	return succ
}
