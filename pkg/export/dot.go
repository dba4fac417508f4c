package export

import (
	"fmt"

	"github.com/ritzau/rag-pipeline-designer/pkg/model"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/multi"
)

// kindColors mirrors the palette a renderer uses for each node kind
var kindColors = map[model.Kind]string{
	model.KindGuardrail:  "red",
	model.KindRouting:    "orange",
	model.KindProcessing: "gray",
	model.KindRetrieval:  "blue",
	model.KindRerank:     "purple",
	model.KindGeneration: "green",
}

type dotNode struct {
	id   int64
	node model.Node
}

func (n dotNode) ID() int64     { return n.id }
func (n dotNode) DOTID() string { return n.node.ID }
func (n dotNode) Attributes() []encoding.Attribute {
	style := "solid"
	if !n.node.Active {
		style = "dashed"
	}
	return []encoding.Attribute{
		{Key: "label", Value: n.node.Label},
		{Key: "tooltip", Value: n.node.Model},
		{Key: "color", Value: kindColors[n.node.Kind]},
		{Key: "style", Value: style},
	}
}

type dotLine struct {
	id       int64
	from, to dotNode
	edge     model.Edge
}

func (l dotLine) From() graph.Node { return l.from }
func (l dotLine) To() graph.Node   { return l.to }
func (l dotLine) ID() int64        { return l.id }
func (l dotLine) ReversedLine() graph.Line {
	l.from, l.to = l.to, l.from
	return l
}
func (l dotLine) Attributes() []encoding.Attribute {
	return []encoding.Attribute{{Key: "id", Value: l.edge.ID}}
}

// DOT renders the pipeline as a Graphviz digraph. Inactive nodes are dashed;
// duplicate edges and self loops are kept.
func DOT(s model.Snapshot, name string) ([]byte, error) {
	g := multi.NewDirectedGraph()

	nodes := make(map[string]dotNode, len(s.Nodes))
	for i, n := range s.Nodes {
		dn := dotNode{id: int64(i), node: n}
		nodes[n.ID] = dn
		g.AddNode(dn)
	}

	for i, e := range s.Edges {
		from, okFrom := nodes[e.Source]
		to, okTo := nodes[e.Target]
		if !okFrom || !okTo {
			continue
		}
		g.SetLine(dotLine{id: int64(i), from: from, to: to, edge: e})
	}

	data, err := dot.MarshalMulti(g, name, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode dot: %w", err)
	}
	return data, nil
}
