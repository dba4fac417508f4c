package diff

import (
	"testing"

	"github.com/ritzau/rag-pipeline-designer/pkg/model"
)

func TestComputeDiff(t *testing.T) {
	old := model.Snapshot{
		Nodes: []model.Node{
			{ID: "a", Label: "A", Active: true},
			{ID: "b", Label: "B", Active: true},
			{ID: "c", Label: "C", Active: true},
		},
		Edges: []model.Edge{
			{ID: "a-b", Source: "a", Target: "b"},
			{ID: "b-c", Source: "b", Target: "c"},
		},
	}
	next := model.Snapshot{
		Nodes: []model.Node{
			{ID: "a", Label: "A", Active: true},
			{ID: "b", Label: "B", Active: false},
			{ID: "d", Label: "D", Active: true},
		},
		Edges: []model.Edge{
			{ID: "a-b", Source: "a", Target: "b"},
			{ID: "b-d", Source: "b", Target: "d"},
		},
	}

	d := Compute(old, next)

	if len(d.AddedNodes) != 1 || d.AddedNodes[0].ID != "d" {
		t.Errorf("Expected d added, got %v", d.AddedNodes)
	}
	if len(d.RemovedNodes) != 1 || d.RemovedNodes[0] != "c" {
		t.Errorf("Expected c removed, got %v", d.RemovedNodes)
	}
	if len(d.ModifiedNodes) != 1 || d.ModifiedNodes[0].ID != "b" {
		t.Errorf("Expected b modified, got %v", d.ModifiedNodes)
	}
	if len(d.AddedEdges) != 1 || d.AddedEdges[0].ID != "b-d" {
		t.Errorf("Expected b-d added, got %v", d.AddedEdges)
	}
	if len(d.RemovedEdges) != 1 || d.RemovedEdges[0] != "b-c" {
		t.Errorf("Expected b-c removed, got %v", d.RemovedEdges)
	}
	if d.Empty() {
		t.Error("Diff should not be empty")
	}
}

func TestComputeDiffPositionOnly(t *testing.T) {
	old := model.Snapshot{Nodes: []model.Node{{ID: "a", Position: &model.Position{X: 1, Y: 2}}}}
	next := model.Snapshot{Nodes: []model.Node{{ID: "a", Position: &model.Position{X: 5, Y: 2}}}}

	d := Compute(old, next)
	if len(d.ModifiedNodes) != 1 {
		t.Errorf("Expected position change to count as modification, got %+v", d)
	}

	if !Compute(old, old).Empty() {
		t.Error("Identical snapshots should produce an empty diff")
	}
}

func TestFull(t *testing.T) {
	s := model.DefaultGraph().Snapshot()
	d := Full(s)

	if !d.FullGraph || len(d.AddedNodes) != 8 || len(d.AddedEdges) != 7 {
		t.Errorf("Unexpected full diff: %d nodes, %d edges", len(d.AddedNodes), len(d.AddedEdges))
	}
	if d.Empty() {
		t.Error("Full diff is never empty")
	}
}

func TestHashNodes(t *testing.T) {
	a := []model.Node{{ID: "a", Active: true}}
	b := []model.Node{{ID: "a", Active: false}}

	if HashNodes(a) == HashNodes(b) {
		t.Error("Different projections should hash differently")
	}
	if HashNodes(a) != HashNodes([]model.Node{{ID: "a", Active: true}}) {
		t.Error("Equal projections should hash equal")
	}
}
