package graph

import (
	"testing"

	"github.com/ritzau/rag-pipeline-designer/pkg/model"
)

func snapshot(ids []string, edges [][2]string) model.Snapshot {
	s := model.Snapshot{}
	for _, id := range ids {
		s.Nodes = append(s.Nodes, model.Node{ID: id, Kind: model.KindProcessing})
	}
	for _, e := range edges {
		s.Edges = append(s.Edges, model.Edge{ID: e[0] + "-" + e[1], Source: e[0], Target: e[1]})
	}
	return s
}

func TestNewIndexEmpty(t *testing.T) {
	idx := NewIndex(model.Snapshot{})

	if _, ok := idx.EntryPoint(); ok {
		t.Error("Empty graph should have no entry point")
	}
	if len(idx.Sources()) != 0 {
		t.Errorf("Expected no sources, got %v", idx.Sources())
	}
}

func TestSourcesAndSinks(t *testing.T) {
	// x is isolated, a -> b -> c
	idx := NewIndex(snapshot([]string{"b", "a", "c", "x"}, [][2]string{{"a", "b"}, {"b", "c"}}))

	sources := idx.Sources()
	if len(sources) != 2 || sources[0] != "a" || sources[1] != "x" {
		t.Errorf("Expected sources [a x], got %v", sources)
	}

	sinks := idx.Sinks()
	if len(sinks) != 2 || sinks[0] != "c" || sinks[1] != "x" {
		t.Errorf("Expected sinks [c x], got %v", sinks)
	}

	entry, _ := idx.EntryPoint()
	if entry != "a" {
		t.Errorf("Expected entry a, got %s", entry)
	}
}

func TestEntryPointFallsBackToFirstNode(t *testing.T) {
	idx := NewIndex(snapshot([]string{"a", "b"}, [][2]string{{"a", "b"}, {"b", "a"}}))

	entry, ok := idx.EntryPoint()
	if !ok || entry != "a" {
		t.Errorf("Expected fallback entry a, got %q (%v)", entry, ok)
	}
}

func TestSelfLoopTrackedSeparately(t *testing.T) {
	idx := NewIndex(snapshot([]string{"a"}, [][2]string{{"a", "a"}}))

	if loops := idx.SelfLoops(); len(loops) != 1 || loops[0] != "a" {
		t.Errorf("Expected self loop on a, got %v", loops)
	}
	if idx.InDegree("a") != 1 {
		t.Errorf("Expected in-degree 1, got %d", idx.InDegree("a"))
	}
	if succ := idx.Successors("a"); len(succ) != 1 || succ[0] != "a" {
		t.Errorf("Expected a to succeed itself, got %v", succ)
	}
}

func TestDuplicateEdgesCollapse(t *testing.T) {
	idx := NewIndex(snapshot([]string{"a", "b"}, [][2]string{{"a", "b"}, {"a", "b"}}))

	if idx.InDegree("b") != 1 {
		t.Errorf("Expected in-degree 1 for b, got %d", idx.InDegree("b"))
	}
	if succ := idx.Successors("a"); len(succ) != 1 {
		t.Errorf("Expected 1 successor, got %v", succ)
	}
}
