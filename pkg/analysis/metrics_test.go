package analysis

import (
	"testing"

	"github.com/ritzau/rag-pipeline-designer/pkg/model"
	"github.com/ritzau/rag-pipeline-designer/pkg/persistence"
)

func TestSummarizeDefaultPipeline(t *testing.T) {
	m := Summarize(model.DefaultGraph().Nodes())

	// n3 (Knowledge Graph, 250ms) is inactive by default
	if m.TotalLatencyMs != 640 {
		t.Errorf("Expected 640ms total, got %v", m.TotalLatencyMs)
	}
	if m.ActiveNodes != 7 {
		t.Errorf("Expected 7 active nodes, got %d", m.ActiveNodes)
	}
	if m.Bottleneck != "n5" {
		t.Errorf("Expected n5 as bottleneck, got %s", m.Bottleneck)
	}
	if m.Status != StatusOptimal {
		t.Errorf("Expected OPTIMAL, got %s", m.Status)
	}
	if len(m.Breakdown) != 7 || m.Breakdown[0].ID != "n0" {
		t.Errorf("Unexpected breakdown %v", m.Breakdown)
	}

	for _, kc := range m.ByKind {
		if kc.Kind == model.KindGuardrail && kc.Active != 2 {
			t.Errorf("Expected 2 active guardrails, got %d", kc.Active)
		}
		if kc.Kind == model.KindRetrieval && kc.Active != 1 {
			t.Errorf("Expected 1 active retrieval, got %d", kc.Active)
		}
	}
}

func TestSummarizeEmpty(t *testing.T) {
	m := Summarize(nil)
	if m.TotalLatencyMs != 0 || m.Bottleneck != "" || m.Status != StatusOptimal {
		t.Errorf("Unexpected metrics for empty pipeline: %+v", m)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		latency float64
		want    Status
	}{
		{0, StatusOptimal},
		{799.9, StatusOptimal},
		{800, StatusDegraded},
		{1199, StatusDegraded},
		{1200, StatusCritical},
		{5000, StatusCritical},
	}
	for _, tt := range tests {
		if got := Classify(tt.latency); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.latency, got, tt.want)
		}
	}
}

func TestHasPipeline(t *testing.T) {
	full := persistence.Projection{Nodes: model.DefaultGraph().Nodes()}

	if !HasPipeline(full, true) {
		t.Error("Expected pipeline for a non-empty projection")
	}
	if HasPipeline(full, false) {
		t.Error("Absent projection should not count")
	}
	if HasPipeline(persistence.Projection{Nodes: []model.Node{}}, true) {
		t.Error("Empty projection should not count")
	}
}

func TestSearch(t *testing.T) {
	nodes := model.DefaultGraph().Nodes()

	dimmed := Search(nodes, "  CHECK ")
	// only "Hallucination Check" matches
	if len(dimmed) != 7 {
		t.Errorf("Expected 7 dimmed nodes, got %v", dimmed)
	}
	for _, id := range dimmed {
		if id == "n6" {
			t.Error("n6 matches and should not be dimmed")
		}
	}

	if len(Search(nodes, "")) != 0 {
		t.Error("Empty query should dim nothing")
	}
}
