package output

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/ritzau/rag-pipeline-designer/pkg/designer"
	"github.com/ritzau/rag-pipeline-designer/pkg/model"
	"github.com/ritzau/rag-pipeline-designer/pkg/persistence"
	"github.com/ritzau/rag-pipeline-designer/pkg/pubsub"
	"github.com/ritzau/rag-pipeline-designer/pkg/simulation"
)

func init() {
	color.NoColor = true
}

func TestPrintPipelineReport(t *testing.T) {
	var buf bytes.Buffer
	PrintPipelineReport(&buf, "default", model.DefaultGraph().Nodes(), "BALANCED")
	out := buf.String()

	for _, want := range []string{
		"Nodes: 8 (7 active)",
		"Preset: BALANCED",
		"Total latency: 640ms",
		"Status: OPTIMAL",
		"Synthesis Core",
		"<- bottleneck",
		"(inactive)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Report missing %q:\n%s", want, out)
		}
	}
}

func TestPrintPipelineReportCritical(t *testing.T) {
	nodes := []model.Node{
		{ID: "a", Kind: model.KindGeneration, Label: "Slow", Model: "m", Active: true, BaseLatencyMs: 1500},
	}
	var buf bytes.Buffer
	PrintPipelineReport(&buf, "test", nodes, "")

	if !strings.Contains(buf.String(), "Status: CRITICAL") {
		t.Errorf("Expected CRITICAL status:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "Preset:") {
		t.Error("No preset line expected without an active preset")
	}
}

func TestPrintProjection(t *testing.T) {
	var buf bytes.Buffer
	PrintProjection(&buf, persistence.Projection{}, false)
	if !strings.Contains(buf.String(), "No pipeline published") {
		t.Errorf("Expected absent projection message, got %q", buf.String())
	}

	buf.Reset()
	p := persistence.NewProjection(model.DefaultGraph().Nodes(), time.Now())
	PrintProjection(&buf, p, true)
	if !strings.Contains(buf.String(), "8 nodes, 7 active") || !strings.Contains(buf.String(), "640ms OPTIMAL") {
		t.Errorf("Unexpected projection summary %q", buf.String())
	}
}

func TestTraceSimulation(t *testing.T) {
	d := designer.New(designer.Options{Graph: model.DefaultGraph()})
	bus := pubsub.NewBus()
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := bus.Subscribe(ctx, pubsub.TopicSimulation)
	if err != nil {
		t.Fatal(err)
	}

	timing := simulation.Timing{Ticks: 2, TickInterval: time.Millisecond, EdgePause: time.Millisecond}
	engine := simulation.NewEngine(d, bus, timing)
	if err := engine.Start(ctx); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	result, err := TraceSimulation(ctx, &buf, sub, d.Node, false)
	if err != nil {
		t.Fatal(err)
	}

	if !result.Finished || result.Reason != simulation.ReasonSink {
		t.Errorf("Expected run to finish at the sink, got %+v", result)
	}
	if result.ElapsedMs != 640 {
		t.Errorf("Expected 640ms, got %v", result.ElapsedMs)
	}
	if len(result.Visited) != 8 {
		t.Errorf("Expected 8 visited nodes, got %d", len(result.Visited))
	}

	out := buf.String()
	for _, want := range []string{"Simulating from PII Detection", "Knowledge Graph (bypassed)", "Finished in 640ms (sink)"} {
		if !strings.Contains(out, want) {
			t.Errorf("Trace missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "    320ms") {
		t.Error("Elapsed ticks should be hidden when not verbose")
	}
}

func TestTraceSimulationCancelled(t *testing.T) {
	d := designer.New(designer.Options{Graph: model.DefaultGraph()})
	bus := pubsub.NewBus()
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := bus.Subscribe(ctx, pubsub.TopicSimulation)
	if err != nil {
		t.Fatal(err)
	}

	engine := simulation.NewEngine(d, bus, simulation.Timing{Ticks: 10, TickInterval: 50 * time.Millisecond})
	if err := engine.Start(ctx); err != nil {
		t.Fatal(err)
	}
	engine.Cancel()

	var buf bytes.Buffer
	result, err := TraceSimulation(ctx, &buf, sub, d.Node, true)
	if err != nil {
		t.Fatal(err)
	}
	if result.Finished {
		t.Error("Expected a cancelled run")
	}
	if !strings.Contains(buf.String(), "Cancelled after") {
		t.Errorf("Expected cancel line:\n%s", buf.String())
	}
}
