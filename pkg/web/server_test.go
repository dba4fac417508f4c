package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ritzau/rag-pipeline-designer/pkg/analysis"
	"github.com/ritzau/rag-pipeline-designer/pkg/designer"
	"github.com/ritzau/rag-pipeline-designer/pkg/model"
	"github.com/ritzau/rag-pipeline-designer/pkg/pubsub"
	"github.com/ritzau/rag-pipeline-designer/pkg/simulation"
)

type fixture struct {
	server   *Server
	designer *designer.Designer
	engine   *simulation.Engine
	bus      *pubsub.Bus
}

func newFixture(t *testing.T, timing simulation.Timing) *fixture {
	t.Helper()
	bus := pubsub.NewBus()
	t.Cleanup(func() { bus.Close() })

	d := designer.New(designer.Options{Graph: model.DefaultGraph(), Events: bus})
	engine := simulation.NewEngine(d, bus, timing)
	return &fixture{
		server:   NewServer(d, engine, bus),
		designer: d,
		engine:   engine,
		bus:      bus,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
}

var instant = simulation.Timing{Ticks: 1}

func TestGetPipeline(t *testing.T) {
	f := newFixture(t, instant)
	rec := f.do(t, "GET", "/api/pipeline", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("Expected a request id header")
	}

	var state PipelineState
	decodeBody(t, rec, &state)
	if len(state.Nodes) != 8 || len(state.Edges) != 7 {
		t.Errorf("Expected default pipeline, got %d nodes %d edges", len(state.Nodes), len(state.Edges))
	}
	if state.History.CanUndo {
		t.Error("Fresh pipeline should have nothing to undo")
	}
}

func TestAddNodeAndConnect(t *testing.T) {
	f := newFixture(t, instant)

	rec := f.do(t, "POST", "/api/pipeline/nodes", designer.NodeConfig{
		Kind: model.KindGuardrail, Label: "Toxicity", Model: "Detoxify", BaseLatencyMs: 20,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created CreatedResult
	decodeBody(t, rec, &created)
	if _, ok := f.designer.Node(created.ID); !ok {
		t.Fatalf("Node %s not in graph", created.ID)
	}

	rec = f.do(t, "POST", "/api/pipeline/edges", connectRequest{Source: "n6", Target: created.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.designer.History().Pointer != 2 {
		t.Errorf("Expected two history steps, got pointer %d", f.designer.History().Pointer)
	}
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t, instant)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"invalid endpoint", "POST", "/api/pipeline/edges", connectRequest{Source: "n0", Target: "missing"}, http.StatusBadRequest},
		{"invalid node config", "POST", "/api/pipeline/nodes", designer.NodeConfig{Kind: "NOPE"}, http.StatusBadRequest},
		{"unknown preset", "POST", "/api/pipeline/presets/TURBO", nil, http.StatusNotFound},
		{"missing model", "PUT", "/api/pipeline/nodes/n5/model", modelRequest{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}

	if f.designer.History().CanUndo {
		t.Error("Rejected requests must not record history")
	}
}

func TestMalformedBody(t *testing.T) {
	f := newFixture(t, instant)
	req := httptest.NewRequest("POST", "/api/pipeline/edges", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestToggleUndoRedo(t *testing.T) {
	f := newFixture(t, instant)

	var result ChangeResult
	decodeBody(t, f.do(t, "POST", "/api/pipeline/nodes/n3/toggle", nil), &result)
	if !result.Changed || !result.History.CanUndo {
		t.Fatalf("Expected toggle to change the pipeline, got %+v", result)
	}
	if n, _ := f.designer.Node("n3"); !n.Active {
		t.Error("n3 should be active after toggle")
	}

	decodeBody(t, f.do(t, "POST", "/api/pipeline/undo", nil), &result)
	if !result.Changed || !result.History.CanRedo {
		t.Fatalf("Expected undo, got %+v", result)
	}
	if n, _ := f.designer.Node("n3"); n.Active {
		t.Error("n3 should be inactive after undo")
	}

	decodeBody(t, f.do(t, "POST", "/api/pipeline/redo", nil), &result)
	if !result.Changed {
		t.Error("Expected redo to change the pipeline")
	}

	decodeBody(t, f.do(t, "POST", "/api/pipeline/nodes/ghost/toggle", nil), &result)
	if result.Changed {
		t.Error("Unknown node toggle should be a no-op")
	}
}

func TestSelectModelAppliesTier(t *testing.T) {
	f := newFixture(t, instant)
	rec := f.do(t, "PUT", "/api/pipeline/nodes/n5/model", modelRequest{Model: "Gemini 3 Pro", ApplyTier: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	n, _ := f.designer.Node("n5")
	if n.Model != "Gemini 3 Pro" || n.BaseLatencyMs != 300 {
		t.Errorf("Expected premium tier, got %+v", n)
	}
}

func TestPositionAmendsHistory(t *testing.T) {
	f := newFixture(t, instant)
	rec := f.do(t, "PUT", "/api/pipeline/nodes/n0/position", model.Position{X: 1, Y: 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if f.designer.History().CanUndo {
		t.Error("Placement should not add an undo step")
	}
}

func TestDeleteNodesAndEdges(t *testing.T) {
	f := newFixture(t, instant)

	var result ChangeResult
	decodeBody(t, f.do(t, "DELETE", "/api/pipeline/edges", idsRequest{IDs: []string{"e5-6"}}), &result)
	if !result.Changed || len(f.designer.Snapshot().Edges) != 6 {
		t.Errorf("Expected edge removal, got %+v", result)
	}

	decodeBody(t, f.do(t, "DELETE", "/api/pipeline/nodes", idsRequest{IDs: []string{"n6"}}), &result)
	if !result.Changed || len(f.designer.Snapshot().Nodes) != 7 {
		t.Errorf("Expected node removal, got %+v", result)
	}
}

func TestPresets(t *testing.T) {
	f := newFixture(t, instant)

	var list []map[string]interface{}
	decodeBody(t, f.do(t, "GET", "/api/presets", nil), &list)
	if len(list) != 3 {
		t.Fatalf("Expected 3 built-in presets, got %d", len(list))
	}

	rec := f.do(t, "POST", "/api/pipeline/presets/fast", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if f.designer.ActivePreset() != "FAST" {
		t.Errorf("Expected FAST active, got %q", f.designer.ActivePreset())
	}
}

func TestMetricsSearchAndExport(t *testing.T) {
	f := newFixture(t, instant)

	var m analysis.Metrics
	decodeBody(t, f.do(t, "GET", "/api/pipeline/metrics", nil), &m)
	if m.TotalLatencyMs != 640 || m.Status != analysis.StatusOptimal {
		t.Errorf("Unexpected metrics %+v", m)
	}

	var search map[string][]string
	decodeBody(t, f.do(t, "GET", "/api/pipeline/search?q=retrieval", nil), &search)
	if len(search["dimmed"]) != 7 {
		t.Errorf("Expected 7 dimmed nodes, got %v", search["dimmed"])
	}

	rec := f.do(t, "GET", "/api/pipeline/export/python", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Synthesis Core") {
		t.Errorf("Unexpected python export %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, "GET", "/api/pipeline/export/dot", nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "digraph pipeline {") {
		t.Errorf("Unexpected dot export %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSimulationLifecycle(t *testing.T) {
	slow := simulation.Timing{Ticks: 10, TickInterval: 20 * time.Millisecond, EdgePause: 20 * time.Millisecond}
	f := newFixture(t, slow)

	rec := f.do(t, "POST", "/api/simulation/start", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	// the run is not tied to the finished request
	if f.engine.State() != simulation.StateRunning {
		t.Fatalf("Expected running, got %s", f.engine.State())
	}

	rec = f.do(t, "POST", "/api/simulation/start", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 while running, got %d", rec.Code)
	}

	rec = f.do(t, "POST", "/api/simulation/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.engine.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	var status simulation.Status
	decodeBody(t, f.do(t, "GET", "/api/simulation", nil), &status)
	if status.State != simulation.StateCancelled {
		t.Errorf("Expected cancelled, got %s", status.State)
	}
}

func TestSimulationRejectsCycle(t *testing.T) {
	f := newFixture(t, instant)
	if _, err := f.designer.Connect("n6", "n0"); err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, "POST", "/api/simulation/start", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSubscribePipeline(t *testing.T) {
	f := newFixture(t, instant)
	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/subscribe/pipeline", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Expected event stream, got %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil || !strings.HasPrefix(line, ": connected") {
		t.Fatalf("Expected connect comment, got %q (%v)", line, err)
	}

	f.designer.ToggleActive("n3")

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("stream ended before the change event: %v", err)
		}
		if strings.HasPrefix(line, "event: ") && strings.Contains(line, string(designer.ActionNodeToggled)) {
			return
		}
	}
}
