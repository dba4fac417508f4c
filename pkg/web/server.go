package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/ritzau/rag-pipeline-designer/pkg/analysis"
	"github.com/ritzau/rag-pipeline-designer/pkg/cycles"
	"github.com/ritzau/rag-pipeline-designer/pkg/designer"
	"github.com/ritzau/rag-pipeline-designer/pkg/export"
	"github.com/ritzau/rag-pipeline-designer/pkg/logging"
	"github.com/ritzau/rag-pipeline-designer/pkg/model"
	"github.com/ritzau/rag-pipeline-designer/pkg/presets"
	"github.com/ritzau/rag-pipeline-designer/pkg/pubsub"
	"github.com/ritzau/rag-pipeline-designer/pkg/simulation"
)

// PipelineState is the full view of the pipeline handed to a renderer
type PipelineState struct {
	Nodes        []model.Node          `json:"nodes"`
	Edges        []model.Edge          `json:"edges"`
	History      designer.HistoryState `json:"history"`
	ActivePreset string                `json:"activePreset,omitempty"`
}

// ChangeResult reports whether a mutation changed the pipeline
type ChangeResult struct {
	Changed bool                  `json:"changed"`
	History designer.HistoryState `json:"history"`
}

// CreatedResult carries the id of a created node or edge
type CreatedResult struct {
	ID string `json:"id"`
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

type connectRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type modelRequest struct {
	Model string `json:"model"`
	// ApplyTier re-derives latency and cost from the model tier
	ApplyTier bool `json:"applyTier"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server represents the web server
type Server struct {
	router    *mux.Router
	designer  *designer.Designer
	engine    *simulation.Engine
	publisher pubsub.Publisher
}

// NewServer creates a new web server over the designer and simulation engine.
// Events are streamed to clients from publisher.
func NewServer(d *designer.Designer, engine *simulation.Engine, publisher pubsub.Publisher) *Server {
	if publisher == nil {
		publisher = pubsub.Discard
	}
	s := &Server{
		router:    mux.NewRouter(),
		designer:  d,
		engine:    engine,
		publisher: publisher,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(logging.RequestIDMiddleware)

	// SSE subscription endpoints
	s.router.HandleFunc("/api/subscribe/pipeline", s.handleSubscribe(pubsub.TopicPipeline)).Methods("GET")
	s.router.HandleFunc("/api/subscribe/simulation", s.handleSubscribe(pubsub.TopicSimulation)).Methods("GET")

	// API routes - more specific routes must come first
	s.router.HandleFunc("/api/pipeline", s.handlePipeline).Methods("GET")
	s.router.HandleFunc("/api/pipeline/metrics", s.handleMetrics).Methods("GET")
	s.router.HandleFunc("/api/pipeline/search", s.handleSearch).Methods("GET")
	s.router.HandleFunc("/api/pipeline/export/python", s.handleExportPython).Methods("GET")
	s.router.HandleFunc("/api/pipeline/export/dot", s.handleExportDOT).Methods("GET")
	s.router.HandleFunc("/api/pipeline/nodes", s.handleAddNode).Methods("POST")
	s.router.HandleFunc("/api/pipeline/nodes", s.handleDeleteNodes).Methods("DELETE")
	s.router.HandleFunc("/api/pipeline/nodes/{id}/toggle", s.handleToggle).Methods("POST")
	s.router.HandleFunc("/api/pipeline/nodes/{id}/model", s.handleModel).Methods("PUT")
	s.router.HandleFunc("/api/pipeline/nodes/{id}/position", s.handlePosition).Methods("PUT")
	s.router.HandleFunc("/api/pipeline/edges", s.handleConnect).Methods("POST")
	s.router.HandleFunc("/api/pipeline/edges", s.handleDeleteEdges).Methods("DELETE")
	s.router.HandleFunc("/api/pipeline/presets/{name}", s.handleApplyPreset).Methods("POST")
	s.router.HandleFunc("/api/pipeline/undo", s.handleUndo).Methods("POST")
	s.router.HandleFunc("/api/pipeline/redo", s.handleRedo).Methods("POST")
	s.router.HandleFunc("/api/presets", s.handlePresets).Methods("GET")

	s.router.HandleFunc("/api/simulation", s.handleSimulationStatus).Methods("GET")
	s.router.HandleFunc("/api/simulation/start", s.handleSimulationStart).Methods("POST")
	s.router.HandleFunc("/api/simulation/cancel", s.handleSimulationCancel).Methods("POST")
}

// Handler returns the HTTP handler serving the API
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleSubscribe(topic string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Set SSE headers
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*") // CORS support

		// Create subscription
		sub, err := s.publisher.Subscribe(r.Context(), topic)
		if err != nil {
			writeError(w, r, http.StatusServiceUnavailable, err)
			return
		}
		defer sub.Close()

		// Send initial comment to establish connection (Safari compatibility)
		fmt.Fprintf(w, ": connected\n\n")
		flush(w)

		// Stream events
		for event := range sub.Events() {
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.DebugContext(r.Context(), "SSE client gone", "topic", topic, "error", err)
				return
			}
			flush(w)
		}
	}
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	snapshot := s.designer.Snapshot()
	writeJSON(w, http.StatusOK, PipelineState{
		Nodes:        snapshot.Nodes,
		Edges:        snapshot.Edges,
		History:      s.designer.History(),
		ActivePreset: s.designer.ActivePreset(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, analysis.Summarize(s.designer.Snapshot().Nodes))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	dimmed := analysis.Search(s.designer.Snapshot().Nodes, r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, map[string][]string{"dimmed": dimmed})
}

func (s *Server) handleExportPython(w http.ResponseWriter, r *http.Request) {
	listing, err := export.Python(s.designer.Snapshot().Nodes)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/x-python; charset=utf-8")
	w.Write([]byte(listing))
}

func (s *Server) handleExportDOT(w http.ResponseWriter, r *http.Request) {
	data, err := export.DOT(s.designer.Snapshot(), "pipeline")
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	w.Write(data)
}

func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	var config designer.NodeConfig
	if !decode(w, r, &config) {
		return
	}
	id, err := s.designer.AddNode(config)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResult{ID: id})
}

func (s *Server) handleDeleteNodes(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if !decode(w, r, &req) {
		return
	}
	s.writeChange(w, s.designer.DeleteNodes(req.IDs))
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	s.writeChange(w, s.designer.ToggleActive(mux.Vars(r)["id"]))
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	var req modelRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Model == "" {
		writeError(w, r, http.StatusBadRequest, errors.New("model is required"))
		return
	}

	id := mux.Vars(r)["id"]
	if req.ApplyTier {
		s.writeChange(w, s.designer.SelectModel(id, req.Model))
		return
	}
	s.writeChange(w, s.designer.SetModel(id, req.Model))
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	var pos model.Position
	if !decode(w, r, &pos) {
		return
	}
	s.writeChange(w, s.designer.Place(mux.Vars(r)["id"], pos))
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := s.designer.Connect(req.Source, req.Target)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResult{ID: id})
}

func (s *Server) handleDeleteEdges(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if !decode(w, r, &req) {
		return
	}
	s.writeChange(w, s.designer.DeleteEdges(req.IDs))
}

func (s *Server) handleApplyPreset(w http.ResponseWriter, r *http.Request) {
	if err := s.designer.ApplyPreset(mux.Vars(r)["name"]); err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	s.writeChange(w, true)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.writeChange(w, s.designer.Undo())
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	s.writeChange(w, s.designer.Redo())
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	registry := s.designer.Presets()
	list := make([]presets.Preset, 0)
	for _, name := range registry.Names() {
		if p, err := registry.Get(name); err == nil {
			list = append(list, p)
		}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSimulationStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleSimulationStart(w http.ResponseWriter, r *http.Request) {
	// the run outlives the request
	ctx := context.WithoutCancel(r.Context())
	if err := s.engine.Start(ctx); err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.engine.Status())
}

func (s *Server) handleSimulationCancel(w http.ResponseWriter, r *http.Request) {
	s.engine.Cancel()
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) writeChange(w http.ResponseWriter, changed bool) {
	writeJSON(w, http.StatusOK, ChangeResult{Changed: changed, History: s.designer.History()})
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	var cycleErr *cycles.CycleError
	switch {
	case errors.Is(err, designer.ErrInvalidEndpoint), errors.Is(err, designer.ErrInvalidNodeConfig):
		return http.StatusBadRequest
	case errors.Is(err, presets.ErrUnknownPreset):
		return http.StatusNotFound
	case errors.Is(err, simulation.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.As(err, &cycleErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		logging.ErrorContext(r.Context(), "request error", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// Start serves the API on port until ctx is done
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Warn("web server shutdown", "error", err)
		}
	}()

	logging.Info("starting web server", "url", fmt.Sprintf("http://localhost%s", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
