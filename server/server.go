// Package server exposes the workflow engine over a small HTTP API with
// optional Server-Sent-Events streaming for chat responses and workflow
// progress.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"personaflow/agent"
	"personaflow/core"
	"personaflow/engine"
	"personaflow/logging"
	"personaflow/model"
)

// Options configures a Server.
type Options struct {
	Logger logging.Logger
}

// Server routes HTTP requests into the engine and its stores.
type Server struct {
	engine *engine.Engine
	logger logging.Logger
	mux    *http.ServeMux
}

// New creates a Server over the given engine.
func New(e *engine.Engine, optFns ...func(o *Options)) *Server {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	s := &Server{engine: e, logger: opts.Logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/chat", s.handleChat)

	s.mux.HandleFunc("GET /api/workflows", s.handleListWorkflows)
	s.mux.HandleFunc("POST /api/workflows", s.handleSaveWorkflow)
	s.mux.HandleFunc("GET /api/workflows/{id}", s.handleGetWorkflow)
	s.mux.HandleFunc("DELETE /api/workflows/{id}", s.handleDeleteWorkflow)
	s.mux.HandleFunc("POST /api/workflows/{id}/execute", s.handleExecuteWorkflow)
	s.mux.HandleFunc("POST /api/workflows/execute", s.handleExecuteInline)

	s.mux.HandleFunc("GET /api/templates", s.handleListTemplates)
	s.mux.HandleFunc("POST /api/templates", s.handleSaveTemplate)
	s.mux.HandleFunc("DELETE /api/templates/{id}", s.handleDeleteTemplate)

	s.mux.HandleFunc("GET /api/files", s.handleSearchFiles)
	s.mux.HandleFunc("POST /api/files", s.handleAddFile)
	s.mux.HandleFunc("DELETE /api/files/{id}", s.handleDeleteFile)

	s.mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// chatRequest is the persona chat payload. History entries use the model
// turn shape ({role, content}).
type chatRequest struct {
	Persona *core.Persona `json:"persona"`
	Message string        `json:"message"`
	History []model.Turn  `json:"history,omitempty"`
	Stream  bool          `json:"stream,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Persona == nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, errors.New("persona and message are required"))
		return
	}

	if req.Stream {
		s.streamChat(w, r, &req)
		return
	}

	start := time.Now()
	a := agent.NewPersonaAgent(req.Persona, s.engine.Provider(), func(o *agent.PersonaAgentOptions) {
		o.Logger = s.logger
	})
	result, err := a.Invoke(r.Context(), agent.Request{Input: req.Message, History: req.History})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"response":      result.Output,
		"executionTime": time.Since(start).Milliseconds(),
	})
}

// streamChat answers a chat request as an SSE stream of token frames
// followed by a done frame.
func (s *Server) streamChat(w http.ResponseWriter, r *http.Request, req *chatRequest) {
	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	mreq := model.Request{
		System:  chatSystemPrompt(req.Persona),
		Input:   req.Message,
		History: req.History,
	}
	chunks, errCh := s.engine.Provider().Stream(r.Context(), mreq)
	for chunk := range chunks {
		if chunk.Done {
			break
		}
		sse.send("data", map[string]any{"type": "token", "content": chunk.Content})
	}
	if err := <-errCh; err != nil {
		sse.send("data", map[string]any{"type": "error", "error": err.Error()})
		return
	}
	sse.send("data", map[string]any{"type": "done"})
}

func (s *Server) handleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	if s.engine.Workflows() == nil {
		writeError(w, http.StatusNotImplemented, errors.New("no workflow store configured"))
		return
	}
	wf, err := s.engine.Workflows().GetWorkflow(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.executeAndRespond(w, r, wf)
}

// handleExecuteInline executes a workflow definition supplied in the request
// body without persisting it.
func (s *Server) handleExecuteInline(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Workflow *core.Workflow `json:"workflow"`
		Input    string         `json:"input"`
		Stream   bool           `json:"stream,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Workflow == nil {
		writeError(w, http.StatusBadRequest, errors.New("workflow is required"))
		return
	}
	s.execute(w, r, req.Workflow, req.Input, req.Stream)
}

func (s *Server) executeAndRespond(w http.ResponseWriter, r *http.Request, wf *core.Workflow) {
	var req struct {
		Input  string `json:"input"`
		Stream bool   `json:"stream,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	s.execute(w, r, wf, req.Input, req.Stream)
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request, wf *core.Workflow, input string, stream bool) {
	if !stream {
		outcome, err := s.engine.ExecuteWorkflow(r.Context(), wf, input, nil)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"output":        outcome.Output,
			"results":       outcome.Results,
			"executionTime": outcome.ExecutionTime.Milliseconds(),
		})
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	sink := core.Sink(func(ev core.Event) {
		sse.send(string(ev.Type), ev)
	})
	outcome, err := s.engine.ExecuteWorkflow(r.Context(), wf, input, sink)
	if err != nil {
		// The sink already delivered the workflow_error event; close the
		// stream with an explicit error frame for clients that only read
		// data frames.
		sse.send("data", map[string]any{"type": "error", "error": err.Error()})
		return
	}
	sse.send("data", map[string]any{
		"type":          "outcome",
		"output":        outcome.Output,
		"results":       outcome.Results,
		"executionTime": outcome.ExecutionTime.Milliseconds(),
	})
	sse.send("data", map[string]any{"type": "done"})
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	if s.engine.Workflows() == nil {
		writeError(w, http.StatusNotImplemented, errors.New("no workflow store configured"))
		return
	}
	workflows, err := s.engine.Workflows().GetAllWorkflows(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, workflows)
}

func (s *Server) handleSaveWorkflow(w http.ResponseWriter, r *http.Request) {
	if s.engine.Workflows() == nil {
		writeError(w, http.StatusNotImplemented, errors.New("no workflow store configured"))
		return
	}
	var wf core.Workflow
	if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode workflow: %w", err))
		return
	}
	id, err := s.engine.Workflows().SaveWorkflow(r.Context(), &wf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	if s.engine.Workflows() == nil {
		writeError(w, http.StatusNotImplemented, errors.New("no workflow store configured"))
		return
	}
	wf, err := s.engine.Workflows().GetWorkflow(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if s.engine.Workflows() == nil {
		writeError(w, http.StatusNotImplemented, errors.New("no workflow store configured"))
		return
	}
	if err := s.engine.Workflows().DeleteWorkflow(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	if s.engine.Templates() == nil {
		writeError(w, http.StatusNotImplemented, errors.New("no template store configured"))
		return
	}
	templates, err := s.engine.Templates().GetTemplatesByCategory(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	if s.engine.Templates() == nil {
		writeError(w, http.StatusNotImplemented, errors.New("no template store configured"))
		return
	}
	var tpl core.Workflow
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode template: %w", err))
		return
	}
	id, err := s.engine.Templates().SaveTemplate(r.Context(), &tpl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if s.engine.Templates() == nil {
		writeError(w, http.StatusNotImplemented, errors.New("no template store configured"))
		return
	}
	if err := s.engine.Templates().DeleteTemplate(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearchFiles(w http.ResponseWriter, r *http.Request) {
	if s.engine.Knowledge() == nil {
		writeError(w, http.StatusNotImplemented, errors.New("no knowledge store configured"))
		return
	}
	files, err := s.engine.Knowledge().SearchFiles(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleAddFile(w http.ResponseWriter, r *http.Request) {
	if s.engine.Knowledge() == nil {
		writeError(w, http.StatusNotImplemented, errors.New("no knowledge store configured"))
		return
	}
	var f core.File
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode file: %w", err))
		return
	}
	id, err := s.engine.Knowledge().AddFile(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if s.engine.Knowledge() == nil {
		writeError(w, http.StatusNotImplemented, errors.New("no knowledge store configured"))
		return
	}
	if err := s.engine.Knowledge().DeleteFile(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func chatSystemPrompt(p *core.Persona) string {
	prompt := fmt.Sprintf("You are %s.", p.Name)
	if p.SystemPrompt != "" {
		prompt += "\n" + p.SystemPrompt
	}
	return prompt
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, core.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}
