package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personaflow/core"
	"personaflow/engine"
	"personaflow/model"
	"personaflow/store"
)

func newTestServer(t *testing.T) (*Server, *model.MockProvider) {
	t.Helper()
	provider := model.NewMockProvider()
	e := engine.New(provider, func(o *engine.Options) {
		o.Workflows = store.NewInMemoryWorkflowStore()
		o.Templates = store.NewInMemoryTemplateStore()
		o.Knowledge = store.NewInMemoryKnowledgeStore()
	})
	return New(e), provider
}

func postJSON(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChat(t *testing.T) {
	s, _ := newTestServer(t)

	rec := postJSON(t, s, "/api/chat", map[string]any{
		"persona": map[string]any{"name": "Luna", "systemPrompt": "You are a poet."},
		"message": "hello",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Response string `json:"response"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Response, "Mock response to: hello")
}

func TestChatValidation(t *testing.T) {
	s, _ := newTestServer(t)
	rec := postJSON(t, s, "/api/chat", map[string]any{"message": "no persona"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatStreaming(t *testing.T) {
	s, _ := newTestServer(t)

	rec := postJSON(t, s, "/api/chat", map[string]any{
		"persona": map[string]any{"name": "Luna"},
		"message": "hi",
		"stream":  true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, `"type":"token"`)
	assert.Contains(t, body, `"type":"done"`)
	// Tokens arrive one rune at a time from the mock provider.
	assert.Greater(t, strings.Count(body, "data: "), 2)
}

func TestWorkflowCRUDAndExecute(t *testing.T) {
	s, _ := newTestServer(t)

	wf := map[string]any{
		"name": "greeting",
		"nodes": []map[string]any{
			{"id": "p1", "kind": "persona", "data": map[string]any{"persona": map[string]any{"name": "Luna"}}},
		},
	}
	rec := postJSON(t, s, "/api/workflows", wf)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workflows/"+created.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, s, "/api/workflows/"+created.ID+"/execute", map[string]any{"input": "hello"})
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Output  string            `json:"output"`
		Results map[string]string `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Contains(t, result.Output, "Mock response")
	assert.Contains(t, result.Results, "p1")

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/workflows/"+created.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workflows/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExecuteStreamingProgress(t *testing.T) {
	s, _ := newTestServer(t)

	rec := postJSON(t, s, "/api/workflows/execute", map[string]any{
		"workflow": map[string]any{
			"id":   "wf1",
			"name": "greeting",
			"nodes": []map[string]any{
				{"id": "t1", "kind": "trigger", "data": map[string]any{"label": "start"}},
			},
		},
		"input":  "go",
		"stream": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "event: workflow_start")
	assert.Contains(t, body, "event: node_complete")
	assert.Contains(t, body, "event: workflow_complete")
	assert.Contains(t, body, `"type":"outcome"`)
	assert.Contains(t, body, `"type":"done"`)
}

func TestTemplates(t *testing.T) {
	s, _ := newTestServer(t)

	rec := postJSON(t, s, "/api/templates", map[string]any{"name": "helpdesk", "category": "Support"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = postJSON(t, s, "/api/templates", map[string]any{"name": "poet", "category": "Creative"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/templates?category=support", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var templates []core.Workflow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &templates))
	require.Len(t, templates, 1)
	assert.Equal(t, "helpdesk", templates[0].Name)
}

func TestFiles(t *testing.T) {
	s, _ := newTestServer(t)

	rec := postJSON(t, s, "/api/files", map[string]any{"name": "notes.md", "content": "coffee brewing guide"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/files?q=coffee", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var files []core.File
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	require.Len(t, files, 1)
	assert.Equal(t, "notes.md", files[0].Name)
}
