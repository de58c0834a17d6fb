package model

import (
	"context"
	"fmt"
	"sync"
)

// ToolDefinition declaratively exposes a callable function to the provider.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolCall represents a function call request surfaced by a provider. Unified
// across vendors so downstream logic does not need per-provider branching.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON string of arguments
}

// ToolResult pairs an originating call with the observation it produced, so a
// follow-up request can feed the result back to the provider.
type ToolResult struct {
	Call   ToolCall `json:"call"`
	Output string   `json:"output"`
}

// Turn is one prior conversational exchange supplied as history.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Request captures a normalized completion request.
type Request struct {
	System      string           `json:"system,omitempty"`
	Input       string           `json:"input"`
	History     []Turn           `json:"history,omitempty"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	ToolResults []ToolResult     `json:"toolResults,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
	MaxTokens   int64            `json:"maxTokens,omitempty"`
}

// Usage captures token usage statistics for a response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the final result of a completion request.
type Response struct {
	Content      string     `json:"content"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"` // "stop", "length", "tool_calls", etc.
	Usage        *Usage     `json:"usage,omitempty"`
}

// Chunk is an incremental piece of a streaming completion.
type Chunk struct {
	Content string `json:"content"`
	Done    bool   `json:"done,omitempty"`
}

// Info contains metadata about a provider implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Provider is the minimal interface required by agents to drive generation.
type Provider interface {
	// Complete performs a single-shot completion.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Stream performs a streaming completion, emitting incremental chunks.
	// The chunk channel is closed when generation finishes; a terminal error,
	// if any, arrives on the error channel.
	Stream(ctx context.Context, req Request) (<-chan Chunk, <-chan error)

	// Info returns information about the provider implementation.
	Info() Info
}

// MockProvider is a lightweight in-memory Provider useful for tests & examples.
type MockProvider struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	scripted  []*Response
	requests  []Request
}

// NewMockProvider constructs a MockProvider with basic tool support enabled.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		info:      Info{Name: "mock-model", Provider: "mock", SupportsTools: true},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockProvider) AddResponse(input, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[input] = response
}

// ScriptResponse queues a full response (e.g. containing tool calls) that is
// served before any canned text lookup. Queued responses are consumed in order.
func (m *MockProvider) ScriptResponse(resp *Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripted = append(m.scripted, resp)
}

// Requests returns a copy of every request the provider has received.
func (m *MockProvider) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Complete implements Provider.
func (m *MockProvider) Complete(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.scripted) > 0 {
		resp := m.scripted[0]
		m.scripted = m.scripted[1:]
		return resp, nil
	}
	content, ok := m.responses[req.Input]
	if !ok {
		content = fmt.Sprintf("Mock response to: %s", req.Input)
	}
	return &Response{Content: content, FinishReason: "stop"}, nil
}

// Stream implements Provider; emits per-rune chunks followed by a done marker.
func (m *MockProvider) Stream(ctx context.Context, req Request) (<-chan Chunk, <-chan error) {
	chunks := make(chan Chunk, 16)
	errCh := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errCh)
		resp, err := m.Complete(ctx, req)
		if err != nil {
			errCh <- err
			return
		}
		for _, r := range resp.Content {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case chunks <- Chunk{Content: string(r)}:
			}
		}
		chunks <- Chunk{Done: true}
	}()
	return chunks, errCh
}

// Info implements Provider.
func (m *MockProvider) Info() Info { return m.info }
