package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"personaflow/logging"
	"personaflow/model"
	"personaflow/tool"
)

// Request carries the input of one agent invocation.
type Request struct {
	// Input is the user message or upstream node output.
	Input string

	// History is prior conversation turns, oldest first.
	History []model.Turn
}

// Step records one tool invocation made during an agent run.
type Step struct {
	Tool   string `json:"tool"`
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Result is the outcome of one agent invocation.
type Result struct {
	Output string `json:"output"`
	Steps  []Step `json:"steps,omitempty"`
}

// Agent is anything that can process an input and produce an output,
// possibly calling tools along the way.
type Agent interface {
	// Name returns the agent's display name.
	Name() string

	// Invoke runs the agent to completion on the given request.
	Invoke(ctx context.Context, req Request) (*Result, error)
}

// runner is the shared tool-calling loop behind persona and team agents.
type runner struct {
	name          string
	provider      model.Provider
	system        string
	tools         map[string]*tool.Tool
	temperature   float64
	maxTokens     int
	maxIterations int
	logger        logging.Logger
}

func (r *runner) Name() string { return r.name }

func (r *runner) Invoke(ctx context.Context, req Request) (*Result, error) {
	result := &Result{}

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	defs := make([]model.ToolDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.tools[name].Definition())
	}

	mreq := model.Request{
		System:      r.system,
		Input:       req.Input,
		History:     req.History,
		Tools:       defs,
		Temperature: r.temperature,
		MaxTokens:   int64(r.maxTokens),
	}

	for i := 0; i < r.maxIterations; i++ {
		resp, err := r.provider.Complete(ctx, mreq)
		if err != nil {
			return nil, fmt.Errorf("agent %s: model call failed: %w", r.name, err)
		}

		if len(resp.ToolCalls) == 0 {
			result.Output = resp.Content
			return result, nil
		}

		var results []model.ToolResult
		for _, call := range resp.ToolCalls {
			t, ok := r.tools[call.Name]
			if !ok {
				out := fmt.Sprintf("Error: unknown tool %q", call.Name)
				results = append(results, model.ToolResult{Call: call, Output: out})
				result.Steps = append(result.Steps, Step{Tool: call.Name, Input: call.Arguments, Output: out})
				continue
			}
			input := toolInput(call.Arguments)
			r.logger.Debug("invoking tool", "agent", r.name, "tool", call.Name)
			out := t.Invoke(ctx, input)
			results = append(results, model.ToolResult{Call: call, Output: out})
			result.Steps = append(result.Steps, Step{Tool: call.Name, Input: input, Output: out})
		}
		mreq.ToolResults = results

		if resp.Content != "" {
			result.Output = resp.Content
		}
	}

	// Iteration cap reached with tool calls still pending; return what we
	// have rather than erroring so the workflow can continue.
	if result.Output == "" {
		result.Output = fmt.Sprintf("%s reached the tool iteration limit without a final answer.", r.name)
	}
	return result, nil
}

// toolInput extracts the plain input string from a tool call's JSON
// arguments. Providers send {"input": "..."}; anything else is passed
// through verbatim.
func toolInput(arguments string) string {
	trimmed := strings.TrimSpace(arguments)
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed
	}
	var parsed struct {
		Input string `json:"input"`
	}
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Input != "" {
		return parsed.Input
	}
	return trimmed
}

func toolMap(tools []*tool.Tool) map[string]*tool.Tool {
	m := make(map[string]*tool.Tool, len(tools))
	for _, t := range tools {
		m[t.Name()] = t
	}
	return m
}

func toolRoster(tools map[string]*tool.Tool) string {
	if len(tools) == 0 {
		return ""
	}
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("- %s: %s", name, tools[name].Description()))
	}
	return strings.Join(lines, "\n")
}
