// Package tool implements the callable capabilities personaflow agents may
// invoke during reasoning: knowledge search, file reading, image generation,
// dice rolling and extension points for custom behavior.
//
// Tool failures are deliberately communicated as string results rather than
// errors. A tool exists to inform an agent's next reasoning step; throwing
// would short-circuit that reasoning, so every failure path is converted to
// a descriptive result beginning with "Error".
package tool

import (
	"context"
	"fmt"

	"personaflow/model"
)

// Func is the implementation signature of a tool. Returned errors are
// converted to string observations by Invoke and never propagate.
type Func func(ctx context.Context, input string) (string, error)

// Tool is a narrow, named callable capability. A Tool has no internal mutable
// state after construction and is safe for concurrent use.
type Tool struct {
	name        string
	description string
	fn          Func
}

// New constructs a Tool from a name, a model-facing description and an
// implementation function.
func New(name, description string, fn Func) *Tool {
	return &Tool{name: name, description: description, fn: fn}
}

// Name returns the unique tool name used in function call declarations.
func (t *Tool) Name() string { return t.name }

// Description returns the natural language description exposed to models.
func (t *Tool) Description() string { return t.description }

// Invoke executes the tool. It never fails: implementation errors and panics
// are recovered and converted to an "Error ..." result string so the calling
// agent can observe and reason about the failure.
func (t *Tool) Invoke(ctx context.Context, input string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = fmt.Sprintf("Error in tool %s: %v", t.name, r)
		}
	}()
	out, err := t.fn(ctx, input)
	if err != nil {
		return fmt.Sprintf("Error in tool %s: %v", t.name, err)
	}
	return out
}

// Definition exposes the tool to a completion provider. Every built-in tool
// takes a single free-text input argument.
func (t *Tool) Definition() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        t.name,
		Description: t.description,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"input": map[string]any{
					"type":        "string",
					"description": "Free-text input for the tool",
				},
			},
			"required": []string{"input"},
		},
	}
}
