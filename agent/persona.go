package agent

import (
	"context"
	"fmt"
	"strings"

	"personaflow/core"
	"personaflow/logging"
	"personaflow/model"
	"personaflow/tool"
)

const (
	personaMaxIterations = 3
	personaMaxTokens     = 1000

	defaultTemperature = 0.7
)

// PersonaAgentOptions configures a persona agent.
//
// Use functional options with NewPersonaAgent to override defaults.
type PersonaAgentOptions struct {
	// Tools the persona may call. When empty a placeholder tool is
	// registered so function calling stays enabled.
	Tools []*tool.Tool

	// Context is extra material (file contents, memory dumps, channel
	// transcripts) appended to the system prompt.
	Context string

	Logger logging.Logger
}

// NewPersonaAgent builds an agent that speaks as the given persona.
//
// The persona's attributes shape the system prompt and the sampling
// temperature: creativity maps to temperature on a 0..10 scale, defaulting
// to 0.7 when unset.
func NewPersonaAgent(persona *core.Persona, provider model.Provider, optFns ...func(o *PersonaAgentOptions)) Agent {
	opts := PersonaAgentOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	tools := opts.Tools
	if len(tools) == 0 {
		tools = []*tool.Tool{placeholderTool(persona.Name)}
	}

	temperature := defaultTemperature
	if persona.Attributes.Creativity > 0 {
		temperature = float64(persona.Attributes.Creativity) / 10
	}

	return &runner{
		name:          persona.Name,
		provider:      provider,
		system:        personaSystemPrompt(persona, toolMap(tools), opts.Context),
		tools:         toolMap(tools),
		temperature:   temperature,
		maxTokens:     personaMaxTokens,
		maxIterations: personaMaxIterations,
		logger:        opts.Logger,
	}
}

func personaSystemPrompt(p *core.Persona, tools map[string]*tool.Tool, extra string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.\n", p.Name)
	if p.SystemPrompt != "" {
		b.WriteString(p.SystemPrompt)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nPersonality attributes (1-10 scale):\n")
	fmt.Fprintf(&b, "- Initiative: %d\n", core.OrDefault(p.Attributes.Initiative))
	fmt.Fprintf(&b, "- Creativity: %d\n", core.OrDefault(p.Attributes.Creativity))
	fmt.Fprintf(&b, "- Empathy: %d\n", core.OrDefault(p.Attributes.Empathy))
	fmt.Fprintf(&b, "- Confidence: %d\n", core.OrDefault(p.Attributes.Confidence))
	b.WriteString("Let these attributes shape the tone and style of your responses.\n")
	if roster := toolRoster(tools); roster != "" {
		b.WriteString("\nYou have access to the following tools:\n")
		b.WriteString(roster)
		b.WriteString("\nUse a tool when it helps answer the request; otherwise respond directly.\n")
	}
	if extra != "" {
		b.WriteString("\nAdditional context:\n")
		b.WriteString(extra)
		b.WriteString("\n")
	}
	return b.String()
}

// placeholderTool keeps the tool interface populated for personas with no
// wired tool nodes.
func placeholderTool(personaName string) *tool.Tool {
	return tool.New(
		"no_tools_available",
		"Placeholder: no tools are wired to this persona.",
		func(ctx context.Context, input string) (string, error) {
			return fmt.Sprintf("No tools are available to %s.", personaName), nil
		},
	)
}
