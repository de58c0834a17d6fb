// Package personaflow provides a high-level façade over the workflow engine
// and its stores. Most applications interact with this package by:
//  1. Creating a PersonaFlow via New() with a model provider (optionally
//     overriding the default in-memory stores)
//  2. Executing workflow graphs (Execute) or chatting with a single persona
//     (Chat)
//
// The façade delegates orchestration to engine.Engine while keeping setup
// ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply the sqlite stores and a
// structured logger.
package personaflow

import (
	"context"

	"personaflow/agent"
	"personaflow/core"
	"personaflow/engine"
	"personaflow/logging"
	"personaflow/model"
	"personaflow/store"
)

// Options configures the PersonaFlow instance.
type Options struct {
	// EngineConfig tunes execution behavior (parallel branch limits).
	EngineConfig engine.Config

	// Stores (default to in-memory implementations if not provided).
	Workflows        core.WorkflowStore
	Templates        core.TemplateStore
	Knowledge        core.KnowledgeStore
	Chats            core.ChatStore
	PersistentMemory core.PersistentMemoryStore

	// Images backs the generate_image tool; nil degrades the tool to a
	// placeholder response.
	Images core.ImageGenerator

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// PersonaFlow is the high-level façade aggregating the engine and stores.
type PersonaFlow struct {
	opts   Options
	engine *engine.Engine
}

// New creates a PersonaFlow instance over the given model provider. Any
// unset store is initialized with an in-memory implementation.
func New(provider model.Provider, optFns ...func(o *Options)) *PersonaFlow {
	opts := Options{
		EngineConfig:     engine.DefaultConfig,
		Workflows:        store.NewInMemoryWorkflowStore(),
		Templates:        store.NewInMemoryTemplateStore(),
		Knowledge:        store.NewInMemoryKnowledgeStore(),
		Chats:            store.NewInMemoryChatStore(),
		PersistentMemory: store.NewInMemoryPersistentMemory(),
		Logger:           logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	e := engine.New(provider, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Workflows = opts.Workflows
		o.Templates = opts.Templates
		o.Knowledge = opts.Knowledge
		o.Chats = opts.Chats
		o.PersistentMemory = opts.PersistentMemory
		o.Images = opts.Images
		o.Logger = opts.Logger
	})

	return &PersonaFlow{opts: opts, engine: e}
}

// Engine exposes the underlying engine for advanced use (HTTP serving,
// direct store access).
func (p *PersonaFlow) Engine() *engine.Engine { return p.engine }

// Execute runs a workflow graph to completion. sink may be nil.
func (p *PersonaFlow) Execute(ctx context.Context, wf *core.Workflow, input string, sink core.Sink) (*engine.Outcome, error) {
	return p.engine.ExecuteWorkflow(ctx, wf, input, sink)
}

// ExecuteByID loads a stored workflow and runs it.
func (p *PersonaFlow) ExecuteByID(ctx context.Context, id, input string, sink core.Sink) (*engine.Outcome, error) {
	wf, err := p.opts.Workflows.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.engine.ExecuteWorkflow(ctx, wf, input, sink)
}

// Chat invokes a single persona directly, outside any workflow graph.
func (p *PersonaFlow) Chat(ctx context.Context, persona *core.Persona, message string, history []model.Turn) (string, error) {
	a := agent.NewPersonaAgent(persona, p.engine.Provider(), func(o *agent.PersonaAgentOptions) {
		o.Logger = p.opts.Logger
	})
	result, err := a.Invoke(ctx, agent.Request{Input: message, History: history})
	if err != nil {
		return "", err
	}
	return result.Output, nil
}

// SaveWorkflow persists a workflow through the configured store.
func (p *PersonaFlow) SaveWorkflow(ctx context.Context, wf *core.Workflow) (string, error) {
	return p.opts.Workflows.SaveWorkflow(ctx, wf)
}
