package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"personaflow/agent"
	"personaflow/core"
	"personaflow/logging"
	"personaflow/model"
	"personaflow/tool"
)

// Config defines tuning parameters for the engine's execution behavior.
type Config struct {
	// MaxParallelBranches bounds how many node branches may execute
	// concurrently within one workflow run. Set to 0 for unlimited.
	MaxParallelBranches int
}

// DefaultConfig provides sensible defaults for typical workflow sizes.
var DefaultConfig = Config{
	MaxParallelBranches: 8,
}

// Options configures an Engine instance using the functional options
// pattern. All stores are optional: a nil store disables the feature it
// backs (file nodes degrade to "not found" results, chat logging is
// skipped, persistent memory cells keep their data in-session only).
type Options struct {
	// Config contains operational parameters for engine behavior.
	Config Config

	// Workflows persists workflow definitions for the serving layer.
	Workflows core.WorkflowStore

	// Templates persists reusable workflow templates.
	Templates core.TemplateStore

	// Knowledge backs file nodes and the search/read_file tools.
	Knowledge core.KnowledgeStore

	// Chats receives best-effort execution summaries for workflows that
	// enable chat logging.
	Chats core.ChatStore

	// PersistentMemory receives durable copies of persistent-cell writes.
	PersistentMemory core.PersistentMemoryStore

	// Images backs the generate_image tool.
	Images core.ImageGenerator

	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger
}

// Engine executes workflow graphs against a model provider.
type Engine struct {
	provider   model.Provider
	factory    *tool.Factory
	workflows  core.WorkflowStore
	templates  core.TemplateStore
	knowledge  core.KnowledgeStore
	chats      core.ChatStore
	persistent core.PersistentMemoryStore
	config     Config
	logger     logging.Logger
}

// New creates an Engine backed by the given model provider.
func New(provider model.Provider, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Engine{
		provider: provider,
		factory: tool.NewFactory(func(o *tool.FactoryOptions) {
			o.Knowledge = opts.Knowledge
			o.Images = opts.Images
			o.Logger = opts.Logger
		}),
		workflows:  opts.Workflows,
		templates:  opts.Templates,
		knowledge:  opts.Knowledge,
		chats:      opts.Chats,
		persistent: opts.PersistentMemory,
		config:     opts.Config,
		logger:     opts.Logger,
	}
}

// Workflows returns the configured workflow store, or nil.
func (e *Engine) Workflows() core.WorkflowStore { return e.workflows }

// Templates returns the configured template store, or nil.
func (e *Engine) Templates() core.TemplateStore { return e.templates }

// Knowledge returns the configured knowledge store, or nil.
func (e *Engine) Knowledge() core.KnowledgeStore { return e.knowledge }

// Provider returns the engine's model provider.
func (e *Engine) Provider() model.Provider { return e.provider }

// Outcome is the result of one workflow execution.
type Outcome struct {
	// Output is the aggregated result of all entry paths, joined in
	// declaration order.
	Output string

	// Results holds every executed node's result keyed by node id.
	Results map[string]string

	// Session exposes the execution's full shared state for inspection.
	Session *Session

	// ExecutionTime is the wall-clock duration of the run.
	ExecutionTime time.Duration
}

// ExecuteWorkflow runs a workflow graph to completion.
//
// Every entry node (zero incoming edges) starts an independent concurrent
// path seeded with the given input. Progress events are delivered through
// sink, which may be nil.
func (e *Engine) ExecuteWorkflow(ctx context.Context, wf *core.Workflow, input string, sink core.Sink) (*Outcome, error) {
	start := time.Now()

	entries := wf.EntryNodes()
	if len(entries) == 0 {
		return nil, errors.New("workflow has no entry point")
	}

	sess := newSession(input, e.persistent, e.logger)
	e.discover(wf, sess)

	logger := e.logger
	logger.Info("workflow started", "workflowId", wf.ID, "name", wf.Name, "nodes", len(wf.Nodes), "entries", len(entries))

	sink.Emit(core.Event{
		Type:         core.EventWorkflowStart,
		WorkflowID:   wf.ID,
		WorkflowName: wf.Name,
	})

	r := &run{engine: e, wf: wf, sess: sess, sink: sink, logger: logger}

	// Entry paths are independent; a failure in one does not cancel the
	// others, it only fails the overall result once all paths settle.
	g := new(errgroup.Group)
	if e.config.MaxParallelBranches > 0 {
		g.SetLimit(e.config.MaxParallelBranches)
	}
	pathResults := make([]string, len(entries))
	for i, entry := range entries {
		g.Go(func() error {
			out, err := r.executeNode(ctx, entry.ID, input, make(map[string]bool))
			if err != nil {
				return err
			}
			pathResults[i] = out
			return nil
		})
	}
	err := g.Wait()
	sess.Cells.Drain()
	elapsed := time.Since(start)

	if err != nil {
		logger.Error("workflow failed", "workflowId", wf.ID, "error", err, "executionTime", elapsed)
		sink.Emit(core.Event{
			Type:         core.EventWorkflowError,
			WorkflowID:   wf.ID,
			WorkflowName: wf.Name,
			Err:          err.Error(),
		})
		return nil, err
	}

	output := joinNonEmpty(pathResults, "\n\n")

	logger.Info("workflow completed", "workflowId", wf.ID, "executionTime", elapsed)
	sink.Emit(core.Event{
		Type:          core.EventWorkflowComplete,
		WorkflowID:    wf.ID,
		WorkflowName:  wf.Name,
		Result:        output,
		ExecutionTime: elapsed,
	})

	if wf.LogChat {
		e.logChat(ctx, wf, input, output, elapsed)
	}

	return &Outcome{
		Output:        output,
		Results:       sess.Memory.Results(),
		Session:       sess,
		ExecutionTime: elapsed,
	}, nil
}

// discover registers every persona, team, memory cell and channel into the
// session before execution begins. Idempotent and free of side effects
// beyond populating the session.
func (e *Engine) discover(wf *core.Workflow, sess *Session) {
	for i := range wf.Nodes {
		node := &wf.Nodes[i]
		switch node.Kind {
		case core.NodePersona:
			if p := node.Data.Persona; p != nil {
				sess.Memory.RegisterAgent(&core.AgentRecord{
					ID:      node.ID,
					Name:    p.Name,
					Role:    agent.DeriveMemberRole(p.Attributes),
					Persona: p,
				})
			}
		case core.NodeTeam:
			if t := node.Data.Team; t != nil {
				sess.Memory.RegisterTeam(&core.TeamRecord{
					ID:          node.ID,
					Name:        t.Name,
					Description: t.Description,
					Role:        t.Role,
				})
			}
		case core.NodeMemory:
			if m := node.Data.Memory; m != nil {
				sess.Cells.Init(node.ID, m.Name, m.Type)
			}
		case core.NodeCommunication:
			if c := node.Data.Channel; c != nil {
				sess.Bus.Init(node.ID, c)
			}
		}
	}

	// Second pass over edges for membership and channel participation.
	for _, edge := range wf.Edges {
		src, sok := wf.NodeByID(edge.Source)
		dst, dok := wf.NodeByID(edge.Target)
		if !sok || !dok {
			continue
		}
		switch {
		case src.Kind == core.NodePersona && dst.Kind == core.NodeTeam:
			sess.Memory.LinkMember(dst.ID, src.ID)
		case src.Kind == core.NodeTeam && dst.Kind == core.NodePersona:
			sess.Memory.LinkMember(src.ID, dst.ID)
		case dst.Kind == core.NodeCommunication && (src.Kind == core.NodePersona || src.Kind == core.NodeTeam):
			sess.Bus.AddParticipant(dst.ID, src.ID, nodeDisplayName(src))
		case src.Kind == core.NodeCommunication && (dst.Kind == core.NodePersona || dst.Kind == core.NodeTeam):
			sess.Bus.AddParticipant(src.ID, dst.ID, nodeDisplayName(dst))
		}
	}
}

// logChat forwards an execution summary to the chat store. Best effort:
// failures are logged and swallowed.
func (e *Engine) logChat(ctx context.Context, wf *core.Workflow, input, output string, elapsed time.Duration) {
	if e.chats == nil {
		return
	}
	rec := core.ChatRecord{
		ID:            core.NewID(),
		WorkflowID:    wf.ID,
		WorkflowName:  wf.Name,
		Input:         input,
		Output:        output,
		ExecutionTime: elapsed,
		CreatedAt:     time.Now().UTC(),
	}
	if err := e.chats.SaveChat(context.WithoutCancel(ctx), rec); err != nil {
		e.logger.Warn("chat logging failed", "workflowId", wf.ID, "error", err)
	}
}

func nodeDisplayName(n *core.Node) string {
	switch {
	case n.Data.Persona != nil && n.Data.Persona.Name != "":
		return n.Data.Persona.Name
	case n.Data.Team != nil && n.Data.Team.Name != "":
		return n.Data.Team.Name
	case n.Data.Label != "":
		return n.Data.Label
	}
	return n.ID
}

func joinNonEmpty(parts []string, sep string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
