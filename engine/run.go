package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"personaflow/agent"
	"personaflow/core"
	"personaflow/logging"
	"personaflow/tool"
)

// run carries the per-execution state shared by all node handlers.
type run struct {
	engine *Engine
	wf     *core.Workflow
	sess   *Session
	sink   core.Sink
	logger logging.Logger
}

// executeNode runs one node and recursively fans out to its downstream
// targets. visited is the set of node ids already executed on this path and
// guards against cycles; each parallel branch gets its own copy.
func (r *run) executeNode(ctx context.Context, nodeID, input string, visited map[string]bool) (string, error) {
	if visited[nodeID] {
		if prior, ok := r.sess.Memory.Result(nodeID); ok {
			return prior, nil
		}
		return input, nil
	}
	visited[nodeID] = true

	if err := ctx.Err(); err != nil {
		return "", err
	}

	node, ok := r.wf.NodeByID(nodeID)
	if !ok {
		return "", fmt.Errorf("node %s: not found in workflow", nodeID)
	}

	rec := r.sess.Memory.StartStep(node.ID, node.Kind)
	r.sink.Emit(core.Event{
		Type:         core.EventNodeStart,
		WorkflowID:   r.wf.ID,
		WorkflowName: r.wf.Name,
		NodeID:       node.ID,
	})
	started := time.Now()
	r.logger.Debug("node started", "nodeId", node.ID, "kind", node.Kind)

	result, err := r.handle(ctx, node, input)
	r.sess.Memory.FinishStep(rec, result, err)

	if err != nil {
		r.logger.Error("node failed", "nodeId", node.ID, "kind", node.Kind, "error", err)
		r.sink.Emit(core.Event{
			Type:       core.EventNodeError,
			WorkflowID: r.wf.ID,
			NodeID:     node.ID,
			Err:        err.Error(),
			Duration:   time.Since(started),
		})
		return "", fmt.Errorf("node %s (%s): %w", node.ID, node.Kind, err)
	}

	r.sess.Memory.SetResult(node.ID, result)
	r.sink.Emit(core.Event{
		Type:       core.EventNodeComplete,
		WorkflowID: r.wf.ID,
		NodeID:     node.ID,
		Result:     result,
		Duration:   time.Since(started),
	})

	if node.Kind == core.NodeDecision {
		// Decision nodes route explicitly inside their handler.
		return r.routeDecision(ctx, node, input, result, visited)
	}
	return r.fanOut(ctx, node, result, visited)
}

// fanOut executes all downstream targets with this node's result as their
// input. Multiple targets run concurrently; their results are joined in
// edge declaration order. A node with no outgoing edges returns its own
// result.
func (r *run) fanOut(ctx context.Context, node *core.Node, result string, visited map[string]bool) (string, error) {
	edges := r.wf.OutgoingEdges(node.ID)
	switch len(edges) {
	case 0:
		return result, nil
	case 1:
		return r.executeNode(ctx, edges[0].Target, result, visited)
	}

	g := new(errgroup.Group)
	if limit := r.engine.config.MaxParallelBranches; limit > 0 {
		g.SetLimit(limit)
	}
	branchResults := make([]string, len(edges))
	for i, edge := range edges {
		branch := copyVisited(visited)
		g.Go(func() error {
			out, err := r.executeNode(ctx, edge.Target, result, branch)
			if err != nil {
				return err
			}
			branchResults[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return joinNonEmpty(branchResults, "\n\n"), nil
}

// handle dispatches one node to its kind-specific handler and returns the
// node's result string.
func (r *run) handle(ctx context.Context, node *core.Node, input string) (string, error) {
	switch node.Kind {
	case core.NodePersona:
		return r.handlePersona(ctx, node, input)
	case core.NodeTeam:
		return r.handleTeam(ctx, node, input)
	case core.NodeTool:
		return r.handleTool(ctx, node, input)
	case core.NodeFile:
		return r.handleFile(ctx, node)
	case core.NodeMemory:
		return r.handleMemory(ctx, node, input)
	case core.NodeCommunication:
		return r.handleCommunication(node, input)
	case core.NodeTrigger:
		return fmt.Sprintf("Workflow triggered: %s", labelOrDefault(node, "manual trigger")), nil
	case core.NodeAction:
		return fmt.Sprintf("Action executed: %s", labelOrDefault(node, "no-op")), nil
	case core.NodeDecision:
		return r.handleDecision(node, input)
	default:
		return "", fmt.Errorf("unknown node kind %q", node.Kind)
	}
}

func (r *run) handlePersona(ctx context.Context, node *core.Node, input string) (string, error) {
	persona := node.Data.Persona
	if persona == nil {
		return "", fmt.Errorf("persona node has no persona data")
	}

	extra, err := r.gatherContext(ctx, node)
	if err != nil {
		return "", err
	}
	tools := r.buildAgentTools(node)

	a := agent.NewPersonaAgent(persona, r.engine.provider, func(o *agent.PersonaAgentOptions) {
		o.Tools = tools
		o.Context = extra
		o.Logger = r.logger
	})

	result, err := a.Invoke(ctx, agent.Request{Input: input})
	if err != nil {
		return "", err
	}
	r.sess.Memory.SetAgentOutput(node.ID, result.Output)
	return result.Output, nil
}

func (r *run) handleTeam(ctx context.Context, node *core.Node, input string) (string, error) {
	team := node.Data.Team
	if team == nil {
		return "", fmt.Errorf("team node has no team data")
	}

	rec, _ := r.sess.Memory.Team(node.ID)
	var members []*core.Persona
	if rec != nil {
		for _, memberID := range rec.MemberIDs {
			if ag, ok := r.sess.Memory.Agent(memberID); ok && ag.Persona != nil {
				members = append(members, ag.Persona)
			}
		}
	}

	extra, err := r.gatherContext(ctx, node)
	if err != nil {
		return "", err
	}
	tools := r.buildAgentTools(node)

	a := agent.NewTeamAgent(team, r.engine.provider, func(o *agent.TeamAgentOptions) {
		o.Members = members
		o.Tools = tools
		o.Context = extra
		o.Logger = r.logger
	})

	result, err := a.Invoke(ctx, agent.Request{Input: input})
	if err != nil {
		return "", err
	}
	r.sess.Memory.SetAgentOutput(node.ID, result.Output)
	return result.Output, nil
}

func (r *run) handleTool(ctx context.Context, node *core.Node, input string) (string, error) {
	spec := node.Data.Tool
	if spec == nil {
		return "", fmt.Errorf("tool node has no tool data")
	}
	t := r.engine.factory.FromSpec(spec)
	return t.Invoke(ctx, input), nil
}

func (r *run) handleFile(ctx context.Context, node *core.Node) (string, error) {
	ref := node.Data.File
	if ref == nil {
		return "", fmt.Errorf("file node has no file reference")
	}
	if r.engine.knowledge == nil {
		return fmt.Sprintf("No file found with ID: %s", ref.FileID), nil
	}
	files, err := r.engine.knowledge.GetFiles(ctx, []string{ref.FileID})
	if err != nil || len(files) == 0 {
		return fmt.Sprintf("No file found with ID: %s", ref.FileID), nil
	}
	f := files[0]
	return fmt.Sprintf("File: %s (%s, %d bytes)\n%s", f.Name, f.Type, f.Size, f.Content), nil
}

func (r *run) handleMemory(ctx context.Context, node *core.Node, input string) (string, error) {
	spec := node.Data.Memory
	if spec == nil {
		return "", fmt.Errorf("memory node has no memory data")
	}
	r.sess.Cells.Init(node.ID, spec.Name, spec.Type)
	if strings.TrimSpace(input) != "" {
		r.sess.Cells.Write(ctx, node.ID, node.ID, input)
	}
	return r.sess.Cells.Dump(node.ID), nil
}

func (r *run) handleCommunication(node *core.Node, input string) (string, error) {
	spec := node.Data.Channel
	if spec == nil {
		return "", fmt.Errorf("communication node has no channel data")
	}
	r.sess.Bus.Init(node.ID, spec)
	if strings.TrimSpace(input) != "" {
		r.sess.Bus.Send(node.ID, "system", input)
	}
	return r.sess.Bus.Transcript(node.ID), nil
}

func (r *run) handleDecision(node *core.Node, input string) (string, error) {
	spec := node.Data.Decision
	if spec == nil {
		return "", fmt.Errorf("decision node has no decision data")
	}
	outcome := r.evaluateCondition(spec.Condition, input)
	r.sess.Memory.SetDecision(node.ID, outcome)
	return fmt.Sprintf("Decision %q evaluated %q to %t", labelOrDefault(node, "decision"), spec.Condition, outcome), nil
}

// routeDecision follows the one outgoing edge whose label matches the
// decision outcome. If no edge matches, the decision result itself is the
// branch result and propagation stops.
func (r *run) routeDecision(ctx context.Context, node *core.Node, input, result string, visited map[string]bool) (string, error) {
	outcome, ok := r.sess.Memory.Decision(node.ID)
	if !ok {
		outcome = r.evaluateCondition(node.Data.Decision.Condition, input)
	}
	want := fmt.Sprintf("%t", outcome)
	for _, edge := range r.wf.OutgoingEdges(node.ID) {
		if strings.EqualFold(edge.Label, want) {
			return r.executeNode(ctx, edge.Target, input, visited)
		}
	}
	return result, nil
}

// evaluateCondition interprets the closed set of recognized decision
// expressions: input length thresholds, substring checks, success flags
// over already-recorded steps, and the outcome of the most recent decision
// node. Unrecognized conditions evaluate to false.
func (r *run) evaluateCondition(condition, input string) bool {
	cond := strings.TrimSpace(condition)

	if rest, ok := strings.CutPrefix(cond, "input.length"); ok {
		op, operand, found := splitComparison(rest)
		if !found {
			return false
		}
		n := 0
		if _, err := fmt.Sscanf(operand, "%d", &n); err != nil {
			return false
		}
		length := len(input)
		switch op {
		case ">":
			return length > n
		case ">=":
			return length >= n
		case "<":
			return length < n
		case "<=":
			return length <= n
		case "==":
			return length == n
		}
		return false
	}

	if needle, ok := quotedArgument(cond, "input.includes"); ok {
		return strings.Contains(input, needle)
	}
	if needle, ok := quotedArgument(cond, "input.contains"); ok {
		return strings.Contains(input, needle)
	}

	switch cond {
	case "previous_success", "previousSuccess":
		for _, step := range r.sess.Memory.Steps() {
			if step.Status == core.StepError {
				return false
			}
		}
		return true
	case "has_errors", "hasErrors":
		for _, step := range r.sess.Memory.Steps() {
			if step.Status == core.StepError {
				return true
			}
		}
		return false
	case "decision_result", "decisionResult":
		outcome, ok := r.sess.Memory.LastDecision()
		return ok && outcome
	}

	return false
}

// gatherContext collects upstream file, memory and communication node
// output as textual context for an agent. File nodes are executed on demand
// when no cached result exists yet.
func (r *run) gatherContext(ctx context.Context, node *core.Node) (string, error) {
	var parts []string
	for _, edge := range r.wf.IncomingEdges(node.ID) {
		src, ok := r.wf.NodeByID(edge.Source)
		if !ok {
			continue
		}
		switch src.Kind {
		case core.NodeFile:
			if cached, ok := r.sess.Memory.Result(src.ID); ok {
				parts = append(parts, cached)
				continue
			}
			content, err := r.handleFile(ctx, src)
			if err != nil {
				return "", err
			}
			parts = append(parts, content)
		case core.NodeMemory:
			parts = append(parts, r.sess.Cells.Dump(src.ID))
		case core.NodeCommunication:
			parts = append(parts, r.sess.Bus.Transcript(src.ID))
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// buildAgentTools assembles the tool list for a persona or team node from
// its downstream tool, memory and communication nodes.
func (r *run) buildAgentTools(node *core.Node) []*tool.Tool {
	var tools []*tool.Tool
	for _, edge := range r.wf.OutgoingEdges(node.ID) {
		dst, ok := r.wf.NodeByID(edge.Target)
		if !ok {
			continue
		}
		switch dst.Kind {
		case core.NodeTool:
			if dst.Data.Tool != nil {
				tools = append(tools, r.engine.factory.FromSpec(dst.Data.Tool))
			}
		case core.NodeMemory:
			if dst.Data.Memory != nil {
				r.sess.Cells.Init(dst.ID, dst.Data.Memory.Name, dst.Data.Memory.Type)
				tools = append(tools, r.sess.Cells.CommandTool(node.ID, dst.Data.Memory.Name))
			}
		case core.NodeCommunication:
			if dst.Data.Channel != nil {
				r.sess.Bus.Init(dst.ID, dst.Data.Channel)
				tools = append(tools, r.sess.Bus.ChannelTool(node.ID, dst.Data.Channel.Name))
			}
		}
	}
	return tools
}

func labelOrDefault(node *core.Node, def string) string {
	if node.Data.Label != "" {
		return node.Data.Label
	}
	return def
}

func copyVisited(visited map[string]bool) map[string]bool {
	out := make(map[string]bool, len(visited))
	for k, v := range visited {
		out[k] = v
	}
	return out
}

// splitComparison parses " > 20" style comparison tails.
func splitComparison(rest string) (op, operand string, ok bool) {
	rest = strings.TrimSpace(rest)
	for _, candidate := range []string{">=", "<=", "==", ">", "<"} {
		if strings.HasPrefix(rest, candidate) {
			return candidate, strings.TrimSpace(rest[len(candidate):]), true
		}
	}
	return "", "", false
}

// quotedArgument extracts x from `prefix("x")` or `prefix('x')`.
func quotedArgument(cond, prefix string) (string, bool) {
	rest, ok := strings.CutPrefix(cond, prefix)
	if !ok {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return "", false
	}
	arg := strings.TrimSpace(rest[1 : len(rest)-1])
	if len(arg) >= 2 && (arg[0] == '"' || arg[0] == '\'') && arg[len(arg)-1] == arg[0] {
		return arg[1 : len(arg)-1], true
	}
	return "", false
}
