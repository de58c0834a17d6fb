package core

import "time"

// NodeKind enumerates the closed set of workflow node types. The engine
// dispatches on this kind with an exhaustive switch; unknown kinds are a
// configuration error, not a silent fallthrough.
type NodeKind string

const (
	// NodePersona is an LLM-backed individual agent node.
	NodePersona NodeKind = "persona"
	// NodeTeam coordinates a group of persona agents under one team agent.
	NodeTeam NodeKind = "team"
	// NodeTool exposes a single callable capability.
	NodeTool NodeKind = "tool"
	// NodeFile references a knowledge file whose content feeds downstream nodes.
	NodeFile NodeKind = "file"
	// NodeMemory is a shared memory cell accessible to connected agents.
	NodeMemory NodeKind = "memory"
	// NodeCommunication is a messaging channel with a turn-taking mode.
	NodeCommunication NodeKind = "communication"
	// NodeTrigger marks a workflow entry point. Passthrough behavior.
	NodeTrigger NodeKind = "trigger"
	// NodeAction is a passthrough placeholder for future side-effects.
	NodeAction NodeKind = "action"
	// NodeDecision routes execution along labeled edges by evaluating a condition.
	NodeDecision NodeKind = "decision"
)

// Node is a graph vertex. Nodes are immutable inputs to a single execution;
// the engine never mutates them, only the session state derived from them.
type Node struct {
	ID   string   `json:"id" yaml:"id"`
	Kind NodeKind `json:"kind" yaml:"kind"`
	Data NodeData `json:"data" yaml:"data"`
}

// NodeData carries the kind-specific configuration of a node. Exactly one of
// the descriptor pointers is expected to be set for the corresponding kind;
// Label is shared by trigger/action nodes.
type NodeData struct {
	Label    string        `json:"label,omitempty" yaml:"label,omitempty"`
	Persona  *Persona      `json:"persona,omitempty" yaml:"persona,omitempty"`
	Team     *Team         `json:"team,omitempty" yaml:"team,omitempty"`
	Tool     *ToolSpec     `json:"tool,omitempty" yaml:"tool,omitempty"`
	Memory   *MemorySpec   `json:"memory,omitempty" yaml:"memory,omitempty"`
	Channel  *ChannelSpec  `json:"channel,omitempty" yaml:"channel,omitempty"`
	File     *FileRef      `json:"file,omitempty" yaml:"file,omitempty"`
	Decision *DecisionSpec `json:"decision,omitempty" yaml:"decision,omitempty"`
}

// Edge is a directed arc between two nodes. An edge with a Label is a
// conditional edge emitted by a decision node and is followed only when the
// evaluated branch name matches the label; unlabeled edges are unconditional.
type Edge struct {
	ID     string `json:"id,omitempty" yaml:"id,omitempty"`
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
	Label  string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Workflow is a persisted node/edge graph plus metadata. The same shape is
// used for templates (Category distinguishes template groupings).
type Workflow struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string    `json:"category,omitempty" yaml:"category,omitempty"`
	Nodes       []Node    `json:"nodes" yaml:"nodes"`
	Edges       []Edge    `json:"edges" yaml:"edges"`
	LogChat     bool      `json:"logChat,omitempty" yaml:"logChat,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty" yaml:"-"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty" yaml:"-"`
}

// Attributes are the behavioral dials of a persona, each on a 0-10 scale.
// Zero values are treated as "unset" and fall back to the midpoint 5.
type Attributes struct {
	Initiative int `json:"initiative,omitempty" yaml:"initiative,omitempty"`
	Creativity int `json:"creativity,omitempty" yaml:"creativity,omitempty"`
	Empathy    int `json:"empathy,omitempty" yaml:"empathy,omitempty"`
	Confidence int `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// OrDefault returns v when set (>0), otherwise the midpoint default 5.
func OrDefault(v int) int {
	if v > 0 {
		return v
	}
	return 5
}

// Persona describes an individual agent: identity, system prompt, backing
// model id and behavioral attributes. Read-only input to the agent factory.
type Persona struct {
	ID           string     `json:"id" yaml:"id"`
	Name         string     `json:"name" yaml:"name"`
	SystemPrompt string     `json:"systemPrompt,omitempty" yaml:"systemPrompt,omitempty"`
	Model        string     `json:"model,omitempty" yaml:"model,omitempty"`
	Attributes   Attributes `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// TeamRole selects the coordination strategy a team agent applies.
type TeamRole string

const (
	// TeamCoordinator delegates subtasks and synthesizes member outputs.
	TeamCoordinator TeamRole = "coordinator"
	// TeamDebate facilitates structured argument between members.
	TeamDebate TeamRole = "debate"
	// TeamConsensus drives members toward an agreed answer.
	TeamConsensus TeamRole = "consensus"
	// TeamSpecialist routes work to the most suitable member.
	TeamSpecialist TeamRole = "specialist"
)

// Team describes a team node: name, description and coordination role.
// Membership is derived from incoming persona edges at discovery time.
type Team struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Role        TeamRole `json:"role" yaml:"role"`
}

// ToolType enumerates the built-in tool behaviors.
type ToolType string

const (
	// ToolSearch queries the knowledge corpus.
	ToolSearch ToolType = "search"
	// ToolFiles reads one knowledge file by id.
	ToolFiles ToolType = "files"
	// ToolImage delegates to an image generation capability.
	ToolImage ToolType = "image"
	// ToolDice rolls uniform dice from a "sides,count" input.
	ToolDice ToolType = "dice"
	// ToolWeather is a demonstrative stub returning synthesized weather data.
	ToolWeather ToolType = "weather"
	// ToolDatabase is a demonstrative stub returning synthesized query results.
	ToolDatabase ToolType = "database"
	// ToolCustom echoes input with the configured tool name; extension point.
	ToolCustom ToolType = "custom"
)

// ToolSpec configures a tool node.
type ToolSpec struct {
	Type        ToolType       `json:"type" yaml:"type"`
	Name        string         `json:"name,omitempty" yaml:"name,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Config      map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// MemoryType selects how a memory cell stores and serves data.
type MemoryType string

const (
	// MemorySimple stores data verbatim.
	MemorySimple MemoryType = "simple"
	// MemoryStructured attempts JSON parsing, falling back to the raw string.
	MemoryStructured MemoryType = "structured"
	// MemoryVector keeps index-aligned embedding/text arrays with search.
	MemoryVector MemoryType = "vector"
	// MemoryPersistent additionally forwards writes to durable storage.
	MemoryPersistent MemoryType = "persistent"
)

// MemorySpec configures a memory node.
type MemorySpec struct {
	Name        string     `json:"name" yaml:"name"`
	Type        MemoryType `json:"type,omitempty" yaml:"type,omitempty"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
}

// ChannelMode selects the turn-taking state machine of a communication channel.
type ChannelMode string

const (
	// ModeBroadcast lets any participant send at any time.
	ModeBroadcast ChannelMode = "broadcast"
	// ModePeerToPeer requires an @Recipient prefix and optional pair allow-list.
	ModePeerToPeer ChannelMode = "p2p"
	// ModeRoundRobin enforces a fixed speaker rotation.
	ModeRoundRobin ChannelMode = "round-robin"
	// ModeDebate alternates two position holders across bounded rounds.
	ModeDebate ChannelMode = "debate"
)

// ChannelSpec configures a communication node. Mode-specific fields are only
// consulted for the matching mode.
type ChannelSpec struct {
	Name         string      `json:"name" yaml:"name"`
	Mode         ChannelMode `json:"mode,omitempty" yaml:"mode,omitempty"`
	Description  string      `json:"description,omitempty" yaml:"description,omitempty"`
	SpeakerOrder []string    `json:"speakerOrder,omitempty" yaml:"speakerOrder,omitempty"`
	// AllowedPairs is an optional p2p allow-list of unordered id pairs.
	AllowedPairs [][2]string `json:"allowedPairs,omitempty" yaml:"allowedPairs,omitempty"`
	// Debate configuration.
	Topic          string `json:"topic,omitempty" yaml:"topic,omitempty"`
	Position1      string `json:"position1,omitempty" yaml:"position1,omitempty"`
	Position2      string `json:"position2,omitempty" yaml:"position2,omitempty"`
	Position1Agent string `json:"position1Agent,omitempty" yaml:"position1Agent,omitempty"`
	Position2Agent string `json:"position2Agent,omitempty" yaml:"position2Agent,omitempty"`
	ModeratorID    string `json:"moderatorId,omitempty" yaml:"moderatorId,omitempty"`
	MaxRounds      int    `json:"maxRounds,omitempty" yaml:"maxRounds,omitempty"`
}

// FileRef configures a file node.
type FileRef struct {
	FileID string `json:"fileId" yaml:"fileId"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
}

// DecisionSpec configures a decision node. Condition is one of the closed set
// of recognized expressions evaluated by the engine (see engine.EvaluateCondition).
type DecisionSpec struct {
	Label     string `json:"label,omitempty" yaml:"label,omitempty"`
	Condition string `json:"condition" yaml:"condition"`
}

// NodeByID returns the node with the given id, if present.
func (w *Workflow) NodeByID(id string) (*Node, bool) {
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return &w.Nodes[i], true
		}
	}
	return nil, false
}

// IncomingEdges returns all edges targeting the node id.
func (w *Workflow) IncomingEdges(id string) []Edge {
	var out []Edge
	for _, e := range w.Edges {
		if e.Target == id {
			out = append(out, e)
		}
	}
	return out
}

// OutgoingEdges returns all edges originating at the node id.
func (w *Workflow) OutgoingEdges(id string) []Edge {
	var out []Edge
	for _, e := range w.Edges {
		if e.Source == id {
			out = append(out, e)
		}
	}
	return out
}

// EntryNodes returns all nodes with zero incoming edges, in declaration order.
func (w *Workflow) EntryNodes() []Node {
	hasIncoming := make(map[string]bool, len(w.Edges))
	for _, e := range w.Edges {
		hasIncoming[e.Target] = true
	}
	var entries []Node
	for _, n := range w.Nodes {
		if !hasIncoming[n.ID] {
			entries = append(entries, n)
		}
	}
	return entries
}
