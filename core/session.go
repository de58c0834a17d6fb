package core

import (
	"sync"
	"time"
)

// StepStatus tracks the lifecycle of one node execution within a run.
type StepStatus string

const (
	// StepRunning marks a step that has started but not finished.
	StepRunning StepStatus = "running"
	// StepCompleted marks a successfully finished step.
	StepCompleted StepStatus = "completed"
	// StepError marks a step whose handler returned an error.
	StepError StepStatus = "error"
)

// StepRecord captures the timing and outcome of one node execution. Records
// are appended in node start order, which for concurrently executing nodes
// reflects start order rather than completion order.
type StepRecord struct {
	NodeID     string     `json:"nodeId"`
	Kind       NodeKind   `json:"kind"`
	Status     StepStatus `json:"status"`
	Result     string     `json:"result,omitempty"`
	Err        string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt time.Time  `json:"finishedAt,omitempty"`
}

// AgentRecord is the discovery-time registration of a persona node.
type AgentRecord struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Role       string   `json:"role,omitempty"`
	Persona    *Persona `json:"persona"`
	TeamIDs    []string `json:"teamIds,omitempty"`
	LastOutput string   `json:"lastOutput,omitempty"`
}

// TeamRecord is the discovery-time registration of a team node.
type TeamRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Role        TeamRole `json:"role"`
	MemberIDs   []string `json:"memberIds,omitempty"`
}

// SessionMemory is the execution-scoped state aggregate threaded through one
// workflow run. It is created fresh per execution and discarded afterwards;
// concurrent node tasks within the run mutate it, so every mutation goes
// through a mutexed method. Results writes are atomic from a reader's
// perspective and each nodeID slot is written by at most one task at a time.
type SessionMemory struct {
	mu sync.Mutex

	Input     string
	StartTime time.Time

	results map[string]string
	steps   []*StepRecord
	agents  map[string]*AgentRecord
	teams   map[string]*TeamRecord

	decisions    map[string]bool
	lastDecision *bool
}

// NewSessionMemory creates an empty session for one workflow execution.
func NewSessionMemory(input string) *SessionMemory {
	return &SessionMemory{
		Input:     input,
		StartTime: time.Now().UTC(),
		results:   make(map[string]string),
		agents:    make(map[string]*AgentRecord),
		teams:     make(map[string]*TeamRecord),
		decisions: make(map[string]bool),
	}
}

// SetDecision records the boolean outcome of a decision node. The most
// recent outcome is also kept for decision_result conditions downstream.
func (s *SessionMemory) SetDecision(nodeID string, outcome bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions[nodeID] = outcome
	o := outcome
	s.lastDecision = &o
}

// Decision returns the recorded outcome for a decision node, if any.
func (s *SessionMemory) Decision(nodeID string) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.decisions[nodeID]
	return o, ok
}

// LastDecision returns the most recently recorded decision outcome. The
// second return is false when no decision has run yet.
func (s *SessionMemory) LastDecision() (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastDecision == nil {
		return false, false
	}
	return *s.lastDecision, true
}

// SetResult records the output of a node execution.
func (s *SessionMemory) SetResult(nodeID, result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[nodeID] = result
}

// Result returns the last recorded output of a node, if any.
func (s *SessionMemory) Result(nodeID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[nodeID]
	return r, ok
}

// Results returns a copy of the node results map.
func (s *SessionMemory) Results() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.results))
	for k, v := range s.results {
		out[k] = v
	}
	return out
}

// StartStep appends a running step record for a node and returns it.
func (s *SessionMemory) StartStep(nodeID string, kind NodeKind) *StepRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &StepRecord{
		NodeID:    nodeID,
		Kind:      kind,
		Status:    StepRunning,
		StartedAt: time.Now().UTC(),
	}
	s.steps = append(s.steps, rec)
	return rec
}

// FinishStep transitions a step to completed or error and stamps the finish time.
func (s *SessionMemory) FinishStep(rec *StepRecord, result string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.FinishedAt = time.Now().UTC()
	if err != nil {
		rec.Status = StepError
		rec.Err = err.Error()
		return
	}
	rec.Status = StepCompleted
	rec.Result = result
}

// Steps returns the step records in start order.
func (s *SessionMemory) Steps() []*StepRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*StepRecord, len(s.steps))
	copy(out, s.steps)
	return out
}

// RegisterAgent adds (or returns the existing) agent record for a persona node.
func (s *SessionMemory) RegisterAgent(rec *AgentRecord) *AgentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.agents[rec.ID]; ok {
		return existing
	}
	s.agents[rec.ID] = rec
	return rec
}

// Agent returns the agent record for a node id, if registered.
func (s *SessionMemory) Agent(nodeID string) (*AgentRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[nodeID]
	return a, ok
}

// Agents returns a copy of the agent registry.
func (s *SessionMemory) Agents() map[string]*AgentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*AgentRecord, len(s.agents))
	for k, v := range s.agents {
		out[k] = v
	}
	return out
}

// SetAgentOutput records the latest output produced by an agent node.
func (s *SessionMemory) SetAgentOutput(nodeID, output string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.agents[nodeID]; ok {
		a.LastOutput = output
	}
}

// RegisterTeam adds (or returns the existing) team record for a team node.
func (s *SessionMemory) RegisterTeam(rec *TeamRecord) *TeamRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.teams[rec.ID]; ok {
		return existing
	}
	s.teams[rec.ID] = rec
	return rec
}

// Team returns the team record for a node id, if registered.
func (s *SessionMemory) Team(nodeID string) (*TeamRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[nodeID]
	return t, ok
}

// Teams returns a copy of the team registry.
func (s *SessionMemory) Teams() map[string]*TeamRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*TeamRecord, len(s.teams))
	for k, v := range s.teams {
		out[k] = v
	}
	return out
}

// LinkMember appends a team id to an agent's TeamIDs and the agent id to the
// team's MemberIDs, both without duplicates.
func (s *SessionMemory) LinkMember(teamID, agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.teams[teamID]; ok && !contains(t.MemberIDs, agentID) {
		t.MemberIDs = append(t.MemberIDs, agentID)
	}
	if a, ok := s.agents[agentID]; ok && !contains(a.TeamIDs, teamID) {
		a.TeamIDs = append(a.TeamIDs, teamID)
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
