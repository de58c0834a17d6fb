package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType discriminates workflow lifecycle events delivered to a Sink.
type EventType string

const (
	// EventWorkflowStart is emitted once before any node executes.
	EventWorkflowStart EventType = "workflow_start"
	// EventWorkflowComplete is emitted after all entry paths finish.
	EventWorkflowComplete EventType = "workflow_complete"
	// EventWorkflowError is emitted when the run fails as a whole.
	EventWorkflowError EventType = "workflow_error"
	// EventNodeStart is emitted when a node begins executing.
	EventNodeStart EventType = "node_start"
	// EventNodeComplete is emitted when a node finishes successfully.
	EventNodeComplete EventType = "node_complete"
	// EventNodeError is emitted when a node's handler returns an error.
	EventNodeError EventType = "node_error"
)

// Event is a progress notification. Events exist purely for caller
// observability; engine correctness never depends on a sink being present.
type Event struct {
	Type          EventType     `json:"type"`
	WorkflowID    string        `json:"workflowId,omitempty"`
	WorkflowName  string        `json:"workflowName,omitempty"`
	NodeID        string        `json:"nodeId,omitempty"`
	Result        string        `json:"result,omitempty"`
	Err           string        `json:"error,omitempty"`
	Duration      time.Duration `json:"duration,omitempty"`
	ExecutionTime time.Duration `json:"executionTime,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Sink receives progress events. A nil Sink is valid and means "no observer".
type Sink func(Event)

// Emit delivers an event through the sink, stamping the timestamp. Safe to
// call on a nil Sink.
func (s Sink) Emit(ev Event) {
	if s == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	s(ev)
}

// NewID returns a process-unique identifier string (UUID v4).
func NewID() string { return uuid.NewString() }
