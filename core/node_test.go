package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func graphFixture() *Workflow {
	return &Workflow{
		ID: "wf1",
		Nodes: []Node{
			{ID: "a", Kind: NodeTrigger},
			{ID: "b", Kind: NodePersona},
			{ID: "c", Kind: NodeMemory},
		},
		Edges: []Edge{
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "b", Target: "c"},
		},
	}
}

func TestNodeByID(t *testing.T) {
	wf := graphFixture()

	n, ok := wf.NodeByID("b")
	require.True(t, ok)
	assert.Equal(t, NodePersona, n.Kind)

	_, ok = wf.NodeByID("missing")
	assert.False(t, ok)
}

func TestEdgeAccessors(t *testing.T) {
	wf := graphFixture()

	assert.Empty(t, wf.IncomingEdges("a"))
	assert.Len(t, wf.OutgoingEdges("a"), 1)
	assert.Len(t, wf.IncomingEdges("b"), 1)
	assert.Empty(t, wf.OutgoingEdges("c"))
}

func TestEntryNodesPreserveDeclarationOrder(t *testing.T) {
	wf := graphFixture()
	wf.Nodes = append(wf.Nodes, Node{ID: "d", Kind: NodeTrigger})

	entries := wf.EntryNodes()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, "d", entries[1].ID)
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, 7, OrDefault(7))
	assert.Equal(t, 5, OrDefault(0))
	assert.Equal(t, 5, OrDefault(-1))
}

func TestSessionMemoryStepsAndResults(t *testing.T) {
	sm := NewSessionMemory("input")

	rec := sm.StartStep("n1", NodePersona)
	assert.Equal(t, StepRunning, rec.Status)

	sm.FinishStep(rec, "done", nil)
	sm.SetResult("n1", "done")

	steps := sm.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, StepCompleted, steps[0].Status)

	result, ok := sm.Result("n1")
	require.True(t, ok)
	assert.Equal(t, "done", result)
}

func TestLinkMemberDeduplicates(t *testing.T) {
	sm := NewSessionMemory("")
	sm.RegisterAgent(&AgentRecord{ID: "a1", Name: "Ada"})
	sm.RegisterTeam(&TeamRecord{ID: "t1", Name: "Squad"})

	sm.LinkMember("t1", "a1")
	sm.LinkMember("t1", "a1")

	team, ok := sm.Team("t1")
	require.True(t, ok)
	assert.Equal(t, []string{"a1"}, team.MemberIDs)

	ag, ok := sm.Agent("a1")
	require.True(t, ok)
	assert.Equal(t, []string{"t1"}, ag.TeamIDs)
}

func TestSinkNilSafe(t *testing.T) {
	var s Sink
	assert.NotPanics(t, func() {
		s.Emit(Event{Type: EventNodeStart})
	})
}
