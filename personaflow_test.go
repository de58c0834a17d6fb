package personaflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personaflow/core"
	"personaflow/model"
)

func TestChat(t *testing.T) {
	provider := model.NewMockProvider()
	provider.AddResponse("hello", "Hi there, friend.")

	flow := New(provider)

	reply, err := flow.Chat(context.Background(), &core.Persona{Name: "Sage"}, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi there, friend.", reply)
}

func TestExecuteByID(t *testing.T) {
	flow := New(model.NewMockProvider())
	ctx := context.Background()

	id, err := flow.SaveWorkflow(ctx, &core.Workflow{
		Name: "greeting",
		Nodes: []core.Node{
			{ID: "p1", Kind: core.NodePersona, Data: core.NodeData{Persona: &core.Persona{Name: "Luna"}}},
		},
	})
	require.NoError(t, err)

	outcome, err := flow.ExecuteByID(ctx, id, "hi", nil)
	require.NoError(t, err)
	assert.Contains(t, outcome.Output, "Mock response to: hi")

	_, err = flow.ExecuteByID(ctx, "missing", "hi", nil)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
