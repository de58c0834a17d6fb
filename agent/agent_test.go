package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personaflow/core"
	"personaflow/model"
	"personaflow/tool"
)

func TestPersonaAgent_Invoke(t *testing.T) {
	provider := model.NewMockProvider()
	provider.AddResponse("hi", "Hello there!")

	persona := &core.Persona{
		Name:         "Luna",
		SystemPrompt: "You are a dreamy poet.",
		Attributes:   core.Attributes{Creativity: 9},
	}

	a := NewPersonaAgent(persona, provider)

	result, err := a.Invoke(context.Background(), Request{Input: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", result.Output)
	assert.Empty(t, result.Steps)

	reqs := provider.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].System, "You are Luna")
	assert.Contains(t, reqs[0].System, "You are a dreamy poet.")
	assert.Contains(t, reqs[0].System, "Creativity: 9")
	assert.InDelta(t, 0.9, reqs[0].Temperature, 1e-9)
	assert.Equal(t, int64(personaMaxTokens), reqs[0].MaxTokens)
}

func TestPersonaAgent_DefaultTemperature(t *testing.T) {
	provider := model.NewMockProvider()
	a := NewPersonaAgent(&core.Persona{Name: "Plain"}, provider)

	_, err := a.Invoke(context.Background(), Request{Input: "hi"})
	require.NoError(t, err)

	reqs := provider.Requests()
	require.Len(t, reqs, 1)
	assert.InDelta(t, 0.7, reqs[0].Temperature, 1e-9)
}

func TestPersonaAgent_PlaceholderToolWhenEmpty(t *testing.T) {
	provider := model.NewMockProvider()
	a := NewPersonaAgent(&core.Persona{Name: "Luna"}, provider)

	_, err := a.Invoke(context.Background(), Request{Input: "hi"})
	require.NoError(t, err)

	reqs := provider.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Tools, 1)
	assert.Equal(t, "no_tools_available", reqs[0].Tools[0].Name)
}

func TestPersonaAgent_ToolCallLoop(t *testing.T) {
	provider := model.NewMockProvider()
	provider.ScriptResponse(&model.Response{
		ToolCalls: []model.ToolCall{{
			ID:        "call-1",
			Name:      "roll_dice",
			Arguments: `{"input": "6,2"}`,
		}},
	})
	provider.ScriptResponse(&model.Response{Content: "You rolled well."})

	dice := tool.New("roll_dice", "Roll dice", func(ctx context.Context, input string) (string, error) {
		return "Rolled 2d6: [3, 4] = 7", nil
	})

	persona := &core.Persona{Name: "Gamer"}
	a := NewPersonaAgent(persona, provider, func(o *PersonaAgentOptions) {
		o.Tools = []*tool.Tool{dice}
	})

	result, err := a.Invoke(context.Background(), Request{Input: "roll for me"})
	require.NoError(t, err)
	assert.Equal(t, "You rolled well.", result.Output)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, "roll_dice", result.Steps[0].Tool)
	assert.Equal(t, "6,2", result.Steps[0].Input)
	assert.Equal(t, "Rolled 2d6: [3, 4] = 7", result.Steps[0].Output)

	// The second model call carries the tool result back.
	reqs := provider.Requests()
	require.Len(t, reqs, 2)
	require.Len(t, reqs[1].ToolResults, 1)
	assert.Equal(t, "Rolled 2d6: [3, 4] = 7", reqs[1].ToolResults[0].Output)
}

func TestPersonaAgent_UnknownTool(t *testing.T) {
	provider := model.NewMockProvider()
	provider.ScriptResponse(&model.Response{
		ToolCalls: []model.ToolCall{{ID: "c1", Name: "nope", Arguments: "{}"}},
	})
	provider.ScriptResponse(&model.Response{Content: "done"})

	a := NewPersonaAgent(&core.Persona{Name: "Luna"}, provider)

	result, err := a.Invoke(context.Background(), Request{Input: "go"})
	require.NoError(t, err)
	require.Len(t, result.Steps, 1)
	assert.Contains(t, result.Steps[0].Output, "unknown tool")
}

func TestPersonaAgent_IterationCap(t *testing.T) {
	provider := model.NewMockProvider()
	for i := 0; i < personaMaxIterations; i++ {
		provider.ScriptResponse(&model.Response{
			ToolCalls: []model.ToolCall{{ID: "c", Name: "echo", Arguments: `{"input": "x"}`}},
		})
	}

	echo := tool.New("echo", "Echo", func(ctx context.Context, input string) (string, error) {
		return input, nil
	})

	a := NewPersonaAgent(&core.Persona{Name: "Loopy"}, provider, func(o *PersonaAgentOptions) {
		o.Tools = []*tool.Tool{echo}
	})

	result, err := a.Invoke(context.Background(), Request{Input: "go"})
	require.NoError(t, err)
	assert.Contains(t, result.Output, "iteration limit")
	assert.Len(t, result.Steps, personaMaxIterations)
}

func TestDeriveMemberRole(t *testing.T) {
	tests := []struct {
		name  string
		attrs core.Attributes
		role  string
	}{
		{"leader", core.Attributes{Initiative: 8, Confidence: 7}, "Leader"},
		{"innovator", core.Attributes{Creativity: 8}, "Innovator"},
		{"mediator", core.Attributes{Empathy: 8}, "Mediator"},
		{"contributor", core.Attributes{Initiative: 5, Creativity: 5}, "Contributor"},
		{"confidence alone is not enough", core.Attributes{Confidence: 9}, "Contributor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.role, DeriveMemberRole(tt.attrs))
		})
	}
}

func TestTeamAgent_Invoke(t *testing.T) {
	provider := model.NewMockProvider()
	provider.AddResponse("question", "Team answer.")

	team := &core.Team{Name: "Research Squad", Role: core.TeamConsensus, Description: "Answers research questions."}
	members := []*core.Persona{
		{Name: "Ada", Attributes: core.Attributes{Initiative: 9, Confidence: 8}},
		{Name: "Grace", Attributes: core.Attributes{Creativity: 9}},
	}

	a := NewTeamAgent(team, provider, func(o *TeamAgentOptions) {
		o.Members = members
	})
	assert.Equal(t, "Research Squad", a.Name())

	result, err := a.Invoke(context.Background(), Request{Input: "question"})
	require.NoError(t, err)
	assert.Equal(t, "Team answer.", result.Output)

	reqs := provider.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].System, "Research Squad")
	assert.Contains(t, reqs[0].System, "Ada (Leader)")
	assert.Contains(t, reqs[0].System, "Grace (Innovator)")
	assert.Contains(t, reqs[0].System, "consensus")
	assert.Equal(t, int64(teamMaxTokens), reqs[0].MaxTokens)
}

func TestTeamAgent_StrategyPrompts(t *testing.T) {
	for _, role := range []core.TeamRole{core.TeamCoordinator, core.TeamDebate, core.TeamConsensus, core.TeamSpecialist} {
		provider := model.NewMockProvider()
		a := NewTeamAgent(&core.Team{Name: "T", Role: role}, provider)
		_, err := a.Invoke(context.Background(), Request{Input: "q"})
		require.NoError(t, err)
		assert.Contains(t, provider.Requests()[0].System, role)
	}
}
