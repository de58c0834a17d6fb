package agent

import (
	"fmt"
	"strings"

	"personaflow/core"
	"personaflow/logging"
	"personaflow/model"
	"personaflow/tool"
)

const (
	teamMaxIterations = 5
	teamMaxTokens     = 1500
)

// Member is one persona serving on a team, with its derived team role.
type Member struct {
	Persona *core.Persona
	Role    string
}

// TeamAgentOptions configures a team agent.
type TeamAgentOptions struct {
	// Members are the personas serving on the team. Their team roles are
	// derived from their attributes.
	Members []*core.Persona

	// Tools available to the team as a whole.
	Tools []*tool.Tool

	// Context is extra material appended to the system prompt.
	Context string

	Logger logging.Logger
}

// NewTeamAgent builds an agent that answers as a whole team, synthesizing
// its members' perspectives according to the team's coordination strategy.
func NewTeamAgent(team *core.Team, provider model.Provider, optFns ...func(o *TeamAgentOptions)) Agent {
	opts := TeamAgentOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	members := make([]Member, 0, len(opts.Members))
	for _, p := range opts.Members {
		members = append(members, Member{Persona: p, Role: DeriveMemberRole(p.Attributes)})
	}

	name := team.Name
	if name == "" {
		name = "Team"
	}

	return &runner{
		name:          name,
		provider:      provider,
		system:        teamSystemPrompt(team, members, toolMap(opts.Tools), opts.Context),
		tools:         toolMap(opts.Tools),
		temperature:   defaultTemperature,
		maxTokens:     teamMaxTokens,
		maxIterations: teamMaxIterations,
		logger:        opts.Logger,
	}
}

// DeriveMemberRole maps a persona's attributes to its role within a team.
// High initiative plus confidence marks a leader, high creativity an
// innovator, high empathy a mediator; everyone else contributes as a
// generalist.
func DeriveMemberRole(a core.Attributes) string {
	switch {
	case a.Initiative > 7 && a.Confidence > 6:
		return "Leader"
	case a.Creativity > 7:
		return "Innovator"
	case a.Empathy > 7:
		return "Mediator"
	default:
		return "Contributor"
	}
}

func teamSystemPrompt(team *core.Team, members []Member, tools map[string]*tool.Tool, extra string) string {
	var b strings.Builder
	name := team.Name
	if name == "" {
		name = "a team"
	}
	fmt.Fprintf(&b, "You are the collective voice of %s.\n", name)
	if team.Description != "" {
		b.WriteString(team.Description)
		b.WriteString("\n")
	}

	if len(members) > 0 {
		b.WriteString("\nTeam members:\n")
		for _, m := range members {
			role := m.Role
			if role == "" {
				role = "Generalist"
			}
			fmt.Fprintf(&b, "- %s (%s)", m.Persona.Name, role)
			if m.Persona.SystemPrompt != "" {
				fmt.Fprintf(&b, ": %s", firstLine(m.Persona.SystemPrompt))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(strategyPrompt(team.Role))
	b.WriteString("\n")

	if roster := toolRoster(tools); roster != "" {
		b.WriteString("\nYou have access to the following tools:\n")
		b.WriteString(roster)
		b.WriteString("\n")
	}
	if extra != "" {
		b.WriteString("\nAdditional context:\n")
		b.WriteString(extra)
		b.WriteString("\n")
	}
	return b.String()
}

func strategyPrompt(role core.TeamRole) string {
	switch role {
	case core.TeamDebate:
		return "Coordination strategy: debate. Have the members argue opposing sides of the question, surface the strongest points on each side, then state which position prevails and why."
	case core.TeamConsensus:
		return "Coordination strategy: consensus. Gather every member's view, reconcile the differences, and answer only with a position the whole team can stand behind."
	case core.TeamSpecialist:
		return "Coordination strategy: specialist. Route the question to the member whose expertise fits best and answer primarily in that member's voice, with brief input from the others."
	default:
		return "Coordination strategy: coordinator. Break the task down, assign each part to the best-suited member, and synthesize their contributions into one coherent answer."
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
