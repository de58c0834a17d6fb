package comm

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personaflow/core"
)

func TestBroadcastChannel(t *testing.T) {
	bus := NewBus()
	bus.Init("ch1", &core.ChannelSpec{Name: "general", Mode: core.ModeBroadcast})
	bus.AddParticipant("ch1", "a1", "Alice")
	bus.AddParticipant("ch1", "a2", "Bob")

	result := bus.Send("ch1", "a1", "hello everyone")
	assert.Contains(t, result, "general")

	transcript := bus.Transcript("ch1")
	assert.Contains(t, transcript, "[Alice] hello everyone")
}

func TestBroadcastTranscriptWindow(t *testing.T) {
	bus := NewBus()
	bus.Init("ch1", &core.ChannelSpec{Name: "general", Mode: core.ModeBroadcast})
	bus.AddParticipant("ch1", "a1", "Alice")

	for i := 0; i < 15; i++ {
		bus.Send("ch1", "a1", "message")
	}

	transcript := bus.Transcript("ch1")
	assert.Equal(t, transcriptWindow, strings.Count(transcript, "[Alice]"))
}

func TestP2PChannel(t *testing.T) {
	bus := NewBus()
	bus.Init("ch1", &core.ChannelSpec{Name: "direct", Mode: core.ModePeerToPeer})
	bus.AddParticipant("ch1", "a1", "Alice")
	bus.AddParticipant("ch1", "a2", "Bob")

	result := bus.Send("ch1", "a1", "@Bob: meet me at noon")
	assert.Contains(t, result, "Bob")

	transcript := bus.Transcript("ch1")
	assert.Contains(t, transcript, "[Alice -> Bob] meet me at noon")
}

func TestP2PRejectsUnknownRecipient(t *testing.T) {
	bus := NewBus()
	bus.Init("ch1", &core.ChannelSpec{Name: "direct", Mode: core.ModePeerToPeer})
	bus.AddParticipant("ch1", "a1", "Alice")

	result := bus.Send("ch1", "a1", "@Carol: hi")
	assert.Contains(t, result, "not a participant")

	ch, ok := bus.Channel("ch1")
	require.True(t, ok)
	assert.Empty(t, ch.Messages)
}

func TestP2PRejectsMissingAddressing(t *testing.T) {
	bus := NewBus()
	bus.Init("ch1", &core.ChannelSpec{Name: "direct", Mode: core.ModePeerToPeer})
	bus.AddParticipant("ch1", "a1", "Alice")
	bus.AddParticipant("ch1", "a2", "Bob")

	result := bus.Send("ch1", "a1", "no addressing here")
	assert.Contains(t, result, "@RecipientName")
}

func TestP2PAllowedPairs(t *testing.T) {
	bus := NewBus()
	bus.Init("ch1", &core.ChannelSpec{
		Name:         "direct",
		Mode:         core.ModePeerToPeer,
		AllowedPairs: [][2]string{{"a1", "a2"}},
	})
	bus.AddParticipant("ch1", "a1", "Alice")
	bus.AddParticipant("ch1", "a2", "Bob")
	bus.AddParticipant("ch1", "a3", "Carol")

	assert.Contains(t, bus.Send("ch1", "a1", "@Bob: ok"), "delivered")
	assert.Contains(t, bus.Send("ch1", "a1", "@Carol: ok"), "not allowed")
}

func TestRoundRobinTurnOrder(t *testing.T) {
	bus := NewBus()
	bus.Init("ch1", &core.ChannelSpec{
		Name:         "standup",
		Mode:         core.ModeRoundRobin,
		SpeakerOrder: []string{"a1", "a2", "a3"},
	})
	bus.AddParticipant("ch1", "a1", "Alice")
	bus.AddParticipant("ch1", "a2", "Bob")
	bus.AddParticipant("ch1", "a3", "Carol")

	// Off-turn send is rejected and names the expected speaker.
	result := bus.Send("ch1", "a2", "me first")
	assert.Contains(t, result, "Not your turn")
	assert.Contains(t, result, "Alice")

	ch, ok := bus.Channel("ch1")
	require.True(t, ok)
	assert.Equal(t, 0, ch.CurrentSpeakerIndex)

	// In-turn send is accepted and advances the rotation.
	result = bus.Send("ch1", "a1", "status update")
	assert.Contains(t, result, "Bob")
	assert.Equal(t, 1, ch.CurrentSpeakerIndex)

	bus.Send("ch1", "a2", "next")
	bus.Send("ch1", "a3", "last")
	assert.Equal(t, 0, ch.CurrentSpeakerIndex)
}

func TestRoundRobinAutoOrderFromRegistration(t *testing.T) {
	bus := NewBus()
	bus.Init("ch1", &core.ChannelSpec{Name: "standup", Mode: core.ModeRoundRobin})
	bus.AddParticipant("ch1", "a1", "Alice")
	bus.AddParticipant("ch1", "a2", "Bob")

	ch, ok := bus.Channel("ch1")
	require.True(t, ok)
	assert.Equal(t, []string{"a1", "a2"}, ch.SpeakerOrder)
}

func TestDebateSingleRoundCompletes(t *testing.T) {
	bus := NewBus()
	bus.Init("ch1", &core.ChannelSpec{
		Name:      "debate",
		Mode:      core.ModeDebate,
		Topic:     "remote work",
		Position1: "pro",
		Position2: "con",
		MaxRounds: 1,
	})
	bus.AddParticipant("ch1", "a1", "Alice")
	bus.AddParticipant("ch1", "a2", "Bob")

	ch, ok := bus.Channel("ch1")
	require.True(t, ok)
	assert.Equal(t, 1, ch.DebateRound)
	assert.Equal(t, "pro", ch.CurrentPosition)

	// Position2 cannot open.
	result := bus.Send("ch1", "a2", "con opener")
	assert.Contains(t, result, "Not your turn")
	assert.Contains(t, result, "Alice")

	bus.Send("ch1", "a1", "pro argument")
	assert.False(t, ch.DebateComplete)

	result = bus.Send("ch1", "a2", "con argument")
	assert.Contains(t, result, "complete")
	assert.True(t, ch.DebateComplete)
	assert.Len(t, ch.Messages, 2)
}

func TestDebateModeratorInterjection(t *testing.T) {
	bus := NewBus()
	bus.Init("ch1", &core.ChannelSpec{
		Name:        "debate",
		Mode:        core.ModeDebate,
		MaxRounds:   2,
		ModeratorID: "mod",
	})
	bus.AddParticipant("ch1", "mod", "Moderator")
	bus.AddParticipant("ch1", "a1", "Alice")
	bus.AddParticipant("ch1", "a2", "Bob")

	ch, ok := bus.Channel("ch1")
	require.True(t, ok)
	assert.Equal(t, "a1", ch.Position1Agent)
	assert.Equal(t, "a2", ch.Position2Agent)

	// Moderator sends do not consume a turn.
	bus.Send("ch1", "mod", "keep it civil")
	assert.Equal(t, "position1", ch.CurrentPosition)

	bus.Send("ch1", "a1", "opening")
	assert.Equal(t, "position2", ch.CurrentPosition)
}

func TestChannelToolRoutesByName(t *testing.T) {
	bus := NewBus()
	bus.Init("ch1", &core.ChannelSpec{Name: "general", Mode: core.ModeBroadcast})
	bus.AddParticipant("ch1", "a1", "Alice")

	tl := bus.ChannelTool("a1", "general")

	result := tl.Invoke(context.Background(), "general: hello")
	assert.Contains(t, result, "general")

	transcript := bus.Transcript("ch1")
	assert.Contains(t, transcript, "hello")
	assert.NotContains(t, transcript, "general: hello")
}

func TestSendUnknownChannel(t *testing.T) {
	bus := NewBus()
	result := bus.Send("missing", "a1", "hello")
	assert.Contains(t, result, "No channel found")
}
