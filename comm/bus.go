package comm

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"personaflow/core"
	"personaflow/logging"
)

// transcriptWindow bounds how many trailing messages a transcript shows.
const transcriptWindow = 10

// Message is one channel entry.
type Message struct {
	ID          string    `json:"id"`
	Sender      string    `json:"sender"` // display name
	SenderID    string    `json:"senderId"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	Recipient   string    `json:"recipient,omitempty"`
	RecipientID string    `json:"recipientId,omitempty"`
	Position    string    `json:"position,omitempty"`
	DebateRound int       `json:"debateRound,omitempty"`
}

// Channel is a named communication context. A channel's ID equals its
// originating communication node's id. Mode-specific fields are only
// meaningful for the matching mode.
type Channel struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Mode         core.ChannelMode `json:"mode"`
	Participants []string         `json:"participants"`
	Messages     []Message        `json:"messages"`

	names     map[string]string // participant id -> display name
	autoOrder bool              // speaker order built from registration order

	// Round-robin state.
	SpeakerOrder        []string `json:"speakerOrder,omitempty"`
	CurrentSpeakerIndex int      `json:"currentSpeakerIndex,omitempty"`

	// P2P allow-list (unordered pairs). Empty means any pair.
	AllowedPairs [][2]string `json:"allowedPairs,omitempty"`

	// Debate state.
	Topic           string `json:"topic,omitempty"`
	Position1       string `json:"position1,omitempty"`
	Position2       string `json:"position2,omitempty"`
	Position1Agent  string `json:"position1Agent,omitempty"`
	Position2Agent  string `json:"position2Agent,omitempty"`
	ModeratorID     string `json:"moderatorId,omitempty"`
	DebateRound     int    `json:"debateRound,omitempty"`
	MaxRounds       int    `json:"maxRounds,omitempty"`
	CurrentPosition string `json:"currentPosition,omitempty"`
	DebateComplete  bool   `json:"debateComplete,omitempty"`
}

// BusOptions configures a Bus.
type BusOptions struct {
	Logger logging.Logger
}

// Bus is the session-scoped collection of channels. Safe for concurrent use
// by parallel node tasks; each Send is serialized per bus so turn-taking
// modes observe a consistent acceptance order.
type Bus struct {
	mu       sync.Mutex
	channels map[string]*Channel
	logger   logging.Logger
}

// NewBus creates an empty communication bus for one workflow execution.
func NewBus(optFns ...func(o *BusOptions)) *Bus {
	opts := BusOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Bus{channels: make(map[string]*Channel), logger: opts.Logger}
}

// Init creates the channel for a communication node if it does not exist yet
// and returns it. Idempotent; used by graph discovery.
func (b *Bus) Init(id string, spec *core.ChannelSpec) *Channel {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.channels[id]; ok {
		return ch
	}
	ch := &Channel{
		ID:    id,
		Name:  spec.Name,
		Mode:  spec.Mode,
		names: make(map[string]string),
	}
	if ch.Mode == "" {
		ch.Mode = core.ModeBroadcast
	}
	switch ch.Mode {
	case core.ModeRoundRobin:
		ch.SpeakerOrder = append(ch.SpeakerOrder, spec.SpeakerOrder...)
		ch.autoOrder = len(ch.SpeakerOrder) == 0
	case core.ModePeerToPeer:
		ch.AllowedPairs = append(ch.AllowedPairs, spec.AllowedPairs...)
	case core.ModeDebate:
		ch.Topic = spec.Topic
		ch.Position1 = spec.Position1
		ch.Position2 = spec.Position2
		if ch.Position1 == "" {
			ch.Position1 = "position1"
		}
		if ch.Position2 == "" {
			ch.Position2 = "position2"
		}
		ch.Position1Agent = spec.Position1Agent
		ch.Position2Agent = spec.Position2Agent
		ch.ModeratorID = spec.ModeratorID
		ch.MaxRounds = spec.MaxRounds
		if ch.MaxRounds <= 0 {
			ch.MaxRounds = 3
		}
		ch.DebateRound = 1
		ch.CurrentPosition = ch.Position1
	}
	b.channels[id] = ch
	return ch
}

// AddParticipant registers a node as a channel participant. For round-robin
// channels without an explicit speaker order, registration order becomes the
// rotation; for debate channels the first two non-moderator participants
// become the position holders.
func (b *Bus) AddParticipant(channelID, nodeID, displayName string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.channels[channelID]
	if !ok {
		return
	}
	for _, p := range ch.Participants {
		if p == nodeID {
			return
		}
	}
	ch.Participants = append(ch.Participants, nodeID)
	ch.names[nodeID] = displayName
	switch ch.Mode {
	case core.ModeRoundRobin:
		if ch.autoOrder && !containsID(ch.SpeakerOrder, nodeID) {
			ch.SpeakerOrder = append(ch.SpeakerOrder, nodeID)
		}
	case core.ModeDebate:
		if nodeID == ch.ModeratorID {
			return
		}
		if ch.Position1Agent == "" {
			ch.Position1Agent = nodeID
		} else if ch.Position2Agent == "" && nodeID != ch.Position1Agent {
			ch.Position2Agent = nodeID
		}
	}
}

// Channel returns the channel with the given id.
func (b *Bus) Channel(id string) (*Channel, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.channels[id]
	return ch, ok
}

// Channels returns all channels keyed by id.
func (b *Bus) Channels() map[string]*Channel {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]*Channel, len(b.channels))
	for k, v := range b.channels {
		out[k] = v
	}
	return out
}

// Resolve finds a channel by id or by name (case-insensitive).
func (b *Bus) Resolve(nameOrID string) (*Channel, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.channels[nameOrID]; ok {
		return ch, true
	}
	for _, ch := range b.channels {
		if strings.EqualFold(ch.Name, nameOrID) {
			return ch, true
		}
	}
	return nil, false
}

// Send posts a message from senderID to a channel, applying the channel
// mode's turn-taking rules. The returned string reports acceptance or the
// rejection reason; Send never returns an error because rejections must flow
// back into the sending agent's reasoning.
func (b *Bus) Send(channelID, senderID, content string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.channels[channelID]
	if !ok {
		return fmt.Sprintf("No channel found with id %q", channelID)
	}
	switch ch.Mode {
	case core.ModePeerToPeer:
		return b.sendP2P(ch, senderID, content)
	case core.ModeRoundRobin:
		return b.sendRoundRobin(ch, senderID, content)
	case core.ModeDebate:
		return b.sendDebate(ch, senderID, content)
	default:
		return b.sendBroadcast(ch, senderID, content)
	}
}

func (b *Bus) sendBroadcast(ch *Channel, senderID, content string) string {
	ch.append(Message{
		ID:        core.NewID(),
		Sender:    ch.displayName(senderID),
		SenderID:  senderID,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	return fmt.Sprintf("Message sent to channel %q", ch.Name)
}

func (b *Bus) sendP2P(ch *Channel, senderID, content string) string {
	if !containsID(ch.Participants, senderID) && senderID != "system" {
		return fmt.Sprintf("Sender %q is not a participant of channel %q", ch.displayName(senderID), ch.Name)
	}
	recipientName, body, ok := splitP2P(content)
	if !ok {
		return fmt.Sprintf("Peer-to-peer messages must start with \"@RecipientName: \"; channel %q", ch.Name)
	}
	recipientID := ""
	for _, p := range ch.Participants {
		if strings.EqualFold(ch.names[p], recipientName) {
			recipientID = p
			break
		}
	}
	if recipientID == "" {
		return fmt.Sprintf("Recipient %q is not a participant of channel %q", recipientName, ch.Name)
	}
	if len(ch.AllowedPairs) > 0 && !pairAllowed(ch.AllowedPairs, senderID, recipientID) {
		return fmt.Sprintf("Messages between %q and %q are not allowed on channel %q",
			ch.displayName(senderID), recipientName, ch.Name)
	}
	ch.append(Message{
		ID:          core.NewID(),
		Sender:      ch.displayName(senderID),
		SenderID:    senderID,
		Content:     body,
		Timestamp:   time.Now().UTC(),
		Recipient:   ch.names[recipientID],
		RecipientID: recipientID,
	})
	return fmt.Sprintf("Message delivered to %s on channel %q", recipientName, ch.Name)
}

func (b *Bus) sendRoundRobin(ch *Channel, senderID, content string) string {
	if len(ch.SpeakerOrder) == 0 {
		return fmt.Sprintf("Channel %q has no speaker order configured", ch.Name)
	}
	expected := ch.SpeakerOrder[ch.CurrentSpeakerIndex]
	if senderID != expected {
		return fmt.Sprintf("Not your turn on channel %q: next speaker is %s",
			ch.Name, ch.displayName(expected))
	}
	ch.append(Message{
		ID:        core.NewID(),
		Sender:    ch.displayName(senderID),
		SenderID:  senderID,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	ch.CurrentSpeakerIndex = (ch.CurrentSpeakerIndex + 1) % len(ch.SpeakerOrder)
	return fmt.Sprintf("Message sent to channel %q; next speaker is %s",
		ch.Name, ch.displayName(ch.SpeakerOrder[ch.CurrentSpeakerIndex]))
}

func (b *Bus) sendDebate(ch *Channel, senderID, content string) string {
	// The moderator may interject at any point without consuming a turn.
	if ch.ModeratorID != "" && senderID == ch.ModeratorID {
		ch.append(Message{
			ID:        core.NewID(),
			Sender:    ch.displayName(senderID),
			SenderID:  senderID,
			Content:   content,
			Timestamp: time.Now().UTC(),
			Position:  "moderator",
		})
		return fmt.Sprintf("Moderator note recorded on channel %q", ch.Name)
	}
	expectedID := ch.Position1Agent
	if ch.CurrentPosition == ch.Position2 {
		expectedID = ch.Position2Agent
	}
	if senderID != expectedID {
		return fmt.Sprintf("Not your turn in debate %q: next speaker is %s (%s)",
			ch.Name, ch.displayName(expectedID), ch.CurrentPosition)
	}
	ch.append(Message{
		ID:          core.NewID(),
		Sender:      ch.displayName(senderID),
		SenderID:    senderID,
		Content:     content,
		Timestamp:   time.Now().UTC(),
		Position:    ch.CurrentPosition,
		DebateRound: ch.DebateRound,
	})
	if ch.CurrentPosition == ch.Position1 {
		ch.CurrentPosition = ch.Position2
	} else {
		ch.CurrentPosition = ch.Position1
		ch.DebateRound++
		if ch.DebateRound > ch.MaxRounds {
			ch.DebateComplete = true
		}
	}
	if ch.DebateComplete {
		return fmt.Sprintf("Argument recorded; debate %q is complete after %d round(s)", ch.Name, ch.MaxRounds)
	}
	return fmt.Sprintf("Argument recorded on channel %q; next up: %s", ch.Name, ch.CurrentPosition)
}

// Transcript formats the trailing window of a channel's messages as textual
// context for downstream nodes.
func (b *Bus) Transcript(channelID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.channels[channelID]
	if !ok {
		return fmt.Sprintf("No channel found with id %q", channelID)
	}
	var head strings.Builder
	fmt.Fprintf(&head, "Channel %q (%s)", ch.Name, ch.Mode)
	if ch.Mode == core.ModeDebate {
		fmt.Fprintf(&head, " round %d/%d", ch.DebateRound, ch.MaxRounds)
		if ch.Topic != "" {
			fmt.Fprintf(&head, " on %q", ch.Topic)
		}
	}
	if len(ch.Messages) == 0 {
		return head.String() + ": no messages"
	}
	msgs := ch.Messages
	if len(msgs) > transcriptWindow {
		msgs = msgs[len(msgs)-transcriptWindow:]
	}
	var b2 strings.Builder
	b2.WriteString(head.String())
	b2.WriteString(":\n")
	for _, m := range msgs {
		if m.Recipient != "" {
			fmt.Fprintf(&b2, "[%s -> %s] %s\n", m.Sender, m.Recipient, m.Content)
		} else if m.Position != "" && m.Position != "moderator" {
			fmt.Fprintf(&b2, "[%s (%s, round %d)] %s\n", m.Sender, m.Position, m.DebateRound, m.Content)
		} else {
			fmt.Fprintf(&b2, "[%s] %s\n", m.Sender, m.Content)
		}
	}
	return strings.TrimRight(b2.String(), "\n")
}

func (ch *Channel) append(m Message) {
	ch.Messages = append(ch.Messages, m)
}

func (ch *Channel) displayName(nodeID string) string {
	if name, ok := ch.names[nodeID]; ok && name != "" {
		return name
	}
	return nodeID
}

// splitP2P extracts "@Recipient: body" addressing.
func splitP2P(content string) (recipient, body string, ok bool) {
	if !strings.HasPrefix(content, "@") {
		return "", "", false
	}
	rest := content[1:]
	sep := strings.Index(rest, ":")
	if sep <= 0 {
		return "", "", false
	}
	return strings.TrimSpace(rest[:sep]), strings.TrimSpace(rest[sep+1:]), true
}

func pairAllowed(pairs [][2]string, a, b string) bool {
	for _, p := range pairs {
		if (p[0] == a && p[1] == b) || (p[0] == b && p[1] == a) {
			return true
		}
	}
	return false
}

func containsID(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
