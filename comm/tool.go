package comm

import (
	"context"
	"fmt"
	"strings"

	"personaflow/tool"
)

// ChannelTool exposes the bus to an agent as a callable tool. Input is
// "channel_name:message"; a bare message goes to defaultChannel.
func (b *Bus) ChannelTool(senderID, defaultChannel string) *tool.Tool {
	return tool.New(
		"send_message",
		"Send a message to a communication channel. Input format: \"channel_name: message\" or just the message for the default channel.",
		func(ctx context.Context, input string) (string, error) {
			channelRef := defaultChannel
			content := strings.TrimSpace(input)
			if name, body, ok := strings.Cut(input, ":"); ok && !strings.HasPrefix(input, "@") {
				if _, found := b.Resolve(strings.TrimSpace(name)); found {
					channelRef = strings.TrimSpace(name)
					content = strings.TrimSpace(body)
				}
			}
			ch, ok := b.Resolve(channelRef)
			if !ok {
				return fmt.Sprintf("No channel found with name %q", channelRef), nil
			}
			return b.Send(ch.ID, senderID, content), nil
		},
	)
}
