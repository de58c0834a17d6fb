package memory

import (
	"context"
	"fmt"
	"strings"

	"personaflow/tool"
)

// CommandTool exposes the store to an agent through the command-string
// convention "operation:memory_name:data" where operation is read, write or
// search. Omitting the operation defaults to read. The invoking node id is
// bound at construction so access log entries attribute correctly.
func (s *Store) CommandTool(invokerNodeID, memoryName string) *tool.Tool {
	description := fmt.Sprintf(
		"Access shared memory %q. Commands: read:%[2]s, write:%[2]s:<data>, search:%[2]s:<query>",
		memoryName, memoryName,
	)
	return tool.New("memory_access", description, func(ctx context.Context, input string) (string, error) {
		op, name, data := parseCommand(input)
		if name == "" {
			name = memoryName
		}
		cell, ok := s.Resolve(name)
		if !ok {
			return fmt.Sprintf("No memory found with name %q", name), nil
		}
		switch op {
		case "write":
			return s.Write(ctx, cell.ID, invokerNodeID, data), nil
		case "search":
			return s.Search(cell.ID, invokerNodeID, data), nil
		case "read":
			return s.Read(cell.ID, invokerNodeID, data), nil
		default:
			return fmt.Sprintf("Unknown memory operation %q; use read, write or search", op), nil
		}
	})
}

// parseCommand splits "op:name:data". Data may itself contain colons; only
// the first two separators are structural.
func parseCommand(input string) (op, name, data string) {
	parts := strings.SplitN(strings.TrimSpace(input), ":", 3)
	switch len(parts) {
	case 1:
		return "read", parts[0], ""
	case 2:
		op = strings.ToLower(strings.TrimSpace(parts[0]))
		if op == "read" || op == "write" || op == "search" {
			return op, strings.TrimSpace(parts[1]), ""
		}
		// No recognized op prefix: treat as name:data read form.
		return "read", strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	default:
		return strings.ToLower(strings.TrimSpace(parts[0])), strings.TrimSpace(parts[1]), parts[2]
	}
}
