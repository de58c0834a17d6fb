// Package agent builds model-backed agents from persona and team
// definitions.
//
// A persona agent speaks with a single persona's system prompt and
// personality attributes and may call the tools wired to its workflow node.
// A team agent coordinates several personas under a team strategy
// (coordinator, debate, consensus or specialist), deriving each member's
// team role from its attributes.
//
// Both are implemented on top of a shared tool-calling loop against a
// model.Provider: the model is invoked, returned tool calls are executed,
// and the results are fed back until the model answers in plain text or
// the iteration cap is reached.
package agent
