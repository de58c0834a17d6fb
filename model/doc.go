// Package model defines the provider-agnostic completion abstractions used by
// personaflow agents.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, ToolCall)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockProvider)
//
// Providers (e.g. OpenAI, Anthropic) implement the Provider interface from
// this package so higher layers (agents, the engine, the HTTP surface) remain
// decoupled from vendor SDKs.
package model
