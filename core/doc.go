// Package core provides the foundational domain types and interfaces used by
// personaflow. It defines the core abstractions for:
//
//   - Workflows (node/edge graphs of personas, teams, tools, memory and channels)
//   - Nodes (a closed set of typed graph vertices) and directed edges
//   - Session memory (the execution-scoped state aggregate threaded through
//     one workflow run)
//   - Progress events (lifecycle notifications delivered to a caller sink)
//   - Pluggable stores for workflows, templates, knowledge files, chat logs
//     and persisted memory cells
//
// The package intentionally keeps implementation concerns (persistence, engine
// orchestration, concrete agents) out of scope, exposing small interfaces to
// enable custom backends and extensions.
package core
