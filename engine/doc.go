// Package engine interprets workflow node graphs.
//
// A workflow is a directed graph of typed nodes (personas, teams, tools,
// memory cells, communication channels, files, triggers, actions and
// decisions) connected by edges. The engine resolves the graph, registers
// every agent, team, memory cell and channel into a session-scoped registry,
// then executes from the entry nodes (those with no incoming edges), fanning
// out concurrently wherever a node has multiple outgoing edges.
//
// Each node kind has its own handler: persona and team nodes invoke
// model-backed agents with context gathered from their upstream file, memory
// and communication nodes and tools built from their downstream nodes;
// memory nodes write their input into a typed cell; communication nodes post
// to a channel; decision nodes route along the edge whose label matches the
// evaluated condition.
//
// Progress is reported through an optional event sink. Engine correctness
// never depends on a sink being present.
package engine
