// Package memory implements the shared memory store threaded through one
// workflow execution: a named collection of typed cells (simple, structured,
// vector, persistent) with read, write and keyword search operations plus a
// per-cell access log.
//
// Cells live for the duration of one execution. Persistent cells additionally
// forward writes to a durable core.PersistentMemoryStore, fire-and-forget;
// forwarding failures are logged, never surfaced to the caller.
//
// The structured API here is the internal shape. The command-string surface
// ("read|write|search:memory_name:data") exists only as a thin serialization
// for the completion provider's tool-calling convention; see CommandTool.
package memory
