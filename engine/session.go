package engine

import (
	"personaflow/comm"
	"personaflow/core"
	"personaflow/logging"
	"personaflow/memory"
)

// Session is the full per-execution state: the shared registry of results,
// steps, agents and teams, plus the typed memory cells and the
// communication bus. Each ExecuteWorkflow call owns an independent Session;
// nothing is shared across runs except external stores.
type Session struct {
	ID     string
	Memory *core.SessionMemory
	Cells  *memory.Store
	Bus    *comm.Bus
}

func newSession(input string, persistent core.PersistentMemoryStore, logger logging.Logger) *Session {
	return &Session{
		ID:     core.NewID(),
		Memory: core.NewSessionMemory(input),
		Cells: memory.NewStore(func(o *memory.StoreOptions) {
			o.Persistent = persistent
			o.Logger = logger
		}),
		Bus: comm.NewBus(func(o *comm.BusOptions) {
			o.Logger = logger
		}),
	}
}
