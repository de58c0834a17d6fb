package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"personaflow/core"
	"personaflow/logging"
)

// Op identifies a memory access operation in the access log.
type Op string

const (
	// OpRead is a read access.
	OpRead Op = "read"
	// OpWrite is a write access.
	OpWrite Op = "write"
	// OpSearch is a vector search access.
	OpSearch Op = "search"
)

// AccessEntry is one access log record of a cell.
type AccessEntry struct {
	NodeID    string    `json:"nodeId"`
	Op        Op        `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
}

// Cell is a named, typed slot of execution-scoped shared state. A cell's ID
// equals its originating memory node's id; at most one cell exists per id per
// session.
type Cell struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Type core.MemoryType `json:"type"`

	// Data holds the payload for simple/structured/persistent cells. For
	// structured cells that parsed as JSON, Structured carries the decoded
	// value and Data the original string.
	Data       string `json:"data,omitempty"`
	Structured any    `json:"structured,omitempty"`

	// Vectors and Texts are the index-aligned parallel arrays of vector
	// cells. Both are append-only.
	Vectors [][]float64 `json:"vectors,omitempty"`
	Texts   []string    `json:"texts,omitempty"`

	UpdatedAt time.Time     `json:"lastWriteTimestamp,omitempty"`
	AccessLog []AccessEntry `json:"accessLog"`
}

// vectorEntry is the optional pre-embedded write payload for vector cells.
type vectorEntry struct {
	Text      string    `json:"text"`
	Embedding []float64 `json:"embedding"`
}

// StoreOptions configures a Store.
type StoreOptions struct {
	// Persistent receives durable copies of persistent-cell writes.
	Persistent core.PersistentMemoryStore
	Logger     logging.Logger
}

// Store is the session-scoped collection of memory cells. It is safe for
// concurrent use by parallel node tasks.
type Store struct {
	mu      sync.RWMutex
	cells   map[string]*Cell
	forward sync.WaitGroup

	persistent core.PersistentMemoryStore
	logger     logging.Logger
}

// NewStore creates an empty memory store for one workflow execution.
func NewStore(optFns ...func(o *StoreOptions)) *Store {
	opts := StoreOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Store{
		cells:      make(map[string]*Cell),
		persistent: opts.Persistent,
		logger:     opts.Logger,
	}
}

// Init creates the cell for a memory node if it does not exist yet and
// returns it. Idempotent; used by graph discovery and lazy first-write.
func (s *Store) Init(id, name string, typ core.MemoryType) *Cell {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cells[id]; ok {
		return c
	}
	if typ == "" {
		typ = core.MemorySimple
	}
	c := &Cell{ID: id, Name: name, Type: typ, AccessLog: []AccessEntry{}}
	s.cells[id] = c
	return c
}

// Cell returns the cell with the given id.
func (s *Store) Cell(id string) (*Cell, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cells[id]
	return c, ok
}

// Resolve finds a cell by id or by name (case-insensitive).
func (s *Store) Resolve(nameOrID string) (*Cell, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.cells[nameOrID]; ok {
		return c, true
	}
	for _, c := range s.cells {
		if strings.EqualFold(c.Name, nameOrID) {
			return c, true
		}
	}
	return nil, false
}

// Cells returns all cells keyed by id.
func (s *Store) Cells() map[string]*Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*Cell, len(s.cells))
	for k, v := range s.cells {
		out[k] = v
	}
	return out
}

// Read returns the current contents of a cell as an observation string. For
// vector cells, arg may name a specific entry index; otherwise all stored
// texts are returned index-prefixed.
func (s *Store) Read(id, nodeID, arg string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cells[id]
	if !ok {
		return fmt.Sprintf("No memory found with id %q", id)
	}
	c.logAccess(nodeID, OpRead)
	switch c.Type {
	case core.MemoryVector:
		if len(c.Texts) == 0 {
			return fmt.Sprintf("Memory %q is empty", c.Name)
		}
		if arg != "" {
			idx, err := strconv.Atoi(strings.TrimSpace(arg))
			if err != nil || idx < 0 || idx >= len(c.Texts) {
				return fmt.Sprintf("Memory %q has no entry %q (stored entries: %d)", c.Name, arg, len(c.Texts))
			}
			return c.Texts[idx]
		}
		var b strings.Builder
		for i, t := range c.Texts {
			fmt.Fprintf(&b, "%d: %s\n", i, t)
		}
		return strings.TrimRight(b.String(), "\n")
	default:
		if c.Data == "" {
			return fmt.Sprintf("Memory %q is empty", c.Name)
		}
		return c.Data
	}
}

// Write stores data into a cell according to its type and returns an
// observation string. Structured parse failures fall back to the raw string;
// vector writes append, never overwrite; persistent writes are also forwarded
// to durable storage asynchronously.
func (s *Store) Write(ctx context.Context, id, nodeID, data string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cells[id]
	if !ok {
		return fmt.Sprintf("No memory found with id %q", id)
	}
	c.logAccess(nodeID, OpWrite)
	c.UpdatedAt = time.Now().UTC()
	switch c.Type {
	case core.MemoryStructured:
		var parsed any
		if err := json.Unmarshal([]byte(data), &parsed); err == nil {
			c.Structured = parsed
		} else {
			c.Structured = nil
		}
		c.Data = data
		return fmt.Sprintf("Stored structured data in %q", c.Name)
	case core.MemoryVector:
		entry := vectorEntry{Text: data}
		var pre vectorEntry
		if err := json.Unmarshal([]byte(data), &pre); err == nil && pre.Text != "" && len(pre.Embedding) > 0 {
			entry = pre
		}
		if len(entry.Embedding) == 0 {
			entry.Embedding = placeholderEmbedding(entry.Text)
		}
		c.Vectors = append(c.Vectors, entry.Embedding)
		c.Texts = append(c.Texts, entry.Text)
		return fmt.Sprintf("Stored vector entry %d in %q", len(c.Texts)-1, c.Name)
	case core.MemoryPersistent:
		c.Data = data
		s.forwardPersistent(ctx, c.ID, data)
		return fmt.Sprintf("Stored data in persistent memory %q", c.Name)
	default:
		c.Data = data
		return fmt.Sprintf("Stored data in %q", c.Name)
	}
}

// forwardPersistent spawns a best-effort durable write. Failures are logged
// and swallowed; the critical path never waits on the forward.
func (s *Store) forwardPersistent(ctx context.Context, id, data string) {
	if s.persistent == nil {
		return
	}
	s.forward.Add(1)
	go func() {
		defer s.forward.Done()
		if err := s.persistent.PutMemory(context.WithoutCancel(ctx), id, data); err != nil {
			s.logger.Warn("persistent memory forward failed", "memory_id", id, "error", err)
		}
	}()
}

// Drain waits for in-flight persistent forwards to finish. Call at process
// shutdown to avoid silent data loss.
func (s *Store) Drain() { s.forward.Wait() }

// searchMatch pairs a stored text with its synthetic similarity score.
type searchMatch struct {
	index int
	text  string
	score float64
}

// Search ranks a vector cell's texts by keyword containment, a stand-in for
// true embedding similarity. Non-vector cells, empty stores and missing
// queries return explanatory messages.
func (s *Store) Search(id, nodeID, query string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cells[id]
	if !ok {
		return fmt.Sprintf("No memory found with id %q", id)
	}
	c.logAccess(nodeID, OpSearch)
	if c.Type != core.MemoryVector {
		return fmt.Sprintf("Memory %q is not searchable (type %s)", c.Name, c.Type)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return "Please provide a search query."
	}
	if len(c.Texts) == 0 {
		return fmt.Sprintf("Memory %q has no entries to search", c.Name)
	}
	keywords := strings.Fields(strings.ToLower(query))
	var matches []searchMatch
	for i, text := range c.Texts {
		lower := strings.ToLower(text)
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits > 0 {
			matches = append(matches, searchMatch{
				index: i,
				text:  text,
				score: float64(hits) / float64(len(keywords)),
			})
		}
	}
	if len(matches) == 0 {
		return fmt.Sprintf("No matches for %q in memory %q", query, c.Name)
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d match(es) for %q:\n", len(matches), query)
	for rank, m := range matches {
		fmt.Fprintf(&b, "%d. (similarity %.2f) %s\n", rank+1, m.score, m.text)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Dump formats a cell's full contents for use as node output / downstream
// context.
func (s *Store) Dump(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cells[id]
	if !ok {
		return fmt.Sprintf("No memory found with id %q", id)
	}
	switch c.Type {
	case core.MemoryVector:
		if len(c.Texts) == 0 {
			return fmt.Sprintf("Memory %q (%s): empty", c.Name, c.Type)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Memory %q (%s), %d entries:\n", c.Name, c.Type, len(c.Texts))
		for i, t := range c.Texts {
			fmt.Fprintf(&b, "%d: %s\n", i, t)
		}
		return strings.TrimRight(b.String(), "\n")
	default:
		if c.Data == "" {
			return fmt.Sprintf("Memory %q (%s): empty", c.Name, c.Type)
		}
		return fmt.Sprintf("Memory %q (%s):\n%s", c.Name, c.Type, c.Data)
	}
}

func (c *Cell) logAccess(nodeID string, op Op) {
	c.AccessLog = append(c.AccessLog, AccessEntry{
		NodeID:    nodeID,
		Op:        op,
		Timestamp: time.Now().UTC(),
	})
}

// placeholderEmbedding synthesizes a small deterministic embedding from text
// so vector cells remain functional without an external embedding provider.
func placeholderEmbedding(text string) []float64 {
	const dims = 8
	vec := make([]float64, dims)
	for i, r := range text {
		vec[i%dims] += float64(r%97) / 97.0
	}
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}
