// Package sqlite persists workflows, templates, knowledge files, chat logs
// and persistent memory cells in a single SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"personaflow/core"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS workflows (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	is_template INTEGER NOT NULL DEFAULT 0,
	log_chat INTEGER NOT NULL DEFAULT 0,
	nodes TEXT NOT NULL,
	edges TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workflows_template ON workflows(is_template, category);

CREATE TABLE IF NOT EXISTS files (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	size INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chats (
	id TEXT PRIMARY KEY,
	workflow_id TEXT NOT NULL,
	workflow_name TEXT NOT NULL DEFAULT '',
	input TEXT NOT NULL,
	output TEXT NOT NULL,
	execution_time_ms INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chats_workflow ON chats(workflow_id, created_at);

CREATE TABLE IF NOT EXISTS memory_cells (
	id TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Store implements the engine's store interfaces over one SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath and applies the
// connection pragmas. Call Migrate before first use.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set sqlite pragma %q: %w", stmt, err)
		}
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// SaveWorkflow implements core.WorkflowStore.
func (s *Store) SaveWorkflow(ctx context.Context, wf *core.Workflow) (string, error) {
	return s.saveWorkflowRow(ctx, wf, false)
}

// GetWorkflow implements core.WorkflowStore.
func (s *Store) GetWorkflow(ctx context.Context, id string) (*core.Workflow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, category, log_chat, nodes, edges, created_at, updated_at
		 FROM workflows WHERE id = ? AND is_template = 0`, id)
	wf, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	return wf, err
}

// GetAllWorkflows implements core.WorkflowStore; newest first.
func (s *Store) GetAllWorkflows(ctx context.Context) ([]*core.Workflow, error) {
	return s.queryWorkflows(ctx,
		`SELECT id, name, description, category, log_chat, nodes, edges, created_at, updated_at
		 FROM workflows WHERE is_template = 0 ORDER BY created_at DESC`)
}

// DeleteWorkflow implements core.WorkflowStore.
func (s *Store) DeleteWorkflow(ctx context.Context, id string) error {
	return s.deleteWorkflowRow(ctx, id, false)
}

// SaveTemplate implements core.TemplateStore.
func (s *Store) SaveTemplate(ctx context.Context, tpl *core.Workflow) (string, error) {
	return s.saveWorkflowRow(ctx, tpl, true)
}

// GetAllTemplates implements core.TemplateStore; newest first.
func (s *Store) GetAllTemplates(ctx context.Context) ([]*core.Workflow, error) {
	return s.queryWorkflows(ctx,
		`SELECT id, name, description, category, log_chat, nodes, edges, created_at, updated_at
		 FROM workflows WHERE is_template = 1 ORDER BY created_at DESC`)
}

// GetTemplatesByCategory implements core.TemplateStore. An empty category
// returns all templates.
func (s *Store) GetTemplatesByCategory(ctx context.Context, category string) ([]*core.Workflow, error) {
	if category == "" {
		return s.GetAllTemplates(ctx)
	}
	return s.queryWorkflows(ctx,
		`SELECT id, name, description, category, log_chat, nodes, edges, created_at, updated_at
		 FROM workflows WHERE is_template = 1 AND category = ? COLLATE NOCASE ORDER BY created_at DESC`,
		category)
}

// DeleteTemplate implements core.TemplateStore.
func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	return s.deleteWorkflowRow(ctx, id, true)
}

func (s *Store) saveWorkflowRow(ctx context.Context, wf *core.Workflow, template bool) (string, error) {
	now := time.Now().UTC()
	if wf.ID == "" {
		wf.ID = core.NewID()
		wf.CreatedAt = now
	}
	if wf.CreatedAt.IsZero() {
		wf.CreatedAt = now
	}
	wf.UpdatedAt = now

	nodes, err := json.Marshal(wf.Nodes)
	if err != nil {
		return "", fmt.Errorf("encode nodes: %w", err)
	}
	edges, err := json.Marshal(wf.Edges)
	if err != nil {
		return "", fmt.Errorf("encode edges: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflows(id, name, description, category, is_template, log_chat, nodes, edges, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			category = excluded.category,
			log_chat = excluded.log_chat,
			nodes = excluded.nodes,
			edges = excluded.edges,
			updated_at = excluded.updated_at`,
		wf.ID, wf.Name, wf.Description, wf.Category, boolToInt(template), boolToInt(wf.LogChat),
		string(nodes), string(edges), wf.CreatedAt.UnixMilli(), wf.UpdatedAt.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("save workflow: %w", err)
	}
	return wf.ID, nil
}

func (s *Store) deleteWorkflowRow(ctx context.Context, id string, template bool) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM workflows WHERE id = ? AND is_template = ?`, id, boolToInt(template))
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) queryWorkflows(ctx context.Context, query string, args ...any) ([]*core.Workflow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query workflows: %w", err)
	}
	defer rows.Close()

	var out []*core.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, wf)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*core.Workflow, error) {
	var (
		wf        core.Workflow
		logChat   int
		nodes     string
		edges     string
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&wf.ID, &wf.Name, &wf.Description, &wf.Category, &logChat,
		&nodes, &edges, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(nodes), &wf.Nodes); err != nil {
		return nil, fmt.Errorf("decode nodes: %w", err)
	}
	if err := json.Unmarshal([]byte(edges), &wf.Edges); err != nil {
		return nil, fmt.Errorf("decode edges: %w", err)
	}
	wf.LogChat = logChat != 0
	wf.CreatedAt = time.UnixMilli(createdAt).UTC()
	wf.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &wf, nil
}

// AddFile implements core.KnowledgeStore.
func (s *Store) AddFile(ctx context.Context, f core.File) (string, error) {
	if f.ID == "" {
		f.ID = core.NewID()
	}
	if f.Size == 0 {
		f.Size = int64(len(f.Content))
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files(id, name, type, content, size, created_at) VALUES(?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, type = excluded.type,
			content = excluded.content, size = excluded.size`,
		f.ID, f.Name, f.Type, f.Content, f.Size, time.Now().UTC().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("add file: %w", err)
	}
	return f.ID, nil
}

// SearchFiles implements core.KnowledgeStore. Every query keyword must
// appear in the file's name or content.
func (s *Store) SearchFiles(ctx context.Context, query string) ([]core.File, error) {
	keywords := strings.Fields(strings.ToLower(query))
	if len(keywords) == 0 {
		return nil, nil
	}

	var (
		conditions []string
		args       []any
	)
	for _, kw := range keywords {
		conditions = append(conditions, "(instr(lower(name), ?) > 0 OR instr(lower(content), ?) > 0)")
		args = append(args, kw, kw)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, type, content, size FROM files WHERE `+strings.Join(conditions, " AND ")+
			` ORDER BY created_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("search files: %w", err)
	}
	defer rows.Close()

	var out []core.File
	for rows.Next() {
		var f core.File
		if err := rows.Scan(&f.ID, &f.Name, &f.Type, &f.Content, &f.Size); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetFiles implements core.KnowledgeStore. Unknown ids are skipped.
func (s *Store) GetFiles(ctx context.Context, ids []string) ([]core.File, error) {
	out := make([]core.File, 0, len(ids))
	for _, id := range ids {
		var f core.File
		err := s.db.QueryRowContext(ctx,
			`SELECT id, name, type, content, size FROM files WHERE id = ?`, id).
			Scan(&f.ID, &f.Name, &f.Type, &f.Content, &f.Size)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get file %s: %w", id, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// DeleteFile implements core.KnowledgeStore.
func (s *Store) DeleteFile(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// SaveChat implements core.ChatStore.
func (s *Store) SaveChat(ctx context.Context, rec core.ChatRecord) error {
	if rec.ID == "" {
		rec.ID = core.NewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats(id, workflow_id, workflow_name, input, output, execution_time_ms, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.WorkflowID, rec.WorkflowName, rec.Input, rec.Output,
		rec.ExecutionTime.Milliseconds(), rec.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save chat: %w", err)
	}
	return nil
}

// ChatsByWorkflow returns the logged executions of one workflow, oldest
// first.
func (s *Store) ChatsByWorkflow(ctx context.Context, workflowID string) ([]core.ChatRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workflow_id, workflow_name, input, output, execution_time_ms, created_at
		 FROM chats WHERE workflow_id = ? ORDER BY created_at`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	var out []core.ChatRecord
	for rows.Next() {
		var (
			rec       core.ChatRecord
			elapsedMS int64
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.WorkflowID, &rec.WorkflowName, &rec.Input, &rec.Output,
			&elapsedMS, &createdAt); err != nil {
			return nil, err
		}
		rec.ExecutionTime = time.Duration(elapsedMS) * time.Millisecond
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PutMemory implements core.PersistentMemoryStore.
func (s *Store) PutMemory(ctx context.Context, id, data string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_cells(id, data, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		id, data, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("put memory: %w", err)
	}
	return nil
}

// GetMemory implements core.PersistentMemoryStore.
func (s *Store) GetMemory(ctx context.Context, id string) (string, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM memory_cells WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get memory: %w", err)
	}
	return data, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
