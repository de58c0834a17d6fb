package core

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// File is a knowledge corpus entry.
type File struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Content string `json:"content"`
	Size    int64  `json:"size,omitempty"`
}

// KnowledgeStore provides search and retrieval over uploaded knowledge files.
type KnowledgeStore interface {
	SearchFiles(ctx context.Context, query string) ([]File, error)
	GetFiles(ctx context.Context, ids []string) ([]File, error)
	AddFile(ctx context.Context, f File) (string, error)
	DeleteFile(ctx context.Context, id string) error
}

// WorkflowStore persists workflow documents.
type WorkflowStore interface {
	SaveWorkflow(ctx context.Context, wf *Workflow) (string, error)
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)
	GetAllWorkflows(ctx context.Context) ([]*Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error
}

// TemplateStore persists reusable workflow templates with category filtering.
type TemplateStore interface {
	SaveTemplate(ctx context.Context, tpl *Workflow) (string, error)
	GetAllTemplates(ctx context.Context) ([]*Workflow, error)
	GetTemplatesByCategory(ctx context.Context, category string) ([]*Workflow, error)
	DeleteTemplate(ctx context.Context, id string) error
}

// ChatRecord is the summary a completed execution logs when the workflow
// declares chat-logging integration.
type ChatRecord struct {
	ID            string        `json:"id"`
	WorkflowID    string        `json:"workflowId"`
	WorkflowName  string        `json:"workflowName"`
	Input         string        `json:"input"`
	Output        string        `json:"output"`
	ExecutionTime time.Duration `json:"executionTime"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// ChatStore receives execution summaries. Failures are best-effort: logged
// and swallowed, never surfaced to the primary workflow result.
type ChatStore interface {
	SaveChat(ctx context.Context, rec ChatRecord) error
}

// PersistentMemoryStore receives durable copies of persistent memory cells,
// keyed by the cell id. Forwarding is fire-and-forget from the engine's
// perspective.
type PersistentMemoryStore interface {
	PutMemory(ctx context.Context, id string, data string) error
	GetMemory(ctx context.Context, id string) (string, error)
}

// ImageGenerator is the opaque image generation capability consumed by the
// image tool.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt, model string) (string, error)
}
