package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"personaflow/core"
)

// InMemoryWorkflowStore keeps workflow documents in a mutex-guarded map.
type InMemoryWorkflowStore struct {
	mu        sync.RWMutex
	workflows map[string]*core.Workflow
}

// NewInMemoryWorkflowStore creates an empty workflow store.
func NewInMemoryWorkflowStore() *InMemoryWorkflowStore {
	return &InMemoryWorkflowStore{workflows: make(map[string]*core.Workflow)}
}

// SaveWorkflow implements core.WorkflowStore. A workflow without an id is
// assigned one; saving an existing id overwrites.
func (s *InMemoryWorkflowStore) SaveWorkflow(_ context.Context, wf *core.Workflow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if wf.ID == "" {
		wf.ID = core.NewID()
		wf.CreatedAt = time.Now().UTC()
	}
	wf.UpdatedAt = time.Now().UTC()
	s.workflows[wf.ID] = wf
	return wf.ID, nil
}

// GetWorkflow implements core.WorkflowStore.
func (s *InMemoryWorkflowStore) GetWorkflow(_ context.Context, id string) (*core.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return wf, nil
}

// GetAllWorkflows implements core.WorkflowStore; results are ordered by
// creation time, newest first.
func (s *InMemoryWorkflowStore) GetAllWorkflows(_ context.Context) ([]*core.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Workflow, 0, len(s.workflows))
	for _, wf := range s.workflows {
		out = append(out, wf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeleteWorkflow implements core.WorkflowStore.
func (s *InMemoryWorkflowStore) DeleteWorkflow(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.workflows, id)
	return nil
}

// InMemoryTemplateStore keeps workflow templates with category filtering.
type InMemoryTemplateStore struct {
	mu        sync.RWMutex
	templates map[string]*core.Workflow
}

// NewInMemoryTemplateStore creates an empty template store.
func NewInMemoryTemplateStore() *InMemoryTemplateStore {
	return &InMemoryTemplateStore{templates: make(map[string]*core.Workflow)}
}

// SaveTemplate implements core.TemplateStore.
func (s *InMemoryTemplateStore) SaveTemplate(_ context.Context, tpl *core.Workflow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tpl.ID == "" {
		tpl.ID = core.NewID()
		tpl.CreatedAt = time.Now().UTC()
	}
	tpl.UpdatedAt = time.Now().UTC()
	s.templates[tpl.ID] = tpl
	return tpl.ID, nil
}

// GetAllTemplates implements core.TemplateStore.
func (s *InMemoryTemplateStore) GetAllTemplates(_ context.Context) ([]*core.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Workflow, 0, len(s.templates))
	for _, tpl := range s.templates {
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// GetTemplatesByCategory implements core.TemplateStore. Matching is
// case-insensitive; an empty category returns all templates.
func (s *InMemoryTemplateStore) GetTemplatesByCategory(ctx context.Context, category string) ([]*core.Workflow, error) {
	all, err := s.GetAllTemplates(ctx)
	if err != nil {
		return nil, err
	}
	if category == "" {
		return all, nil
	}
	out := make([]*core.Workflow, 0, len(all))
	for _, tpl := range all {
		if strings.EqualFold(tpl.Category, category) {
			out = append(out, tpl)
		}
	}
	return out, nil
}

// DeleteTemplate implements core.TemplateStore.
func (s *InMemoryTemplateStore) DeleteTemplate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.templates, id)
	return nil
}

// InMemoryKnowledgeStore keeps knowledge files and serves naive keyword
// search over their names and contents.
type InMemoryKnowledgeStore struct {
	mu    sync.RWMutex
	files map[string]core.File
	order []string
}

// NewInMemoryKnowledgeStore creates an empty knowledge store.
func NewInMemoryKnowledgeStore() *InMemoryKnowledgeStore {
	return &InMemoryKnowledgeStore{files: make(map[string]core.File)}
}

// AddFile implements core.KnowledgeStore.
func (s *InMemoryKnowledgeStore) AddFile(_ context.Context, f core.File) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == "" {
		f.ID = core.NewID()
	}
	if f.Size == 0 {
		f.Size = int64(len(f.Content))
	}
	if _, ok := s.files[f.ID]; !ok {
		s.order = append(s.order, f.ID)
	}
	s.files[f.ID] = f
	return f.ID, nil
}

// SearchFiles implements core.KnowledgeStore. Every query keyword must
// appear in the file's name or content (case-insensitive).
func (s *InMemoryKnowledgeStore) SearchFiles(_ context.Context, query string) ([]core.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keywords := strings.Fields(strings.ToLower(query))
	var out []core.File
	for _, id := range s.order {
		f := s.files[id]
		haystack := strings.ToLower(f.Name + " " + f.Content)
		matched := true
		for _, kw := range keywords {
			if !strings.Contains(haystack, kw) {
				matched = false
				break
			}
		}
		if matched && len(keywords) > 0 {
			out = append(out, f)
		}
	}
	return out, nil
}

// GetFiles implements core.KnowledgeStore. Unknown ids are skipped.
func (s *InMemoryKnowledgeStore) GetFiles(_ context.Context, ids []string) ([]core.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.File, 0, len(ids))
	for _, id := range ids {
		if f, ok := s.files[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// DeleteFile implements core.KnowledgeStore.
func (s *InMemoryKnowledgeStore) DeleteFile(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.files, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// InMemoryChatStore collects execution summaries.
type InMemoryChatStore struct {
	mu    sync.RWMutex
	chats []core.ChatRecord
}

// NewInMemoryChatStore creates an empty chat store.
func NewInMemoryChatStore() *InMemoryChatStore {
	return &InMemoryChatStore{}
}

// SaveChat implements core.ChatStore.
func (s *InMemoryChatStore) SaveChat(_ context.Context, rec core.ChatRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = core.NewID()
	}
	s.chats = append(s.chats, rec)
	return nil
}

// Chats returns all saved records, oldest first.
func (s *InMemoryChatStore) Chats() []core.ChatRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.ChatRecord, len(s.chats))
	copy(out, s.chats)
	return out
}

// InMemoryPersistentMemory stores durable memory cell data by cell id.
type InMemoryPersistentMemory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewInMemoryPersistentMemory creates an empty persistent memory backend.
func NewInMemoryPersistentMemory() *InMemoryPersistentMemory {
	return &InMemoryPersistentMemory{data: make(map[string]string)}
}

// PutMemory implements core.PersistentMemoryStore.
func (s *InMemoryPersistentMemory) PutMemory(_ context.Context, id, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = data
	return nil
}

// GetMemory implements core.PersistentMemoryStore.
func (s *InMemoryPersistentMemory) GetMemory(_ context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[id]
	if !ok {
		return "", core.ErrNotFound
	}
	return data, nil
}
