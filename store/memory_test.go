package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personaflow/core"
)

func TestInMemoryWorkflowStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryWorkflowStore()

	id, err := s.SaveWorkflow(ctx, &core.Workflow{Name: "wf"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	wf, err := s.GetWorkflow(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "wf", wf.Name)
	assert.False(t, wf.CreatedAt.IsZero())

	all, err := s.GetAllWorkflows(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeleteWorkflow(ctx, id))
	_, err = s.GetWorkflow(ctx, id)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.DeleteWorkflow(ctx, id), core.ErrNotFound)
}

func TestInMemoryTemplateStore_CategoryFilter(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryTemplateStore()

	_, err := s.SaveTemplate(ctx, &core.Workflow{Name: "support bot", Category: "Support"})
	require.NoError(t, err)
	_, err = s.SaveTemplate(ctx, &core.Workflow{Name: "writer", Category: "Creative"})
	require.NoError(t, err)

	support, err := s.GetTemplatesByCategory(ctx, "support")
	require.NoError(t, err)
	require.Len(t, support, 1)
	assert.Equal(t, "support bot", support[0].Name)

	all, err := s.GetTemplatesByCategory(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestInMemoryKnowledgeStore_Search(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryKnowledgeStore()

	_, err := s.AddFile(ctx, core.File{Name: "go-notes.md", Content: "goroutines and channels"})
	require.NoError(t, err)
	id2, err := s.AddFile(ctx, core.File{Name: "recipes.txt", Content: "pancake batter"})
	require.NoError(t, err)

	hits, err := s.SearchFiles(ctx, "goroutines channels")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "go-notes.md", hits[0].Name)

	hits, err = s.SearchFiles(ctx, "nonexistent")
	require.NoError(t, err)
	assert.Empty(t, hits)

	files, err := s.GetFiles(ctx, []string{id2, "missing"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "recipes.txt", files[0].Name)
	assert.Equal(t, int64(len("pancake batter")), files[0].Size)

	require.NoError(t, s.DeleteFile(ctx, id2))
	assert.ErrorIs(t, s.DeleteFile(ctx, id2), core.ErrNotFound)
}

func TestInMemoryChatStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryChatStore()

	require.NoError(t, s.SaveChat(ctx, core.ChatRecord{WorkflowID: "wf1", Input: "hi", Output: "hello"}))

	chats := s.Chats()
	require.Len(t, chats, 1)
	assert.NotEmpty(t, chats[0].ID)
	assert.Equal(t, "wf1", chats[0].WorkflowID)
}

func TestInMemoryPersistentMemory(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryPersistentMemory()

	_, err := s.GetMemory(ctx, "cell1")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.PutMemory(ctx, "cell1", "remembered"))
	data, err := s.GetMemory(ctx, "cell1")
	require.NoError(t, err)
	assert.Equal(t, "remembered", data)
}
