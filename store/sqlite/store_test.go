package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personaflow/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestWorkflowRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	wf := &core.Workflow{
		Name: "greeting",
		Nodes: []core.Node{
			{ID: "p1", Kind: core.NodePersona, Data: core.NodeData{Persona: &core.Persona{Name: "Luna"}}},
		},
		Edges:   []core.Edge{{ID: "e1", Source: "t1", Target: "p1"}},
		LogChat: true,
	}

	id, err := s.SaveWorkflow(ctx, wf)
	require.NoError(t, err)

	got, err := s.GetWorkflow(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "greeting", got.Name)
	assert.True(t, got.LogChat)
	require.Len(t, got.Nodes, 1)
	require.NotNil(t, got.Nodes[0].Data.Persona)
	assert.Equal(t, "Luna", got.Nodes[0].Data.Persona.Name)
	require.Len(t, got.Edges, 1)

	// Overwrite keeps the id.
	got.Name = "renamed"
	id2, err := s.SaveWorkflow(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	all, err := s.GetAllWorkflows(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "renamed", all[0].Name)

	require.NoError(t, s.DeleteWorkflow(ctx, id))
	_, err = s.GetWorkflow(ctx, id)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTemplatesAreSeparateFromWorkflows(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	wfID, err := s.SaveWorkflow(ctx, &core.Workflow{Name: "wf"})
	require.NoError(t, err)
	_, err = s.SaveTemplate(ctx, &core.Workflow{Name: "tpl", Category: "Support"})
	require.NoError(t, err)

	workflows, err := s.GetAllWorkflows(ctx)
	require.NoError(t, err)
	require.Len(t, workflows, 1)
	assert.Equal(t, "wf", workflows[0].Name)

	templates, err := s.GetAllTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "tpl", templates[0].Name)

	// A template id is invisible to the workflow accessors and vice versa.
	_, err = s.GetWorkflow(ctx, templates[0].ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.DeleteTemplate(ctx, wfID), core.ErrNotFound)
}

func TestTemplateCategoryFilter(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.SaveTemplate(ctx, &core.Workflow{Name: "helpdesk", Category: "Support"})
	require.NoError(t, err)
	_, err = s.SaveTemplate(ctx, &core.Workflow{Name: "poet", Category: "Creative"})
	require.NoError(t, err)

	support, err := s.GetTemplatesByCategory(ctx, "support")
	require.NoError(t, err)
	require.Len(t, support, 1)
	assert.Equal(t, "helpdesk", support[0].Name)
}

func TestFileSearchAndRetrieval(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.AddFile(ctx, core.File{Name: "guide.md", Content: "How to brew coffee at home"})
	require.NoError(t, err)
	_, err = s.AddFile(ctx, core.File{Name: "other.txt", Content: "unrelated"})
	require.NoError(t, err)

	hits, err := s.SearchFiles(ctx, "brew coffee")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "guide.md", hits[0].Name)

	files, err := s.GetFiles(ctx, []string{id, "missing"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, int64(len("How to brew coffee at home")), files[0].Size)

	require.NoError(t, s.DeleteFile(ctx, id))
	assert.ErrorIs(t, s.DeleteFile(ctx, id), core.ErrNotFound)
}

func TestChatLogRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.SaveChat(ctx, core.ChatRecord{
		WorkflowID:    "wf1",
		WorkflowName:  "greeting",
		Input:         "hi",
		Output:        "hello",
		ExecutionTime: 1500 * time.Millisecond,
	}))

	chats, err := s.ChatsByWorkflow(ctx, "wf1")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "hello", chats[0].Output)
	assert.Equal(t, 1500*time.Millisecond, chats[0].ExecutionTime)
}

func TestPersistentMemoryUpsert(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.GetMemory(ctx, "cell1")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.PutMemory(ctx, "cell1", "v1"))
	require.NoError(t, s.PutMemory(ctx, "cell1", "v2"))

	data, err := s.GetMemory(ctx, "cell1")
	require.NoError(t, err)
	assert.Equal(t, "v2", data)
}
