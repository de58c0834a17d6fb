package tool

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personaflow/core"
)

func TestInvokeConvertsErrorsToStrings(t *testing.T) {
	tl := New("failing", "always fails", func(ctx context.Context, input string) (string, error) {
		return "", errors.New("boom")
	})

	result := tl.Invoke(context.Background(), "anything")
	assert.True(t, strings.HasPrefix(result, "Error"))
	assert.Contains(t, result, "boom")
}

func TestInvokeRecoversPanic(t *testing.T) {
	tl := New("panicking", "always panics", func(ctx context.Context, input string) (string, error) {
		panic("unexpected")
	})

	result := tl.Invoke(context.Background(), "anything")
	assert.True(t, strings.HasPrefix(result, "Error"))
	assert.Contains(t, result, "unexpected")
}

func TestDefinitionShape(t *testing.T) {
	tl := New("echo", "Echo the input", func(ctx context.Context, input string) (string, error) {
		return input, nil
	})

	def := tl.Definition()
	assert.Equal(t, "echo", def.Name)
	assert.Equal(t, "Echo the input", def.Description)

	props, ok := def.Parameters["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "input")
}

func TestDiceTool(t *testing.T) {
	f := NewFactory()
	dice := f.FromSpec(&core.ToolSpec{Type: core.ToolDice})
	ctx := context.Background()

	t.Run("valid input", func(t *testing.T) {
		result := dice.Invoke(ctx, "6,3")
		// "Rolled 3d6: [a, b, c] = total"
		assert.True(t, strings.HasPrefix(result, "Rolled 3d6: ["), result)

		open := strings.Index(result, "[")
		closing := strings.Index(result, "]")
		require.Greater(t, closing, open)
		parts := strings.Split(result[open+1:closing], ",")
		require.Len(t, parts, 3)

		sum := 0
		for _, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, n, 1)
			assert.LessOrEqual(t, n, 6)
			sum += n
		}

		var total int
		_, err := fmt.Sscanf(result[closing:], "] = %d", &total)
		require.NoError(t, err)
		assert.Equal(t, sum, total)
	})

	t.Run("defaults to one d20", func(t *testing.T) {
		result := dice.Invoke(ctx, "")
		assert.True(t, strings.HasPrefix(result, "Rolled 1d20: ["), result)
	})

	t.Run("zero sides", func(t *testing.T) {
		result := dice.Invoke(ctx, "0,1")
		assert.True(t, strings.HasPrefix(result, "Error"), result)
	})

	t.Run("malformed input", func(t *testing.T) {
		result := dice.Invoke(ctx, "abc")
		assert.True(t, strings.HasPrefix(result, "Error"), result)
	})
}

func TestSearchToolWithoutStore(t *testing.T) {
	f := NewFactory()
	search := f.FromSpec(&core.ToolSpec{Type: core.ToolSearch})

	result := search.Invoke(context.Background(), "anything")
	assert.Contains(t, result, "No results found")
}

func TestSearchToolFindsFiles(t *testing.T) {
	knowledge := &stubKnowledge{files: []core.File{
		{ID: "f1", Name: "brewing.md", Type: "text/markdown", Content: "Grind the beans coarsely before brewing."},
	}}
	f := NewFactory(func(o *FactoryOptions) {
		o.Knowledge = knowledge
	})
	search := f.FromSpec(&core.ToolSpec{Type: core.ToolSearch})

	result := search.Invoke(context.Background(), "brewing")
	assert.Contains(t, result, "brewing.md")
	assert.Contains(t, result, "beans")
}

func TestSearchSnippetKeepsRuneBoundaries(t *testing.T) {
	// The match sits deep enough in multi-byte text that both window edges
	// would land on continuation bytes if cut at raw byte offsets.
	content := strings.Repeat("世", 100) + "needle" + strings.Repeat("世", 100)

	matchType, snippet := excerpt(content, "needle")
	assert.Equal(t, "exact", matchType)
	assert.True(t, utf8.ValidString(snippet))
	assert.Contains(t, snippet, "needle")
	assert.True(t, strings.HasPrefix(snippet, "..."))
	assert.True(t, strings.HasSuffix(snippet, "..."))
}

func TestReadFileTool(t *testing.T) {
	knowledge := &stubKnowledge{files: []core.File{
		{ID: "f1", Name: "notes.txt", Type: "text/plain", Content: "hello"},
	}}
	f := NewFactory(func(o *FactoryOptions) {
		o.Knowledge = knowledge
	})
	read := f.FromSpec(&core.ToolSpec{Type: core.ToolFiles})
	ctx := context.Background()

	assert.Contains(t, read.Invoke(ctx, "f1"), "notes.txt")
	assert.Contains(t, read.Invoke(ctx, "missing"), "No file found with ID: missing")
}

func TestImageToolPlaceholder(t *testing.T) {
	f := NewFactory()
	img := f.FromSpec(&core.ToolSpec{Type: core.ToolImage})

	result := img.Invoke(context.Background(), "a cat in space")
	assert.Contains(t, result, "a cat in space")
}

func TestCustomTool(t *testing.T) {
	f := NewFactory()
	custom := f.FromSpec(&core.ToolSpec{Type: core.ToolCustom, Name: "my_tool"})

	result := custom.Invoke(context.Background(), "payload")
	assert.Contains(t, result, "Custom tool response")
	assert.Contains(t, result, "payload")
}

func TestFactoryDefaultNames(t *testing.T) {
	f := NewFactory()

	tests := []struct {
		typ  core.ToolType
		name string
	}{
		{core.ToolSearch, "search"},
		{core.ToolFiles, "read_file"},
		{core.ToolImage, "generate_image"},
		{core.ToolDice, "roll_dice"},
		{core.ToolWeather, "weather"},
		{core.ToolDatabase, "database"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, f.FromSpec(&core.ToolSpec{Type: tt.typ}).Name())
	}
}

type stubKnowledge struct {
	files []core.File
}

func (s *stubKnowledge) SearchFiles(_ context.Context, query string) ([]core.File, error) {
	var out []core.File
	for _, f := range s.files {
		if strings.Contains(strings.ToLower(f.Name+" "+f.Content), strings.ToLower(query)) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *stubKnowledge) GetFiles(_ context.Context, ids []string) ([]core.File, error) {
	var out []core.File
	for _, id := range ids {
		for _, f := range s.files {
			if f.ID == id {
				out = append(out, f)
			}
		}
	}
	return out, nil
}

func (s *stubKnowledge) AddFile(_ context.Context, f core.File) (string, error) {
	s.files = append(s.files, f)
	return f.ID, nil
}

func (s *stubKnowledge) DeleteFile(_ context.Context, id string) error {
	return nil
}
