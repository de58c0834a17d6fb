package tool

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"unicode/utf8"

	"personaflow/core"
	"personaflow/logging"
)

const (
	// defaultSearchResults bounds how many search hits a search tool formats.
	defaultSearchResults = 3
	// snippetRadius is the number of characters kept on either side of the
	// first query occurrence when formatting a search snippet (~400 total).
	snippetRadius = 200
)

// FactoryOptions configures a Factory instance.
type FactoryOptions struct {
	Knowledge core.KnowledgeStore
	Images    core.ImageGenerator
	Logger    logging.Logger
}

// Factory builds Tools from tool node specifications. A Factory is a pure
// function of node configuration plus the external capabilities it was
// constructed with; it holds no per-execution state.
type Factory struct {
	knowledge core.KnowledgeStore
	images    core.ImageGenerator
	logger    logging.Logger
}

// NewFactory creates a tool factory. Capabilities left nil degrade the
// corresponding tools to descriptive unavailability messages rather than
// failing construction.
func NewFactory(optFns ...func(o *FactoryOptions)) *Factory {
	opts := FactoryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Factory{knowledge: opts.Knowledge, images: opts.Images, logger: opts.Logger}
}

// FromSpec builds a Tool for a tool node's declared type. Unknown types fall
// through to the custom echo behavior, the extension point for arbitrary
// tooling.
func (f *Factory) FromSpec(spec *core.ToolSpec) *Tool {
	name := spec.Name
	description := spec.Description
	switch spec.Type {
	case core.ToolSearch:
		if name == "" {
			name = "search"
		}
		if description == "" {
			description = "Search for information in documents"
		}
		maxResults := configInt(spec.Config, "maxResults", defaultSearchResults)
		return New(name, description, f.searchFunc(maxResults))
	case core.ToolFiles:
		if name == "" {
			name = "read_file"
		}
		if description == "" {
			description = "Read content from files"
		}
		return New(name, description, f.readFileFunc())
	case core.ToolImage:
		if name == "" {
			name = "generate_image"
		}
		if description == "" {
			description = "Generate an image from text description"
		}
		imageModel := configString(spec.Config, "model", "stable-diffusion")
		return New(name, description, f.imageFunc(imageModel))
	case core.ToolDice:
		if name == "" {
			name = "roll_dice"
		}
		if description == "" {
			description = "Roll dice with specified number of sides. Input format: sides,count"
		}
		return New(name, description, diceFunc(
			configInt(spec.Config, "sides", 20),
			configInt(spec.Config, "count", 1),
		))
	case core.ToolWeather:
		if name == "" {
			name = "weather"
		}
		if description == "" {
			description = "Look up current weather for a location"
		}
		return New(name, description, weatherFunc())
	case core.ToolDatabase:
		if name == "" {
			name = "database"
		}
		if description == "" {
			description = "Run a query against the project database"
		}
		return New(name, description, databaseFunc())
	default:
		if name == "" {
			name = "generic_tool"
		}
		if description == "" {
			description = "A generic tool"
		}
		return New(name, description, customFunc(name))
	}
}

// searchFunc queries the knowledge corpus and formats up to maxResults hits
// as `[filename - matchType]: "snippet"`. Zero hits return a user-facing
// suggestion instead of an error.
func (f *Factory) searchFunc(maxResults int) Func {
	return func(ctx context.Context, query string) (string, error) {
		if f.knowledge == nil {
			return "Error: no knowledge store is configured for search", nil
		}
		query = strings.TrimSpace(query)
		if query == "" {
			return "Please provide a search query.", nil
		}
		files, err := f.knowledge.SearchFiles(ctx, query)
		if err != nil {
			return "", fmt.Errorf("search failed: %w", err)
		}
		if len(files) == 0 {
			return fmt.Sprintf("No results found for %q. Try a broader query or different keywords.", query), nil
		}
		if len(files) > maxResults {
			files = files[:maxResults]
		}
		var b strings.Builder
		for i, file := range files {
			matchType, snippet := excerpt(file.Content, query)
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "[%s - %s]: %q", file.Name, matchType, snippet)
		}
		return b.String(), nil
	}
}

// excerpt centers a bounded snippet on the first occurrence of the query or,
// failing that, the first matching keyword (fuzzy match).
func excerpt(content, query string) (matchType, snippet string) {
	lower := strings.ToLower(content)
	idx := strings.Index(lower, strings.ToLower(query))
	matchType = "exact"
	if idx < 0 {
		matchType = "fuzzy"
		for _, kw := range strings.Fields(strings.ToLower(query)) {
			if i := strings.Index(lower, kw); i >= 0 {
				idx = i
				break
			}
		}
		if idx < 0 {
			idx = 0
		}
	}
	start := idx - snippetRadius
	if start < 0 {
		start = 0
	}
	for start > 0 && !utf8.RuneStart(content[start]) {
		start--
	}
	end := idx + snippetRadius
	if end > len(content) {
		end = len(content)
	}
	for end < len(content) && !utf8.RuneStart(content[end]) {
		end++
	}
	snippet = content[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet += "..."
	}
	return matchType, snippet
}

// readFileFunc reads one knowledge file by id. Missing files and odd content
// degrade to descriptive messages, never errors.
func (f *Factory) readFileFunc() Func {
	return func(ctx context.Context, fileID string) (string, error) {
		if f.knowledge == nil {
			return "Error: no knowledge store is configured for file access", nil
		}
		fileID = strings.TrimSpace(fileID)
		files, err := f.knowledge.GetFiles(ctx, []string{fileID})
		if err != nil {
			return "", fmt.Errorf("file lookup failed: %w", err)
		}
		if len(files) == 0 {
			return fmt.Sprintf("No file found with ID: %s", fileID), nil
		}
		file := files[0]
		return fmt.Sprintf("File: %s (%s)\n%s", file.Name, file.Type, file.Content), nil
	}
}

// imageFunc delegates to the image generation capability; the engine returns
// whatever placeholder description the collaborator produces.
func (f *Factory) imageFunc(imageModel string) Func {
	return func(ctx context.Context, prompt string) (string, error) {
		if f.images == nil {
			return fmt.Sprintf("Generated image placeholder [%s]: %s", imageModel, prompt), nil
		}
		out, err := f.images.GenerateImage(ctx, prompt, imageModel)
		if err != nil {
			return "", fmt.Errorf("image generation failed: %w", err)
		}
		return out, nil
	}
}

// diceFunc parses "sides,count", rolls count independent uniform integers in
// [1, sides] and reports notation, rolls and sum. Invalid input produces a
// descriptive error string.
func diceFunc(defaultSides, defaultCount int) Func {
	return func(_ context.Context, input string) (string, error) {
		sides, count := defaultSides, defaultCount
		parts := strings.Split(input, ",")
		if s := strings.TrimSpace(parts[0]); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Sprintf("Error: invalid dice sides %q, expected a number", s), nil
			}
			sides = n
		}
		if len(parts) > 1 {
			c := strings.TrimSpace(parts[1])
			n, err := strconv.Atoi(c)
			if err != nil {
				return fmt.Sprintf("Error: invalid dice count %q, expected a number", c), nil
			}
			count = n
		}
		if sides < 1 {
			return fmt.Sprintf("Error: dice must have at least 1 side, got %d", sides), nil
		}
		if count < 1 {
			return fmt.Sprintf("Error: must roll at least 1 die, got %d", count), nil
		}
		rolls := make([]string, count)
		total := 0
		for i := 0; i < count; i++ {
			r := rand.Intn(sides) + 1
			total += r
			rolls[i] = strconv.Itoa(r)
		}
		return fmt.Sprintf("Rolled %dd%d: [%s] = %d", count, sides, strings.Join(rolls, ", "), total), nil
	}
}

// weatherFunc is a demonstrative stub returning synthesized but plausible
// data; kept for completeness of the tool taxonomy.
func weatherFunc() Func {
	conditions := []string{"clear", "partly cloudy", "overcast", "light rain", "windy"}
	return func(_ context.Context, location string) (string, error) {
		location = strings.TrimSpace(location)
		if location == "" {
			location = "your location"
		}
		cond := conditions[rand.Intn(len(conditions))]
		temp := 8 + rand.Intn(20)
		return fmt.Sprintf("Weather for %s: %s, %d°C, humidity %d%%", location, cond, temp, 40+rand.Intn(45)), nil
	}
}

// databaseFunc is a demonstrative stub echoing a synthesized result set.
func databaseFunc() Func {
	return func(_ context.Context, query string) (string, error) {
		query = strings.TrimSpace(query)
		if query == "" {
			return "Error: empty database query", nil
		}
		return fmt.Sprintf("Query executed: %s\nRows returned: %d", query, 1+rand.Intn(10)), nil
	}
}

// customFunc echoes input with the configured tool name; the extension point
// for arbitrary behavior.
func customFunc(name string) Func {
	return func(_ context.Context, input string) (string, error) {
		return fmt.Sprintf("Custom tool response from %s: %s", name, input), nil
	}
}

func configInt(config map[string]any, key string, def int) int {
	if config == nil {
		return def
	}
	switch v := config[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func configString(config map[string]any, key, def string) string {
	if config == nil {
		return def
	}
	if s, ok := config[key].(string); ok && s != "" {
		return s
	}
	return def
}
