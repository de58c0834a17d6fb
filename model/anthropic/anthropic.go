// Package anthropic provides a model.Provider wrapper for the Anthropic
// Claude API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"personaflow/model"
)

// Options configures the Anthropic provider adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Provider wraps the Anthropic Messages API behind the generic
// model.Provider interface.
type Provider struct {
	client *anthropic.Client
	opts   Options
}

// New creates a new Anthropic provider using the official client.
func New(optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Provider{client: &client, opts: opts}
}

// NewFromClient creates a new Anthropic provider from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

// buildParams assembles the Messages API request from a normalized request.
// Tool results are replayed as an assistant tool_use message followed by a
// user tool_result message, per the Messages API protocol.
func (p *Provider) buildParams(req model.Request) anthropic.MessageNewParams {
	var messages []anthropic.MessageParam
	for _, turn := range req.History {
		switch turn.Role {
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Input)))
	if len(req.ToolResults) > 0 {
		var uses []anthropic.ContentBlockParamUnion
		var results []anthropic.ContentBlockParamUnion
		for _, tr := range req.ToolResults {
			var input any
			if tr.Call.Arguments != "" {
				if err := json.Unmarshal([]byte(tr.Call.Arguments), &input); err != nil {
					input = tr.Call.Arguments
				}
			}
			uses = append(uses, anthropic.NewToolUseBlock(tr.Call.ID, input, tr.Call.Name))
			results = append(results, anthropic.NewToolResultBlock(tr.Call.ID, tr.Output, false))
		}
		messages = append(messages, anthropic.NewAssistantMessage(uses...))
		messages = append(messages, anthropic.NewUserMessage(results...))
	}

	temperature := p.opts.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	maxTokens := p.opts.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       p.opts.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}
	return params
}

// buildTools converts normalized tool definitions to Anthropic tool format.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if tool.Parameters != nil {
			if properties, exists := tool.Parameters["properties"]; exists {
				inputSchema.Properties = properties
			}
			if required, exists := tool.Parameters["required"]; exists {
				switch req := required.(type) {
				case []string:
					inputSchema.Required = req
				case []any:
					var reqStrings []string
					for _, r := range req {
						if s, ok := r.(string); ok {
							reqStrings = append(reqStrings, s)
						}
					}
					inputSchema.Required = reqStrings
				}
			}
		}
		anthropicTools[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Name)
	}
	return anthropicTools
}

// Complete implements model.Provider with a single-shot completion.
func (p *Provider) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	resp, err := p.client.Messages.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	out := &model.Response{
		FinishReason: "stop",
		Usage: &model.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
	if resp.StopReason != "" {
		out.FinishReason = string(resp.StopReason)
	}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Content += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()
			args := ""
			if toolBlock.Input != nil {
				if argsBytes, err := json.Marshal(toolBlock.Input); err == nil {
					args = string(argsBytes)
				}
			}
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				ID:        toolBlock.ID,
				Name:      toolBlock.Name,
				Arguments: args,
			})
		}
	}
	return out, nil
}

// Stream implements model.Provider, emitting incremental text chunks via the
// Messages streaming API.
func (p *Provider) Stream(ctx context.Context, req model.Request) (<-chan model.Chunk, <-chan error) {
	out := make(chan model.Chunk, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		stream := p.client.Messages.NewStreaming(ctx, p.buildParams(req))
		for stream.Next() {
			ev := stream.Current()
			switch ev.Type {
			case "content_block_delta":
				delta := ev.AsContentBlockDelta()
				if delta.Delta.Text != "" {
					select {
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					case out <- model.Chunk{Content: delta.Delta.Text}:
					}
				}
			case "message_stop":
				out <- model.Chunk{Done: true}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("anthropic streaming error: %w", err)
		}
	}()
	return out, errCh
}

// Info returns metadata describing this Anthropic provider implementation.
func (p *Provider) Info() model.Info {
	return model.Info{
		Name:          string(p.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
