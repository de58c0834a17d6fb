// Package openai provides an implementation of model.Provider using the
// OpenAI Chat Completions API (including streaming and function/tool calling).
// It adapts personaflow's normalized Request/Response structures into the
// SDK's message format and back.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"personaflow/model"
)

// Options configure the OpenAI provider adapter. Fields mirror a subset of
// Chat Completion parameters intentionally kept minimal; extend via
// functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Provider wraps the OpenAI Chat Completions API behind the generic
// model.Provider interface.
type Provider struct {
	client *openai.Client
	opts   Options
}

// New creates a new OpenAI provider using the official client.
func New(optFns ...func(o *Options)) *Provider {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a new OpenAI provider from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

// buildMessages converts a normalized request into OpenAI chat messages.
// Tool results are replayed as an assistant tool-call message followed by
// the matching tool messages, which is the shape the API expects.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, turn := range req.History {
		switch turn.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}
	messages = append(messages, openai.UserMessage(req.Input))
	if len(req.ToolResults) > 0 {
		toolCalls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(req.ToolResults))
		for _, tr := range req.ToolResults {
			toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
				ID:   tr.Call.ID,
				Type: "function",
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      tr.Call.Name,
					Arguments: tr.Call.Arguments,
				},
			})
		}
		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfAssistant: &openai.ChatCompletionAssistantMessageParam{
				Role:      "assistant",
				ToolCalls: toolCalls,
			},
		})
		for _, tr := range req.ToolResults {
			messages = append(messages, openai.ToolMessage(tr.Output, tr.Call.ID))
		}
	}
	return messages
}

// buildParams assembles the OpenAI request parameters including tool definitions.
func (p *Provider) buildParams(req model.Request) openai.ChatCompletionNewParams {
	temperature := p.opts.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	maxTokens := p.opts.MaxCompletionTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req),
		Model:               p.opts.Model,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	}
	if len(req.Tools) == 0 {
		return params
	}
	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, tdef := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tdef.Name,
				Description: openai.String(tdef.Description),
				Parameters:  tdef.Parameters,
			},
		}
	}
	params.Tools = tools
	return params
}

// Complete implements model.Provider with a single-shot completion.
func (p *Provider) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	resp, err := p.client.Chat.Completions.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}
	ch0 := resp.Choices[0]
	out := &model.Response{
		Content:      ch0.Message.Content,
		FinishReason: ch0.FinishReason,
		Usage: &model.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	for _, tc := range ch0.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, model.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

// Stream implements model.Provider, emitting incremental text chunks.
func (p *Provider) Stream(ctx context.Context, req model.Request) (<-chan model.Chunk, <-chan error) {
	out := make(chan model.Chunk, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		stream := p.client.Chat.Completions.NewStreaming(ctx, p.buildParams(req))
		for stream.Next() {
			ck := stream.Current()
			for _, ch := range ck.Choices {
				if ch.Delta.Content != "" {
					select {
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					case out <- model.Chunk{Content: ch.Delta.Content}:
					}
				}
				if ch.FinishReason != "" {
					out <- model.Chunk{Done: true}
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("openai streaming error: %w", err)
		}
	}()
	return out, errCh
}

// Info returns metadata describing this OpenAI provider implementation.
func (p *Provider) Info() model.Info {
	return model.Info{
		Name:          p.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}
