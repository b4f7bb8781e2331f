// Package openai provides an llm.Provider over the OpenAI Chat Completions
// API (including streaming). It adapts the normalized Request/Response
// structures into the SDK's message format and back.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/hupe1980/taskmesh/llm"
)

// Options configure the OpenAI provider adapter.
type Options struct {
	APIKey string
}

// Provider wraps the OpenAI Chat Completions API behind the llm.Provider
// interface. The concrete model is chosen per call by the fallback manager.
type Provider struct {
	client *openai.Client
}

// New creates a new OpenAI provider using the official client.
func New(optFns ...func(o *Options)) *Provider {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	client := openai.NewClient()
	return &Provider{client: &client}
}

// NewFromClient creates a new OpenAI provider from an existing client.
func NewFromClient(client *openai.Client) *Provider {
	return &Provider{client: client}
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return "openai" }

func buildParams(model string, req llm.Request) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(msg.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    model,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

// Complete implements llm.Provider for non-streaming completions.
func (p *Provider) Complete(ctx context.Context, model string, req llm.Request) (*llm.Response, error) {
	resp, err := p.client.Chat.Completions.New(ctx, buildParams(model, req))
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}
	return &llm.Response{
		Content: resp.Choices[0].Message.Content,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// Stream implements llm.Provider; emits content deltas then a final Done chunk.
func (p *Provider) Stream(ctx context.Context, model string, req llm.Request) (<-chan llm.Chunk, <-chan error) {
	out := make(chan llm.Chunk, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)

		stream := p.client.Chat.Completions.NewStreaming(ctx, buildParams(model, req))
		for stream.Next() {
			ck := stream.Current()
			for _, ch := range ck.Choices {
				if ch.Delta.Content == "" {
					continue
				}
				select {
				case out <- llm.Chunk{Content: ch.Delta.Content}:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("openai streaming error: %w", err)
			return
		}
		out <- llm.Chunk{Done: true}
	}()
	return out, errCh
}
