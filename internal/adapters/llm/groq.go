package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/novalabs/nova-agent/internal/observability"
)

// NotConfiguredSentinel is returned verbatim when no dialog API key is set.
// A missing credential degrades the reply, it never fails the request.
const NotConfiguredSentinel = "[Groq API key not set]"

const (
	dialogMaxTokens   = 256
	dialogTemperature = 0.7
)

// GroqClient implements domain.DialogClient against Groq's OpenAI-compatible
// chat-completions endpoint.
type GroqClient struct {
	client *openai.Client
	model  string
}

// NewGroqClient builds a dialog client. An empty apiKey yields a client that
// answers with NotConfiguredSentinel instead of erroring.
func NewGroqClient(apiKey, baseURL, model string) *GroqClient {
	if model == "" {
		model = "llama3-70b-8192"
	}
	if apiKey == "" {
		return &GroqClient{model: model}
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &GroqClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (g *GroqClient) request(userPrompt string, stream bool) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: novaSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		MaxTokens:   dialogMaxTokens,
		Temperature: dialogTemperature,
		Stream:      stream,
	}
}

// Generate implements domain.DialogClient.
func (g *GroqClient) Generate(ctx context.Context, userPrompt string) (string, error) {
	if g.client == nil {
		return NotConfiguredSentinel, nil
	}

	resp, err := g.client.CreateChatCompletion(ctx, g.request(userPrompt, false))
	if err != nil {
		return "", fmt.Errorf("groq chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("groq returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream implements domain.DialogClient. The returned channel is closed when
// generation ends; a mid-stream provider error is surfaced as a final marked
// fragment rather than truncating silently.
func (g *GroqClient) Stream(ctx context.Context, userPrompt string) (<-chan string, error) {
	out := make(chan string, 16)

	if g.client == nil {
		out <- NotConfiguredSentinel
		close(out)
		return out, nil
	}

	stream, err := g.client.CreateChatCompletionStream(ctx, g.request(userPrompt, true))
	if err != nil {
		return nil, fmt.Errorf("groq chat completion stream: %w", err)
	}

	go func() {
		defer close(out)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				observability.Logger().Error("dialog stream aborted", "error", err)
				select {
				case out <- fmt.Sprintf("[stream error: %v]", err):
				case <-ctx.Done():
				}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case out <- delta:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
