package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/novalabs/nova-agent/internal/domain"
)

// GeminiClient implements domain.MemoryClient: summarization and topic
// clustering over a session transcript.
type GeminiClient struct {
	client    *genai.Client
	modelName string
}

// NewGeminiClient creates a memory provider against the Gemini API.
func NewGeminiClient(ctx context.Context, apiKey, modelName string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash-latest"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		modelName: modelName,
	}, nil
}

func (c *GeminiClient) generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	res, err := c.client.Models.GenerateContent(ctx, c.modelName, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := strings.TrimSpace(res.Text())
	if text == "" {
		return "", fmt.Errorf("gemini returned empty text")
	}
	return text, nil
}

type summaryPayload struct {
	Summary []string `json:"summary"`
	Topics  []string `json:"topics"`
}

// Summarize implements domain.MemoryClient. The model is asked for strict
// JSON; a reply that fails to parse is kept as a single raw bullet with no
// topics rather than discarded.
func (c *GeminiClient) Summarize(ctx context.Context, msgs []*domain.Message) (domain.SummaryResult, error) {
	text, err := c.generate(ctx, buildSummaryPrompt(msgs))
	if err != nil {
		return domain.SummaryResult{}, err
	}

	var payload summaryPayload
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &payload); err != nil {
		return domain.SummaryResult{Bullets: []string{text}}, nil
	}

	result := domain.SummaryResult{Bullets: payload.Summary}
	if len(result.Bullets) == 0 {
		result.Bullets = []string{text}
	}
	for _, t := range payload.Topics {
		result.Topics = append(result.Topics, domain.TopicLabel(t))
	}
	return result, nil
}

// Cluster implements domain.MemoryClient. Returns 0-based index groups; the
// caller validates bounds before dereferencing.
func (c *GeminiClient) Cluster(ctx context.Context, msgs []*domain.Message) ([][]int, error) {
	text, err := c.generate(ctx, buildClusterPrompt(msgs))
	if err != nil {
		return nil, err
	}

	var clusters [][]int
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &clusters); err != nil {
		return nil, fmt.Errorf("parse cluster response: %w", err)
	}
	return clusters, nil
}

// stripCodeFence removes a surrounding markdown fence, which Gemini adds
// around JSON replies more often than not.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
