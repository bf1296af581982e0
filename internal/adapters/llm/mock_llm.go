package llm

import (
	"context"
	"fmt"

	"github.com/novalabs/nova-agent/internal/domain"
)

// MockDialog is a canned domain.DialogClient for local mode and tests.
type MockDialog struct {
	// Reply overrides the default echo reply when set.
	Reply string
	// Err, when set, is returned by Generate and Stream.
	Err error
	// Chunks, when set, is streamed instead of the single reply.
	Chunks []string
}

func NewMockDialog() *MockDialog {
	return &MockDialog{}
}

func (m *MockDialog) reply(prompt string) string {
	if m.Reply != "" {
		return m.Reply
	}
	return fmt.Sprintf("I hear you. You said %q — tell me more about that.", prompt)
}

func (m *MockDialog) Generate(ctx context.Context, userPrompt string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.reply(userPrompt), nil
}

func (m *MockDialog) Stream(ctx context.Context, userPrompt string) (<-chan string, error) {
	if m.Err != nil {
		return nil, m.Err
	}

	chunks := m.Chunks
	if len(chunks) == 0 {
		chunks = []string{m.reply(userPrompt)}
	}

	out := make(chan string, len(chunks))
	for _, c := range chunks {
		out <- c
	}
	close(out)
	return out, nil
}

// MockMemory is a canned domain.MemoryClient.
type MockMemory struct {
	// Summary is returned by Summarize when SummarizeErr is nil.
	Summary domain.SummaryResult
	// Clusters is returned by Cluster when ClusterErr is nil.
	Clusters     [][]int
	SummarizeErr error
	ClusterErr   error
}

func NewMockMemory() *MockMemory {
	return &MockMemory{
		Summary: domain.SummaryResult{
			Bullets: []string{"the user chatted with Nova"},
			Topics:  []domain.TopicLabel{"general"},
		},
	}
}

func (m *MockMemory) Summarize(ctx context.Context, msgs []*domain.Message) (domain.SummaryResult, error) {
	if m.SummarizeErr != nil {
		return domain.SummaryResult{}, m.SummarizeErr
	}
	return m.Summary, nil
}

func (m *MockMemory) Cluster(ctx context.Context, msgs []*domain.Message) ([][]int, error) {
	if m.ClusterErr != nil {
		return nil, m.ClusterErr
	}
	if m.Clusters != nil {
		return m.Clusters, nil
	}
	// Default: everything in one cluster.
	all := make([]int, len(msgs))
	for i := range msgs {
		all[i] = i
	}
	return [][]int{all}, nil
}
