package llm

import (
	"strings"

	"github.com/novalabs/nova-agent/internal/domain"
)

const novaSystemPrompt = `You are Nova, a helpful, emotionally intelligent, humanlike chatbot. ` +
	`You sound natural and friendly — like texting with a friend on WhatsApp. ` +
	`You remember what the user said in past sessions if summaries are provided. ` +
	`You can quote earlier messages if needed, but NEVER hallucinate.

Always keep replies appropriately sized — short when the user just needs a nudge or confirmation, longer when explanation or empathy is needed. You're aware of time references like 'yesterday', 'last Friday', etc.

If you're unsure whether something was said before, say so clearly. Don't make things up.`

const summaryPromptHeader = `You are a context-sensitive memory agent for a long-term human-AI chat system.
Your goal is to summarize a session of messages exchanged between the user and an assistant named Nova.

- Extract main discussion points as bullet points
- Identify main topics as lowercase strings
- NEVER hallucinate content not in the session

Respond in strict JSON format as:
{
  "summary": ["...", "..."],
  "topics": ["..."]
}

Chat:
`

const clusterPromptHeader = `You are a memory agent for a chat system. Group the following messages into topic-based clusters.
Return a JSON list of clusters, where each cluster is a list of message indices (0-based, corresponding to the order below).
Messages:
`

const clusterPromptFooter = "\nRespond in strict JSON as: [[0,1],[2,3,4],...]"

// RenderTranscript formats messages the way the providers expect them:
// one "User:"/"Nova:" line per turn, in timestamp order.
func RenderTranscript(msgs []*domain.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		speaker := "User"
		if m.Mood == domain.MoodAssistant {
			speaker = "Nova"
		}
		lines = append(lines, speaker+": "+m.Text)
	}
	return strings.Join(lines, "\n")
}

func buildSummaryPrompt(msgs []*domain.Message) string {
	return summaryPromptHeader + RenderTranscript(msgs)
}

func buildClusterPrompt(msgs []*domain.Message) string {
	return clusterPromptHeader + RenderTranscript(msgs) + clusterPromptFooter
}
