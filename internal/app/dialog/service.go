package dialog

import (
	"context"
	"strings"
	"time"

	"github.com/novalabs/nova-agent/internal/domain"
	"github.com/novalabs/nova-agent/internal/observability"
)

// UnavailableReply is persisted and shown when the generation provider
// errors. Dialog outages reduce quality, they never fail the turn.
const UnavailableReply = "[Nova is having trouble replying right now — please try again in a moment]"

// backgroundTimeout bounds the detached persist task of a streaming turn.
const backgroundTimeout = 2 * time.Minute

// Ledger is what the orchestrator needs from the message ledger.
type Ledger interface {
	Append(ctx context.Context, draft domain.MessageDraft) (*domain.Message, error)
}

// ContextSource is what the orchestrator needs from the topic aggregator to
// compose memory context for a prompt.
type ContextSource interface {
	ThreadsBySession(ctx context.Context, sessionID domain.SessionID) ([]*domain.Thread, error)
	Summarize(ctx context.Context, sessionID domain.SessionID) (*domain.SessionSummary, error)
}

// Service composes context, invokes the generation provider and persists both
// sides of the exchange.
type Service struct {
	ledger   Ledger
	memory   ContextSource
	provider domain.DialogClient
}

func NewService(ledger Ledger, memory ContextSource, provider domain.DialogClient) *Service {
	return &Service{
		ledger:   ledger,
		memory:   memory,
		provider: provider,
	}
}

// HandleTurn persists the user message, generates a reply and persists it
// linked to the user message. A provider error degrades to UnavailableReply;
// only store failures fail the turn.
func (s *Service) HandleTurn(ctx context.Context, draft domain.MessageDraft) (*domain.Message, *domain.Message, error) {
	log := observability.LoggerFromContext(ctx)

	draft.Mood = domain.MoodUser
	userMsg, err := s.ledger.Append(ctx, draft)
	if err != nil {
		return nil, nil, err
	}

	prompt := s.composePrompt(ctx, userMsg.SessionID, userMsg.Text)

	replyText, err := s.provider.Generate(ctx, prompt)
	if err != nil {
		log.Error("generation provider failed", "session_id", userMsg.SessionID, "error", err)
		replyText = UnavailableReply
	}

	assistantMsg, err := s.ledger.Append(ctx, domain.MessageDraft{
		SessionID:     userMsg.SessionID,
		Text:          replyText,
		QuotedReplyTo: &userMsg.ID,
		QuotedText:    userMsg.Text,
		Mood:          domain.MoodAssistant,
	})
	if err != nil {
		return nil, nil, err
	}

	return userMsg, assistantMsg, nil
}

// HandleTurnStream persists the user message and returns the provider's live
// fragment stream. A detached task re-invokes the provider end-to-end and
// persists the reply once done: the stored message comes from a fresh
// generation of the same prompt, not from buffering the streamed fragments,
// so the two paths share no mutable state. Client disconnect abandons the
// stream but never cancels the persist task.
func (s *Service) HandleTurnStream(ctx context.Context, draft domain.MessageDraft) (*domain.Message, <-chan string, error) {
	log := observability.LoggerFromContext(ctx)

	draft.Mood = domain.MoodUser
	userMsg, err := s.ledger.Append(ctx, draft)
	if err != nil {
		return nil, nil, err
	}

	prompt := s.composePrompt(ctx, userMsg.SessionID, userMsg.Text)

	stream, err := s.provider.Stream(ctx, prompt)
	if err != nil {
		log.Error("generation provider failed to open stream", "session_id", userMsg.SessionID, "error", err)
		fallback := make(chan string, 1)
		fallback <- UnavailableReply
		close(fallback)
		stream = fallback
	}

	detached := context.WithoutCancel(ctx)
	go s.persistReply(detached, userMsg, prompt)

	return userMsg, stream, nil
}

// persistReply is the fire-and-forget half of a streaming turn.
func (s *Service) persistReply(ctx context.Context, userMsg *domain.Message, prompt string) {
	ctx, cancel := context.WithTimeout(ctx, backgroundTimeout)
	defer cancel()

	log := observability.LoggerFromContext(ctx).With("session_id", userMsg.SessionID)

	replyText, err := s.provider.Generate(ctx, prompt)
	if err != nil {
		log.Error("background generation failed", "error", err)
		replyText = UnavailableReply
	}

	_, err = s.ledger.Append(ctx, domain.MessageDraft{
		SessionID:     userMsg.SessionID,
		Text:          replyText,
		QuotedReplyTo: &userMsg.ID,
		QuotedText:    userMsg.Text,
		Mood:          domain.MoodAssistant,
	})
	if err != nil {
		log.Error("failed to persist streamed reply", "error", err)
		return
	}
	log.Info("streamed reply persisted")
}

// composePrompt prefixes the user text with the best memory context
// available. Context assembly is best effort: any failure just produces a
// bare prompt.
func (s *Service) composePrompt(ctx context.Context, sessionID domain.SessionID, userText string) string {
	memoryCtx := s.composeContext(ctx, sessionID)
	if memoryCtx == "" {
		return userText
	}

	var b strings.Builder
	b.WriteString("Relevant memory:\n")
	b.WriteString(memoryCtx)
	b.WriteString("\n\nNew user message:\n")
	b.WriteString(userText)
	return b.String()
}

// composeContext prefers the largest thread cluster of the session; a cluster
// with fewer than 2 messages is too thin to be informative, so it falls back
// to a freshly generated session summary.
func (s *Service) composeContext(ctx context.Context, sessionID domain.SessionID) string {
	log := observability.LoggerFromContext(ctx).With("session_id", sessionID)

	threads, err := s.memory.ThreadsBySession(ctx, sessionID)
	if err != nil {
		log.Error("failed to load session threads for context", "error", err)
		threads = nil
	}

	var best *domain.Thread
	for _, thread := range threads {
		if best == nil || len(thread.Messages) > len(best.Messages) {
			best = thread
		}
	}

	if best != nil && len(best.Messages) >= 2 {
		lines := make([]string, 0, len(best.Messages))
		for _, msg := range best.Messages {
			speaker := "User"
			if msg.Mood == domain.MoodAssistant {
				speaker = "Nova"
			}
			lines = append(lines, speaker+": "+msg.Text)
		}
		return strings.Join(lines, "\n")
	}

	summary, err := s.memory.Summarize(ctx, sessionID)
	if err != nil {
		log.Error("failed to generate summary for context", "error", err)
		return ""
	}
	return strings.Join(summary.Summary, "\n")
}
