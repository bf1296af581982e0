package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/novalabs/nova-agent/internal/domain"
	"github.com/novalabs/nova-agent/internal/observability"
)

// SessionResolver is what the ledger needs from the session manager.
type SessionResolver interface {
	ResolveOrCreate(ctx context.Context) (*domain.Session, error)
	Touch(ctx context.Context, id domain.SessionID) error
}

// Service is the append-only message ledger. Messages are never mutated or
// deleted after append.
type Service struct {
	sessions SessionResolver
	store    domain.MessageStore
	now      func() time.Time
}

func NewService(sessions SessionResolver, store domain.MessageStore) *Service {
	return &Service{
		sessions: sessions,
		store:    store,
		now:      time.Now,
	}
}

// SetClock replaces the clock, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Append stamps identity, session and timestamp on the draft, persists it and
// bumps the session's last activity.
func (s *Service) Append(ctx context.Context, draft domain.MessageDraft) (*domain.Message, error) {
	log := observability.LoggerFromContext(ctx)

	sessionID := draft.SessionID
	if sessionID == "" {
		session, err := s.sessions.ResolveOrCreate(ctx)
		if err != nil {
			return nil, err
		}
		sessionID = session.ID
	}

	mood := draft.Mood
	if mood == "" {
		mood = domain.MoodUser
	}

	tags := draft.Tags
	if tags == nil {
		tags = []string{}
	}

	msg := &domain.Message{
		ID:            domain.MessageID(uuid.NewString()),
		SessionID:     sessionID,
		Text:          draft.Text,
		Timestamp:     s.now().UTC(),
		Tags:          tags,
		Mood:          mood,
		QuotedReplyTo: draft.QuotedReplyTo,
		QuotedText:    draft.QuotedText,
	}

	if err := s.store.AppendMessage(ctx, msg); err != nil {
		log.Error("failed to append message", "session_id", sessionID, "error", err)
		return nil, err
	}

	if err := s.sessions.Touch(ctx, sessionID); err != nil {
		log.Error("failed to touch session", "session_id", sessionID, "error", err)
		return nil, err
	}

	return msg, nil
}

// List returns messages ordered by timestamp ascending. An empty sessionID
// lists across all sessions (admin/debug path).
func (s *Service) List(ctx context.Context, sessionID domain.SessionID) ([]*domain.Message, error) {
	return s.store.ListMessages(ctx, sessionID)
}

// Get fetches a single message by id.
func (s *Service) Get(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	return s.store.GetMessage(ctx, id)
}
