package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/novalabs/nova-agent/internal/domain"
)

type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[domain.SessionID]*domain.Session),
	}
}

func (s *SessionStore) CreateSession(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return errors.New("session already exists")
	}

	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *SessionStore) UpdateLastActivity(ctx context.Context, id domain.SessionID, at domain.Timestamp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return errors.New("session not found")
	}

	sess.LastActivity = at
	return nil
}

func (s *SessionStore) MostRecentSession(ctx context.Context) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Session
	for _, sess := range s.sessions {
		if latest == nil || sess.LastActivity.After(latest.LastActivity) {
			latest = sess
		}
	}
	if latest == nil {
		return nil, nil
	}

	cp := *latest
	return &cp, nil
}

func (s *SessionStore) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, errors.New("session not found")
	}

	cp := *sess
	return &cp, nil
}
