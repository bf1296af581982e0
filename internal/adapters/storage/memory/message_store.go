package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/novalabs/nova-agent/internal/domain"
)

type MessageStore struct {
	mu       sync.RWMutex
	messages []*domain.Message
	byID     map[domain.MessageID]*domain.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		byID: make(map[domain.MessageID]*domain.Message),
	}
}

func (s *MessageStore) AppendMessage(ctx context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[msg.ID]; exists {
		return errors.New("message already exists")
	}

	cp := *msg
	s.messages = append(s.messages, &cp)
	s.byID[msg.ID] = &cp
	return nil
}

func (s *MessageStore) GetMessage(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.byID[id]
	if !ok {
		return nil, errors.New("message not found")
	}

	cp := *msg
	return &cp, nil
}

func (s *MessageStore) ListMessages(ctx context.Context, sessionID domain.SessionID) ([]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		if sessionID != "" && msg.SessionID != sessionID {
			continue
		}
		cp := *msg
		out = append(out, &cp)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}
