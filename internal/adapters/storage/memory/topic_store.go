package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/novalabs/nova-agent/internal/domain"
)

type TopicStore struct {
	mu sync.RWMutex
	// One entry per (topic, session). Keyed writes keep repeated
	// aggregation idempotent without read-modify-write on a shared list.
	entries map[domain.TopicLabel]map[domain.SessionID]domain.TopicEntry
	order   map[domain.TopicLabel][]domain.SessionID
}

func NewTopicStore() *TopicStore {
	return &TopicStore{
		entries: make(map[domain.TopicLabel]map[domain.SessionID]domain.TopicEntry),
		order:   make(map[domain.TopicLabel][]domain.SessionID),
	}
}

func (s *TopicStore) AddTopicEntry(ctx context.Context, topic domain.TopicLabel, entry domain.TopicEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byTopic, ok := s.entries[topic]
	if !ok {
		byTopic = make(map[domain.SessionID]domain.TopicEntry)
		s.entries[topic] = byTopic
	}

	if _, exists := byTopic[entry.SessionID]; exists {
		// Duplicate aggregation for the same session: keep the original.
		return nil
	}

	byTopic[entry.SessionID] = entry
	s.order[topic] = append(s.order[topic], entry.SessionID)
	return nil
}

func (s *TopicStore) GetTopic(ctx context.Context, topic domain.TopicLabel) (*domain.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byTopic, ok := s.entries[topic]
	if !ok {
		return nil, nil
	}
	return assemble(topic, byTopic, s.order[topic]), nil
}

func (s *TopicStore) ListTopics(ctx context.Context) ([]*domain.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	labels := make([]domain.TopicLabel, 0, len(s.entries))
	for label := range s.entries {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	out := make([]*domain.Topic, 0, len(labels))
	for _, label := range labels {
		out = append(out, assemble(label, s.entries[label], s.order[label]))
	}
	return out, nil
}

func assemble(label domain.TopicLabel, byTopic map[domain.SessionID]domain.TopicEntry, order []domain.SessionID) *domain.Topic {
	t := &domain.Topic{Label: label}
	for _, id := range order {
		t.Sessions = append(t.Sessions, byTopic[id])
	}
	return t
}
