package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/novalabs/nova-agent/internal/domain"
)

type ThreadStore struct {
	mu      sync.RWMutex
	threads map[domain.ThreadID]*domain.Thread
}

func NewThreadStore() *ThreadStore {
	return &ThreadStore{
		threads: make(map[domain.ThreadID]*domain.Thread),
	}
}

// PutThread creates or overwrites the thread under its id.
func (s *ThreadStore) PutThread(ctx context.Context, thread *domain.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *thread
	cp.Messages = append([]*domain.Message(nil), thread.Messages...)
	s.threads[thread.ID] = &cp
	return nil
}

func (s *ThreadStore) ListThreadsByTopic(ctx context.Context, topic domain.TopicLabel) ([]*domain.Thread, error) {
	return s.list(func(t *domain.Thread) bool { return t.Topic == topic })
}

func (s *ThreadStore) ListThreadsBySession(ctx context.Context, sessionID domain.SessionID) ([]*domain.Thread, error) {
	return s.list(func(t *domain.Thread) bool { return t.SessionID == sessionID })
}

func (s *ThreadStore) ListThreads(ctx context.Context) ([]*domain.Thread, error) {
	return s.list(func(*domain.Thread) bool { return true })
}

func (s *ThreadStore) list(keep func(*domain.Thread) bool) ([]*domain.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Thread
	for _, t := range s.threads {
		if keep(t) {
			cp := *t
			cp.Messages = append([]*domain.Message(nil), t.Messages...)
			out = append(out, &cp)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
