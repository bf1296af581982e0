package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/novalabs/nova-agent/internal/domain"
)

type SummaryStore struct {
	mu        sync.RWMutex
	summaries []*domain.SessionSummary
}

func NewSummaryStore() *SummaryStore {
	return &SummaryStore{}
}

func (s *SummaryStore) AddSummary(ctx context.Context, summary *domain.SessionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *summary
	s.summaries = append(s.summaries, &cp)
	return nil
}

func (s *SummaryStore) ListSummaries(ctx context.Context, sessionID domain.SessionID) ([]*domain.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.SessionSummary, 0, len(s.summaries))
	for _, sum := range s.summaries {
		if sessionID != "" && sum.SessionID != sessionID {
			continue
		}
		cp := *sum
		out = append(out, &cp)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}
