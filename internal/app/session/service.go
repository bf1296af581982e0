package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/novalabs/nova-agent/internal/domain"
	"github.com/novalabs/nova-agent/internal/observability"
)

// analysisTimeout bounds a single closure-analysis run.
const analysisTimeout = 2 * time.Minute

// Analyzer runs topic extraction over an expired session. Implemented by the
// memory service; wired after construction to keep the dependency one-way.
type Analyzer interface {
	AnalyzeSession(ctx context.Context, id domain.SessionID) error
}

// Service decides whether the most recent session is still active or a new
// one must start, and stamps activity timestamps.
type Service struct {
	store    domain.SessionStore
	timeout  time.Duration
	analyzer Analyzer
	now      func() time.Time
}

func NewService(store domain.SessionStore, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 6 * time.Hour
	}
	return &Service{
		store:   store,
		timeout: timeout,
		now:     time.Now,
	}
}

// SetAnalyzer wires the closure-analysis hook. A nil analyzer means expired
// sessions are superseded without analysis.
func (s *Service) SetAnalyzer(a Analyzer) {
	s.analyzer = a
}

// SetClock replaces the clock, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// ResolveOrCreate returns the single most-recently-active session if its
// last activity falls within the timeout window, measured against the stored
// last_activity at the time of this check. Otherwise it creates a fresh
// session; an expired predecessor gets best-effort closure analysis on a
// detached goroutine first.
func (s *Service) ResolveOrCreate(ctx context.Context) (*domain.Session, error) {
	log := observability.LoggerFromContext(ctx)
	now := s.now().UTC()

	latest, err := s.store.MostRecentSession(ctx)
	if err != nil {
		log.Error("failed to read most recent session", "error", err)
		return nil, err
	}

	if latest != nil {
		if now.Sub(latest.LastActivity) < s.timeout {
			return latest, nil
		}
		s.closeExpired(ctx, latest.ID)
	}

	session := &domain.Session{
		ID:           domain.SessionID(uuid.NewString()),
		CreatedAt:    now,
		LastActivity: now,
	}

	if err := s.store.CreateSession(ctx, session); err != nil {
		log.Error("failed to create session", "error", err)
		return nil, err
	}

	log.Info("session created", "session_id", session.ID)
	return session, nil
}

// Touch unconditionally overwrites last_activity to now.
func (s *Service) Touch(ctx context.Context, id domain.SessionID) error {
	return s.store.UpdateLastActivity(ctx, id, s.now().UTC())
}

// Get returns a session by id.
func (s *Service) Get(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	return s.store.GetSession(ctx, id)
}

// closeExpired kicks off topic extraction on the expired session. The task
// keeps request values but not the request's cancellation, so a client
// disconnect never aborts it. Failure is logged, never propagated.
func (s *Service) closeExpired(ctx context.Context, id domain.SessionID) {
	if s.analyzer == nil {
		return
	}

	log := observability.LoggerFromContext(ctx).With("session_id", id)
	log.Info("session expired, starting closure analysis")

	detached := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(detached, analysisTimeout)
		defer cancel()

		if err := s.analyzer.AnalyzeSession(ctx, id); err != nil {
			log.Error("closure analysis failed", "error", err)
			return
		}
		log.Info("closure analysis completed")
	}()
}
