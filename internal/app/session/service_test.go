package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novalabs/nova-agent/internal/adapters/storage/memory"
	"github.com/novalabs/nova-agent/internal/app/session"
	"github.com/novalabs/nova-agent/internal/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type spyAnalyzer struct {
	mu       sync.Mutex
	analyzed []domain.SessionID
}

func (a *spyAnalyzer) AnalyzeSession(ctx context.Context, id domain.SessionID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.analyzed = append(a.analyzed, id)
	return nil
}

func (a *spyAnalyzer) seen() []domain.SessionID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.SessionID(nil), a.analyzed...)
}

func newTestService(t *testing.T, timeout time.Duration) (*session.Service, *fakeClock, *spyAnalyzer) {
	t.Helper()

	clock := newFakeClock()
	analyzer := &spyAnalyzer{}

	svc := session.NewService(memory.NewSessionStore(), timeout)
	svc.SetClock(clock.Now)
	svc.SetAnalyzer(analyzer)
	return svc, clock, analyzer
}

func TestResolveOrCreateReusesActiveSession(t *testing.T) {
	ctx := context.Background()
	svc, clock, _ := newTestService(t, 2*time.Hour)

	first, err := svc.ResolveOrCreate(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.Equal(t, first.CreatedAt, first.LastActivity)

	// Repeated resolves within the window return the same session.
	for i := 0; i < 3; i++ {
		clock.Advance(30 * time.Minute)
		require.NoError(t, svc.Touch(ctx, first.ID))

		got, err := svc.ResolveOrCreate(ctx)
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
	}
}

func TestResolveOrCreateStartsNewSessionAfterTimeout(t *testing.T) {
	ctx := context.Background()
	svc, clock, _ := newTestService(t, 2*time.Hour)

	old, err := svc.ResolveOrCreate(ctx)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour) // exactly the timeout: expired

	fresh, err := svc.ResolveOrCreate(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, fresh.ID)
	assert.True(t, fresh.CreatedAt.After(old.LastActivity),
		"new session must start after the old one's last activity")
}

func TestExpiryTriggersClosureAnalysis(t *testing.T) {
	ctx := context.Background()
	svc, clock, analyzer := newTestService(t, 2*time.Hour)

	old, err := svc.ResolveOrCreate(ctx)
	require.NoError(t, err)

	clock.Advance(3 * time.Hour)

	_, err = svc.ResolveOrCreate(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		seen := analyzer.seen()
		return len(seen) == 1 && seen[0] == old.ID
	}, time.Second, 10*time.Millisecond, "expired session should be analyzed")
}

// The gap is measured against the stored last_activity at the time of the
// check: activity at t+1h keeps the session alive until t+1h+timeout.
func TestExpiryGapMeasuredSinceLastTouch(t *testing.T) {
	ctx := context.Background()
	svc, clock, analyzer := newTestService(t, 2*time.Hour)

	s1, err := svc.ResolveOrCreate(ctx)
	require.NoError(t, err)

	clock.Advance(1 * time.Hour)
	require.NoError(t, svc.Touch(ctx, s1.ID))

	// t+3h: gap since last touch is 2h, which reaches the timeout.
	clock.Advance(2 * time.Hour)

	s2, err := svc.ResolveOrCreate(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, s1.ID, s2.ID)

	require.Eventually(t, func() bool {
		seen := analyzer.seen()
		return len(seen) == 1 && seen[0] == s1.ID
	}, time.Second, 10*time.Millisecond)
}

func TestTouchBumpsLastActivity(t *testing.T) {
	ctx := context.Background()
	svc, clock, _ := newTestService(t, 2*time.Hour)

	sess, err := svc.ResolveOrCreate(ctx)
	require.NoError(t, err)

	clock.Advance(45 * time.Minute)
	require.NoError(t, svc.Touch(ctx, sess.ID))

	got, err := svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), got.LastActivity)
	assert.True(t, !got.LastActivity.Before(got.CreatedAt))
}

func TestNilAnalyzerSkipsClosure(t *testing.T) {
	ctx := context.Background()

	clock := newFakeClock()
	svc := session.NewService(memory.NewSessionStore(), 2*time.Hour)
	svc.SetClock(clock.Now)

	_, err := svc.ResolveOrCreate(ctx)
	require.NoError(t, err)

	clock.Advance(5 * time.Hour)

	// Must not panic without an analyzer.
	_, err = svc.ResolveOrCreate(ctx)
	require.NoError(t, err)
}
