package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novalabs/nova-agent/internal/adapters/storage/memory"
	"github.com/novalabs/nova-agent/internal/app/ledger"
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

func newTestLedger(t *testing.T) (*ledger.Service, *session.Service, *fakeClock) {
	t.Helper()

	clock := newFakeClock()

	sessions := session.NewService(memory.NewSessionStore(), 2*time.Hour)
	sessions.SetClock(clock.Now)

	svc := ledger.NewService(sessions, memory.NewMessageStore())
	svc.SetClock(clock.Now)
	return svc, sessions, clock
}

func TestAppendStampsDefaults(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestLedger(t)

	msg, err := svc.Append(ctx, domain.MessageDraft{Text: "hello"})
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.NotEmpty(t, msg.SessionID, "a draft without a session must get one resolved")
	assert.Equal(t, clock.Now(), msg.Timestamp)
	assert.Equal(t, domain.MoodUser, msg.Mood)
	assert.NotNil(t, msg.Tags)
	assert.Empty(t, msg.Tags)
}

func TestAppendReusesSessionWithinTimeout(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestLedger(t)

	m1, err := svc.Append(ctx, domain.MessageDraft{Text: "first"})
	require.NoError(t, err)

	clock.Advance(time.Hour)
	m2, err := svc.Append(ctx, domain.MessageDraft{Text: "second"})
	require.NoError(t, err)

	assert.Equal(t, m1.SessionID, m2.SessionID)
}

// Scenario from the session lifecycle: M1 at t=0 creates S1; M2 at t+1h
// stays in S1 and bumps its activity; M3 at t+3h sees a 2h gap since the
// last touch and lands in a new session.
func TestAppendRollsOverExpiredSession(t *testing.T) {
	ctx := context.Background()
	svc, sessions, clock := newTestLedger(t)

	m1, err := svc.Append(ctx, domain.MessageDraft{Text: "m1"})
	require.NoError(t, err)

	clock.Advance(time.Hour)
	m2, err := svc.Append(ctx, domain.MessageDraft{SessionID: m1.SessionID, Text: "m2"})
	require.NoError(t, err)
	assert.Equal(t, m1.SessionID, m2.SessionID)

	s1, err := sessions.Get(ctx, m1.SessionID)
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), s1.LastActivity)

	clock.Advance(2 * time.Hour)
	m3, err := svc.Append(ctx, domain.MessageDraft{Text: "m3"})
	require.NoError(t, err)
	assert.NotEqual(t, m1.SessionID, m3.SessionID)
}

func TestListOrdersByTimestamp(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestLedger(t)

	var ids []domain.MessageID
	for _, text := range []string{"a", "b", "c"} {
		msg, err := svc.Append(ctx, domain.MessageDraft{Text: text})
		require.NoError(t, err)
		ids = append(ids, msg.ID)
		clock.Advance(time.Minute)
	}

	msgs, err := svc.List(ctx, msgs0SessionID(t, svc, ids[0]))
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, msg := range msgs {
		assert.Equal(t, ids[i], msg.ID)
	}
}

func msgs0SessionID(t *testing.T, svc *ledger.Service, id domain.MessageID) domain.SessionID {
	t.Helper()
	msg, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	return msg.SessionID
}

// Messages are immutable facts: re-fetching by id after further appends
// returns identical content.
func TestAppendedMessageNeverMutates(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestLedger(t)

	quoted := "the original wording"
	first, err := svc.Append(ctx, domain.MessageDraft{Text: quoted, Tags: []string{"keep"}})
	require.NoError(t, err)

	snapshot, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		_, err := svc.Append(ctx, domain.MessageDraft{
			SessionID:     first.SessionID,
			Text:          "noise",
			QuotedReplyTo: &first.ID,
			QuotedText:    quoted,
		})
		require.NoError(t, err)
	}

	again, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, snapshot, again)
}

func TestListAcrossAllSessions(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestLedger(t)

	m1, err := svc.Append(ctx, domain.MessageDraft{Text: "session one"})
	require.NoError(t, err)

	clock.Advance(3 * time.Hour) // expire the first session
	m2, err := svc.Append(ctx, domain.MessageDraft{Text: "session two"})
	require.NoError(t, err)
	require.NotEqual(t, m1.SessionID, m2.SessionID)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
