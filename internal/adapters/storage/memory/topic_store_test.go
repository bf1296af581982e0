package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novalabs/nova-agent/internal/domain"
)

func TestTopicStoreKeepsOneEntryPerSession(t *testing.T) {
	ctx := context.Background()
	store := NewTopicStore()

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.AddTopicEntry(ctx, "travel", domain.TopicEntry{
		SessionID: "s1",
		Summary:   []string{"original"},
		Timestamp: ts,
	}))
	require.NoError(t, store.AddTopicEntry(ctx, "travel", domain.TopicEntry{
		SessionID: "s2",
		Summary:   []string{"second session"},
		Timestamp: ts.Add(time.Hour),
	}))
	// Same session again: keep the original.
	require.NoError(t, store.AddTopicEntry(ctx, "travel", domain.TopicEntry{
		SessionID: "s1",
		Summary:   []string{"rewritten"},
		Timestamp: ts.Add(2 * time.Hour),
	}))

	topic, err := store.GetTopic(ctx, "travel")
	require.NoError(t, err)
	require.NotNil(t, topic)
	require.Len(t, topic.Sessions, 2)
	assert.Equal(t, domain.SessionID("s1"), topic.Sessions[0].SessionID)
	assert.Equal(t, []string{"original"}, topic.Sessions[0].Summary)
	assert.Equal(t, domain.SessionID("s2"), topic.Sessions[1].SessionID)
}

func TestTopicStoreUnknownTopicIsNil(t *testing.T) {
	store := NewTopicStore()

	topic, err := store.GetTopic(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Nil(t, topic)
}

func TestTopicStoreListsSortedLabels(t *testing.T) {
	ctx := context.Background()
	store := NewTopicStore()

	for _, label := range []domain.TopicLabel{"zebra", "alpha", "middle"} {
		require.NoError(t, store.AddTopicEntry(ctx, label, domain.TopicEntry{SessionID: "s1"}))
	}

	topics, err := store.ListTopics(ctx)
	require.NoError(t, err)
	require.Len(t, topics, 3)
	assert.Equal(t, domain.TopicLabel("alpha"), topics[0].Label)
	assert.Equal(t, domain.TopicLabel("middle"), topics[1].Label)
	assert.Equal(t, domain.TopicLabel("zebra"), topics[2].Label)
}
