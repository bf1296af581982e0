package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/novalabs/nova-agent/internal/domain"
	"github.com/novalabs/nova-agent/internal/observability"
)

// emptySessionBullet is stored when a session expired without any message.
const emptySessionBullet = "No messages in this session."

// failedSummaryBullet is the placeholder stored when the summarization
// provider is down. The summary record still exists so the expiry event is
// visible, it just carries no topics.
const failedSummaryBullet = "[summary unavailable: provider error]"

// provisionalTopic labels a thread before summarization assigns a real one.
func provisionalTopic(index int) domain.TopicLabel {
	return domain.TopicLabel(fmt.Sprintf("cluster-%d", index+1))
}

// MessageSource is what the aggregator needs from the message ledger.
type MessageSource interface {
	List(ctx context.Context, sessionID domain.SessionID) ([]*domain.Message, error)
}

// Service turns a session's messages into summaries and topic threads, and
// folds per-session summaries into topic documents without duplication.
type Service struct {
	ledger    MessageSource
	provider  domain.MemoryClient
	summaries domain.SummaryStore
	threads   domain.ThreadStore
	topics    domain.TopicStore
	now       func() time.Time
}

func NewService(
	ledger MessageSource,
	provider domain.MemoryClient,
	summaries domain.SummaryStore,
	threads domain.ThreadStore,
	topics domain.TopicStore,
) *Service {
	return &Service{
		ledger:    ledger,
		provider:  provider,
		summaries: summaries,
		threads:   threads,
		topics:    topics,
		now:       time.Now,
	}
}

// SetClock replaces the clock, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Summarize distills a session into bullets and topic labels and persists the
// result. A provider failure degrades to a placeholder summary; only a store
// failure is an error.
func (s *Service) Summarize(ctx context.Context, sessionID domain.SessionID) (*domain.SessionSummary, error) {
	log := observability.LoggerFromContext(ctx).With("session_id", sessionID)

	msgs, err := s.ledger.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var bullets []string
	var topics []domain.TopicLabel

	switch {
	case len(msgs) == 0:
		bullets = []string{emptySessionBullet}
	default:
		result, err := s.provider.Summarize(ctx, msgs)
		if err != nil {
			log.Error("summarization provider failed", "error", err)
			bullets = []string{failedSummaryBullet}
		} else {
			bullets = result.Bullets
			topics = normalizeTopics(result.Topics)
		}
	}

	summary := &domain.SessionSummary{
		SessionID: sessionID,
		Summary:   bullets,
		Topics:    topics,
		Timestamp: s.now().UTC(),
	}

	if err := s.summaries.AddSummary(ctx, summary); err != nil {
		log.Error("failed to persist summary", "error", err)
		return nil, err
	}

	log.Info("session summarized", "bullets", len(bullets), "topics", len(topics))
	return summary, nil
}

// Summaries lists stored summaries, optionally filtered by session.
func (s *Service) Summaries(ctx context.Context, sessionID domain.SessionID) ([]*domain.SessionSummary, error) {
	return s.summaries.ListSummaries(ctx, sessionID)
}

// Cluster groups messages into topic clusters via the clustering provider.
// Any provider failure or malformed index group falls back to a single
// cluster holding every input message in original order: clustering never
// loses messages and never blocks an operation.
func (s *Service) Cluster(ctx context.Context, msgs []*domain.Message) [][]*domain.Message {
	if len(msgs) == 0 {
		return nil
	}

	log := observability.LoggerFromContext(ctx)

	groups, err := s.provider.Cluster(ctx, msgs)
	if err != nil {
		log.Error("clustering provider failed, falling back to single cluster", "error", err)
		return [][]*domain.Message{msgs}
	}
	if len(groups) == 0 {
		return [][]*domain.Message{msgs}
	}

	seen := make([]bool, len(msgs))
	clusters := make([][]*domain.Message, 0, len(groups))
	for _, group := range groups {
		cluster := make([]*domain.Message, 0, len(group))
		for _, idx := range group {
			if idx < 0 || idx >= len(msgs) {
				log.Error("clustering provider returned out-of-range index, falling back to single cluster",
					"index", idx, "messages", len(msgs))
				return [][]*domain.Message{msgs}
			}
			if seen[idx] {
				continue
			}
			seen[idx] = true
			cluster = append(cluster, msgs[idx])
		}
		if len(cluster) > 0 {
			clusters = append(clusters, cluster)
		}
	}

	// Messages the provider never referenced still belong somewhere.
	var leftover []*domain.Message
	for i, msg := range msgs {
		if !seen[i] {
			leftover = append(leftover, msg)
		}
	}
	if len(leftover) > 0 {
		clusters = append(clusters, leftover)
	}

	return clusters
}

// MaterializeThreads clusters a session's messages and persists one thread
// per cluster. Thread ids derive from (session id, cluster index), so
// repeated materialization overwrites instead of duplicating.
func (s *Service) MaterializeThreads(ctx context.Context, sessionID domain.SessionID) ([]*domain.Thread, error) {
	return s.materialize(ctx, sessionID, nil)
}

func (s *Service) materialize(ctx context.Context, sessionID domain.SessionID, labels []domain.TopicLabel) ([]*domain.Thread, error) {
	msgs, err := s.ledger.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	clusters := s.Cluster(ctx, msgs)
	now := s.now().UTC()

	threads := make([]*domain.Thread, 0, len(clusters))
	for i, cluster := range clusters {
		topic := provisionalTopic(i)
		if i < len(labels) {
			topic = labels[i]
		}
		threads = append(threads, &domain.Thread{
			ID:        domain.ThreadID(fmt.Sprintf("%s#%d", sessionID, i)),
			Topic:     topic,
			SessionID: sessionID,
			Messages:  cluster,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, thread := range threads {
		g.Go(func() error {
			return s.threads.PutThread(gctx, thread)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info("threads materialized",
		"session_id", sessionID, "threads", len(threads))
	return threads, nil
}

// UpsertTopicSummary folds one session's summary into a topic document.
// Adding the same (topic, session) pair again is a silent no-op, so repeated
// aggregation cannot duplicate entries.
func (s *Service) UpsertTopicSummary(ctx context.Context, topic domain.TopicLabel, entry domain.TopicEntry) error {
	if topic == "" {
		return fmt.Errorf("topic label is required")
	}
	if err := s.topics.AddTopicEntry(ctx, topic, entry); err != nil {
		observability.LoggerFromContext(ctx).Error("failed to upsert topic entry",
			"topic", topic, "session_id", entry.SessionID, "error", err)
		return err
	}
	observability.LoggerFromContext(ctx).Debug("topic entry upserted",
		"topic", topic, "session_id", entry.SessionID)
	return nil
}

// AnalyzeSession is the closure analysis run when a session expires:
// summarize, materialize topic threads, then fold the summary into every
// extracted topic. Best effort: every step is attempted even if a previous
// topic write failed.
func (s *Service) AnalyzeSession(ctx context.Context, sessionID domain.SessionID) error {
	summary, err := s.Summarize(ctx, sessionID)
	if err != nil {
		return err
	}

	threads, err := s.materialize(ctx, sessionID, summary.Topics)
	if err != nil {
		return err
	}

	var messageIDs []domain.MessageID
	for _, thread := range threads {
		for _, msg := range thread.Messages {
			messageIDs = append(messageIDs, msg.ID)
		}
	}

	entry := domain.TopicEntry{
		SessionID:  sessionID,
		Summary:    summary.Summary,
		Timestamp:  summary.Timestamp,
		MessageIDs: messageIDs,
	}

	var errs []error
	for _, topic := range summary.Topics {
		if err := s.UpsertTopicSummary(ctx, topic, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ThreadsByTopic lists threads for one topic, or every thread when the label
// is empty.
func (s *Service) ThreadsByTopic(ctx context.Context, topic domain.TopicLabel) ([]*domain.Thread, error) {
	if topic == "" {
		return s.threads.ListThreads(ctx)
	}
	return s.threads.ListThreadsByTopic(ctx, topic)
}

// ThreadsBySession lists the threads materialized from one session.
func (s *Service) ThreadsBySession(ctx context.Context, sessionID domain.SessionID) ([]*domain.Thread, error) {
	return s.threads.ListThreadsBySession(ctx, sessionID)
}

// TopicByLabel returns the merged topic document, nil when unknown.
func (s *Service) TopicByLabel(ctx context.Context, topic domain.TopicLabel) (*domain.Topic, error) {
	return s.topics.GetTopic(ctx, topic)
}

// Topics lists every merged topic document.
func (s *Service) Topics(ctx context.Context) ([]*domain.Topic, error) {
	return s.topics.ListTopics(ctx)
}

// TopicContext returns text context for a topic: the concatenated messages
// of its threads, or a freshly generated session summary when the topic has
// no threads yet.
func (s *Service) TopicContext(ctx context.Context, sessionID domain.SessionID, topic domain.TopicLabel) (string, error) {
	threads, err := s.threads.ListThreadsByTopic(ctx, topic)
	if err != nil {
		return "", err
	}

	if len(threads) > 0 {
		var texts []string
		for _, thread := range threads {
			for _, msg := range thread.Messages {
				texts = append(texts, msg.Text)
			}
		}
		return strings.Join(texts, "\n"), nil
	}

	summary, err := s.Summarize(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return strings.Join(summary.Summary, "\n"), nil
}

// normalizeTopics lowercases, trims and dedupes labels, keeping provider
// order.
func normalizeTopics(topics []domain.TopicLabel) []domain.TopicLabel {
	seen := make(map[domain.TopicLabel]bool, len(topics))
	out := make([]domain.TopicLabel, 0, len(topics))
	for _, t := range topics {
		label := domain.TopicLabel(strings.ToLower(strings.TrimSpace(string(t))))
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, label)
	}
	return out
}
