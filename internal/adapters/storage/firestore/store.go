package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/novalabs/nova-agent/internal/domain"
)

// Store implements every storage port on top of Firestore. No multi-document
// transactions are used: the topic invariant is held by keyed sub-document
// creates instead (see AddTopicEntry).
type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store for the given project
// (NOVA_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) sessionsCol() *firestore.CollectionRef {
	return s.client.Collection("sessions")
}

func (s *Store) messagesCol() *firestore.CollectionRef {
	return s.client.Collection("messages")
}

func (s *Store) summariesCol() *firestore.CollectionRef {
	return s.client.Collection("summaries")
}

func (s *Store) threadsCol() *firestore.CollectionRef {
	return s.client.Collection("threads")
}

func (s *Store) topicDoc(topic domain.TopicLabel) *firestore.DocumentRef {
	return s.client.Collection("topics").Doc(string(topic))
}

func (s *Store) topicSessionsCol(topic domain.TopicLabel) *firestore.CollectionRef {
	return s.topicDoc(topic).Collection("sessions")
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type sessionDoc struct {
	SessionID    string    `firestore:"session_id"`
	CreatedAt    time.Time `firestore:"created_at"`
	LastActivity time.Time `firestore:"last_activity"`
}

type messageDoc struct {
	MessageID     string    `firestore:"message_id"`
	SessionID     string    `firestore:"session_id"`
	Text          string    `firestore:"text"`
	Timestamp     time.Time `firestore:"timestamp"`
	Tags          []string  `firestore:"tags"`
	Mood          string    `firestore:"mood"`
	QuotedReplyTo *string   `firestore:"quoted_reply_to"`
	QuotedText    string    `firestore:"quoted_text"`
}

type summaryDoc struct {
	SessionID string    `firestore:"session_id"`
	Summary   []string  `firestore:"summary"`
	Topics    []string  `firestore:"topics"`
	Timestamp time.Time `firestore:"timestamp"`
}

type threadDoc struct {
	ThreadID  string       `firestore:"thread_id"`
	Topic     string       `firestore:"topic"`
	SessionID string       `firestore:"session_id"`
	Messages  []messageDoc `firestore:"messages"`
	CreatedAt time.Time    `firestore:"created_at"`
	UpdatedAt time.Time    `firestore:"updated_at"`
}

type topicEntryDoc struct {
	SessionID  string    `firestore:"session_id"`
	Summary    []string  `firestore:"summary"`
	Timestamp  time.Time `firestore:"timestamp"`
	MessageIDs []string  `firestore:"message_ids"`
}

func toMessageDoc(msg *domain.Message) messageDoc {
	var replyTo *string
	if msg.QuotedReplyTo != nil {
		v := string(*msg.QuotedReplyTo)
		replyTo = &v
	}

	return messageDoc{
		MessageID:     string(msg.ID),
		SessionID:     string(msg.SessionID),
		Text:          msg.Text,
		Timestamp:     msg.Timestamp,
		Tags:          msg.Tags,
		Mood:          string(msg.Mood),
		QuotedReplyTo: replyTo,
		QuotedText:    msg.QuotedText,
	}
}

func fromMessageDoc(doc messageDoc) *domain.Message {
	var replyTo *domain.MessageID
	if doc.QuotedReplyTo != nil {
		id := domain.MessageID(*doc.QuotedReplyTo)
		replyTo = &id
	}

	return &domain.Message{
		ID:            domain.MessageID(doc.MessageID),
		SessionID:     domain.SessionID(doc.SessionID),
		Text:          doc.Text,
		Timestamp:     doc.Timestamp,
		Tags:          doc.Tags,
		Mood:          domain.Mood(doc.Mood),
		QuotedReplyTo: replyTo,
		QuotedText:    doc.QuotedText,
	}
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	doc := sessionDoc{
		SessionID:    string(session.ID),
		CreatedAt:    session.CreatedAt,
		LastActivity: session.LastActivity,
	}

	_, err := s.sessionsCol().Doc(string(session.ID)).Create(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore CreateSession: %w", err)
	}
	return nil
}

func (s *Store) UpdateLastActivity(ctx context.Context, id domain.SessionID, at domain.Timestamp) error {
	_, err := s.sessionsCol().Doc(string(id)).Update(ctx, []firestore.Update{
		{Path: "last_activity", Value: at},
	})
	if err != nil {
		return fmt.Errorf("firestore UpdateLastActivity: %w", err)
	}
	return nil
}

func (s *Store) MostRecentSession(ctx context.Context) (*domain.Session, error) {
	iter := s.sessionsCol().OrderBy("last_activity", firestore.Desc).Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err != nil {
		if err == iterator.Done {
			return nil, nil
		}
		return nil, fmt.Errorf("firestore MostRecentSession: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode sessionDoc: %w", err)
	}

	return &domain.Session{
		ID:           domain.SessionID(doc.SessionID),
		CreatedAt:    doc.CreatedAt,
		LastActivity: doc.LastActivity,
	}, nil
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	snap, err := s.sessionsCol().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("session not found")
		}
		return nil, fmt.Errorf("firestore GetSession: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode sessionDoc: %w", err)
	}

	return &domain.Session{
		ID:           id,
		CreatedAt:    doc.CreatedAt,
		LastActivity: doc.LastActivity,
	}, nil
}

// ─────────────────────────────────────────
// MessageStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendMessage(ctx context.Context, msg *domain.Message) error {
	_, err := s.messagesCol().Doc(string(msg.ID)).Create(ctx, toMessageDoc(msg))
	if err != nil {
		return fmt.Errorf("firestore AppendMessage: %w", err)
	}
	return nil
}

func (s *Store) GetMessage(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	snap, err := s.messagesCol().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("message not found")
		}
		return nil, fmt.Errorf("firestore GetMessage: %w", err)
	}

	var doc messageDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode messageDoc: %w", err)
	}
	return fromMessageDoc(doc), nil
}

func (s *Store) ListMessages(ctx context.Context, sessionID domain.SessionID) ([]*domain.Message, error) {
	q := s.messagesCol().OrderBy("timestamp", firestore.Asc)
	if sessionID != "" {
		q = s.messagesCol().
			Where("session_id", "==", string(sessionID)).
			OrderBy("timestamp", firestore.Asc)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.Message
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListMessages: %w", err)
		}

		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode messageDoc: %w", err)
		}
		out = append(out, fromMessageDoc(doc))
	}
	return out, nil
}

// ─────────────────────────────────────────
// SummaryStore implementation
// ─────────────────────────────────────────

func (s *Store) AddSummary(ctx context.Context, summary *domain.SessionSummary) error {
	topics := make([]string, 0, len(summary.Topics))
	for _, t := range summary.Topics {
		topics = append(topics, string(t))
	}

	doc := summaryDoc{
		SessionID: string(summary.SessionID),
		Summary:   summary.Summary,
		Topics:    topics,
		Timestamp: summary.Timestamp,
	}

	_, _, err := s.summariesCol().Add(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore AddSummary: %w", err)
	}
	return nil
}

func (s *Store) ListSummaries(ctx context.Context, sessionID domain.SessionID) ([]*domain.SessionSummary, error) {
	q := s.summariesCol().OrderBy("timestamp", firestore.Asc)
	if sessionID != "" {
		q = s.summariesCol().
			Where("session_id", "==", string(sessionID)).
			OrderBy("timestamp", firestore.Asc)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.SessionSummary
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListSummaries: %w", err)
		}

		var doc summaryDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode summaryDoc: %w", err)
		}

		topics := make([]domain.TopicLabel, 0, len(doc.Topics))
		for _, t := range doc.Topics {
			topics = append(topics, domain.TopicLabel(t))
		}

		out = append(out, &domain.SessionSummary{
			SessionID: domain.SessionID(doc.SessionID),
			Summary:   doc.Summary,
			Topics:    topics,
			Timestamp: doc.Timestamp,
		})
	}
	return out, nil
}

// ─────────────────────────────────────────
// ThreadStore implementation
// ─────────────────────────────────────────

func (s *Store) PutThread(ctx context.Context, thread *domain.Thread) error {
	msgs := make([]messageDoc, 0, len(thread.Messages))
	for _, m := range thread.Messages {
		msgs = append(msgs, toMessageDoc(m))
	}

	doc := threadDoc{
		ThreadID:  string(thread.ID),
		Topic:     string(thread.Topic),
		SessionID: string(thread.SessionID),
		Messages:  msgs,
		CreatedAt: thread.CreatedAt,
		UpdatedAt: thread.UpdatedAt,
	}

	_, err := s.threadsCol().Doc(string(thread.ID)).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore PutThread: %w", err)
	}
	return nil
}

func (s *Store) ListThreadsByTopic(ctx context.Context, topic domain.TopicLabel) ([]*domain.Thread, error) {
	q := s.threadsCol().Where("topic", "==", string(topic)).OrderBy("created_at", firestore.Asc)
	return s.listThreads(ctx, q)
}

func (s *Store) ListThreadsBySession(ctx context.Context, sessionID domain.SessionID) ([]*domain.Thread, error) {
	q := s.threadsCol().Where("session_id", "==", string(sessionID)).OrderBy("created_at", firestore.Asc)
	return s.listThreads(ctx, q)
}

func (s *Store) ListThreads(ctx context.Context) ([]*domain.Thread, error) {
	return s.listThreads(ctx, s.threadsCol().OrderBy("created_at", firestore.Asc))
}

func (s *Store) listThreads(ctx context.Context, q firestore.Query) ([]*domain.Thread, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.Thread
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore listThreads: %w", err)
		}

		var doc threadDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode threadDoc: %w", err)
		}

		msgs := make([]*domain.Message, 0, len(doc.Messages))
		for _, m := range doc.Messages {
			msgs = append(msgs, fromMessageDoc(m))
		}

		out = append(out, &domain.Thread{
			ID:        domain.ThreadID(doc.ThreadID),
			Topic:     domain.TopicLabel(doc.Topic),
			SessionID: domain.SessionID(doc.SessionID),
			Messages:  msgs,
			CreatedAt: doc.CreatedAt,
			UpdatedAt: doc.UpdatedAt,
		})
	}
	return out, nil
}

// ─────────────────────────────────────────
// TopicStore implementation
// ─────────────────────────────────────────

// AddTopicEntry writes one sub-document per (topic, session). The keyed
// Create makes a repeated aggregation for the same session an AlreadyExists,
// which is swallowed: the first entry wins and stays unchanged.
func (s *Store) AddTopicEntry(ctx context.Context, topic domain.TopicLabel, entry domain.TopicEntry) error {
	ids := make([]string, 0, len(entry.MessageIDs))
	for _, id := range entry.MessageIDs {
		ids = append(ids, string(id))
	}

	doc := topicEntryDoc{
		SessionID:  string(entry.SessionID),
		Summary:    entry.Summary,
		Timestamp:  entry.Timestamp,
		MessageIDs: ids,
	}

	_, err := s.topicSessionsCol(topic).Doc(string(entry.SessionID)).Create(ctx, doc)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil
		}
		return fmt.Errorf("firestore AddTopicEntry: %w", err)
	}

	// Keep a parent doc so the topic shows up in collection listings.
	_, err = s.topicDoc(topic).Set(ctx, map[string]interface{}{
		"topic":      string(topic),
		"updated_at": entry.Timestamp,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("firestore AddTopicEntry parent: %w", err)
	}
	return nil
}

func (s *Store) GetTopic(ctx context.Context, topic domain.TopicLabel) (*domain.Topic, error) {
	iter := s.topicSessionsCol(topic).OrderBy("timestamp", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var entries []domain.TopicEntry
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore GetTopic: %w", err)
		}

		var doc topicEntryDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode topicEntryDoc: %w", err)
		}
		entries = append(entries, fromTopicEntryDoc(doc))
	}

	if len(entries) == 0 {
		return nil, nil
	}
	return &domain.Topic{Label: topic, Sessions: entries}, nil
}

func (s *Store) ListTopics(ctx context.Context) ([]*domain.Topic, error) {
	iter := s.client.Collection("topics").Documents(ctx)
	defer iter.Stop()

	var out []*domain.Topic
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListTopics: %w", err)
		}

		topic, err := s.GetTopic(ctx, domain.TopicLabel(snap.Ref.ID))
		if err != nil {
			return nil, err
		}
		if topic != nil {
			out = append(out, topic)
		}
	}
	return out, nil
}

func fromTopicEntryDoc(doc topicEntryDoc) domain.TopicEntry {
	ids := make([]domain.MessageID, 0, len(doc.MessageIDs))
	for _, id := range doc.MessageIDs {
		ids = append(ids, domain.MessageID(id))
	}
	return domain.TopicEntry{
		SessionID:  domain.SessionID(doc.SessionID),
		Summary:    doc.Summary,
		Timestamp:  doc.Timestamp,
		MessageIDs: ids,
	}
}
