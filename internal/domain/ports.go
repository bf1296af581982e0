package domain

import "context"

// SessionStore defines session persistence.
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	// UpdateLastActivity overwrites only last_activity.
	UpdateLastActivity(ctx context.Context, id SessionID, at Timestamp) error
	// MostRecentSession returns the session with the greatest last_activity,
	// or nil if no session exists.
	MostRecentSession(ctx context.Context) (*Session, error)
	GetSession(ctx context.Context, id SessionID) (*Session, error)
}

// MessageStore defines message persistence. Append-only.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id MessageID) (*Message, error)
	// ListMessages returns messages ordered by timestamp ascending.
	// An empty sessionID lists across all sessions.
	ListMessages(ctx context.Context, sessionID SessionID) ([]*Message, error)
}

// SummaryStore defines session-summary persistence.
type SummaryStore interface {
	AddSummary(ctx context.Context, summary *SessionSummary) error
	// ListSummaries returns summaries ordered by timestamp ascending.
	// An empty sessionID lists across all sessions.
	ListSummaries(ctx context.Context, sessionID SessionID) ([]*SessionSummary, error)
}

// ThreadStore defines thread persistence. PutThread is keyed by thread id,
// so re-materializing a session overwrites rather than duplicates.
type ThreadStore interface {
	PutThread(ctx context.Context, thread *Thread) error
	ListThreadsByTopic(ctx context.Context, topic TopicLabel) ([]*Thread, error)
	ListThreadsBySession(ctx context.Context, sessionID SessionID) ([]*Thread, error)
	ListThreads(ctx context.Context) ([]*Thread, error)
}

// TopicStore defines topic aggregation persistence. AddTopicEntry is keyed by
// (topic, session): adding an entry for a session already present is a no-op,
// which makes repeated aggregation idempotent.
type TopicStore interface {
	AddTopicEntry(ctx context.Context, topic TopicLabel, entry TopicEntry) error
	// GetTopic merges the per-session entries, ordered by entry timestamp.
	// Returns nil when the topic has never been written.
	GetTopic(ctx context.Context, topic TopicLabel) (*Topic, error)
	ListTopics(ctx context.Context) ([]*Topic, error)
}

// DialogClient is the text-generation provider boundary.
type DialogClient interface {
	Generate(ctx context.Context, userPrompt string) (string, error)
	// Stream yields a lazy, finite, non-restartable sequence of text
	// fragments. The channel is closed when generation ends.
	Stream(ctx context.Context, userPrompt string) (<-chan string, error)
}

// MemoryClient is the summarization/clustering provider boundary.
type MemoryClient interface {
	Summarize(ctx context.Context, msgs []*Message) (SummaryResult, error)
	// Cluster returns groups of 0-based indices into msgs. Callers must
	// validate index bounds before dereferencing.
	Cluster(ctx context.Context, msgs []*Message) ([][]int, error)
}
