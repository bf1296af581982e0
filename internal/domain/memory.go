package domain

// SessionSummary is the long-term distillation of one session: bullet points
// plus the lowercase topic labels the session touched. Produced at most once
// per session-expiry event, best effort.
type SessionSummary struct {
	SessionID SessionID
	Summary   []string
	Topics    []TopicLabel
	Timestamp Timestamp
}

// Thread is one session's contribution to a topic: the subset of the
// session's messages attributed to a single cluster.
type Thread struct {
	ID        ThreadID
	Topic     TopicLabel
	SessionID SessionID
	Messages  []*Message
	CreatedAt Timestamp
	UpdatedAt Timestamp
}

// TopicEntry is one session's summary entry inside a Topic.
type TopicEntry struct {
	SessionID  SessionID
	Summary    []string
	Timestamp  Timestamp
	MessageIDs []MessageID
}

// Topic aggregates, across sessions, one summary entry per contributing
// session. Invariant: at most one entry per distinct SessionID.
type Topic struct {
	Label    TopicLabel
	Sessions []TopicEntry
}

// SummaryResult is what the summarization provider returns for a transcript.
type SummaryResult struct {
	Bullets []string
	Topics  []TopicLabel
}
