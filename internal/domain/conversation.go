package domain

// Session represents a bounded window of conversational activity, closed by
// inactivity timeout. Sessions are never deleted, only superseded.
type Session struct {
	ID           SessionID
	CreatedAt    Timestamp
	LastActivity Timestamp
}

// Message is a single conversation turn. Immutable once persisted.
type Message struct {
	ID        MessageID
	SessionID SessionID
	Text      string
	Timestamp Timestamp
	Tags      []string
	Mood      Mood

	// QuotedReplyTo links an assistant reply to the user message it answers.
	// QuotedText snapshots that message's text at reply time.
	QuotedReplyTo *MessageID
	QuotedText    string
}

// MessageDraft is the caller-supplied part of a message, before the ledger
// stamps identity, session and timestamp.
type MessageDraft struct {
	SessionID     SessionID // empty: resolve via the session manager
	Text          string
	QuotedReplyTo *MessageID
	QuotedText    string
	Tags          []string
	Mood          Mood // empty: defaults to MoodUser
}
