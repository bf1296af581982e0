package domain

import "time"

type SessionID string
type MessageID string
type ThreadID string

// TopicLabel is the lowercase label acting as primary key of a Topic.
type TopicLabel string

// Mood tags who produced a message.
type Mood string

const (
	MoodUser      Mood = "user"
	MoodAssistant Mood = "assistant"
)

type Timestamp = time.Time
