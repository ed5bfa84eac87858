package models

import "time"

// MessageType identifies who authored a transcript entry.
type MessageType string

const (
	MessageTypeUser MessageType = "user"
	MessageTypeAI   MessageType = "ai"
)

// Message is one transcript entry.
type Message struct {
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// Transcript is the ordered conversation with one character, oldest first.
type Transcript []Message

// NewUserMessage stamps a user message with the current time.
func NewUserMessage(content string) Message {
	return Message{Type: MessageTypeUser, Content: content, Timestamp: time.Now().UTC()}
}

// NewAIMessage stamps a companion message with the current time.
func NewAIMessage(content string) Message {
	return Message{Type: MessageTypeAI, Content: content, Timestamp: time.Now().UTC()}
}

// Clone returns a copy that shares no backing array with t.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return Transcript{}
	}
	out := make(Transcript, len(t))
	copy(out, t)
	return out
}
