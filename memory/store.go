// Package memory stores per-session chat history for the dashboard agent.
package memory

import "context"

// ConversationStore manages conversation history keyed by session id.
type ConversationStore interface {
	// AppendMessage adds a message to the conversation
	AppendMessage(ctx context.Context, sessionID string, role, content string) error

	// GetMessages retrieves conversation history, oldest first
	GetMessages(ctx context.Context, sessionID string) ([]Message, error)

	// ClearSession removes all messages for a session
	ClearSession(ctx context.Context, sessionID string) error

	// Sessions lists the session ids with stored history
	Sessions(ctx context.Context) ([]string, error)
}

// Message represents a conversation message
type Message struct {
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Timestamp int64             `json:"timestamp"`
	Meta      map[string]string `json:"meta,omitempty"`
}
