// Package agent turns chat messages into dashboard tool invocations. Routing
// is keyword based: the message text selects the tool and any parameters come
// from the message metadata, never from free-form date parsing.
package agent

import (
	"context"
	"time"
)

// Message represents a conversation message with role and content
type Message struct {
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	SessionID string            `json:"session_id,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Agent defines the chat interface for the dashboard
type Agent interface {
	// Run handles one message and returns the reply
	Run(ctx context.Context, input Message) (Message, error)

	// RunStream handles one message and streams reply chunks via the channel
	RunStream(ctx context.Context, input Message, output chan<- Message) error
}

// Config holds configuration for the dashboard agent
type Config struct {
	// Timeout bounds one Run call; zero means no agent-level deadline.
	Timeout time.Duration

	// Guardrails optionally screens inbound messages.
	Guardrails *Guardrails
}

// ToolRunner executes a named tool. Both the local registry and the
// remote-first dispatcher satisfy it.
type ToolRunner interface {
	Execute(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error)
}
