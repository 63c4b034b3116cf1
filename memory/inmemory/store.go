// Package inmemory provides a process-local conversation store, used when
// no Redis instance is configured.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/opsdash/opsdash/memory"
)

// ConversationStore implements memory.ConversationStore with a mutex-guarded
// map. History survives for the lifetime of the process only.
type ConversationStore struct {
	mu       sync.RWMutex
	sessions map[string][]memory.Message

	// maxMessages caps the per-session history; zero means unbounded.
	maxMessages int
}

// NewConversationStore creates a new in-memory conversation store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		sessions: make(map[string][]memory.Message),
	}
}

// SetMaxMessages caps how many messages a session keeps. Older messages are
// discarded first.
func (cs *ConversationStore) SetMaxMessages(n int) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.maxMessages = n
}

// AppendMessage implements memory.ConversationStore.
func (cs *ConversationStore) AppendMessage(ctx context.Context, sessionID string, role, content string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	msgs := append(cs.sessions[sessionID], memory.Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().Unix(),
	})
	if cs.maxMessages > 0 && len(msgs) > cs.maxMessages {
		msgs = msgs[len(msgs)-cs.maxMessages:]
	}
	cs.sessions[sessionID] = msgs
	return nil
}

// GetMessages implements memory.ConversationStore.
func (cs *ConversationStore) GetMessages(ctx context.Context, sessionID string) ([]memory.Message, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	msgs := cs.sessions[sessionID]
	out := make([]memory.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// ClearSession implements memory.ConversationStore.
func (cs *ConversationStore) ClearSession(ctx context.Context, sessionID string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	delete(cs.sessions, sessionID)
	return nil
}

// Sessions implements memory.ConversationStore.
func (cs *ConversationStore) Sessions(ctx context.Context) ([]string, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	ids := make([]string, 0, len(cs.sessions))
	for id := range cs.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}

var _ memory.ConversationStore = (*ConversationStore)(nil)
