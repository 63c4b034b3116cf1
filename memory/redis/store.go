// Package redis backs the conversation store with a Redis list per session,
// so chat history survives restarts and is shared across replicas.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	rds "github.com/redis/go-redis/v9"

	"github.com/opsdash/opsdash/memory"
)

// ConversationStore implements memory.ConversationStore on Redis lists.
type ConversationStore struct {
	client *rds.Client
	prefix string
	ttl    time.Duration
}

// NewConversationStore creates a Redis-backed conversation store. A zero ttl
// keeps sessions forever.
func NewConversationStore(client *rds.Client, prefix string, ttl time.Duration) *ConversationStore {
	if prefix == "" {
		prefix = "opsdash"
	}
	return &ConversationStore{client: client, prefix: prefix, ttl: ttl}
}

func (cs *ConversationStore) convKey(sessionID string) string {
	return fmt.Sprintf("%s:conversation:%s", cs.prefix, sessionID)
}

// AppendMessage implements memory.ConversationStore.
func (cs *ConversationStore) AppendMessage(ctx context.Context, sessionID string, role, content string) error {
	key := cs.convKey(sessionID)
	msg := memory.Message{Role: role, Content: content, Timestamp: time.Now().Unix()}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := cs.client.RPush(ctx, key, b).Err(); err != nil {
		return err
	}
	if cs.ttl > 0 {
		_ = cs.client.Expire(ctx, key, cs.ttl).Err()
	}
	return nil
}

// GetMessages implements memory.ConversationStore.
func (cs *ConversationStore) GetMessages(ctx context.Context, sessionID string) ([]memory.Message, error) {
	key := cs.convKey(sessionID)
	vals, err := cs.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, rds.Nil) {
			return []memory.Message{}, nil
		}
		return nil, err
	}
	msgs := make([]memory.Message, 0, len(vals))
	for _, v := range vals {
		var m memory.Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// ClearSession implements memory.ConversationStore.
func (cs *ConversationStore) ClearSession(ctx context.Context, sessionID string) error {
	return cs.client.Del(ctx, cs.convKey(sessionID)).Err()
}

// Sessions implements memory.ConversationStore.
func (cs *ConversationStore) Sessions(ctx context.Context) ([]string, error) {
	pattern := cs.convKey("*")
	strip := cs.convKey("")
	var cursor uint64
	ids := []string{}
	for {
		keys, cur, err := cs.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			ids = append(ids, strings.TrimPrefix(k, strip))
		}
		if cur == 0 {
			break
		}
		cursor = cur
	}
	return ids, nil
}

var _ memory.ConversationStore = (*ConversationStore)(nil)
