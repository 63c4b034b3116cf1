package redis

import (
	"os"
	"testing"
	"time"

	rds "github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) *ConversationStore {
	t.Helper()
	addr := os.Getenv("OPSDASH_REDIS_ADDR")
	if addr == "" {
		t.Skip("OPSDASH_REDIS_ADDR not set")
	}
	client := rds.NewClient(&rds.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	return NewConversationStore(client, "opsdash_test", time.Minute)
}

func TestConversationStore_Redis(t *testing.T) {
	ctx := t.Context()
	cs := newTestStore(t)
	session := "sess-redis-contract"
	t.Cleanup(func() { _ = cs.ClearSession(ctx, session) })

	if err := cs.AppendMessage(ctx, session, "user", "show me last week"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := cs.AppendMessage(ctx, session, "assistant", "here is the summary"); err != nil {
		t.Fatalf("append: %v", err)
	}

	msgs, err := cs.GetMessages(ctx, session)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != "user" || msgs[1].Content != "here is the summary" {
		t.Fatalf("unexpected history: %+v", msgs)
	}

	ids, err := cs.Sessions(ctx)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	found := false
	for _, id := range ids {
		if id == session {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected session id in %v", ids)
	}

	if err := cs.ClearSession(ctx, session); err != nil {
		t.Fatalf("clear: %v", err)
	}
	msgs, err = cs.GetMessages(ctx, session)
	if err != nil || len(msgs) != 0 {
		t.Fatalf("expected empty history after clear, got %v %v", msgs, err)
	}
}
