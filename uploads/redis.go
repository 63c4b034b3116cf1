package uploads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	rds "github.com/redis/go-redis/v9"
)

// RedisStore caches tables in Redis with a server-side TTL, so entries expire
// even across process restarts.
type RedisStore struct {
	client *rds.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps a Redis client. An empty prefix defaults to "uploads".
func NewRedisStore(client *rds.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "uploads"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":table:" + id
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, filename string, headers []string, rows [][]string) (*Table, error) {
	table := Table{
		ID:        uuid.NewString(),
		Filename:  filename,
		Headers:   headers,
		Rows:      rows,
		CreatedAt: time.Now().UTC(),
	}
	b, err := json.Marshal(table)
	if err != nil {
		return nil, fmt.Errorf("encode table: %w", err)
	}
	if err := s.client.Set(ctx, s.key(table.ID), b, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("cache table: %w", err)
	}
	cp := table
	return &cp, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (*Table, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, rds.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch table: %w", err)
	}
	var table Table
	if err := json.Unmarshal(val, &table); err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}
	return &table, nil
}

// List implements Store. Redis key scans are unordered, so entries are
// fetched and then sorted by creation time.
func (s *RedisStore) List(ctx context.Context, limit int) ([]Info, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := s.prefix + ":table:*"
	var cursor uint64
	var keys []string
	for {
		ks, cur, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan tables: %w", err)
		}
		keys = append(keys, ks...)
		if cur == 0 {
			break
		}
		cursor = cur
	}

	infos := make([]Info, 0, len(keys))
	for _, k := range keys {
		val, err := s.client.Get(ctx, k).Bytes()
		if errors.Is(err, rds.Nil) {
			// Expired between scan and fetch.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetch table: %w", err)
		}
		var table Table
		if err := json.Unmarshal(val, &table); err != nil {
			return nil, fmt.Errorf("decode table: %w", err)
		}
		infos = append(infos, table.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.After(infos[j].CreatedAt)
		}
		return infos[i].ID < infos[j].ID
	})
	if len(infos) > limit {
		infos = infos[:limit]
	}
	return infos, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("delete table: %w", err)
	}
	return n > 0, nil
}

var _ Store = (*RedisStore)(nil)
