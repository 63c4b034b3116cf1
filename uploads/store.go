package uploads

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a table is absent or its TTL has elapsed.
var ErrNotFound = errors.New("uploads: table not found")

// Store caches parsed tables for a bounded lifetime.
type Store interface {
	// Save assigns the table an id and timestamp and caches it.
	Save(ctx context.Context, filename string, headers []string, rows [][]string) (*Table, error)

	// Get returns a cached table by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Table, error)

	// List returns up to limit cached tables, newest first.
	List(ctx context.Context, limit int) ([]Info, error)

	// Delete removes a table. It reports whether the table existed.
	Delete(ctx context.Context, id string) (bool, error)
}

type memoryEntry struct {
	table    Table
	expireAt time.Time
}

// MemoryStore is the in-process Store used when Redis is not configured.
// Expired entries are dropped lazily on access.
type MemoryStore struct {
	mu   sync.RWMutex
	ttl  time.Duration
	data map[string]memoryEntry

	now func() time.Time
}

// NewMemoryStore creates a store whose entries live for ttl. A non-positive
// ttl means entries never expire.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:  ttl,
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, filename string, headers []string, rows [][]string) (*Table, error) {
	table := Table{
		ID:        uuid.NewString(),
		Filename:  filename,
		Headers:   headers,
		Rows:      rows,
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry := memoryEntry{table: table}
	if s.ttl > 0 {
		entry.expireAt = s.now().Add(s.ttl)
	}
	s.data[table.ID] = entry
	cp := table
	return &cp, nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expireAt.IsZero() && s.now().After(entry.expireAt) {
		delete(s.data, id)
		return nil, ErrNotFound
	}
	cp := entry.table
	return &cp, nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context, limit int) ([]Info, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	infos := make([]Info, 0, len(s.data))
	for id, entry := range s.data {
		if !entry.expireAt.IsZero() && now.After(entry.expireAt) {
			delete(s.data, id)
			continue
		}
		infos = append(infos, entry.table.Info())
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
func (s *MemoryStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[id]; !ok {
		return false, nil
	}
	delete(s.data, id)
	return true, nil
}

var _ Store = (*MemoryStore)(nil)
