package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore is a process-local store for single-instance deployments
type MemoryStore struct {
	entries *lru.LRU[string, []byte]

	mu          sync.Mutex
	generations map[ResourceKind]int64
}

// NewMemoryStore creates an in-memory store. Entries expire after ttl
// regardless of the TTL passed to Set.
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 128
	}
	return &MemoryStore{
		entries:     lru.NewLRU[string, []byte](maxEntries, nil, ttl),
		generations: make(map[ResourceKind]int64),
	}
}

// Get returns the raw entry or ErrCacheMiss
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	val, ok := s.entries.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return val, nil
}

// Set stores an entry
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.entries.Add(key, value)
	return nil
}

// Delete removes entries
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.entries.Remove(k)
	}
	return nil
}

// Generation returns the kind's counter
func (s *MemoryStore) Generation(_ context.Context, kind ResourceKind) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[kind], nil
}

// BumpGeneration increments the kind's counter
func (s *MemoryStore) BumpGeneration(_ context.Context, kind ResourceKind) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[kind]++
	return s.generations[kind], nil
}
