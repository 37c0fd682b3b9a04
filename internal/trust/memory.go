package trust

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used in tests and when no Redis address
// is configured. Entries honor the same TTL as the Redis store.
type MemoryStore struct {
	Now func() time.Time

	mu      sync.Mutex
	entries map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]time.Time{}}
}

func (s *MemoryStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *MemoryStore) Put(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[hash] = s.now().Add(TTL)
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.entries[hash]
	if !ok {
		return false, nil
	}
	if s.now().After(expiry) {
		delete(s.entries, hash)
		return false, nil
	}
	return true, nil
}
