package eventstore

import (
	"context"
	"sync"
)

// memoryStore implements Store with in-process lists.
// It is used by unit tests and single-node development setups where
// durability across restarts is not needed.
type memoryStore struct {
	mu    sync.Mutex
	lists map[string][]string
}

// NewMemoryStore creates an in-memory Store
func NewMemoryStore() Store {
	return &memoryStore{lists: make(map[string][]string)}
}

func (s *memoryStore) Append(_ context.Context, key string, record string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[key] = append(s.lists[key], record)
	return nil
}

func (s *memoryStore) DrainAll(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.lists[key]
	delete(s.lists, key)
	return records, nil
}

func (s *memoryStore) ReadAll(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.lists[key]
	out := make([]string, len(records))
	copy(out, records)
	return out, nil
}

func (s *memoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lists, key)
	return nil
}

func (s *memoryStore) Length(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.lists[key])), nil
}
