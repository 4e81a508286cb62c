package eventstore

import (
	"context"
	"fmt"

	"github.com/craterhub/downloads-accounting/internal/adapter"
)

// redisStore implements Store on top of Redis lists
type redisStore struct {
	client adapter.RedisClient
}

// NewRedisStore creates a Store backed by Redis lists
func NewRedisStore(client adapter.RedisClient) Store {
	return &redisStore{client: client}
}

// Append adds a record to the tail of the list at key
func (s *redisStore) Append(ctx context.Context, key string, record string) error {
	if err := s.client.RPush(ctx, key, record); err != nil {
		return fmt.Errorf("failed to append to %s: %w", key, err)
	}
	return nil
}

// DrainAll atomically reads every record at key and clears the list
func (s *redisStore) DrainAll(ctx context.Context, key string) ([]string, error) {
	records, err := s.client.LRangeAndDelete(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to drain %s: %w", key, err)
	}
	return records, nil
}

// ReadAll returns every record at key without removing them
func (s *redisStore) ReadAll(ctx context.Context, key string) ([]string, error) {
	records, err := s.client.LRange(ctx, key, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return records, nil
}

// Clear removes every record at key
func (s *redisStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key); err != nil {
		return fmt.Errorf("failed to clear %s: %w", key, err)
	}
	return nil
}

// Length returns the number of records at key
func (s *redisStore) Length(ctx context.Context, key string) (int64, error) {
	n, err := s.client.LLen(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("failed to get length of %s: %w", key, err)
	}
	return n, nil
}
