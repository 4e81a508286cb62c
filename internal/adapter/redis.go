package adapter

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisClient defines the Redis operations the accounting pipeline depends on.
// Only the list primitives backing the event queue and history ledger are
// exposed, plus Ping for startup health checks.
//
//go:generate mockgen -source=redis.go -destination=../mocks/redis.go -package=mocks -mock_names=RedisClient=MockRedisClient
type RedisClient interface {
	// Ping checks if Redis is reachable
	Ping(ctx context.Context) error

	// RPush appends values to the tail of the list at key
	RPush(ctx context.Context, key string, values ...any) error

	// LRange returns the elements of the list at key between start and stop (inclusive)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// LRangeAndDelete atomically reads the whole list at key and deletes it
	LRangeAndDelete(ctx context.Context, key string) ([]string, error)

	// Del removes the given key
	Del(ctx context.Context, key string) error

	// LLen returns the length of the list at key
	LLen(ctx context.Context, key string) (int64, error)

	// Close closes the Redis connection
	Close() error
}

// RealRedisClient wraps the actual Redis client
type RealRedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis client
func NewRedisClient(addr, password string, db int) RedisClient {
	return &RealRedisClient{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// Ping checks if Redis is reachable
func (r *RealRedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// RPush appends values to the tail of the list at key
func (r *RealRedisClient) RPush(ctx context.Context, key string, values ...any) error {
	return r.client.RPush(ctx, key, values...).Err()
}

// LRange returns the elements of the list at key between start and stop (inclusive)
func (r *RealRedisClient) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return r.client.LRange(ctx, key, start, stop).Result()
}

// LRangeAndDelete atomically reads the whole list at key and deletes it.
// Both commands run inside a single MULTI/EXEC transaction so no concurrent
// producer can slip an element between the read and the delete.
func (r *RealRedisClient) LRangeAndDelete(ctx context.Context, key string) ([]string, error) {
	pipe := r.client.TxPipeline()
	rangeCmd := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return rangeCmd.Val(), nil
}

// Del removes the given key
func (r *RealRedisClient) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// LLen returns the length of the list at key
func (r *RealRedisClient) LLen(ctx context.Context, key string) (int64, error) {
	return r.client.LLen(ctx, key).Result()
}

// Close closes the Redis connection
func (r *RealRedisClient) Close() error {
	return r.client.Close()
}
