package eventstore

import "context"

// Store is the durable list contract backing the pending queue and the
// history ledger. Any durable FIFO list satisfies it; the production
// implementation uses Redis lists, tests use the in-memory implementation.
//
//go:generate mockgen -source=eventstore.go -destination=../mocks/eventstore.go -package=mocks -mock_names=Store=MockEventStore
type Store interface {
	// Append adds a record to the tail of the list at key
	Append(ctx context.Context, key string, record string) error

	// DrainAll atomically reads every record at key and clears the list.
	// Records are returned in arrival order.
	DrainAll(ctx context.Context, key string) ([]string, error)

	// ReadAll returns every record at key without removing them
	ReadAll(ctx context.Context, key string) ([]string, error)

	// Clear removes every record at key
	Clear(ctx context.Context, key string) error

	// Length returns the number of records at key
	Length(ctx context.Context, key string) (int64, error)
}
