package store

import "context"

// Store defines the persistence sink the aggregator flushes into
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// IncrementVersionDownloads adds delta to a version's download total
	IncrementVersionDownloads(ctx context.Context, versionID string, delta int64) error

	// IncrementProjectDownloads adds delta to a project's download total
	IncrementProjectDownloads(ctx context.Context, projectID string, delta int64) error

	// UpsertDailyDownloads adds delta to a project's counter for the given day,
	// creating the row if it does not exist yet
	UpsertDailyDownloads(ctx context.Context, projectID string, date string, delta int64) error

	// RolloverDailyStats archives daily stats rows belonging to days before
	// today into the rollup table and resets them to zero for today
	RolloverDailyStats(ctx context.Context, today string) error
}
