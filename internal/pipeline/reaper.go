package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/craterhub/downloads-accounting/internal/adapter"
	"github.com/craterhub/downloads-accounting/internal/eventstore"
	"github.com/craterhub/downloads-accounting/internal/logger"
)

// ReaperConfig holds configuration for the history reaper
type ReaperConfig struct {
	HistoryKey    string
	HistoryWindow time.Duration // dedup window; the ledger is cleared in full every window
}

// Reaper clears the entire history ledger on a fixed schedule, bounding the
// dedup window. A cleared ledger intentionally lets previously-deduplicated
// identities count again.
type Reaper struct {
	config ReaperConfig
	events eventstore.Store
	clock  adapter.Clock

	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

// NewReaper creates the history reaper
func NewReaper(config ReaperConfig, events eventstore.Store, clock adapter.Clock) *Reaper {
	return &Reaper{
		config:    config,
		events:    events,
		clock:     clock,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Name returns the job's name
func (r *Reaper) Name() string {
	return "downloads-history-reaper"
}

// Start clears the ledger every history window until the context is
// canceled or Stop is called. Starting twice is an error, so duplicate
// reap schedules cannot exist.
func (r *Reaper) Start(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return fmt.Errorf("reaper already running")
	}
	defer func() {
		r.running.Store(false)
		close(r.stoppedCh)
	}()

	logger.InfoCtx(ctx, "Starting history reaper",
		zap.Duration("history_window", r.config.HistoryWindow),
	)

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "History reaper stopping due to context cancellation", zap.Error(ctx.Err()))
			return nil
		case <-r.stopChan:
			logger.InfoCtx(ctx, "History reaper stop requested")
			return nil
		case <-r.clock.After(r.config.HistoryWindow):
			if err := r.events.Clear(ctx, r.config.HistoryKey); err != nil {
				logger.ErrorCtx(ctx, fmt.Errorf("failed to clear downloads history: %w", err))
				continue
			}
			logger.InfoCtx(ctx, "Cleared downloads history ledger")
		}
	}
}

// Stop gracefully stops the reaper
func (r *Reaper) Stop(ctx context.Context) error {
	if !r.running.CompareAndSwap(true, false) {
		return nil // Already stopped
	}

	close(r.stopChan)

	select {
	case <-r.stoppedCh:
		logger.InfoCtx(ctx, "History reaper stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "History reaper stop interrupted by context timeout")
		return ctx.Err()
	}
}
