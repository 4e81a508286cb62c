package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/craterhub/downloads-accounting/internal/adapter"
	"github.com/craterhub/downloads-accounting/internal/domain"
	"github.com/craterhub/downloads-accounting/internal/eventstore"
	"github.com/craterhub/downloads-accounting/internal/logger"
	"github.com/craterhub/downloads-accounting/internal/store"
)

const dateLayout = "2006-01-02"

// ProcessorConfig holds configuration for the flush scheduler
type ProcessorConfig struct {
	FlushInterval   time.Duration // time between scheduled processing cycles
	QueueKey        string        // event store key of the pending queue
	HistoryKey      string        // event store key of the history ledger
	MaxPerIdentity  int           // dedup cap per identity per project per window
	WorkerPoolSize  int           // concurrent sink increment workers
	WorkerQueueSize int
}

// Processor owns the processing cycle: drain the pending queue, deduplicate
// against the history ledger, aggregate, and flush increments into the sink.
// It is the process-wide singleton flush scheduler; at most one cycle runs at
// a time, enforced by the processing flag.
type Processor struct {
	config ProcessorConfig
	events eventstore.Store
	sink   store.Store
	dedup  *Dedup
	clock  adapter.Clock

	processing atomic.Bool // single-flight guard for cycles
	running    atomic.Bool // guards the scheduler loop itself
	stopChan   chan struct{}
	stoppedCh  chan struct{}
}

// NewProcessor creates the flush scheduler
func NewProcessor(config ProcessorConfig, events eventstore.Store, sink store.Store, clock adapter.Clock) *Processor {
	return &Processor{
		config:    config,
		events:    events,
		sink:      sink,
		dedup:     NewDedup(config.MaxPerIdentity),
		clock:     clock,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Name returns the job's name
func (p *Processor) Name() string {
	return "downloads-processor"
}

// Processing reports whether a cycle is currently in flight
func (p *Processor) Processing() bool {
	return p.processing.Load()
}

// Start runs one unconditional cycle to drain anything a previous process
// left behind, then processes on a fixed interval until the context is
// canceled or Stop is called. Starting an already-started processor is an
// error, so a double initialization cannot arm two schedules.
func (p *Processor) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return fmt.Errorf("processor already running")
	}
	defer func() {
		p.running.Store(false)
		close(p.stoppedCh)
	}()

	logger.InfoCtx(ctx, "Starting downloads processor",
		zap.Duration("flush_interval", p.config.FlushInterval),
		zap.Int("max_per_identity", p.config.MaxPerIdentity),
	)

	p.trigger(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Downloads processor stopping due to context cancellation", zap.Error(ctx.Err()))
			return nil
		case <-p.stopChan:
			logger.InfoCtx(ctx, "Downloads processor stop requested")
			return nil
		case <-p.clock.After(p.config.FlushInterval):
			p.trigger(ctx)
		}
	}
}

// Stop gracefully stops the scheduler, waiting for an in-flight cycle
func (p *Processor) Stop(ctx context.Context) error {
	if !p.running.CompareAndSwap(true, false) {
		return nil // Already stopped
	}

	close(p.stopChan)

	select {
	case <-p.stoppedCh:
		logger.InfoCtx(ctx, "Downloads processor stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Downloads processor stop interrupted by context timeout")
		return ctx.Err()
	}
}

// trigger runs a cycle and logs failures; a busy processor is a no-op
func (p *Processor) trigger(ctx context.Context) {
	if err := p.ProcessOnce(ctx); err != nil && !errors.Is(err, domain.ErrCycleInFlight) {
		logger.ErrorCtx(ctx, err)
	}
}

// ProcessOnce runs a single processing cycle. If a cycle is already in
// flight it returns ErrCycleInFlight without touching the queue; events
// submitted during the running cycle are picked up by the next one.
func (p *Processor) ProcessOnce(ctx context.Context) error {
	if !p.processing.CompareAndSwap(false, true) {
		return domain.ErrCycleInFlight
	}
	defer p.processing.Store(false)

	return p.runCycle(ctx)
}

// runCycle is the cycle body: rollover, drain, dedup, aggregate, flush
func (p *Processor) runCycle(ctx context.Context) error {
	start := p.clock.Now()
	today := start.UTC().Format(dateLayout)

	// Archive completed daily-stat days before counting new downloads.
	// Failure is logged but does not block the cycle; the rows stay in
	// place and the next cycle retries the rollover.
	if err := p.rolloverWithRetry(ctx, today); err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("daily stats rollover failed: %w", err))
	}

	raw, err := p.events.DrainAll(ctx, p.config.QueueKey)
	if err != nil {
		// Transient store error: nothing was consumed, the next trigger retries
		return fmt.Errorf("failed to drain pending downloads: %w", err)
	}

	pending := p.decodeEvents(ctx, raw)
	if len(pending) == 0 {
		logger.DebugCtx(ctx, "No pending downloads to process")
		return nil
	}

	rawHistory, err := p.events.ReadAll(ctx, p.config.HistoryKey)
	if err != nil {
		return fmt.Errorf("failed to read downloads history: %w", err)
	}
	history := p.decodeEvents(ctx, rawHistory)

	accepted := p.dedup.Filter(pending, history)

	// Record acceptances in the ledger so future cycles see them.
	// Best effort: a failed append widens the dedup window for that
	// identity by one cycle at worst.
	for i := range accepted {
		payload, err := json.Marshal(&accepted[i])
		if err != nil {
			continue
		}
		if err := p.events.Append(ctx, p.config.HistoryKey, string(payload)); err != nil {
			logger.WarnCtx(ctx, "Failed to append accepted download to history",
				zap.String("event_id", accepted[i].ID),
				zap.Error(err),
			)
		}
	}

	counts := Aggregate(accepted)
	p.flush(ctx, counts, today)

	logger.InfoCtx(ctx, "Processing cycle completed",
		zap.Duration("duration", p.clock.Since(start)),
		zap.Int("pending", len(pending)),
		zap.Int("accepted", len(accepted)),
		zap.Int("duplicates", len(pending)-len(accepted)),
		zap.Int("versions", len(counts.Versions)),
		zap.Int("projects", len(counts.Projects)),
	)

	return nil
}

// decodeEvents parses raw queue records, skipping malformed payloads
func (p *Processor) decodeEvents(ctx context.Context, raw []string) []domain.DownloadEvent {
	events := make([]domain.DownloadEvent, 0, len(raw))
	for _, record := range raw {
		var e domain.DownloadEvent
		if err := json.Unmarshal([]byte(record), &e); err != nil {
			logger.WarnCtx(ctx, "Skipping malformed download record", zap.Error(err))
			continue
		}
		events = append(events, e)
	}
	return events
}

// flush pushes all increments into the sink concurrently. Each entity's
// increment is an independent task; one failure never blocks or rolls back
// the others.
func (p *Processor) flush(ctx context.Context, counts Counts, today string) {
	if len(counts.Versions) == 0 && len(counts.Projects) == 0 {
		return
	}

	pool := pond.NewPool(
		p.config.WorkerPoolSize,
		pond.WithQueueSize(p.config.WorkerQueueSize),
		pond.WithContext(ctx),
	)

	for versionID, count := range counts.Versions {
		pool.Submit(func() {
			if err := p.sink.IncrementVersionDownloads(ctx, versionID, count); err != nil {
				logger.ErrorCtx(ctx, err, zap.String("version_id", versionID), zap.Int64("delta", count))
			}
		})
	}

	for projectID, count := range counts.Projects {
		pool.Submit(func() {
			if err := p.sink.IncrementProjectDownloads(ctx, projectID, count); err != nil {
				logger.ErrorCtx(ctx, err, zap.String("project_id", projectID), zap.Int64("delta", count))
			}
		})
		pool.Submit(func() {
			if err := p.sink.UpsertDailyDownloads(ctx, projectID, today, count); err != nil {
				logger.ErrorCtx(ctx, err, zap.String("project_id", projectID), zap.Int64("delta", count))
			}
		})
	}

	pool.StopAndWait()
}

// rolloverWithRetry runs the daily-stats rollover with exponential backoff
func (p *Processor) rolloverWithRetry(ctx context.Context, today string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 2 * time.Minute
	b.RandomizationFactor = 0.5

	var attemptCount int
	notifyOnError := func(err error, duration time.Duration) {
		attemptCount++
		logger.WarnCtx(ctx, "Daily stats rollover failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attemptCount),
			zap.Duration("next_retry_in", duration),
		)
	}

	operation := func() error {
		return p.sink.RolloverDailyStats(ctx, today)
	}

	return backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notifyOnError)
}
