package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/craterhub/downloads-accounting/internal/adapter"
	"github.com/craterhub/downloads-accounting/internal/domain"
	"github.com/craterhub/downloads-accounting/internal/eventstore"
	"github.com/craterhub/downloads-accounting/internal/logger"
)

// GateConfig holds configuration for the ingestion gate
type GateConfig struct {
	QueueKey     string
	MaxQueueSize int64 // pending events that force an eager flush
}

// SubmitInput is one download observation from the file-serving layer
type SubmitInput struct {
	IPAddress string
	UserID    string // empty for anonymous downloads
	ProjectID string
	VersionID string
}

// Gate validates download observations and appends them to the pending
// queue. When the queue outgrows MaxQueueSize the gate flushes eagerly
// instead of waiting for the scheduler, bounding queue growth under load.
type Gate struct {
	config    GateConfig
	events    eventstore.Store
	processor *Processor
	clock     adapter.Clock
}

// NewGate creates the ingestion gate
func NewGate(config GateConfig, events eventstore.Store, processor *Processor, clock adapter.Clock) *Gate {
	return &Gate{
		config:    config,
		events:    events,
		processor: processor,
		clock:     clock,
	}
}

// Submit records one download event. The returned error reports storage
// problems for observability, but callers serving downloads must treat it
// as fire-and-forget: a download response never fails because its
// accounting did.
func (g *Gate) Submit(ctx context.Context, in SubmitInput) error {
	event := domain.DownloadEvent{
		ID:        ulid.MustNewDefault(g.clock.Now()).String(),
		IPAddress: in.IPAddress,
		UserID:    in.UserID,
		ProjectID: in.ProjectID,
		VersionID: in.VersionID,
	}
	if !event.Valid() {
		return domain.ErrInvalidEvent
	}

	payload, err := json.Marshal(&event)
	if err != nil {
		return fmt.Errorf("failed to encode download event: %w", err)
	}

	if err := g.events.Append(ctx, g.config.QueueKey, string(payload)); err != nil {
		return err
	}

	length, err := g.events.Length(ctx, g.config.QueueKey)
	if err != nil {
		// Queue size unknown; the scheduled flush will catch up
		logger.WarnCtx(ctx, "Failed to read pending queue length", zap.Error(err))
		return nil
	}

	if length >= g.config.MaxQueueSize {
		logger.InfoCtx(ctx, "Pending queue exceeded limit, flushing eagerly",
			zap.Int64("length", length),
			zap.Int64("max_queue_size", g.config.MaxQueueSize),
		)
		if err := g.processor.ProcessOnce(ctx); err != nil && !errors.Is(err, domain.ErrCycleInFlight) {
			logger.ErrorCtx(ctx, err)
		}
	}

	return nil
}
