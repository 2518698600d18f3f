// Package events delivers committed ledger events from the outbox to external sinks.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/smartbank-server/internal/logger"
	"github.com/dtroode/smartbank-server/internal/model"
)

// RelayConfig controls how often and how much the relay drains.
type RelayConfig struct {
	Interval  time.Duration
	BatchSize int
}

// Relay moves events from the outbox to every publisher. A batch is marked
// published only after all publishers accepted it, so delivery is at-least-once.
type Relay struct {
	outbox     model.EventOutbox
	publishers []model.EventPublisher
	cfg        RelayConfig
	logger     *logger.Logger
}

// NewRelay creates a relay. At least one publisher is required.
func NewRelay(outbox model.EventOutbox, publishers []model.EventPublisher, cfg RelayConfig, logger *logger.Logger) (*Relay, error) {
	if len(publishers) == 0 {
		return nil, errors.New("no event publishers configured")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("invalid relay interval %s", cfg.Interval)
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("invalid relay batch size %d", cfg.BatchSize)
	}

	return &Relay{
		outbox:     outbox,
		publishers: publishers,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// Run drains the outbox every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.Info("Event relay: started", "interval", r.cfg.Interval, "batch_size", r.cfg.BatchSize)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Event relay: stopped")
			return nil
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

// drain flushes full batches back to back so a backlog clears within one tick.
func (r *Relay) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := r.Flush(ctx)
		if err != nil {
			r.logger.Error("Event relay: flush failed", "error", err)
			return
		}
		if n < r.cfg.BatchSize {
			return
		}
	}
}

// Flush publishes one batch and returns how many events were delivered.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	batch, err := r.outbox.PendingEvents(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to read pending events: %w", err)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	for _, p := range r.publishers {
		if err := p.Publish(ctx, batch); err != nil {
			return 0, fmt.Errorf("failed to publish events: %w", err)
		}
	}

	ids := make([]uuid.UUID, len(batch))
	for i, e := range batch {
		ids[i] = e.ID
	}
	if err := r.outbox.MarkPublished(ctx, ids); err != nil {
		return 0, fmt.Errorf("failed to mark events published: %w", err)
	}

	r.logger.Debug("Event relay: batch delivered", "count", len(batch))
	return len(batch), nil
}
