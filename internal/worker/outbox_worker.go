// Package worker contains long-running background processes.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lllypuk/corekit/internal/application/appcore"
	"github.com/lllypuk/corekit/internal/domain/event"
	"github.com/lllypuk/corekit/internal/domain/uuid"
	"github.com/lllypuk/corekit/internal/infrastructure/metrics"
)

// Default outbox worker configuration values.
const (
	defaultOutboxPollInterval = 100 * time.Millisecond
	defaultOutboxBatchSize    = 100
	defaultOutboxMaxRetries   = 5
	defaultOutboxCleanupAge   = 7 * 24 * time.Hour
)

// OutboxWorkerConfig contains configuration for the outbox worker.
type OutboxWorkerConfig struct {
	// PollInterval is the time between polling the outbox for new events.
	PollInterval time.Duration

	// BatchSize is the maximum number of events to process in each poll cycle.
	BatchSize int

	// MaxRetries is the maximum number of retry attempts for failed publishes.
	MaxRetries int

	// CleanupAge is the age after which processed entries are cleaned up.
	CleanupAge time.Duration

	// CleanupInterval is how often to run the cleanup process.
	CleanupInterval time.Duration

	// Enabled determines if the worker should run.
	Enabled bool
}

// DefaultOutboxWorkerConfig returns sensible default configuration.
func DefaultOutboxWorkerConfig() OutboxWorkerConfig {
	return OutboxWorkerConfig{
		PollInterval:    defaultOutboxPollInterval,
		BatchSize:       defaultOutboxBatchSize,
		MaxRetries:      defaultOutboxMaxRetries,
		CleanupAge:      defaultOutboxCleanupAge,
		CleanupInterval: 1 * time.Hour,
		Enabled:         true,
	}
}

// OutboxWorker relays events from the outbox to the event bus.
type OutboxWorker struct {
	outbox   appcore.Outbox
	eventBus event.Bus
	logger   *slog.Logger
	config   OutboxWorkerConfig
	metrics  *metrics.OutboxMetrics
}

// NewOutboxWorker creates a new outbox worker.
func NewOutboxWorker(
	outbox appcore.Outbox,
	eventBus event.Bus,
	logger *slog.Logger,
	config OutboxWorkerConfig,
	metrics *metrics.OutboxMetrics,
) *OutboxWorker {
	if logger == nil {
		logger = slog.Default()
	}

	return &OutboxWorker{
		outbox:   outbox,
		eventBus: eventBus,
		logger:   logger,
		config:   config,
		metrics:  metrics,
	}
}

// Run polls the outbox until the context is cancelled, relaying each pending
// batch and periodically cleaning up processed entries.
func (w *OutboxWorker) Run(ctx context.Context) error {
	if !w.config.Enabled {
		w.logger.InfoContext(ctx, "outbox worker is disabled")
		return nil
	}

	w.logger.InfoContext(ctx, "starting outbox worker",
		slog.Duration("poll_interval", w.config.PollInterval),
		slog.Int("batch_size", w.config.BatchSize),
		slog.Int("max_retries", w.config.MaxRetries),
	)

	pollTicker := time.NewTicker(w.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(w.config.CleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "outbox worker stopped")
			return ctx.Err()

		case <-pollTicker.C:
			w.updateBacklogGauges(ctx)

			if err := w.ProcessPending(ctx); err != nil {
				w.logger.ErrorContext(ctx, "failed to process outbox batch",
					slog.String("error", err.Error()),
				)
			}

		case <-cleanupTicker.C:
			deleted, err := w.outbox.Cleanup(ctx, w.config.CleanupAge)
			if err != nil {
				w.logger.ErrorContext(ctx, "failed to cleanup outbox",
					slog.String("error", err.Error()),
				)
				continue
			}
			w.metrics.RecordCleanup(deleted)
		}
	}
}

// ProcessPending relays one batch of pending outbox entries to the event bus.
// Run calls it on every poll tick; callers embedding the relay in their own
// scheduler can invoke it directly.
func (w *OutboxWorker) ProcessPending(ctx context.Context) error {
	entries, err := w.outbox.Poll(ctx, w.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to poll outbox: %w", err)
	}

	if len(entries) == 0 {
		return nil
	}

	w.metrics.ObserveBatch(len(entries))

	w.logger.DebugContext(ctx, "processing outbox batch",
		slog.Int("count", len(entries)),
	)

	var processed, failed int
	for _, entry := range entries {
		if processErr := w.processEntry(ctx, entry); processErr != nil {
			failed++
			w.logger.WarnContext(ctx, "failed to process outbox entry",
				slog.String("entry_id", entry.ID),
				slog.String("event_type", entry.EventType),
				slog.String("error", processErr.Error()),
			)
		} else {
			processed++
		}
	}

	if processed > 0 || failed > 0 {
		w.logger.DebugContext(ctx, "outbox batch completed",
			slog.Int("processed", processed),
			slog.Int("failed", failed),
		)
	}

	return nil
}

// processEntry publishes a single outbox entry to the event bus.
func (w *OutboxWorker) processEntry(ctx context.Context, entry appcore.OutboxEntry) error {
	defer func() {
		w.metrics.ObserveEntryAge(entry.EventType, time.Since(entry.CreatedAt))
	}()

	if entry.RetryCount >= w.config.MaxRetries {
		return w.deadLetter(ctx, entry)
	}

	evt := &outboxEvent{
		eventID:       uuid.UUID(entry.EventID),
		eventType:     entry.EventType,
		aggregateID:   uuid.UUID(entry.AggregateID),
		aggregateType: entry.AggregateType,
		occurredAt:    entry.CreatedAt,
		payload:       entry.Payload,
	}

	publishStart := time.Now()
	if err := w.eventBus.Publish(ctx, evt); err != nil {
		w.metrics.RecordRetry(entry.EventType)

		// Mark as failed so the next poll cycle retries it.
		if markErr := w.outbox.MarkFailed(ctx, entry.ID, err); markErr != nil {
			w.logger.ErrorContext(ctx, "failed to mark outbox entry as failed",
				slog.String("entry_id", entry.ID),
				slog.String("error", markErr.Error()),
			)
		}
		return fmt.Errorf("failed to publish event: %w", err)
	}

	if err := w.outbox.MarkProcessed(ctx, entry.ID); err != nil {
		return fmt.Errorf("failed to mark entry as processed: %w", err)
	}

	w.metrics.RecordPublished(entry.EventType, time.Since(publishStart))

	return nil
}

// deadLetter abandons an entry that exhausted its retry budget: it is marked
// processed so it stops blocking the queue, and counted as failed.
func (w *OutboxWorker) deadLetter(ctx context.Context, entry appcore.OutboxEntry) error {
	w.logger.ErrorContext(ctx, "outbox entry exceeded max retries, marking as processed",
		slog.String("entry_id", entry.ID),
		slog.String("event_type", entry.EventType),
		slog.Int("retry_count", entry.RetryCount),
		slog.String("last_error", entry.LastError),
	)

	if err := w.outbox.MarkProcessed(ctx, entry.ID); err != nil {
		return err
	}

	w.metrics.RecordDeadLetter(entry.EventType)
	return nil
}

// updateBacklogGauges refreshes the pending-count and oldest-age gauges.
func (w *OutboxWorker) updateBacklogGauges(ctx context.Context) {
	if w.metrics == nil {
		return
	}

	count, oldest, err := w.outbox.Stats(ctx)
	if err != nil {
		w.logger.WarnContext(ctx, "failed to get outbox stats for metrics",
			slog.String("error", err.Error()),
		)
		return
	}

	w.metrics.SetBacklog(count, oldest)
}

// outboxEvent implements event.DomainEvent for events reconstructed from the outbox.
type outboxEvent struct {
	eventID       uuid.UUID
	eventType     string
	aggregateID   uuid.UUID
	aggregateType string
	occurredAt    time.Time
	version       int
	metadata      event.Metadata
	payload       []byte
}

func (e *outboxEvent) ID() uuid.UUID            { return e.eventID }
func (e *outboxEvent) EventType() string        { return e.eventType }
func (e *outboxEvent) AggregateID() uuid.UUID   { return e.aggregateID }
func (e *outboxEvent) AggregateType() string    { return e.aggregateType }
func (e *outboxEvent) OccurredAt() time.Time    { return e.occurredAt }
func (e *outboxEvent) Version() int             { return e.version }
func (e *outboxEvent) Metadata() event.Metadata { return e.metadata }

// Payload returns the raw JSON payload of the event.
func (e *outboxEvent) Payload() json.RawMessage { return e.payload }
