package outbox

import (
	"context"
	"time"

	"order-intake/internal/models"
	"order-intake/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the outbox table surface the publisher polls.
type Store interface {
	FetchPendingOutbox(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkOutboxPublished(ctx context.Context, id uuid.UUID) error
	RecordOutboxFailure(ctx context.Context, id uuid.UUID, errMsg string, maxRetries int) error
}

// Producer publishes pre-serialized payloads to the bus.
type Producer interface {
	PublishRaw(ctx context.Context, key string, payload []byte) error
}

// Publisher drains PENDING outbox rows to Kafka on a fixed interval.
// Delivery is at-least-once: a crash between publish and mark, or a
// second publisher instance racing the fetch, can put the same row on
// the bus twice, and consumer-side dedup absorbs both cases.
type Publisher struct {
	store      Store
	producer   Producer
	interval   time.Duration
	batchSize  int
	maxRetries int
	logger     *zap.Logger
}

// NewPublisher creates a new outbox publisher
func NewPublisher(store Store, producer Producer, interval time.Duration, batchSize, maxRetries int) *Publisher {
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &Publisher{
		store:      store,
		producer:   producer,
		interval:   interval,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		logger:     util.GetLogger(),
	}
}

// Run polls until the context is cancelled. Blocking; run in a
// goroutine.
func (p *Publisher) Run(ctx context.Context) {
	p.logger.Info("Starting outbox publisher",
		zap.Duration("interval", p.interval),
		zap.Int("batch_size", p.batchSize))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox publisher stopping")
			return
		case <-ticker.C:
			if err := p.Drain(ctx); err != nil {
				p.logger.Error("Outbox drain failed", zap.Error(err))
			}
		}
	}
}

// Drain publishes one batch of pending rows in creation order. A row
// that fails to publish gets its retry count bumped and is retried on
// a later tick until maxRetries dead-letters it.
func (p *Publisher) Drain(ctx context.Context) error {
	events, err := p.store.FetchPendingOutbox(ctx, p.batchSize)
	if err != nil {
		return err
	}

	for i := range events {
		ev := &events[i]
		if err := p.producer.PublishRaw(ctx, ev.AggregateID.String(), ev.Payload); err != nil {
			util.OutboxFailuresTotal.Inc()
			p.logger.Error("Failed to publish outbox event",
				zap.String("outbox_id", ev.ID.String()),
				zap.String("event_type", ev.EventType),
				zap.Int("retry_count", ev.RetryCount),
				zap.Error(err))
			if markErr := p.store.RecordOutboxFailure(ctx, ev.ID, err.Error(), p.maxRetries); markErr != nil {
				p.logger.Error("Failed to record outbox failure",
					zap.String("outbox_id", ev.ID.String()), zap.Error(markErr))
			} else if ev.RetryCount+1 >= p.maxRetries {
				util.OutboxDeadLetteredTotal.Inc()
				p.logger.Error("Outbox event dead-lettered",
					zap.String("outbox_id", ev.ID.String()),
					zap.String("event_type", ev.EventType))
			}
			continue
		}

		util.OutboxPublishedTotal.Inc()
		if err := p.store.MarkOutboxPublished(ctx, ev.ID); err != nil {
			// Already on the bus; the row stays PENDING and will be
			// republished. Consumers dedup on event id.
			p.logger.Error("Failed to mark outbox event published",
				zap.String("outbox_id", ev.ID.String()), zap.Error(err))
		}
	}

	return nil
}
