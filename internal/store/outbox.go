package store

import (
	"context"
	"fmt"

	"order-intake/internal/models"

	"github.com/google/uuid"
)

// FetchPendingOutbox returns up to limit PENDING outbox rows in FIFO
// order. SKIP LOCKED sidesteps rows another statement holds, but the
// single-statement transaction releases the locks as soon as the
// SELECT returns; overlapping pollers can still publish the same row
// twice, which consumer-side dedup absorbs.
func (s *Store) FetchPendingOutbox(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	var events []models.OutboxEvent
	err := s.db.SelectContext(ctx, &events, `
		SELECT * FROM order_created_outbox
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`,
		models.OutboxStatusPending, limit)
	return events, err
}

// MarkOutboxPublished transitions a row PENDING -> PUBLISHED.
func (s *Store) MarkOutboxPublished(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE order_created_outbox SET status = $1, published_at = NOW() WHERE id = $2",
		models.OutboxStatusPublished, id)
	return err
}

// RecordOutboxFailure increments the retry count and stores the error.
// Once the count reaches maxRetries the row is marked FAILED and lands
// in the dead-letter view.
func (s *Store) RecordOutboxFailure(ctx context.Context, id uuid.UUID, errMsg string, maxRetries int) error {
	if len(errMsg) > 500 {
		errMsg = errMsg[:500]
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE order_created_outbox
		SET retry_count = retry_count + 1,
		    error_message = $1,
		    status = CASE WHEN retry_count + 1 >= $2 THEN $3 ELSE status END
		WHERE id = $4`,
		errMsg, maxRetries, models.OutboxStatusFailed, id)
	if err != nil {
		return fmt.Errorf("failed to record outbox failure: %w", err)
	}
	return nil
}

// FetchFailedOutbox returns dead-lettered rows for operational review.
func (s *Store) FetchFailedOutbox(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	var events []models.OutboxEvent
	err := s.db.SelectContext(ctx, &events,
		"SELECT * FROM order_created_outbox WHERE status = $1 ORDER BY created_at LIMIT $2",
		models.OutboxStatusFailed, limit)
	return events, err
}
