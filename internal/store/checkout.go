package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"order-intake/internal/models"
)

const dateKeyFormat = "20060102"

// AllocateOrderNumber returns the next order number for today, formatted
// ORD-YYYYMMDD-<n>. It runs in its own SERIALIZABLE transaction with an
// exclusive lock on the day's sequence row, and commits before the
// surrounding checkout transaction; concurrent checkouts never receive
// the same number even if one later aborts. Gaps on abort are accepted.
func (s *Store) AllocateOrderNumber(ctx context.Context) (string, error) {
	dateKey := time.Now().UTC().Format(dateKeyFormat)

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return "", fmt.Errorf("failed to begin sequence transaction: %w", err)
	}
	defer tx.Rollback()

	// Lazily create today's row; ON CONFLICT makes creation race-safe.
	_, err = tx.ExecContext(ctx,
		"INSERT INTO order_number_sequences (date_key, last_sequence) VALUES ($1, 0) ON CONFLICT (date_key) DO NOTHING",
		dateKey)
	if err != nil {
		return "", fmt.Errorf("failed to ensure sequence row: %w", err)
	}

	var next int64
	err = tx.GetContext(ctx, &next,
		"UPDATE order_number_sequences SET last_sequence = last_sequence + 1, updated_at = NOW() WHERE date_key = $1 RETURNING last_sequence",
		dateKey)
	if err != nil {
		return "", fmt.Errorf("failed to increment sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit sequence transaction: %w", err)
	}

	return fmt.Sprintf("ORD-%s-%d", dateKey, next), nil
}

// ReservationLine is one cart line to reserve during checkout.
type ReservationLine struct {
	ProductID int64
	Quantity  int
}

// StageCheckout reserves inventory for every line and stages the outbox
// row in a single SERIALIZABLE transaction. The first line that cannot
// be satisfied aborts the whole transaction: no partial decrement and no
// outbox row survive a failure.
func (s *Store) StageCheckout(ctx context.Context, lines []ReservationLine, outbox *models.OutboxEvent) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin checkout transaction: %w", err)
	}
	defer tx.Rollback()

	for _, line := range lines {
		if err := reserveInventoryTx(ctx, tx, line.ProductID, line.Quantity); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_created_outbox
			(id, aggregate_id, aggregate_type, event_type, payload, status, retry_count)
		VALUES ($1, $2, $3, $4, $5, $6, 0)`,
		outbox.ID, outbox.AggregateID, outbox.AggregateType, outbox.EventType,
		outbox.Payload, models.OutboxStatusPending)
	if err != nil {
		return fmt.Errorf("failed to stage outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkout transaction: %w", err)
	}
	return nil
}
