package store

import (
	"context"
	"database/sql"
	"fmt"

	"order-intake/internal/models"
)

// GetIdempotency retrieves a non-expired idempotency record, or nil if
// the key is unknown or the record has expired.
func (s *Store) GetIdempotency(ctx context.Context, key string) (*models.CheckoutIdempotency, error) {
	var rec models.CheckoutIdempotency
	err := s.db.GetContext(ctx, &rec,
		"SELECT * FROM checkout_idempotency WHERE idempotency_key = $1 AND expires_at > NOW()", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// InsertIdempotency stores a cached checkout response. A live record is
// never overwritten: two retries of the same key may both read "fresh"
// before either writes, and the first writer wins. An expired record
// still occupying the key is superseded, so a reused key starts a fresh
// 24h replay window instead of re-executing checkout on every retry.
func (s *Store) InsertIdempotency(ctx context.Context, rec *models.CheckoutIdempotency) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkout_idempotency
			(idempotency_key, request_fingerprint, response_status, response_body, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (idempotency_key) DO UPDATE
		SET request_fingerprint = EXCLUDED.request_fingerprint,
		    response_status = EXCLUDED.response_status,
		    response_body = EXCLUDED.response_body,
		    created_at = EXCLUDED.created_at,
		    expires_at = EXCLUDED.expires_at
		WHERE checkout_idempotency.expires_at <= NOW()`,
		rec.IdempotencyKey, rec.RequestFingerprint, rec.ResponseStatus,
		rec.ResponseBody, rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert idempotency record: %w", err)
	}
	return nil
}

// DeleteExpiredIdempotency sweeps expired records. Correctness does not
// depend on this; it is storage hygiene only.
func (s *Store) DeleteExpiredIdempotency(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM checkout_idempotency WHERE expires_at <= NOW()")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
