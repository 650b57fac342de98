package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"order-intake/internal/apperr"
	"order-intake/internal/models"
	"order-intake/internal/util"

	"go.uber.org/zap"
)

// IdempotencyStore is the persistence surface the idempotency layer
// needs. *store.Store satisfies it.
type IdempotencyStore interface {
	GetIdempotency(ctx context.Context, key string) (*models.CheckoutIdempotency, error)
	InsertIdempotency(ctx context.Context, rec *models.CheckoutIdempotency) error
	DeleteExpiredIdempotency(ctx context.Context) (int64, error)
}

// IdempotencyTTL is how long a cached checkout response stays valid.
const IdempotencyTTL = 24 * time.Hour

// CachedResponse is a previously returned checkout response replayed
// verbatim for a retried request.
type CachedResponse struct {
	Status int
	Body   string
}

// IdempotencyService makes checkout safe to retry at the edge: same key
// and body replay the cached response, same key with a different body
// is rejected, expired records are treated as fresh.
type IdempotencyService struct {
	store  IdempotencyStore
	logger *zap.Logger
	now    func() time.Time
}

// NewIdempotencyService creates a new idempotency service
func NewIdempotencyService(store IdempotencyStore) *IdempotencyService {
	return &IdempotencyService{
		store:  store,
		logger: util.GetLogger(),
		now:    time.Now,
	}
}

// Check looks up the key. A nil response means the request is fresh and
// the business operation should proceed. A mismatched fingerprint fails
// with ErrIdempotencyConflict; the record is never overwritten.
func (s *IdempotencyService) Check(ctx context.Context, key string, requestBody interface{}) (*CachedResponse, error) {
	fingerprint, err := Fingerprint(requestBody)
	if err != nil {
		return nil, err
	}

	rec, err := s.store.GetIdempotency(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if rec == nil || rec.Expired(s.now()) {
		return nil, nil
	}

	if rec.RequestFingerprint != fingerprint {
		s.logger.Warn("Idempotency key conflict",
			zap.String("idempotency_key", key))
		return nil, apperr.ErrIdempotencyConflict
	}

	s.logger.Info("Replaying cached checkout response",
		zap.String("idempotency_key", key))
	return &CachedResponse{Status: rec.ResponseStatus, Body: rec.ResponseBody}, nil
}

// Store caches a response under the key with a 24h expiry. Concurrent
// first writes race on the unique key and the first writer wins. A
// record left over past its TTL is superseded, restarting the key's
// replay window.
func (s *IdempotencyService) Store(ctx context.Context, key string, requestBody interface{}, status int, responseBody interface{}) error {
	fingerprint, err := Fingerprint(requestBody)
	if err != nil {
		return err
	}

	body, err := json.Marshal(responseBody)
	if err != nil {
		return fmt.Errorf("failed to serialize response body: %w", err)
	}

	now := s.now()
	rec := &models.CheckoutIdempotency{
		IdempotencyKey:     key,
		RequestFingerprint: fingerprint,
		ResponseStatus:     status,
		ResponseBody:       string(body),
		CreatedAt:          now,
		ExpiresAt:          now.Add(IdempotencyTTL),
	}

	if err := s.store.InsertIdempotency(ctx, rec); err != nil {
		return err
	}

	s.logger.Info("Stored idempotency record",
		zap.String("idempotency_key", key),
		zap.Time("expires_at", rec.ExpiresAt))
	return nil
}

// Sweep deletes expired records. Run periodically at low priority;
// correctness never depends on it.
func (s *IdempotencyService) Sweep(ctx context.Context) error {
	deleted, err := s.store.DeleteExpiredIdempotency(ctx)
	if err != nil {
		return fmt.Errorf("failed to sweep idempotency records: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("Swept expired idempotency records", zap.Int64("deleted", deleted))
	}
	return nil
}

// Fingerprint returns the hex SHA-256 of the canonical JSON encoding of
// the request body. encoding/json emits struct fields in declaration
// order, so the encoding is deterministic for a fixed request type.
func Fingerprint(requestBody interface{}) (string, error) {
	data, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to serialize request body: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
