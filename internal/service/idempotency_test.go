package service

import (
	"context"
	"testing"
	"time"

	"order-intake/internal/apperr"
	"order-intake/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIdempotencyStore struct {
	records map[string]*models.CheckoutIdempotency
	now     func() time.Time
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{
		records: make(map[string]*models.CheckoutIdempotency),
		now:     time.Now,
	}
}

func (f *fakeIdempotencyStore) GetIdempotency(_ context.Context, key string) (*models.CheckoutIdempotency, error) {
	return f.records[key], nil
}

func (f *fakeIdempotencyStore) InsertIdempotency(_ context.Context, rec *models.CheckoutIdempotency) error {
	// Mirrors the insert-or-supersede upsert: a live record wins over
	// the new write, an expired one is replaced.
	if existing, ok := f.records[rec.IdempotencyKey]; ok && !existing.Expired(f.now()) {
		return nil
	}
	f.records[rec.IdempotencyKey] = rec
	return nil
}

func (f *fakeIdempotencyStore) DeleteExpiredIdempotency(_ context.Context) (int64, error) {
	var deleted int64
	for key, rec := range f.records {
		if rec.Expired(time.Now()) {
			delete(f.records, key)
			deleted++
		}
	}
	return deleted, nil
}

func newTestIdempotencyService(store IdempotencyStore) *IdempotencyService {
	svc := NewIdempotencyService(store)
	return svc
}

func TestIdempotencyFreshKey(t *testing.T) {
	svc := newTestIdempotencyService(newFakeIdempotencyStore())

	cached, err := svc.Check(context.Background(), "key-1", map[string]string{"a": "b"})
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestIdempotencyReplay(t *testing.T) {
	svc := newTestIdempotencyService(newFakeIdempotencyStore())
	ctx := context.Background()
	req := map[string]string{"sessionId": "sess-1"}

	resp := CheckoutResponse{OrderNumber: "ORD-20260901-1", Status: "PENDING", Message: "ok"}
	require.NoError(t, svc.Store(ctx, "key-1", req, 201, resp))

	cached, err := svc.Check(ctx, "key-1", req)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, 201, cached.Status)
	assert.JSONEq(t, `{"orderNumber":"ORD-20260901-1","status":"PENDING","message":"ok"}`, cached.Body)

	// Replaying again yields the byte-identical body.
	again, err := svc.Check(ctx, "key-1", req)
	require.NoError(t, err)
	assert.Equal(t, cached.Body, again.Body)
}

func TestIdempotencyConflictOnDifferentBody(t *testing.T) {
	svc := newTestIdempotencyService(newFakeIdempotencyStore())
	ctx := context.Background()

	require.NoError(t, svc.Store(ctx, "key-1", map[string]string{"sessionId": "sess-1"}, 201, CheckoutResponse{}))

	_, err := svc.Check(ctx, "key-1", map[string]string{"sessionId": "sess-2"})
	assert.ErrorIs(t, err, apperr.ErrIdempotencyConflict)
}

func TestIdempotencyExpiredRecordIsFresh(t *testing.T) {
	store := newFakeIdempotencyStore()
	svc := newTestIdempotencyService(store)
	ctx := context.Background()
	req := map[string]string{"sessionId": "sess-1"}

	require.NoError(t, svc.Store(ctx, "key-1", req, 201, CheckoutResponse{}))

	// Move the clock past the TTL.
	svc.now = func() time.Time { return time.Now().Add(IdempotencyTTL + time.Minute) }

	cached, err := svc.Check(ctx, "key-1", req)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestIdempotencyExpiredRecordSuperseded(t *testing.T) {
	store := newFakeIdempotencyStore()
	svc := newTestIdempotencyService(store)
	ctx := context.Background()
	req := map[string]string{"sessionId": "sess-1"}

	require.NoError(t, svc.Store(ctx, "key-1", req, 201, CheckoutResponse{OrderNumber: "ORD-20260901-1"}))

	// Past the TTL the key is reusable, and the new response must
	// replace the stale record so later retries replay it.
	later := time.Now().Add(IdempotencyTTL + time.Minute)
	svc.now = func() time.Time { return later }
	store.now = svc.now

	require.NoError(t, svc.Store(ctx, "key-1", req, 201, CheckoutResponse{OrderNumber: "ORD-20260902-1"}))

	cached, err := svc.Check(ctx, "key-1", req)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Contains(t, cached.Body, "ORD-20260902-1")
}

func TestIdempotencyFirstWriterWins(t *testing.T) {
	store := newFakeIdempotencyStore()
	svc := newTestIdempotencyService(store)
	ctx := context.Background()
	req := map[string]string{"sessionId": "sess-1"}

	first := CheckoutResponse{OrderNumber: "ORD-20260901-1"}
	second := CheckoutResponse{OrderNumber: "ORD-20260901-2"}
	require.NoError(t, svc.Store(ctx, "key-1", req, 201, first))
	require.NoError(t, svc.Store(ctx, "key-1", req, 201, second))

	cached, err := svc.Check(ctx, "key-1", req)
	require.NoError(t, err)
	assert.Contains(t, cached.Body, "ORD-20260901-1")
}

func TestFingerprintDeterministic(t *testing.T) {
	req := &CheckoutRequest{
		SessionID: "sess-1",
		CustomerInfo: CustomerInfo{
			Name:  "Jane Doe",
			Email: "jane@example.com",
			Phone: "555-0100",
			ShippingAddress: ShippingAddress{
				Street: "1 Main St", City: "Springfield", State: "IL",
				PostalCode: "62701", Country: "US",
			},
		},
	}

	a, err := Fingerprint(req)
	require.NoError(t, err)
	b, err := Fingerprint(req)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	changed := *req
	changed.CustomerInfo.Email = "john@example.com"
	c, err := Fingerprint(&changed)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestIdempotencySweep(t *testing.T) {
	store := newFakeIdempotencyStore()
	svc := newTestIdempotencyService(store)
	ctx := context.Background()

	store.records["stale"] = &models.CheckoutIdempotency{
		IdempotencyKey: "stale",
		ExpiresAt:      time.Now().Add(-time.Hour),
	}
	store.records["live"] = &models.CheckoutIdempotency{
		IdempotencyKey: "live",
		ExpiresAt:      time.Now().Add(time.Hour),
	}

	require.NoError(t, svc.Sweep(ctx))
	assert.Nil(t, store.records["stale"])
	assert.NotNil(t, store.records["live"])
}
