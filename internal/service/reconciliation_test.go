package service

import (
	"context"
	"fmt"
	"testing"

	"order-intake/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type appliedResult struct {
	orderNumber   string
	success       bool
	externalTxID  string
	failureReason string
}

type fakeReconciliationStore struct {
	claimed map[uuid.UUID]bool
	applied []appliedResult
	err     error
}

func newFakeReconciliationStore() *fakeReconciliationStore {
	return &fakeReconciliationStore{claimed: make(map[uuid.UUID]bool)}
}

func (f *fakeReconciliationStore) ApplyPaymentResult(_ context.Context, eventID uuid.UUID, orderNumber string, success bool, externalTxID, failureReason string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.claimed[eventID] {
		return false, nil
	}
	f.claimed[eventID] = true
	f.applied = append(f.applied, appliedResult{orderNumber, success, externalTxID, failureReason})
	return true, nil
}

func paymentCompletedEvent(status string) *models.PaymentCompletedEvent {
	return &models.PaymentCompletedEvent{
		BaseEvent:             models.NewBaseEvent(models.EventTypePaymentCompleted, "corr-1"),
		OrderID:               uuid.New(),
		OrderNumber:           "ORD-20260901-7",
		TransactionID:         uuid.New(),
		Status:                status,
		Amount:                decimal.RequireFromString("29.99"),
		PaymentMethod:         "CREDIT_CARD",
		ExternalTransactionID: "ext-1",
	}
}

func TestReconcileSuccess(t *testing.T) {
	store := newFakeReconciliationStore()
	svc := NewReconciliationService(store)

	event := paymentCompletedEvent(models.PaymentStatusSuccess)
	require.NoError(t, svc.HandlePaymentCompleted(context.Background(), event))

	require.Len(t, store.applied, 1)
	assert.Equal(t, "ORD-20260901-7", store.applied[0].orderNumber)
	assert.True(t, store.applied[0].success)
	assert.Equal(t, "ext-1", store.applied[0].externalTxID)
}

func TestReconcileFailure(t *testing.T) {
	store := newFakeReconciliationStore()
	svc := NewReconciliationService(store)

	event := paymentCompletedEvent(models.PaymentStatusFailed)
	event.FailureReason = "card declined by issuer"
	require.NoError(t, svc.HandlePaymentCompleted(context.Background(), event))

	require.Len(t, store.applied, 1)
	assert.False(t, store.applied[0].success)
	assert.Equal(t, "card declined by issuer", store.applied[0].failureReason)
}

func TestReconcileDuplicateEventIsNoop(t *testing.T) {
	store := newFakeReconciliationStore()
	svc := NewReconciliationService(store)

	event := paymentCompletedEvent(models.PaymentStatusSuccess)
	require.NoError(t, svc.HandlePaymentCompleted(context.Background(), event))
	require.NoError(t, svc.HandlePaymentCompleted(context.Background(), event))

	assert.Len(t, store.applied, 1)
}

func TestReconcileErrorPropagatesForRedelivery(t *testing.T) {
	store := newFakeReconciliationStore()
	store.err = fmt.Errorf("deadlock detected")
	svc := NewReconciliationService(store)

	err := svc.HandlePaymentCompleted(context.Background(), paymentCompletedEvent(models.PaymentStatusSuccess))
	assert.Error(t, err)
}
