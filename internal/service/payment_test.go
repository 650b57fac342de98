package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockProcessorAlwaysSucceeds(t *testing.T) {
	p := NewMockPaymentProcessor(1.0, 0)

	result, err := p.Process(context.Background(), &PaymentRequest{
		OrderID: uuid.New(), Amount: decimal.RequireFromString("29.99"),
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.ExternalTransactionID)
}

func TestMockProcessorAlwaysDeclines(t *testing.T) {
	p := NewMockPaymentProcessor(0, 0)

	result, err := p.Process(context.Background(), &PaymentRequest{OrderID: uuid.New()})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.FailureReason)
}

func TestMockProcessorRespectsContextDeadline(t *testing.T) {
	p := NewMockPaymentProcessor(1.0, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Process(ctx, &PaymentRequest{OrderID: uuid.New()})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMockProcessorClampsSuccessRate(t *testing.T) {
	p := NewMockPaymentProcessor(7.5, 0)
	result, err := p.Process(context.Background(), &PaymentRequest{OrderID: uuid.New()})
	require.NoError(t, err)
	assert.True(t, result.Success)
}
