package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentRequest carries what the gateway needs to authorize a charge.
type PaymentRequest struct {
	OrderID       uuid.UUID
	OrderNumber   string
	Amount        decimal.Decimal
	PaymentMethod string
	CustomerEmail string
}

// PaymentResult is the gateway's verdict. Success false with a nil
// error is a declined payment, not an infrastructure failure.
type PaymentResult struct {
	Success               bool
	ExternalTransactionID string
	FailureReason         string
}

// PaymentProcessor authorizes payments for ingested orders.
type PaymentProcessor interface {
	Process(ctx context.Context, req *PaymentRequest) (*PaymentResult, error)
}

// MockPaymentProcessor simulates a gateway with configurable latency
// and success rate. It respects context cancellation so the payment
// timeout propagates.
type MockPaymentProcessor struct {
	successRate float64
	latency     time.Duration
	rng         *rand.Rand
}

// NewMockPaymentProcessor creates a new mock payment processor
func NewMockPaymentProcessor(successRate float64, latency time.Duration) *MockPaymentProcessor {
	if successRate < 0 {
		successRate = 0
	}
	if successRate > 1 {
		successRate = 1
	}
	return &MockPaymentProcessor{
		successRate: successRate,
		latency:     latency,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Process simulates a payment authorization.
func (p *MockPaymentProcessor) Process(ctx context.Context, req *PaymentRequest) (*PaymentResult, error) {
	if p.latency > 0 {
		timer := time.NewTimer(p.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("payment processing interrupted: %w", ctx.Err())
		case <-timer.C:
		}
	}

	if p.rng.Float64() < p.successRate {
		return &PaymentResult{
			Success:               true,
			ExternalTransactionID: fmt.Sprintf("mock-%s", uuid.New().String()),
		}, nil
	}

	return &PaymentResult{
		Success:       false,
		FailureReason: "card declined by issuer",
	}, nil
}
