package util

import (
	"context"

	"github.com/google/uuid"
)

type correlationKey struct{}

// WithCorrelationID stores a correlation id in the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the correlation id from the context, minting a
// fresh one when the request arrived without one.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok && id != "" {
		return id
	}
	return "checkout-" + uuid.New().String()
}
