package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    string
		to      string
		allowed bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusPaid, false},
		{OrderStatusPending, OrderStatusFulfilled, false},
		{OrderStatusProcessing, OrderStatusPaid, true},
		{OrderStatusProcessing, OrderStatusFailed, true},
		{OrderStatusProcessing, OrderStatusCancelled, true},
		{OrderStatusProcessing, OrderStatusFulfilled, false},
		{OrderStatusPaid, OrderStatusFulfilled, true},
		{OrderStatusPaid, OrderStatusCancelled, false},
		{OrderStatusPaid, OrderStatusFailed, false},
		{OrderStatusFailed, OrderStatusProcessing, false},
		{OrderStatusFailed, OrderStatusCancelled, false},
		{OrderStatusFulfilled, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusProcessing, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestOrderLifecycleHelpers(t *testing.T) {
	paid := &Order{Status: OrderStatusPaid}
	assert.True(t, paid.Fulfillable())
	assert.False(t, paid.Cancellable(), "paid orders are refunded, not cancelled")

	processing := &Order{Status: OrderStatusProcessing}
	assert.True(t, processing.Cancellable())

	fulfilled := &Order{Status: OrderStatusFulfilled}
	assert.False(t, fulfilled.Fulfillable())
	assert.False(t, fulfilled.Cancellable())

	failed := &Order{Status: OrderStatusFailed}
	assert.False(t, failed.Cancellable())
}

func TestCartSubtotal(t *testing.T) {
	cart := &Cart{
		Items: []CartItem{
			{Quantity: 1, PriceSnapshot: decimal.RequireFromString("29.99")},
			{Quantity: 2, PriceSnapshot: decimal.RequireFromString("5.00")},
		},
	}

	assert.True(t, decimal.RequireFromString("39.99").Equal(cart.Subtotal()),
		"got %s", cart.Subtotal())
	assert.Equal(t, 3, cart.TotalItemCount())
	assert.False(t, cart.IsEmpty())

	empty := &Cart{}
	assert.True(t, empty.IsEmpty())
	assert.True(t, empty.Subtotal().IsZero())
}

func TestCartItemSubtotal(t *testing.T) {
	item := CartItem{Quantity: 3, PriceSnapshot: decimal.RequireFromString("10.10")}
	assert.True(t, decimal.RequireFromString("30.30").Equal(item.Subtotal()))
}
