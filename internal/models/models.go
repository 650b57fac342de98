package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a catalog product with its live inventory count.
// InventoryQuantity is only mutated through locked decrement/increment
// in the store layer and never goes negative.
type Product struct {
	ID                int64           `db:"id" json:"id"`
	SKU               string          `db:"sku" json:"sku"`
	Name              string          `db:"name" json:"name"`
	Price             decimal.Decimal `db:"price" json:"price"`
	InventoryQuantity int             `db:"inventory_quantity" json:"inventory_quantity"`
	IsActive          bool            `db:"is_active" json:"is_active"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// Cart represents a session-scoped shopping cart.
type Cart struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	SessionID string     `db:"session_id" json:"session_id"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	Items     []CartItem `db:"-" json:"items"`
}

// IsEmpty reports whether the cart has no items.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Subtotal recomputes the cart total from item snapshots. The stored
// value is never trusted on its own.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// TotalItemCount returns the summed quantity across all items.
func (c *Cart) TotalItemCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// CartItem is a cart line. PriceSnapshot is captured when the item is
// added and is immutable afterwards; billing uses the snapshot even if
// the product price changes later.
type CartItem struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	CartID        uuid.UUID       `db:"cart_id" json:"cart_id"`
	ProductID     int64           `db:"product_id" json:"product_id"`
	ProductSKU    string          `db:"product_sku" json:"product_sku"`
	ProductName   string          `db:"product_name" json:"product_name"`
	Quantity      int             `db:"quantity" json:"quantity"`
	PriceSnapshot decimal.Decimal `db:"price_snapshot" json:"price_snapshot"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// Subtotal returns quantity * price snapshot for this line.
func (ci *CartItem) Subtotal() decimal.Decimal {
	return ci.PriceSnapshot.Mul(decimal.NewFromInt(int64(ci.Quantity)))
}

// OrderNumberSequence holds the per-day monotonic counter backing order
// number allocation. One row per calendar day, created lazily.
type OrderNumberSequence struct {
	DateKey      string    `db:"date_key"`
	LastSequence int64     `db:"last_sequence"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// CheckoutIdempotency caches a checkout response under a client-supplied
// key. Immutable after creation; superseded only by expiry.
type CheckoutIdempotency struct {
	IdempotencyKey     string    `db:"idempotency_key"`
	RequestFingerprint string    `db:"request_fingerprint"`
	ResponseStatus     int       `db:"response_status"`
	ResponseBody       string    `db:"response_body"`
	CreatedAt          time.Time `db:"created_at"`
	ExpiresAt          time.Time `db:"expires_at"`
}

// Expired reports whether the record is past its TTL at the given time.
func (ci *CheckoutIdempotency) Expired(now time.Time) bool {
	return !now.Before(ci.ExpiresAt)
}

// Outbox statuses
const (
	OutboxStatusPending   = "PENDING"
	OutboxStatusPublished = "PUBLISHED"
	OutboxStatusFailed    = "FAILED"
)

// OutboxEvent is a staged domain event written in the same transaction
// as the business mutation it describes.
type OutboxEvent struct {
	ID            uuid.UUID  `db:"id"`
	AggregateID   uuid.UUID  `db:"aggregate_id"`
	AggregateType string     `db:"aggregate_type"`
	EventType     string     `db:"event_type"`
	Payload       []byte     `db:"payload"`
	Status        string     `db:"status"`
	RetryCount    int        `db:"retry_count"`
	ErrorMessage  string     `db:"error_message"`
	CreatedAt     time.Time  `db:"created_at"`
	PublishedAt   *time.Time `db:"published_at"`
}

// ProcessedEvent records an event id that has already been handled.
// Write-once; its existence makes redelivery a no-op.
type ProcessedEvent struct {
	EventID     uuid.UUID `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

// Order statuses
const (
	OrderStatusPending    = "PENDING"
	OrderStatusProcessing = "PROCESSING"
	OrderStatusPaid       = "PAID"
	OrderStatusFailed     = "FAILED"
	OrderStatusFulfilled  = "FULFILLED"
	OrderStatusCancelled  = "CANCELLED"
)

// Order is the order aggregate on the processing side. Customer info is
// denormalized: checkout is guest-based, so there is no customer FK.
type Order struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	OrderNumber    string          `db:"order_number" json:"order_number"`
	CustomerName   string          `db:"customer_name" json:"customer_name"`
	CustomerEmail  string          `db:"customer_email" json:"customer_email"`
	CustomerPhone  string          `db:"customer_phone" json:"customer_phone"`
	ShippingStreet string          `db:"shipping_street" json:"shipping_street"`
	ShippingCity   string          `db:"shipping_city" json:"shipping_city"`
	ShippingState  string          `db:"shipping_state" json:"shipping_state"`
	PostalCode     string          `db:"postal_code" json:"postal_code"`
	Country        string          `db:"country" json:"country"`
	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal"`
	Status         string          `db:"status" json:"status"`
	TrackingNumber string          `db:"tracking_number" json:"tracking_number,omitempty"`
	Carrier        string          `db:"carrier" json:"carrier,omitempty"`
	CancelReason   string          `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
	CompletedAt    *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}

// CanTransition reports whether an order may move between two statuses.
// PENDING -> PROCESSING -> {PAID | FAILED}; PAID -> FULFILLED;
// PENDING/PROCESSING -> CANCELLED. Nothing else is legal: a PAID order
// needs a refund, not a cancellation, so it can only move forward.
func CanTransition(from, to string) bool {
	switch from {
	case OrderStatusPending:
		return to == OrderStatusProcessing || to == OrderStatusCancelled
	case OrderStatusProcessing:
		return to == OrderStatusPaid || to == OrderStatusFailed || to == OrderStatusCancelled
	case OrderStatusPaid:
		return to == OrderStatusFulfilled
	default:
		return false
	}
}

// Cancellable reports whether the order may still be cancelled.
func (o *Order) Cancellable() bool {
	return CanTransition(o.Status, OrderStatusCancelled)
}

// Fulfillable reports whether the order may be fulfilled.
func (o *Order) Fulfillable() bool {
	return CanTransition(o.Status, OrderStatusFulfilled)
}

// OrderItem is an immutable historical record of a purchased line,
// decoupled from live Product state.
type OrderItem struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	OrderID       uuid.UUID       `db:"order_id" json:"order_id"`
	ProductID     int64           `db:"product_id" json:"product_id"`
	ProductSKU    string          `db:"product_sku" json:"product_sku"`
	ProductName   string          `db:"product_name" json:"product_name"`
	Quantity      int             `db:"quantity" json:"quantity"`
	PriceSnapshot decimal.Decimal `db:"price_snapshot" json:"price_snapshot"`
}

// Payment statuses
const (
	PaymentStatusPending = "PENDING"
	PaymentStatusSuccess = "SUCCESS"
	PaymentStatusFailed  = "FAILED"
)

// PaymentTransaction tracks the payment attempt for an order. At most
// one per order.
type PaymentTransaction struct {
	ID                    uuid.UUID       `db:"id" json:"id"`
	OrderID               uuid.UUID       `db:"order_id" json:"order_id"`
	Amount                decimal.Decimal `db:"amount" json:"amount"`
	PaymentMethod         string          `db:"payment_method" json:"payment_method"`
	Status                string          `db:"status" json:"status"`
	ExternalTransactionID string          `db:"external_transaction_id" json:"external_transaction_id,omitempty"`
	FailureReason         string          `db:"failure_reason" json:"failure_reason,omitempty"`
	AttemptCount          int             `db:"attempt_count" json:"attempt_count"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at" json:"updated_at"`
}
