package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated     = "ORDER_CREATED"
	EventTypePaymentCompleted = "PAYMENT_COMPLETED"
)

// EventVersion is the wire schema version stamped on every event.
const EventVersion = "1.0"

// BaseEvent contains the envelope fields shared by all events.
type BaseEvent struct {
	EventID       uuid.UUID `json:"eventId"`
	EventType     string    `json:"eventType"`
	EventVersion  string    `json:"eventVersion"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlationId"`
}

// NewBaseEvent builds an envelope for the given event type.
func NewBaseEvent(eventType, correlationID string) BaseEvent {
	return BaseEvent{
		EventID:       uuid.New(),
		EventType:     eventType,
		EventVersion:  EventVersion,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
	}
}

// ShippingAddressEvent carries the shipping address inside events.
type ShippingAddressEvent struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// CustomerEvent carries denormalized customer info inside events.
type CustomerEvent struct {
	Name            string               `json:"name"`
	Email           string               `json:"email"`
	Phone           string               `json:"phone"`
	ShippingAddress ShippingAddressEvent `json:"shippingAddress"`
}

// OrderItemEvent is one purchased line inside an OrderCreatedEvent.
type OrderItemEvent struct {
	ProductID     int64           `json:"productId"`
	ProductSKU    string          `json:"productSku"`
	ProductName   string          `json:"productName"`
	Quantity      int             `json:"quantity"`
	PriceSnapshot decimal.Decimal `json:"priceSnapshot"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}

// OrderCreatedEvent is staged in the outbox during checkout and
// published to the orders.created topic.
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     uuid.UUID        `json:"orderId"`
	OrderNumber string           `json:"orderNumber"`
	Customer    CustomerEvent    `json:"customer"`
	Items       []OrderItemEvent `json:"items"`
	Subtotal    decimal.Decimal  `json:"subtotal"`
	CartID      uuid.UUID        `json:"cartId"`
}

// PaymentCompletedEvent reports the outcome of an asynchronous payment
// attempt, published to the payments.completed topic.
type PaymentCompletedEvent struct {
	BaseEvent
	OrderID               uuid.UUID       `json:"orderId"`
	OrderNumber           string          `json:"orderNumber"`
	TransactionID         uuid.UUID       `json:"transactionId"`
	Status                string          `json:"status"`
	Amount                decimal.Decimal `json:"amount"`
	PaymentMethod         string          `json:"paymentMethod"`
	ExternalTransactionID string          `json:"externalTransactionId,omitempty"`
	FailureReason         string          `json:"failureReason,omitempty"`
}
