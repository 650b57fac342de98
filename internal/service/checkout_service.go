package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"order-intake/internal/apperr"
	"order-intake/internal/models"
	"order-intake/internal/store"
	"order-intake/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutStore is the transactional surface checkout needs.
type CheckoutStore interface {
	AllocateOrderNumber(ctx context.Context) (string, error)
	StageCheckout(ctx context.Context, lines []store.ReservationLine, outbox *models.OutboxEvent) error
}

// CheckoutCarts is the slice of the cart service checkout uses.
type CheckoutCarts interface {
	GetCart(ctx context.Context, sessionID string) (*models.Cart, error)
	ClearCart(ctx context.Context, sessionID string) error
}

// ShippingAddress is the checkout shipping address input.
type ShippingAddress struct {
	Street     string `json:"street" binding:"required"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state" binding:"required"`
	PostalCode string `json:"postalCode" binding:"required"`
	Country    string `json:"country" binding:"required"`
}

// CustomerInfo is the guest customer input captured at checkout.
type CustomerInfo struct {
	Name            string          `json:"name" binding:"required"`
	Email           string          `json:"email" binding:"required,email"`
	Phone           string          `json:"phone" binding:"required"`
	ShippingAddress ShippingAddress `json:"shippingAddress" binding:"required"`
}

// CheckoutRequest is the normalized checkout input; its JSON encoding
// is what gets fingerprinted for idempotency.
type CheckoutRequest struct {
	SessionID    string       `json:"sessionId" binding:"required"`
	CustomerInfo CustomerInfo `json:"customerInfo" binding:"required"`
}

// CheckoutResponse is returned to the caller and cached for replays.
// Status is "PENDING": 201 means accepted, not paid; payment settles
// asynchronously and is reflected in the order status.
type CheckoutResponse struct {
	OrderNumber string `json:"orderNumber"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

// CheckoutOutcome pairs the response with the HTTP-equivalent status
// the edge should return, so replays are byte- and status-stable.
type CheckoutOutcome struct {
	StatusCode int
	Response   CheckoutResponse
	Replayed   bool
}

// CheckoutService orchestrates the checkout pipeline: idempotency gate,
// order number allocation, locked inventory reservation, and outbox
// staging in one atomic transaction.
type CheckoutService struct {
	store       CheckoutStore
	carts       CheckoutCarts
	idempotency *IdempotencyService
	logger      *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(st CheckoutStore, carts CheckoutCarts, idempotency *IdempotencyService) *CheckoutService {
	return &CheckoutService{
		store:       st,
		carts:       carts,
		idempotency: idempotency,
		logger:      util.GetLogger(),
	}
}

// Checkout turns a cart into an accepted order exactly once. An empty
// idempotencyKey skips the replay gate; retries then rely solely on the
// downstream dedup layer.
func (s *CheckoutService) Checkout(ctx context.Context, idempotencyKey string, req *CheckoutRequest) (*CheckoutOutcome, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Checkout")
	defer span.End()

	util.CheckoutAttemptsTotal.Inc()
	start := time.Now()
	defer func() {
		util.CheckoutDuration.Observe(time.Since(start).Seconds())
	}()

	if err := validateCheckoutRequest(req); err != nil {
		util.CheckoutFailuresTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	if idempotencyKey != "" {
		cached, err := s.idempotency.Check(ctx, idempotencyKey, req)
		if err != nil {
			if errors.Is(err, apperr.ErrIdempotencyConflict) {
				util.CheckoutFailuresTotal.WithLabelValues("idempotency_conflict").Inc()
			}
			return nil, err
		}
		if cached != nil {
			util.CheckoutReplaysTotal.Inc()
			var resp CheckoutResponse
			if err := json.Unmarshal([]byte(cached.Body), &resp); err != nil {
				return nil, fmt.Errorf("failed to decode cached checkout response: %w", err)
			}
			return &CheckoutOutcome{StatusCode: cached.Status, Response: resp, Replayed: true}, nil
		}
	}

	outcome, err := s.execute(ctx, req)
	if err != nil {
		return nil, err
	}

	// Cache after commit; a failure here only costs a replay, never
	// the order itself.
	if idempotencyKey != "" {
		if err := s.idempotency.Store(ctx, idempotencyKey, req, outcome.StatusCode, outcome.Response); err != nil {
			s.logger.Error("Failed to store idempotency record",
				zap.String("idempotency_key", idempotencyKey), zap.Error(err))
		}
	}

	util.CheckoutSuccessTotal.Inc()
	return outcome, nil
}

// execute runs the business side of checkout once the idempotency gate
// has passed.
func (s *CheckoutService) execute(ctx context.Context, req *CheckoutRequest) (*CheckoutOutcome, error) {
	cart, err := s.carts.GetCart(ctx, req.SessionID)
	if err != nil {
		util.CheckoutFailuresTotal.WithLabelValues("cart_load").Inc()
		return nil, err
	}
	if cart.IsEmpty() {
		util.CheckoutFailuresTotal.WithLabelValues("empty_cart").Inc()
		return nil, apperr.ErrEmptyCart
	}

	s.logger.Info("Starting checkout",
		zap.String("session_id", req.SessionID),
		zap.String("cart_id", cart.ID.String()),
		zap.Int("items", cart.TotalItemCount()),
		zap.String("subtotal", cart.Subtotal().String()))

	// The allocator commits in its own transaction before inventory is
	// touched; an abort below wastes the number, which is accepted.
	orderNumber, err := s.store.AllocateOrderNumber(ctx)
	if err != nil {
		util.CheckoutFailuresTotal.WithLabelValues("number_allocation").Inc()
		return nil, fmt.Errorf("failed to allocate order number: %w", err)
	}

	orderID := uuid.New()
	event := buildOrderCreatedEvent(ctx, orderID, orderNumber, cart, &req.CustomerInfo)

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize order created event: %w", err)
	}

	outboxRow := &models.OutboxEvent{
		ID:            uuid.New(),
		AggregateID:   orderID,
		AggregateType: "ORDER",
		EventType:     models.EventTypeOrderCreated,
		Payload:       payload,
	}

	lines := make([]store.ReservationLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, store.ReservationLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	// Inventory decrement and the intent to notify commit atomically;
	// a crash between them is impossible.
	if err := s.store.StageCheckout(ctx, lines, outboxRow); err != nil {
		var ie *apperr.InsufficientInventoryError
		if errors.As(err, &ie) {
			util.CheckoutFailuresTotal.WithLabelValues("insufficient_inventory").Inc()
			util.InventoryReservationsFailed.WithLabelValues("insufficient_stock").Inc()
			s.logger.Warn("Checkout aborted on insufficient inventory",
				zap.String("order_number", orderNumber),
				zap.Int64("product_id", ie.ProductID),
				zap.Int("requested", ie.Requested),
				zap.Int("available", ie.Available))
		} else {
			util.CheckoutFailuresTotal.WithLabelValues("stage_checkout").Inc()
		}
		return nil, err
	}

	// Cart clearing is best-effort: if it fails the cart reappears,
	// but the order stands.
	if err := s.carts.ClearCart(ctx, req.SessionID); err != nil {
		s.logger.Warn("Failed to clear cart after checkout",
			zap.String("session_id", req.SessionID), zap.Error(err))
	}

	s.logger.Info("Checkout completed",
		zap.String("order_number", orderNumber),
		zap.String("order_id", orderID.String()),
		zap.String("subtotal", cart.Subtotal().String()))

	return &CheckoutOutcome{
		StatusCode: http.StatusCreated,
		Response: CheckoutResponse{
			OrderNumber: orderNumber,
			Status:      models.OrderStatusPending,
			Message: fmt.Sprintf("Order submitted successfully. You will receive a confirmation email at %s",
				req.CustomerInfo.Email),
		},
	}, nil
}

func buildOrderCreatedEvent(ctx context.Context, orderID uuid.UUID, orderNumber string, cart *models.Cart, customer *CustomerInfo) *models.OrderCreatedEvent {
	items := make([]models.OrderItemEvent, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, models.OrderItemEvent{
			ProductID:     item.ProductID,
			ProductSKU:    item.ProductSKU,
			ProductName:   item.ProductName,
			Quantity:      item.Quantity,
			PriceSnapshot: item.PriceSnapshot,
			Subtotal:      item.Subtotal(),
		})
	}

	return &models.OrderCreatedEvent{
		BaseEvent:   models.NewBaseEvent(models.EventTypeOrderCreated, util.CorrelationID(ctx)),
		OrderID:     orderID,
		OrderNumber: orderNumber,
		Customer: models.CustomerEvent{
			Name:  customer.Name,
			Email: customer.Email,
			Phone: customer.Phone,
			ShippingAddress: models.ShippingAddressEvent{
				Street:     customer.ShippingAddress.Street,
				City:       customer.ShippingAddress.City,
				State:      customer.ShippingAddress.State,
				PostalCode: customer.ShippingAddress.PostalCode,
				Country:    customer.ShippingAddress.Country,
			},
		},
		Items:    items,
		Subtotal: cart.Subtotal(),
		CartID:   cart.ID,
	}
}

func validateCheckoutRequest(req *CheckoutRequest) error {
	if req.SessionID == "" {
		return apperr.New(apperr.Validation, "session id is required")
	}
	ci := &req.CustomerInfo
	if ci.Name == "" || ci.Email == "" || ci.Phone == "" {
		return apperr.New(apperr.Validation, "customer name, email and phone are required")
	}
	addr := &ci.ShippingAddress
	if addr.Street == "" || addr.City == "" || addr.State == "" || addr.PostalCode == "" || addr.Country == "" {
		return apperr.New(apperr.Validation, "shipping address is incomplete")
	}
	return nil
}
