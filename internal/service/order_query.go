package service

import (
	"context"

	"order-intake/internal/apperr"
	"order-intake/internal/models"
	"order-intake/internal/store"
	"order-intake/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderStore is the read and lifecycle surface for order management.
type OrderStore interface {
	GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	GetOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	GetPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PaymentTransaction, error)
	ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error)
	TransitionOrder(ctx context.Context, orderNumber, target string, mutate func(o *models.Order)) (*models.Order, error)
}

// OrderDetail is an order with its lines and payment attempt.
type OrderDetail struct {
	Order   *models.Order              `json:"order"`
	Items   []models.OrderItem         `json:"items"`
	Payment *models.PaymentTransaction `json:"payment,omitempty"`
}

// OrderService exposes order lookup and lifecycle operations.
type OrderService struct {
	store  OrderStore
	logger *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(st OrderStore) *OrderService {
	return &OrderService{store: st, logger: util.GetLogger()}
}

// GetByNumber returns an order with its items and payment attempt.
// The payment may be missing while ingestion is still in flight.
func (s *OrderService) GetByNumber(ctx context.Context, orderNumber string) (*OrderDetail, error) {
	order, err := s.store.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	items, err := s.store.GetOrderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	payment, err := s.store.GetPaymentByOrderID(ctx, order.ID)
	if err != nil && !apperr.IsKind(err, apperr.NotFound) {
		return nil, err
	}

	return &OrderDetail{Order: order, Items: items, Payment: payment}, nil
}

// List returns orders matching the filter, newest first.
func (s *OrderService) List(ctx context.Context, f store.OrderFilter) ([]models.Order, error) {
	return s.store.ListOrders(ctx, f)
}

// Cancel moves an order to CANCELLED with the given reason. Only
// PENDING and PROCESSING orders qualify; anything past payment is
// rejected.
func (s *OrderService) Cancel(ctx context.Context, orderNumber, reason string) (*models.Order, error) {
	if reason == "" {
		return nil, apperr.New(apperr.Validation, "cancel reason is required")
	}

	order, err := s.store.TransitionOrder(ctx, orderNumber, models.OrderStatusCancelled, func(o *models.Order) {
		o.CancelReason = reason
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order cancelled",
		zap.String("order_number", orderNumber),
		zap.String("reason", reason))
	return order, nil
}

// Fulfill moves a PAID order to FULFILLED, stamping tracking details.
func (s *OrderService) Fulfill(ctx context.Context, orderNumber, trackingNumber, carrier string) (*models.Order, error) {
	if trackingNumber == "" || carrier == "" {
		return nil, apperr.New(apperr.Validation, "tracking number and carrier are required")
	}

	order, err := s.store.TransitionOrder(ctx, orderNumber, models.OrderStatusFulfilled, func(o *models.Order) {
		o.TrackingNumber = trackingNumber
		o.Carrier = carrier
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order fulfilled",
		zap.String("order_number", orderNumber),
		zap.String("tracking_number", trackingNumber),
		zap.String("carrier", carrier))
	return order, nil
}
