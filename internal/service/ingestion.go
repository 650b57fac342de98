package service

import (
	"context"
	"time"

	"order-intake/internal/apperr"
	"order-intake/internal/models"
	"order-intake/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IngestionStore is the transactional surface order ingestion needs.
type IngestionStore interface {
	IngestOrder(ctx context.Context, eventID uuid.UUID, order *models.Order, items []models.OrderItem, payment *models.PaymentTransaction) (bool, error)
	TransitionOrder(ctx context.Context, orderNumber, target string, mutate func(o *models.Order)) (*models.Order, error)
}

// PaymentEventPublisher publishes payment outcomes back onto the bus.
type PaymentEventPublisher interface {
	PublishPaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error
}

const defaultPaymentMethod = "CREDIT_CARD"

// IngestionService consumes OrderCreated events, materializes orders
// exactly once, and drives the asynchronous payment attempt.
type IngestionService struct {
	store          IngestionStore
	processor      PaymentProcessor
	publisher      PaymentEventPublisher
	paymentTimeout time.Duration
	logger         *zap.Logger
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(st IngestionStore, processor PaymentProcessor, publisher PaymentEventPublisher, paymentTimeout time.Duration) *IngestionService {
	return &IngestionService{
		store:          st,
		processor:      processor,
		publisher:      publisher,
		paymentTimeout: paymentTimeout,
		logger:         util.GetLogger(),
	}
}

// HandleOrderCreated materializes the order from the event. A returned
// error leaves the Kafka offset uncommitted so the message redelivers;
// the dedup claim makes redelivery safe.
func (s *IngestionService) HandleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	ctx, span := util.StartSpan(util.WithCorrelationID(ctx, event.CorrelationID), "IngestionService.HandleOrderCreated")
	defer span.End()

	util.EventsConsumedTotal.WithLabelValues(models.EventTypeOrderCreated).Inc()

	order := &models.Order{
		ID:             event.OrderID,
		OrderNumber:    event.OrderNumber,
		CustomerName:   event.Customer.Name,
		CustomerEmail:  event.Customer.Email,
		CustomerPhone:  event.Customer.Phone,
		ShippingStreet: event.Customer.ShippingAddress.Street,
		ShippingCity:   event.Customer.ShippingAddress.City,
		ShippingState:  event.Customer.ShippingAddress.State,
		PostalCode:     event.Customer.ShippingAddress.PostalCode,
		Country:        event.Customer.ShippingAddress.Country,
		Subtotal:       event.Subtotal,
		Status:         models.OrderStatusPending,
	}

	items := make([]models.OrderItem, 0, len(event.Items))
	for _, it := range event.Items {
		items = append(items, models.OrderItem{
			ID:            uuid.New(),
			OrderID:       event.OrderID,
			ProductID:     it.ProductID,
			ProductSKU:    it.ProductSKU,
			ProductName:   it.ProductName,
			Quantity:      it.Quantity,
			PriceSnapshot: it.PriceSnapshot,
		})
	}

	payment := &models.PaymentTransaction{
		ID:            uuid.New(),
		OrderID:       event.OrderID,
		Amount:        event.Subtotal,
		PaymentMethod: defaultPaymentMethod,
		Status:        models.PaymentStatusPending,
	}

	claimed, err := s.store.IngestOrder(ctx, event.EventID, order, items, payment)
	if err != nil {
		return err
	}
	if !claimed {
		util.EventsDuplicateTotal.WithLabelValues(models.EventTypeOrderCreated).Inc()
		s.logger.Info("Skipping already processed OrderCreated event",
			zap.String("event_id", event.EventID.String()),
			zap.String("order_number", event.OrderNumber))
		return nil
	}

	s.logger.Info("Order ingested",
		zap.String("order_number", event.OrderNumber),
		zap.String("order_id", event.OrderID.String()),
		zap.Int("items", len(items)))

	// Payment runs detached from the consumer loop so a slow gateway
	// never stalls offset commits. The event is committed either way;
	// redelivery will not retrigger payment because the claim holds.
	go s.processPayment(event, payment)

	return nil
}

// processPayment attempts the payment and publishes the outcome. It
// never returns an error upward; a broken gateway yields a FAILED
// payment event, not a crashed consumer.
func (s *IngestionService) processPayment(event *models.OrderCreatedEvent, payment *models.PaymentTransaction) {
	ctx := util.WithCorrelationID(context.Background(), event.CorrelationID)
	ctx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
	defer cancel()

	ctx, span := util.StartSpan(ctx, "IngestionService.processPayment")
	defer span.End()

	util.PaymentAttemptsTotal.Inc()
	start := time.Now()

	if _, err := s.store.TransitionOrder(ctx, event.OrderNumber, models.OrderStatusProcessing, nil); err != nil {
		// Cancelled before payment started. Leave it alone.
		if apperr.IsKind(err, apperr.InvalidState) {
			s.logger.Info("Order no longer pending, skipping payment",
				zap.String("order_number", event.OrderNumber))
			return
		}
		s.logger.Error("Failed to mark order processing",
			zap.String("order_number", event.OrderNumber), zap.Error(err))
		return
	}

	result, err := s.processor.Process(ctx, &PaymentRequest{
		OrderID:       event.OrderID,
		OrderNumber:   event.OrderNumber,
		Amount:        event.Subtotal,
		PaymentMethod: payment.PaymentMethod,
		CustomerEmail: event.Customer.Email,
	})
	util.PaymentProcessingLatency.Observe(time.Since(start).Seconds())

	outcome := &models.PaymentCompletedEvent{
		BaseEvent:     models.NewBaseEvent(models.EventTypePaymentCompleted, event.CorrelationID),
		OrderID:       event.OrderID,
		OrderNumber:   event.OrderNumber,
		TransactionID: payment.ID,
		Amount:        payment.Amount,
		PaymentMethod: payment.PaymentMethod,
	}

	switch {
	case err != nil:
		// Gateway or timeout failure counts as a failed payment.
		util.PaymentFailedTotal.Inc()
		outcome.Status = models.PaymentStatusFailed
		outcome.FailureReason = err.Error()
		s.logger.Error("Payment processing error",
			zap.String("order_number", event.OrderNumber), zap.Error(err))
	case result.Success:
		util.PaymentSuccessTotal.Inc()
		outcome.Status = models.PaymentStatusSuccess
		outcome.ExternalTransactionID = result.ExternalTransactionID
		s.logger.Info("Payment succeeded",
			zap.String("order_number", event.OrderNumber),
			zap.String("external_transaction_id", result.ExternalTransactionID))
	default:
		util.PaymentFailedTotal.Inc()
		outcome.Status = models.PaymentStatusFailed
		outcome.FailureReason = result.FailureReason
		s.logger.Info("Payment declined",
			zap.String("order_number", event.OrderNumber),
			zap.String("reason", result.FailureReason))
	}

	// Publish with a fresh context: the payment timeout may already be
	// spent, and the outcome must still reach the bus.
	pubCtx, pubCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer pubCancel()
	if err := s.publisher.PublishPaymentCompleted(pubCtx, outcome); err != nil {
		s.logger.Error("Failed to publish payment outcome",
			zap.String("order_number", event.OrderNumber),
			zap.String("status", outcome.Status),
			zap.Error(err))
	}
}
