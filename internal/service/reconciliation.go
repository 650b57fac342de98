package service

import (
	"context"

	"order-intake/internal/models"
	"order-intake/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReconciliationStore is the transactional surface payment
// reconciliation needs.
type ReconciliationStore interface {
	ApplyPaymentResult(ctx context.Context, eventID uuid.UUID, orderNumber string, success bool, externalTxID, failureReason string) (bool, error)
}

// ReconciliationService consumes PaymentCompleted events and settles
// order and payment state exactly once.
type ReconciliationService struct {
	store  ReconciliationStore
	logger *zap.Logger
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(st ReconciliationStore) *ReconciliationService {
	return &ReconciliationService{store: st, logger: util.GetLogger()}
}

// HandlePaymentCompleted applies a payment outcome to its order. A
// returned error leaves the offset uncommitted for redelivery; the
// dedup claim absorbs the replay.
func (s *ReconciliationService) HandlePaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error {
	ctx, span := util.StartSpan(util.WithCorrelationID(ctx, event.CorrelationID), "ReconciliationService.HandlePaymentCompleted")
	defer span.End()

	util.EventsConsumedTotal.WithLabelValues(models.EventTypePaymentCompleted).Inc()

	success := event.Status == models.PaymentStatusSuccess
	claimed, err := s.store.ApplyPaymentResult(ctx, event.EventID, event.OrderNumber,
		success, event.ExternalTransactionID, event.FailureReason)
	if err != nil {
		return err
	}
	if !claimed {
		util.EventsDuplicateTotal.WithLabelValues(models.EventTypePaymentCompleted).Inc()
		s.logger.Info("Skipping already processed PaymentCompleted event",
			zap.String("event_id", event.EventID.String()),
			zap.String("order_number", event.OrderNumber))
		return nil
	}

	s.logger.Info("Payment result reconciled",
		zap.String("order_number", event.OrderNumber),
		zap.String("status", event.Status))
	return nil
}
