package worker

import (
	"context"

	"order-intake/internal/broker"
	"order-intake/internal/service"
	"order-intake/internal/util"

	"go.uber.org/zap"
)

// IngestionWorker consumes the orders.created topic and feeds the
// ingestion service.
type IngestionWorker struct {
	consumer *broker.Consumer
	handler  *broker.EventHandler
	logger   *zap.Logger
}

// NewIngestionWorker creates a new ingestion worker
func NewIngestionWorker(consumer *broker.Consumer, svc *service.IngestionService) *IngestionWorker {
	handler := broker.NewEventHandler()
	handler.OnOrderCreated(svc.HandleOrderCreated)

	return &IngestionWorker{
		consumer: consumer,
		handler:  handler,
		logger:   util.GetLogger(),
	}
}

// Start runs the consume loop until the context is cancelled.
func (w *IngestionWorker) Start(ctx context.Context) error {
	w.logger.Info("Ingestion worker starting")
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

// Close closes the underlying consumer.
func (w *IngestionWorker) Close() error {
	return w.consumer.Close()
}

// ReconciliationWorker consumes the payments.completed topic and feeds
// the reconciliation service.
type ReconciliationWorker struct {
	consumer *broker.Consumer
	handler  *broker.EventHandler
	logger   *zap.Logger
}

// NewReconciliationWorker creates a new reconciliation worker
func NewReconciliationWorker(consumer *broker.Consumer, svc *service.ReconciliationService) *ReconciliationWorker {
	handler := broker.NewEventHandler()
	handler.OnPaymentCompleted(svc.HandlePaymentCompleted)

	return &ReconciliationWorker{
		consumer: consumer,
		handler:  handler,
		logger:   util.GetLogger(),
	}
}

// Start runs the consume loop until the context is cancelled.
func (w *ReconciliationWorker) Start(ctx context.Context) error {
	w.logger.Info("Reconciliation worker starting")
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

// Close closes the underlying consumer.
func (w *ReconciliationWorker) Close() error {
	return w.consumer.Close()
}
