package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"order-intake/internal/apperr"
	"order-intake/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// IsEventProcessed checks the dedup gate for an event id.
func (s *Store) IsEventProcessed(ctx context.Context, eventID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// claimEventTx writes the dedup record inside an open transaction.
// Returns false when another delivery already claimed the event id.
func claimEventTx(ctx context.Context, tx *sqlx.Tx, eventID uuid.UUID, eventType string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("failed to record processed event: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// IngestOrder atomically creates the order aggregate, its items, the
// pending payment transaction, and the dedup record. Returns false
// without mutating anything when the event was already processed.
func (s *Store) IngestOrder(ctx context.Context, eventID uuid.UUID, order *models.Order, items []models.OrderItem, payment *models.PaymentTransaction) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin ingestion transaction: %w", err)
	}
	defer tx.Rollback()

	claimed, err := claimEventTx(ctx, tx, eventID, models.EventTypeOrderCreated)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders
			(id, order_number, customer_name, customer_email, customer_phone,
			 shipping_street, shipping_city, shipping_state, postal_code, country,
			 subtotal, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		order.ID, order.OrderNumber, order.CustomerName, order.CustomerEmail,
		order.CustomerPhone, order.ShippingStreet, order.ShippingCity,
		order.ShippingState, order.PostalCode, order.Country,
		order.Subtotal, models.OrderStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range items {
		item := &items[i]
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items
				(id, order_id, product_id, product_sku, product_name, quantity, price_snapshot)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			item.ID, order.ID, item.ProductID, item.ProductSKU,
			item.ProductName, item.Quantity, item.PriceSnapshot)
		if err != nil {
			return false, fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payment_transactions
			(id, order_id, amount, payment_method, status, attempt_count)
		VALUES ($1, $2, $3, $4, $5, 0)`,
		payment.ID, order.ID, payment.Amount, payment.PaymentMethod,
		models.PaymentStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to insert payment transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit ingestion transaction: %w", err)
	}
	return true, nil
}

// ApplyPaymentResult reconciles an order with its payment outcome: the
// payment transaction, the order status, and the dedup record all move
// in one transaction. Returns false on a duplicate event.
func (s *Store) ApplyPaymentResult(ctx context.Context, eventID uuid.UUID, orderNumber string, success bool, externalTxID, failureReason string) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin reconciliation transaction: %w", err)
	}
	defer tx.Rollback()

	claimed, err := claimEventTx(ctx, tx, eventID, models.EventTypePaymentCompleted)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	var order models.Order
	err = tx.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE order_number = $1 FOR UPDATE", orderNumber)
	if err == sql.ErrNoRows {
		return false, apperr.Newf(apperr.NotFound, "order not found: %s", orderNumber)
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock order: %w", err)
	}

	paymentStatus := models.PaymentStatusFailed
	orderStatus := models.OrderStatusFailed
	if success {
		paymentStatus = models.PaymentStatusSuccess
		orderStatus = models.OrderStatusPaid
	}

	if !models.CanTransition(order.Status, orderStatus) {
		return false, apperr.Newf(apperr.InvalidState,
			"order %s cannot transition from %s to %s", orderNumber, order.Status, orderStatus)
	}

	if failureReason == "" && !success {
		failureReason = "unknown failure"
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE payment_transactions
		SET status = $1, external_transaction_id = $2, failure_reason = $3, updated_at = NOW()
		WHERE order_id = $4`,
		paymentStatus, externalTxID, failureReason, order.ID)
	if err != nil {
		return false, fmt.Errorf("failed to update payment transaction: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		orderStatus, order.ID)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit reconciliation transaction: %w", err)
	}
	return true, nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.NotFound, "order not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByNumber retrieves an order by its human-facing number.
func (s *Store) GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE order_number = $1", orderNumber)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.NotFound, "order not found: %s", orderNumber)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItems retrieves all items for an order.
func (s *Store) GetOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID)
	return items, err
}

// GetPaymentByOrderID retrieves the payment transaction for an order.
func (s *Store) GetPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PaymentTransaction, error) {
	var payment models.PaymentTransaction
	err := s.db.GetContext(ctx, &payment,
		"SELECT * FROM payment_transactions WHERE order_id = $1", orderID)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.NotFound, "payment not found for order: %s", orderID)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// OrderFilter narrows ListOrders results. Zero values mean no filter.
type OrderFilter struct {
	Status        string
	CustomerEmail string
	CreatedAfter  time.Time
	CreatedBefore time.Time
	Limit         int
	Offset        int
}

// ListOrders retrieves orders matching the filter, newest first.
func (s *Store) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}

	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR customer_email = $2)
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		  AND ($4::timestamptz IS NULL OR created_at <= $4)
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6`,
		f.Status, f.CustomerEmail, nullableTime(f.CreatedAfter),
		nullableTime(f.CreatedBefore), f.Limit, f.Offset)
	return orders, err
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// TransitionOrder moves an order to the target status under a row lock,
// rejecting illegal transitions. The mutate hook stamps transition
// specific columns on the same UPDATE.
func (s *Store) TransitionOrder(ctx context.Context, orderNumber, target string, mutate func(o *models.Order)) (*models.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transition transaction: %w", err)
	}
	defer tx.Rollback()

	var order models.Order
	err = tx.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE order_number = $1 FOR UPDATE", orderNumber)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.NotFound, "order not found: %s", orderNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}

	if !models.CanTransition(order.Status, target) {
		return nil, apperr.Newf(apperr.InvalidState,
			"order %s cannot transition from %s to %s", orderNumber, order.Status, target)
	}

	order.Status = target
	if mutate != nil {
		mutate(&order)
	}

	now := time.Now().UTC()
	order.UpdatedAt = now
	if target == models.OrderStatusFulfilled {
		order.CompletedAt = &now
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, tracking_number = $2, carrier = $3, cancel_reason = $4,
		    completed_at = $5, updated_at = $6
		WHERE id = $7`,
		order.Status, order.TrackingNumber, order.Carrier, order.CancelReason,
		order.CompletedAt, order.UpdatedAt, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transition transaction: %w", err)
	}
	return &order, nil
}
