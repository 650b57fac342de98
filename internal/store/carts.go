package store

import (
	"context"
	"database/sql"

	"order-intake/internal/apperr"
	"order-intake/internal/models"

	"github.com/google/uuid"
)

// GetCartBySession retrieves a cart with its items, or nil if the
// session has no cart.
func (s *Store) GetCartBySession(ctx context.Context, sessionID string) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart,
		"SELECT id, session_id, created_at, updated_at FROM carts WHERE session_id = $1", sessionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	err = s.db.SelectContext(ctx, &cart.Items,
		"SELECT * FROM cart_items WHERE cart_id = $1 ORDER BY created_at", cart.ID)
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// CreateCart creates an empty cart for a session.
func (s *Store) CreateCart(ctx context.Context, sessionID string) (*models.Cart, error) {
	cart := &models.Cart{ID: uuid.New(), SessionID: sessionID}
	err := s.db.GetContext(ctx, cart, `
		INSERT INTO carts (id, session_id) VALUES ($1, $2)
		RETURNING id, session_id, created_at, updated_at`,
		cart.ID, sessionID)
	if err != nil {
		return nil, err
	}
	cart.Items = []models.CartItem{}
	return cart, nil
}

// AddCartItem inserts a cart line carrying the product snapshot. Adding
// the same product again increases the quantity but keeps the original
// price snapshot.
func (s *Store) AddCartItem(ctx context.Context, item *models.CartItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cart_items
			(id, cart_id, product_id, product_sku, product_name, quantity, price_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
		item.ID, item.CartID, item.ProductID, item.ProductSKU,
		item.ProductName, item.Quantity, item.PriceSnapshot)
	return err
}

// UpdateCartItemQuantity sets the quantity of a cart line.
func (s *Store) UpdateCartItemQuantity(ctx context.Context, cartID uuid.UUID, productID int64, quantity int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1 WHERE cart_id = $2 AND product_id = $3",
		quantity, cartID, productID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperr.Newf(apperr.NotFound, "cart item not found for product %d", productID)
	}
	return nil
}

// RemoveCartItem deletes a cart line.
func (s *Store) RemoveCartItem(ctx context.Context, cartID uuid.UUID, productID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2", cartID, productID)
	return err
}

// DeleteCart removes the cart and its items.
func (s *Store) DeleteCart(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM carts WHERE session_id = $1", sessionID)
	return err
}
