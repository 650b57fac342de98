package service

import (
	"context"
	"fmt"

	"order-intake/internal/apperr"
	"order-intake/internal/models"
	"order-intake/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartStore is the durable tier of cart storage.
type CartStore interface {
	GetCartBySession(ctx context.Context, sessionID string) (*models.Cart, error)
	CreateCart(ctx context.Context, sessionID string) (*models.Cart, error)
	AddCartItem(ctx context.Context, item *models.CartItem) error
	UpdateCartItemQuantity(ctx context.Context, cartID uuid.UUID, productID int64, quantity int) error
	RemoveCartItem(ctx context.Context, cartID uuid.UUID, productID int64) error
	DeleteCart(ctx context.Context, sessionID string) error
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
}

// CartCache is the fast tier of cart storage. Failures here degrade to
// the durable tier and are never fatal.
type CartCache interface {
	GetCart(ctx context.Context, sessionID string) (*models.Cart, error)
	SetCart(ctx context.Context, cart *models.Cart) error
	DeleteCart(ctx context.Context, sessionID string) error
}

// CartService composes the two cart tiers with an explicit cache-aside
// strategy: read cache, fall back to the database, backfill the cache.
// Writes go to the database first, then refresh the cache.
type CartService struct {
	store  CartStore
	cache  CartCache
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store CartStore, cache CartCache) *CartService {
	return &CartService{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// GetCart returns the cart for a session, creating an empty one if none
// exists.
func (s *CartService) GetCart(ctx context.Context, sessionID string) (*models.Cart, error) {
	if cached, err := s.cache.GetCart(ctx, sessionID); err != nil {
		s.logger.Warn("Cart cache read failed, falling back to database",
			zap.String("session_id", sessionID), zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}

	cart, err := s.store.GetCartBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if cart == nil {
		cart, err = s.store.CreateCart(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to create cart: %w", err)
		}
	}

	s.backfill(ctx, cart)
	return cart, nil
}

// AddItem adds a product to the cart, capturing the price snapshot at
// add time. The snapshot is what gets billed even if the catalog price
// changes afterwards.
func (s *CartService) AddItem(ctx context.Context, sessionID string, productID int64, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return nil, apperr.Newf(apperr.Validation, "quantity must be positive, got %d", quantity)
	}

	product, err := s.store.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, apperr.Newf(apperr.Validation, "product %d is not active", productID)
	}

	cart, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	item := &models.CartItem{
		ID:            uuid.New(),
		CartID:        cart.ID,
		ProductID:     product.ID,
		ProductSKU:    product.SKU,
		ProductName:   product.Name,
		Quantity:      quantity,
		PriceSnapshot: product.Price,
	}
	if err := s.store.AddCartItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}

	return s.refresh(ctx, sessionID)
}

// UpdateItem sets the quantity of a cart line; zero removes it.
func (s *CartService) UpdateItem(ctx context.Context, sessionID string, productID int64, quantity int) (*models.Cart, error) {
	if quantity < 0 {
		return nil, apperr.Newf(apperr.Validation, "quantity must not be negative, got %d", quantity)
	}

	cart, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if quantity == 0 {
		err = s.store.RemoveCartItem(ctx, cart.ID, productID)
	} else {
		err = s.store.UpdateCartItemQuantity(ctx, cart.ID, productID, quantity)
	}
	if err != nil {
		return nil, err
	}

	return s.refresh(ctx, sessionID)
}

// RemoveItem deletes a cart line.
func (s *CartService) RemoveItem(ctx context.Context, sessionID string, productID int64) (*models.Cart, error) {
	cart, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.store.RemoveCartItem(ctx, cart.ID, productID); err != nil {
		return nil, err
	}
	return s.refresh(ctx, sessionID)
}

// ClearCart deletes the cart from both tiers. Used after checkout
// commits; best-effort there, so errors are surfaced but tolerable.
func (s *CartService) ClearCart(ctx context.Context, sessionID string) error {
	if err := s.cache.DeleteCart(ctx, sessionID); err != nil {
		s.logger.Warn("Cart cache eviction failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}
	return s.store.DeleteCart(ctx, sessionID)
}

// refresh reloads the cart from the durable tier and backfills the
// cache so subsequent reads see the write.
func (s *CartService) refresh(ctx context.Context, sessionID string) (*models.Cart, error) {
	cart, err := s.store.GetCartBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, apperr.Newf(apperr.NotFound, "cart not found for session %s", sessionID)
	}
	s.backfill(ctx, cart)
	return cart, nil
}

func (s *CartService) backfill(ctx context.Context, cart *models.Cart) {
	if err := s.cache.SetCart(ctx, cart); err != nil {
		s.logger.Warn("Cart cache backfill failed",
			zap.String("session_id", cart.SessionID), zap.Error(err))
	}
}
