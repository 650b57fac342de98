package service

import (
	"context"
	"fmt"
	"testing"

	"order-intake/internal/apperr"
	"order-intake/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCartStore struct {
	carts    map[string]*models.Cart
	products map[int64]*models.Product
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{
		carts: make(map[string]*models.Cart),
		products: map[int64]*models.Product{
			1: {ID: 1, SKU: "SKU-1", Name: "Widget", Price: decimal.RequireFromString("29.99"), IsActive: true},
			2: {ID: 2, SKU: "SKU-2", Name: "Gadget", Price: decimal.RequireFromString("5.00"), IsActive: true},
			3: {ID: 3, SKU: "SKU-3", Name: "Retired", Price: decimal.RequireFromString("1.00"), IsActive: false},
		},
	}
}

func (f *fakeCartStore) GetCartBySession(_ context.Context, sessionID string) (*models.Cart, error) {
	return f.carts[sessionID], nil
}

func (f *fakeCartStore) CreateCart(_ context.Context, sessionID string) (*models.Cart, error) {
	cart := &models.Cart{ID: uuid.New(), SessionID: sessionID}
	f.carts[sessionID] = cart
	return cart, nil
}

func (f *fakeCartStore) AddCartItem(_ context.Context, item *models.CartItem) error {
	for _, cart := range f.carts {
		if cart.ID != item.CartID {
			continue
		}
		for i := range cart.Items {
			if cart.Items[i].ProductID == item.ProductID {
				cart.Items[i].Quantity += item.Quantity
				return nil
			}
		}
		cart.Items = append(cart.Items, *item)
		return nil
	}
	return fmt.Errorf("cart not found")
}

func (f *fakeCartStore) UpdateCartItemQuantity(_ context.Context, cartID uuid.UUID, productID int64, quantity int) error {
	for _, cart := range f.carts {
		if cart.ID != cartID {
			continue
		}
		for i := range cart.Items {
			if cart.Items[i].ProductID == productID {
				cart.Items[i].Quantity = quantity
				return nil
			}
		}
	}
	return apperr.Newf(apperr.NotFound, "cart item not found")
}

func (f *fakeCartStore) RemoveCartItem(_ context.Context, cartID uuid.UUID, productID int64) error {
	for _, cart := range f.carts {
		if cart.ID != cartID {
			continue
		}
		for i := range cart.Items {
			if cart.Items[i].ProductID == productID {
				cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (f *fakeCartStore) DeleteCart(_ context.Context, sessionID string) error {
	delete(f.carts, sessionID)
	return nil
}

func (f *fakeCartStore) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	product, ok := f.products[id]
	if !ok {
		return nil, apperr.Newf(apperr.NotFound, "product not found: %d", id)
	}
	return product, nil
}

type fakeCartCache struct {
	carts   map[string]*models.Cart
	getErr  error
	setErr  error
	deletes []string
}

func newFakeCartCache() *fakeCartCache {
	return &fakeCartCache{carts: make(map[string]*models.Cart)}
}

func (f *fakeCartCache) GetCart(_ context.Context, sessionID string) (*models.Cart, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.carts[sessionID], nil
}

func (f *fakeCartCache) SetCart(_ context.Context, cart *models.Cart) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.carts[cart.SessionID] = cart
	return nil
}

func (f *fakeCartCache) DeleteCart(_ context.Context, sessionID string) error {
	delete(f.carts, sessionID)
	f.deletes = append(f.deletes, sessionID)
	return nil
}

func TestGetCartCreatesWhenMissing(t *testing.T) {
	store := newFakeCartStore()
	cache := newFakeCartCache()
	svc := NewCartService(store, cache)

	cart, err := svc.GetCart(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", cart.SessionID)
	assert.True(t, cart.IsEmpty())
	// Created cart is backfilled into the cache.
	assert.NotNil(t, cache.carts["sess-1"])
}

func TestGetCartServedFromCache(t *testing.T) {
	store := newFakeCartStore()
	cache := newFakeCartCache()
	cached := &models.Cart{ID: uuid.New(), SessionID: "sess-1"}
	cache.carts["sess-1"] = cached

	svc := NewCartService(store, cache)
	cart, err := svc.GetCart(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Same(t, cached, cart)
	// Durable tier was never asked to create anything.
	assert.Empty(t, store.carts)
}

func TestGetCartSurvivesCacheOutage(t *testing.T) {
	store := newFakeCartStore()
	cache := newFakeCartCache()
	cache.getErr = fmt.Errorf("connection refused")
	cache.setErr = fmt.Errorf("connection refused")

	svc := NewCartService(store, cache)
	cart, err := svc.GetCart(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", cart.SessionID)
}

func TestAddItemCapturesPriceSnapshot(t *testing.T) {
	store := newFakeCartStore()
	svc := NewCartService(store, newFakeCartCache())
	ctx := context.Background()

	cart, err := svc.AddItem(ctx, "sess-1", 1, 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.True(t, decimal.RequireFromString("29.99").Equal(cart.Items[0].PriceSnapshot))

	// A later catalog price change leaves the snapshot untouched.
	store.products[1].Price = decimal.RequireFromString("99.99")
	cart, err = svc.GetCart(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("29.99").Equal(cart.Items[0].PriceSnapshot))
}

func TestAddItemMergesQuantity(t *testing.T) {
	svc := NewCartService(newFakeCartStore(), newFakeCartCache())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "sess-1", 1, 1)
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, "sess-1", 1, 2)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
}

func TestAddItemRejectsInvalidInput(t *testing.T) {
	svc := NewCartService(newFakeCartStore(), newFakeCartCache())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "sess-1", 1, 0)
	assert.True(t, apperr.IsKind(err, apperr.Validation))

	_, err = svc.AddItem(ctx, "sess-1", 3, 1)
	assert.True(t, apperr.IsKind(err, apperr.Validation), "inactive product must be rejected")

	_, err = svc.AddItem(ctx, "sess-1", 404, 1)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestUpdateItemZeroRemovesLine(t *testing.T) {
	svc := NewCartService(newFakeCartStore(), newFakeCartCache())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "sess-1", 1, 2)
	require.NoError(t, err)

	cart, err := svc.UpdateItem(ctx, "sess-1", 1, 0)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestUpdateItemQuantity(t *testing.T) {
	svc := NewCartService(newFakeCartStore(), newFakeCartCache())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "sess-1", 1, 2)
	require.NoError(t, err)

	cart, err := svc.UpdateItem(ctx, "sess-1", 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, cart.Items[0].Quantity)

	_, err = svc.UpdateItem(ctx, "sess-1", 1, -1)
	assert.True(t, apperr.IsKind(err, apperr.Validation))
}

func TestClearCartEvictsBothTiers(t *testing.T) {
	store := newFakeCartStore()
	cache := newFakeCartCache()
	svc := NewCartService(store, cache)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "sess-1", 1, 1)
	require.NoError(t, err)

	require.NoError(t, svc.ClearCart(ctx, "sess-1"))
	assert.Nil(t, store.carts["sess-1"])
	assert.Contains(t, cache.deletes, "sess-1")
}
