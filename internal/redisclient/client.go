package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"order-intake/internal/models"

	"github.com/go-redis/redis/v8"
)

const cartKeyPrefix = "cart:"

type Client struct {
	rdb     *redis.Client
	cartTTL time.Duration
}

// NewClient creates a new Redis client for the cart cache tier
func NewClient(addr, password string, db int, cartTTL time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb, cartTTL: cartTTL}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetCart returns the cached cart for a session, or nil on a miss.
// Cache errors are returned so the caller can fall through to the
// database tier.
func (c *Client) GetCart(ctx context.Context, sessionID string) (*models.Cart, error) {
	data, err := c.rdb.Get(ctx, cartKeyPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cart cache read failed: %w", err)
	}

	var cart models.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("cart cache decode failed: %w", err)
	}
	return &cart, nil
}

// SetCart backfills the cache tier with the cart, refreshing its TTL.
func (c *Client) SetCart(ctx context.Context, cart *models.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("cart cache encode failed: %w", err)
	}
	return c.rdb.Set(ctx, cartKeyPrefix+cart.SessionID, data, c.cartTTL).Err()
}

// DeleteCart evicts the cached cart for a session.
func (c *Client) DeleteCart(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, cartKeyPrefix+sessionID).Err()
}
