// Package redis stores carts in Redis so guest sessions survive restarts and
// are shared between replicas.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/angohost/portal/internal/app/domain/cart"
	"github.com/angohost/portal/internal/app/storage"
)

const keyPrefix = "angohost:cart:"

// CartStore persists carts as JSON values with a sliding TTL.
type CartStore struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

var _ storage.CartStore = (*CartStore)(nil)

// NewCartStore wraps an existing client.
func NewCartStore(client goredis.UniversalClient, ttl time.Duration) *CartStore {
	return &CartStore{client: client, ttl: ttl}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (s *CartStore) GetCart(ctx context.Context, key string) (*cart.Cart, error) {
	data, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return cart.New(key), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	var c cart.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	c.Key = key
	if c.Items == nil {
		c.Items = []cart.Item{}
	}
	return &c, nil
}

func (s *CartStore) SaveCart(ctx context.Context, c *cart.Cart) error {
	c.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+c.Key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *CartStore) DeleteCart(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
