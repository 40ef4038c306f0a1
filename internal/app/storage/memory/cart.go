package memory

import (
	"context"
	"sync"
	"time"

	"github.com/angohost/portal/internal/app/domain/cart"
	"github.com/angohost/portal/internal/app/storage"
)

// CartStore keeps carts in process memory with a sliding TTL.
type CartStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	carts map[string]*cart.Cart
}

var (
	_ storage.CartStore  = (*CartStore)(nil)
	_ storage.CartPurger = (*CartStore)(nil)
)

// NewCartStore creates a cart store. A zero ttl keeps carts forever.
func NewCartStore(ttl time.Duration) *CartStore {
	return &CartStore{ttl: ttl, now: time.Now, carts: make(map[string]*cart.Cart)}
}

func (s *CartStore) GetCart(_ context.Context, key string) (*cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[key]
	if !ok || s.expiredLocked(c) {
		delete(s.carts, key)
		return cart.New(key), nil
	}
	return c.Clone(), nil
}

func (s *CartStore) SaveCart(_ context.Context, c *cart.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := c.Clone()
	stored.UpdatedAt = s.now().UTC()
	c.UpdatedAt = stored.UpdatedAt
	s.carts[c.Key] = stored
	return nil
}

func (s *CartStore) DeleteCart(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, key)
	return nil
}

// PurgeExpired drops carts idle for longer than the TTL.
func (s *CartStore) PurgeExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for key, c := range s.carts {
		if s.expiredLocked(c) {
			delete(s.carts, key)
			purged++
		}
	}
	return purged, nil
}

func (s *CartStore) expiredLocked(c *cart.Cart) bool {
	return s.ttl > 0 && s.now().Sub(c.UpdatedAt) > s.ttl
}
