// Package cart manages shopping carts held under a guest session id or a
// user id.
package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/angohost/portal/internal/app/domain/cart"
	"github.com/angohost/portal/internal/app/metrics"
	"github.com/angohost/portal/internal/app/pricing"
	catalogsvc "github.com/angohost/portal/internal/app/services/catalog"
	"github.com/angohost/portal/internal/app/storage"
	"github.com/angohost/portal/pkg/logger"
)

// View is a cart together with its current quote.
type View struct {
	Cart  *cart.Cart    `json:"cart"`
	Quote pricing.Quote `json:"quote"`
}

// Service manages carts.
type Service struct {
	catalog *catalogsvc.Service
	store   storage.CartStore
	rules   pricing.Rules
	log     *logger.Logger
}

// New constructs a cart service.
func New(catalog *catalogsvc.Service, store storage.CartStore, rules pricing.Rules, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("cart")
	}
	return &Service{catalog: catalog, store: store, rules: rules, log: log}
}

// Rules returns the pricing rules used for quotes.
func (s *Service) Rules() pricing.Rules {
	return s.rules
}

// Load returns the raw cart for key.
func (s *Service) Load(ctx context.Context, key string) (*cart.Cart, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	return s.store.GetCart(ctx, key)
}

// Get returns the cart for key with its quote.
func (s *Service) Get(ctx context.Context, key string) (View, error) {
	c, err := s.Load(ctx, key)
	if err != nil {
		return View{}, err
	}
	return s.view(c)
}

// Add resolves req against the catalog and stores the line. Adding a product
// that is already in the cart replaces its quantity and period.
func (s *Service) Add(ctx context.Context, key string, req catalogsvc.ItemRequest) (View, error) {
	c, err := s.Load(ctx, key)
	if err != nil {
		return View{}, err
	}
	item, err := s.catalog.ResolveItem(ctx, req)
	if err != nil {
		return View{}, err
	}
	c.Upsert(item)
	if err := s.save(ctx, c, "add"); err != nil {
		return View{}, err
	}
	s.log.WithField("cart", key).WithField("item_id", item.ID).Debug("cart item added")
	return s.view(c)
}

// Update changes the quantity and period of a line.
func (s *Service) Update(ctx context.Context, key, id string, quantity, years int) (View, error) {
	c, err := s.Load(ctx, key)
	if err != nil {
		return View{}, err
	}
	existing, ok := c.Find(id)
	if !ok {
		return View{}, fmt.Errorf("%s: %w", id, cart.ErrItemNotFound)
	}

	req := catalogsvc.ItemRequest{
		Type:     string(existing.Type),
		PlanID:   existing.PlanID,
		Domain:   existing.Domain,
		Quantity: quantity,
		Years:    years,
		Details:  existing.Details,
	}
	if quantity < 1 {
		return View{}, cart.ErrInvalidQuantity
	}
	if years < cart.MinYears || years > cart.MaxYears {
		return View{}, cart.ErrInvalidYears
	}
	item, err := s.reprice(ctx, existing, req)
	if err != nil {
		return View{}, err
	}
	c.Upsert(item)
	if err := s.save(ctx, c, "update"); err != nil {
		return View{}, err
	}
	return s.view(c)
}

// reprice re-resolves a line. Domains already in the cart skip the
// availability check so that a line added earlier can still be edited.
func (s *Service) reprice(ctx context.Context, existing cart.Item, req catalogsvc.ItemRequest) (cart.Item, error) {
	if existing.Type != cart.TypeDomain {
		return s.catalog.ResolveItem(ctx, req)
	}
	if req.Quantity != 1 {
		return cart.Item{}, fmt.Errorf("domain items: %w", cart.ErrInvalidQuantity)
	}
	existing.Years = req.Years
	return existing, existing.Validate()
}

// Remove drops a line.
func (s *Service) Remove(ctx context.Context, key, id string) (View, error) {
	c, err := s.Load(ctx, key)
	if err != nil {
		return View{}, err
	}
	if !c.Remove(id) {
		return View{}, fmt.Errorf("%s: %w", id, cart.ErrItemNotFound)
	}
	if err := s.save(ctx, c, "remove"); err != nil {
		return View{}, err
	}
	return s.view(c)
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	metrics.RecordCartOperation("clear")
	return s.store.DeleteCart(ctx, key)
}

// Merge folds the guest cart into the user cart after login. Lines present
// in both keep the user's copy; the guest cart is deleted.
func (s *Service) Merge(ctx context.Context, guestKey, userKey string) (View, error) {
	if err := checkKey(guestKey); err != nil {
		return View{}, err
	}
	userCart, err := s.Load(ctx, userKey)
	if err != nil {
		return View{}, err
	}
	if guestKey == userKey {
		return s.view(userCart)
	}
	guest, err := s.store.GetCart(ctx, guestKey)
	if err != nil {
		return View{}, err
	}
	if guest.IsEmpty() {
		if err := s.store.DeleteCart(ctx, guestKey); err != nil {
			s.log.WithError(err).WithField("cart", guestKey).Warn("delete empty guest cart")
		}
		return s.view(userCart)
	}

	before := len(userCart.Items)
	userCart.Merge(guest)
	if err := s.save(ctx, userCart, "merge"); err != nil {
		return View{}, err
	}
	if err := s.store.DeleteCart(ctx, guestKey); err != nil {
		s.log.WithError(err).WithField("cart", guestKey).Warn("delete merged guest cart")
	}
	s.log.WithField("cart", userKey).
		WithField("merged", len(userCart.Items)-before).
		Info("guest cart merged")
	return s.view(userCart)
}

// Quote prices c with the configured rules.
func (s *Service) Quote(c *cart.Cart) (pricing.Quote, error) {
	return s.rules.Quote(c.Items)
}

func (s *Service) view(c *cart.Cart) (View, error) {
	q, err := s.Quote(c)
	if err != nil {
		return View{}, err
	}
	for i, line := range q.Lines {
		c.Items[i].Price = line.UnitPrice
	}
	return View{Cart: c, Quote: q}, nil
}

func (s *Service) save(ctx context.Context, c *cart.Cart, op string) error {
	if err := s.store.SaveCart(ctx, c); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	metrics.RecordCartOperation(op)
	return nil
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return cart.ErrInvalidKey
	}
	return nil
}
