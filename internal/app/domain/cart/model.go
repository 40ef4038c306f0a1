// Package cart holds the shopping cart model: heterogeneous line items for
// domains, hosting plans and email seats, keyed by a guest session or user id.
package cart

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ItemType is the canonical kind of a cart line.
type ItemType string

const (
	TypeDomain  ItemType = "domain"
	TypeHosting ItemType = "hosting"
	TypeEmail   ItemType = "email"
)

const (
	MinYears = 1
	MaxYears = 10
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrItemNotFound    = errors.New("cart item not found")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidYears    = fmt.Errorf("years must be between %d and %d", MinYears, MaxYears)
	ErrInvalidKey      = errors.New("cart key is required")
)

// Details carries per-type options of a line item.
type Details struct {
	// RegisterDomain marks a hosting item whose domain should also be
	// registered as part of the order.
	RegisterDomain bool   `json:"register_domain,omitempty"`
	Transfer       bool   `json:"transfer,omitempty"`
	AuthCode       string `json:"auth_code,omitempty"`
}

// Item is a single cart line. Price is the per-unit per-year price after the
// multi-year discount; BasePrice is the undiscounted catalog price.
type Item struct {
	ID        string   `json:"id"`
	Type      ItemType `json:"type"`
	Name      string   `json:"name"`
	PlanID    string   `json:"plan_id,omitempty"`
	Domain    string   `json:"domain,omitempty"`
	Price     int64    `json:"price"`
	BasePrice int64    `json:"base_price"`
	Quantity  int      `json:"quantity"`
	Years     int      `json:"years"`
	Details   Details  `json:"details"`
}

// Validate enforces the quantity and period bounds of a line.
func (i Item) Validate() error {
	if i.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if i.Years < MinYears || i.Years > MaxYears {
		return ErrInvalidYears
	}
	if i.Type == TypeDomain && i.Quantity != 1 {
		return fmt.Errorf("domain items: %w", ErrInvalidQuantity)
	}
	return nil
}

// ItemID derives the stable line id for a product so that adding the same
// product twice replaces the existing line.
func ItemID(t ItemType, planID, domain string) string {
	parts := []string{string(t)}
	if planID != "" {
		parts = append(parts, planID)
	}
	if domain != "" {
		parts = append(parts, strings.ToLower(domain))
	}
	return strings.Join(parts, ":")
}

// Cart is the set of lines held under one key.
type Cart struct {
	Key       string    `json:"key"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an empty cart for key.
func New(key string) *Cart {
	return &Cart{Key: key, Items: []Item{}}
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Find returns the line with id.
func (c *Cart) Find(id string) (Item, bool) {
	for _, item := range c.Items {
		if item.ID == id {
			return item, true
		}
	}
	return Item{}, false
}

// Upsert adds item or replaces the line with the same id.
func (c *Cart) Upsert(item Item) {
	for i := range c.Items {
		if c.Items[i].ID == item.ID {
			c.Items[i] = item
			return
		}
	}
	c.Items = append(c.Items, item)
}

// Remove drops the line with id and reports whether it existed.
func (c *Cart) Remove(id string) bool {
	for i := range c.Items {
		if c.Items[i].ID == id {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return true
		}
	}
	return false
}

// Merge folds the lines of guest into c. Lines already present in c win.
func (c *Cart) Merge(guest *Cart) {
	if guest == nil {
		return
	}
	for _, item := range guest.Items {
		if _, exists := c.Find(item.ID); !exists {
			c.Items = append(c.Items, item)
		}
	}
}

// HasDomainRegistration reports whether checkout of this cart will create a
// domain record, which requires a registrant contact.
func (c *Cart) HasDomainRegistration() bool {
	for _, item := range c.Items {
		if item.Type == TypeDomain {
			return true
		}
		if item.Type == TypeHosting && item.Details.RegisterDomain && item.Domain != "" {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := &Cart{Key: c.Key, UpdatedAt: c.UpdatedAt, Items: make([]Item, len(c.Items))}
	copy(out.Items, c.Items)
	return out
}
