// Package billing models orders, invoices and payment methods.
package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderPaid       OrderStatus = "paid"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

var ErrInvalidTransition = errors.New("invalid status transition")

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderPaid, OrderCancelled},
	OrderPaid:       {OrderProcessing, OrderCompleted},
	OrderProcessing: {OrderCompleted},
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPaid, OrderProcessing, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderItem is the priced snapshot of a cart line stored with the order.
type OrderItem struct {
	ItemID       string  `json:"item_id"`
	Type         string  `json:"type"`
	Name         string  `json:"name"`
	PlanID       string  `json:"plan_id,omitempty"`
	Domain       string  `json:"domain,omitempty"`
	Quantity     int     `json:"quantity"`
	Years        int     `json:"years"`
	BasePrice    int64   `json:"base_price"`
	UnitPrice    int64   `json:"unit_price"`
	DiscountRate float64 `json:"discount_rate"`
	Total        int64   `json:"total"`
}

// OrderItems is stored as a jsonb column.
type OrderItems []OrderItem

// Value implements driver.Valuer.
func (o OrderItems) Value() (driver.Value, error) {
	if o == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(o)
}

// Scan implements sql.Scanner.
func (o *OrderItems) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*o = OrderItems{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("order items: unsupported type %T", src)
	}
	return json.Unmarshal(data, o)
}

// Order is a placed order.
type Order struct {
	ID               string      `json:"id" db:"id"`
	Number           string      `json:"number" db:"number"`
	UserID           string      `json:"user_id" db:"user_id"`
	Status           OrderStatus `json:"status" db:"status"`
	Items            OrderItems  `json:"items" db:"items"`
	Subtotal         int64       `json:"subtotal" db:"subtotal"`
	Discount         int64       `json:"discount" db:"discount"`
	Total            int64       `json:"total" db:"total"`
	PaymentMethodID  string      `json:"payment_method_id" db:"payment_method_id"`
	ContactProfileID string      `json:"contact_profile_id,omitempty" db:"contact_profile_id"`
	Notes            string      `json:"notes,omitempty" db:"notes"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`
}

// OrderFilter narrows admin order listings.
type OrderFilter struct {
	Status OrderStatus
	UserID string
	Limit  int
	Offset int
}

// FormatOrderNumber renders an order number such as "ORD-2026-000042".
func FormatOrderNumber(year int, seq int64) string {
	return fmt.Sprintf("ORD-%d-%06d", year, seq)
}
