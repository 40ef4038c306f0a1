package billing

import (
	"strings"
	"time"
)

// PaymentMethod is a way of paying an invoice (bank transfer, Multicaixa
// Express, ...). The webhook fields describe how provider notifications are
// read: ReferencePath and StatusPath are JSONPath expressions into the
// provider payload and PaidValue is the status value that means paid.
type PaymentMethod struct {
	ID            string    `json:"id" db:"id"`
	Code          string    `json:"code" db:"code" validate:"required,max=40"`
	Name          string    `json:"name" db:"name" validate:"required,max=80"`
	Description   string    `json:"description" db:"description"`
	Instructions  string    `json:"instructions" db:"instructions"`
	Active        bool      `json:"active" db:"active"`
	SortOrder     int       `json:"sort_order" db:"sort_order"`
	ReferencePath string    `json:"reference_path,omitempty" db:"reference_path"`
	StatusPath    string    `json:"status_path,omitempty" db:"status_path"`
	PaidValue     string    `json:"paid_value,omitempty" db:"paid_value"`
	WebhookSecret string    `json:"webhook_secret,omitempty" db:"webhook_secret"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Public strips webhook configuration before a method is shown to clients.
func (m PaymentMethod) Public() PaymentMethod {
	m.ReferencePath = ""
	m.StatusPath = ""
	m.PaidValue = ""
	m.WebhookSecret = ""
	return m
}

// AcceptsWebhooks reports whether provider notifications can be processed.
func (m PaymentMethod) AcceptsWebhooks() bool {
	return m.ReferencePath != "" && m.WebhookSecret != ""
}

// NormalizeCode lower-cases and trims a payment method code.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
