package billing

import (
	"fmt"
	"time"
)

// InvoiceStatus is the payment state of an invoice.
type InvoiceStatus string

const (
	InvoiceUnpaid    InvoiceStatus = "unpaid"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// Payable reports whether an invoice in state s can still be paid.
func (s InvoiceStatus) Payable() bool {
	return s == InvoiceUnpaid || s == InvoiceOverdue
}

// Invoice is the bill issued for an order.
type Invoice struct {
	ID               string        `json:"id" db:"id"`
	Number           string        `json:"number" db:"number"`
	OrderID          string        `json:"order_id" db:"order_id"`
	UserID           string        `json:"user_id" db:"user_id"`
	Status           InvoiceStatus `json:"status" db:"status"`
	Amount           int64         `json:"amount" db:"amount"`
	DueDate          time.Time     `json:"due_date" db:"due_date"`
	PaidAt           *time.Time    `json:"paid_at,omitempty" db:"paid_at"`
	PaymentReference string        `json:"payment_reference,omitempty" db:"payment_reference"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// FormatInvoiceNumber renders an invoice number such as "FT 2026/000042".
func FormatInvoiceNumber(year int, seq int64) string {
	return fmt.Sprintf("FT %d/%06d", year, seq)
}

// Stats is the admin dashboard summary.
type Stats struct {
	Orders          int64 `json:"orders" db:"orders"`
	PendingOrders   int64 `json:"pending_orders" db:"pending_orders"`
	Revenue         int64 `json:"revenue" db:"revenue"`
	Clients         int64 `json:"clients" db:"clients"`
	ActiveServices  int64 `json:"active_services" db:"active_services"`
	ActiveDomains   int64 `json:"active_domains" db:"active_domains"`
	OverdueInvoices int64 `json:"overdue_invoices" db:"overdue_invoices"`
}
