// Package provision models the domains and services a client owns.
package provision

import "time"

// Status is shared by domains and services.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusSuspended, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// ClientDomain is a registered (or to-be-registered) domain.
type ClientDomain struct {
	ID               string     `json:"id" db:"id"`
	UserID           string     `json:"user_id" db:"user_id"`
	OrderID          string     `json:"order_id" db:"order_id"`
	Name             string     `json:"name" db:"name"`
	TLD              string     `json:"tld" db:"tld"`
	Status           Status     `json:"status" db:"status"`
	Years            int        `json:"years" db:"years"`
	AutoRenew        bool       `json:"auto_renew" db:"auto_renew"`
	Transfer         bool       `json:"transfer" db:"transfer"`
	ContactProfileID string     `json:"contact_profile_id,omitempty" db:"contact_profile_id"`
	RegisteredAt     *time.Time `json:"registered_at,omitempty" db:"registered_at"`
	ExpiryDate       time.Time  `json:"expiry_date" db:"expiry_date"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// ServiceType distinguishes hosting from email services.
type ServiceType string

const (
	ServiceHosting ServiceType = "hosting"
	ServiceEmail   ServiceType = "email"
)

// ClientService is a hosting or email subscription.
type ClientService struct {
	ID           string      `json:"id" db:"id"`
	UserID       string      `json:"user_id" db:"user_id"`
	OrderID      string      `json:"order_id" db:"order_id"`
	Type         ServiceType `json:"type" db:"type"`
	PlanID       string      `json:"plan_id" db:"plan_id"`
	Name         string      `json:"name" db:"name"`
	Domain       string      `json:"domain,omitempty" db:"domain"`
	Status       Status      `json:"status" db:"status"`
	BillingYears int         `json:"billing_years" db:"billing_years"`
	Seats        int         `json:"seats" db:"seats"`
	Price        int64       `json:"price" db:"price"`
	RenewalDate  time.Time   `json:"renewal_date" db:"renewal_date"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

// SweepResult counts the records touched by an expiry sweep.
type SweepResult struct {
	ExpiredDomains  int64 `json:"expired_domains"`
	ExpiredServices int64 `json:"expired_services"`
	OverdueInvoices int64 `json:"overdue_invoices"`
}
