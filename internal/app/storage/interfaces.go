package storage

import (
	"context"
	"errors"
	"time"

	"github.com/angohost/portal/internal/app/domain/account"
	"github.com/angohost/portal/internal/app/domain/billing"
	"github.com/angohost/portal/internal/app/domain/cart"
	"github.com/angohost/portal/internal/app/domain/provision"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("storage: conflict")
)

// ProfileStore persists portal profiles.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p account.Profile) (account.Profile, error)
	UpdateProfile(ctx context.Context, p account.Profile) (account.Profile, error)
	GetProfile(ctx context.Context, id string) (account.Profile, error)
	ListProfiles(ctx context.Context) ([]account.Profile, error)
}

// ContactStore persists registrant contact profiles.
type ContactStore interface {
	CreateContact(ctx context.Context, c account.ContactProfile) (account.ContactProfile, error)
	UpdateContact(ctx context.Context, c account.ContactProfile) (account.ContactProfile, error)
	GetContact(ctx context.Context, id string) (account.ContactProfile, error)
	ListContacts(ctx context.Context, userID string) ([]account.ContactProfile, error)
	DeleteContact(ctx context.Context, id string) error
	// SetDefaultContact marks id as the only default contact of userID.
	SetDefaultContact(ctx context.Context, userID, id string) error
}

// PaymentMethodStore persists payment methods.
type PaymentMethodStore interface {
	CreatePaymentMethod(ctx context.Context, m billing.PaymentMethod) (billing.PaymentMethod, error)
	UpdatePaymentMethod(ctx context.Context, m billing.PaymentMethod) (billing.PaymentMethod, error)
	GetPaymentMethod(ctx context.Context, id string) (billing.PaymentMethod, error)
	GetPaymentMethodByCode(ctx context.Context, code string) (billing.PaymentMethod, error)
	ListPaymentMethods(ctx context.Context, activeOnly bool) ([]billing.PaymentMethod, error)
	DeletePaymentMethod(ctx context.Context, id string) error
}

// OrderStore persists orders.
type OrderStore interface {
	CreateOrder(ctx context.Context, o billing.Order) (billing.Order, error)
	GetOrder(ctx context.Context, id string) (billing.Order, error)
	ListOrders(ctx context.Context, filter billing.OrderFilter) ([]billing.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status billing.OrderStatus) (billing.Order, error)
}

// InvoiceStore persists invoices. An empty userID lists every invoice.
type InvoiceStore interface {
	CreateInvoice(ctx context.Context, inv billing.Invoice) (billing.Invoice, error)
	UpdateInvoice(ctx context.Context, inv billing.Invoice) (billing.Invoice, error)
	GetInvoice(ctx context.Context, id string) (billing.Invoice, error)
	GetInvoiceByNumber(ctx context.Context, number string) (billing.Invoice, error)
	GetInvoiceByOrder(ctx context.Context, orderID string) (billing.Invoice, error)
	ListInvoices(ctx context.Context, userID string) ([]billing.Invoice, error)
}

// DomainStore persists client domains. An empty userID lists every domain.
type DomainStore interface {
	CreateDomain(ctx context.Context, d provision.ClientDomain) (provision.ClientDomain, error)
	UpdateDomain(ctx context.Context, d provision.ClientDomain) (provision.ClientDomain, error)
	GetDomain(ctx context.Context, id string) (provision.ClientDomain, error)
	ListDomains(ctx context.Context, userID string) ([]provision.ClientDomain, error)
	ListDomainsByOrder(ctx context.Context, orderID string) ([]provision.ClientDomain, error)
	// FindLiveDomain returns the pending or active domain named name.
	FindLiveDomain(ctx context.Context, name string) (provision.ClientDomain, error)
}

// ServiceStore persists client services. An empty userID lists every service.
type ServiceStore interface {
	CreateService(ctx context.Context, s provision.ClientService) (provision.ClientService, error)
	UpdateService(ctx context.Context, s provision.ClientService) (provision.ClientService, error)
	GetService(ctx context.Context, id string) (provision.ClientService, error)
	ListServices(ctx context.Context, userID string) ([]provision.ClientService, error)
	ListServicesByOrder(ctx context.Context, orderID string) ([]provision.ClientService, error)
}

// SequenceStore hands out per-year document numbers.
type SequenceStore interface {
	NextSequence(ctx context.Context, name string, year int) (int64, error)
}

// SweepStore applies the periodic expiry rules.
type SweepStore interface {
	ExpireDomains(ctx context.Context, now time.Time) (int64, error)
	ExpireServices(ctx context.Context, now time.Time) (int64, error)
	MarkOverdueInvoices(ctx context.Context, now time.Time) (int64, error)
}

// StatsStore aggregates dashboard counters.
type StatsStore interface {
	Stats(ctx context.Context) (billing.Stats, error)
}

// Store is the full relational store.
type Store interface {
	ProfileStore
	ContactStore
	PaymentMethodStore
	OrderStore
	InvoiceStore
	DomainStore
	ServiceStore
	SequenceStore
	SweepStore
	StatsStore
	Transactor
}

// Transactor runs fn atomically. The Store handed to fn is bound to the
// transaction; fn's error rolls everything back.
type Transactor interface {
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// CartStore persists carts by key. Get returns an empty cart when none exists.
type CartStore interface {
	GetCart(ctx context.Context, key string) (*cart.Cart, error)
	SaveCart(ctx context.Context, c *cart.Cart) error
	DeleteCart(ctx context.Context, key string) error
}

// CartPurger is implemented by cart stores without native expiry.
type CartPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}
