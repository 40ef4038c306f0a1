package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angohost/portal/internal/app/domain/account"
	"github.com/angohost/portal/internal/app/domain/billing"
	"github.com/angohost/portal/internal/app/domain/provision"
	"github.com/angohost/portal/internal/app/storage"
)

// Store is an in-memory implementation of storage.Store. It is safe for
// concurrent use and is primarily intended for tests and local development.
//
// Transactions are serialized. WithTx runs the callback against a private
// copy of the data and swaps it in on success. Writes outside a transaction
// also hold txMu so an open transaction cannot discard them on commit.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data *state
}

type state struct {
	profiles  map[string]account.Profile
	contacts  map[string]account.ContactProfile
	methods   map[string]billing.PaymentMethod
	orders    map[string]billing.Order
	invoices  map[string]billing.Invoice
	domains   map[string]provision.ClientDomain
	services  map[string]provision.ClientService
	sequences map[string]int64
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{data: newState()}
}

func newState() *state {
	return &state{
		profiles:  make(map[string]account.Profile),
		contacts:  make(map[string]account.ContactProfile),
		methods:   make(map[string]billing.PaymentMethod),
		orders:    make(map[string]billing.Order),
		invoices:  make(map[string]billing.Invoice),
		domains:   make(map[string]provision.ClientDomain),
		services:  make(map[string]provision.ClientService),
		sequences: make(map[string]int64),
	}
}

func (st *state) clone() *state {
	out := newState()
	for k, v := range st.profiles {
		out.profiles[k] = v
	}
	for k, v := range st.contacts {
		out.contacts[k] = v
	}
	for k, v := range st.methods {
		out.methods[k] = v
	}
	for k, v := range st.orders {
		out.orders[k] = cloneOrder(v)
	}
	for k, v := range st.invoices {
		out.invoices[k] = v
	}
	for k, v := range st.domains {
		out.domains[k] = v
	}
	for k, v := range st.services {
		out.services[k] = v
	}
	for k, v := range st.sequences {
		out.sequences[k] = v
	}
	return out
}

// WithTx implements storage.Transactor.
func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	tx := &Store{data: s.data.clone()}
	s.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = tx.data
	s.mu.Unlock()
	return nil
}

// lockWrite takes txMu then mu and returns the matching unlock.
func (s *Store) lockWrite() func() {
	s.txMu.Lock()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.txMu.Unlock()
	}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// ProfileStore implementation -------------------------------------------------

func (s *Store) CreateProfile(_ context.Context, p account.Profile) (account.Profile, error) {
	defer s.lockWrite()()

	if p.ID == "" {
		return account.Profile{}, fmt.Errorf("profile id is required")
	}
	if _, exists := s.data.profiles[p.ID]; exists {
		return account.Profile{}, fmt.Errorf("profile %s: %w", p.ID, storage.ErrConflict)
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.data.profiles[p.ID] = p
	return p, nil
}

func (s *Store) UpdateProfile(_ context.Context, p account.Profile) (account.Profile, error) {
	defer s.lockWrite()()

	original, ok := s.data.profiles[p.ID]
	if !ok {
		return account.Profile{}, notFound("profile", p.ID)
	}
	p.CreatedAt = original.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	s.data.profiles[p.ID] = p
	return p, nil
}

func (s *Store) GetProfile(_ context.Context, id string) (account.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data.profiles[id]
	if !ok {
		return account.Profile{}, notFound("profile", id)
	}
	return p, nil
}

func (s *Store) ListProfiles(_ context.Context) ([]account.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]account.Profile, 0, len(s.data.profiles))
	for _, p := range s.data.profiles {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// ContactStore implementation -------------------------------------------------

func (s *Store) CreateContact(_ context.Context, c account.ContactProfile) (account.ContactProfile, error) {
	defer s.lockWrite()()

	c.ID = newID(c.ID)
	if _, exists := s.data.contacts[c.ID]; exists {
		return account.ContactProfile{}, fmt.Errorf("contact %s: %w", c.ID, storage.ErrConflict)
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.IsDefault {
		s.clearDefaultLocked(c.UserID)
	}
	s.data.contacts[c.ID] = c
	return c, nil
}

func (s *Store) UpdateContact(_ context.Context, c account.ContactProfile) (account.ContactProfile, error) {
	defer s.lockWrite()()

	original, ok := s.data.contacts[c.ID]
	if !ok {
		return account.ContactProfile{}, notFound("contact", c.ID)
	}
	c.UserID = original.UserID
	c.CreatedAt = original.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	if c.IsDefault && !original.IsDefault {
		s.clearDefaultLocked(c.UserID)
	}
	s.data.contacts[c.ID] = c
	return c, nil
}

func (s *Store) GetContact(_ context.Context, id string) (account.ContactProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.data.contacts[id]
	if !ok {
		return account.ContactProfile{}, notFound("contact", id)
	}
	return c, nil
}

func (s *Store) ListContacts(_ context.Context, userID string) ([]account.ContactProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []account.ContactProfile
	for _, c := range s.data.contacts {
		if c.UserID == userID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].IsDefault != result[j].IsDefault {
			return result[i].IsDefault
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) DeleteContact(_ context.Context, id string) error {
	defer s.lockWrite()()

	if _, ok := s.data.contacts[id]; !ok {
		return notFound("contact", id)
	}
	delete(s.data.contacts, id)
	return nil
}

func (s *Store) SetDefaultContact(_ context.Context, userID, id string) error {
	defer s.lockWrite()()

	c, ok := s.data.contacts[id]
	if !ok || c.UserID != userID {
		return notFound("contact", id)
	}
	s.clearDefaultLocked(userID)
	c.IsDefault = true
	c.UpdatedAt = time.Now().UTC()
	s.data.contacts[id] = c
	return nil
}

func (s *Store) clearDefaultLocked(userID string) {
	for id, c := range s.data.contacts {
		if c.UserID == userID && c.IsDefault {
			c.IsDefault = false
			s.data.contacts[id] = c
		}
	}
}

// PaymentMethodStore implementation -------------------------------------------

func (s *Store) CreatePaymentMethod(_ context.Context, m billing.PaymentMethod) (billing.PaymentMethod, error) {
	defer s.lockWrite()()

	m.ID = newID(m.ID)
	for _, existing := range s.data.methods {
		if existing.Code == m.Code {
			return billing.PaymentMethod{}, fmt.Errorf("payment method %s: %w", m.Code, storage.ErrConflict)
		}
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	s.data.methods[m.ID] = m
	return m, nil
}

func (s *Store) UpdatePaymentMethod(_ context.Context, m billing.PaymentMethod) (billing.PaymentMethod, error) {
	defer s.lockWrite()()

	original, ok := s.data.methods[m.ID]
	if !ok {
		return billing.PaymentMethod{}, notFound("payment method", m.ID)
	}
	for id, existing := range s.data.methods {
		if id != m.ID && existing.Code == m.Code {
			return billing.PaymentMethod{}, fmt.Errorf("payment method %s: %w", m.Code, storage.ErrConflict)
		}
	}
	m.CreatedAt = original.CreatedAt
	m.UpdatedAt = time.Now().UTC()
	s.data.methods[m.ID] = m
	return m, nil
}

func (s *Store) GetPaymentMethod(_ context.Context, id string) (billing.PaymentMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data.methods[id]
	if !ok {
		return billing.PaymentMethod{}, notFound("payment method", id)
	}
	return m, nil
}

func (s *Store) GetPaymentMethodByCode(_ context.Context, code string) (billing.PaymentMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.data.methods {
		if m.Code == code {
			return m, nil
		}
	}
	return billing.PaymentMethod{}, notFound("payment method", code)
}

func (s *Store) ListPaymentMethods(_ context.Context, activeOnly bool) ([]billing.PaymentMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []billing.PaymentMethod
	for _, m := range s.data.methods {
		if activeOnly && !m.Active {
			continue
		}
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SortOrder != result[j].SortOrder {
			return result[i].SortOrder < result[j].SortOrder
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (s *Store) DeletePaymentMethod(_ context.Context, id string) error {
	defer s.lockWrite()()

	if _, ok := s.data.methods[id]; !ok {
		return notFound("payment method", id)
	}
	for _, o := range s.data.orders {
		if o.PaymentMethodID == id {
			return fmt.Errorf("payment method %s is referenced by orders: %w", id, storage.ErrConflict)
		}
	}
	delete(s.data.methods, id)
	return nil
}

// OrderStore implementation ---------------------------------------------------

func (s *Store) CreateOrder(_ context.Context, o billing.Order) (billing.Order, error) {
	defer s.lockWrite()()

	o.ID = newID(o.ID)
	for _, existing := range s.data.orders {
		if existing.Number == o.Number {
			return billing.Order{}, fmt.Errorf("order %s: %w", o.Number, storage.ErrConflict)
		}
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	s.data.orders[o.ID] = cloneOrder(o)
	return cloneOrder(o), nil
}

func (s *Store) GetOrder(_ context.Context, id string) (billing.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.data.orders[id]
	if !ok {
		return billing.Order{}, notFound("order", id)
	}
	return cloneOrder(o), nil
}

func (s *Store) ListOrders(_ context.Context, filter billing.OrderFilter) ([]billing.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []billing.Order
	for _, o := range s.data.orders {
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		result = append(result, cloneOrder(o))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return paginate(result, filter.Limit, filter.Offset), nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id string, status billing.OrderStatus) (billing.Order, error) {
	defer s.lockWrite()()

	o, ok := s.data.orders[id]
	if !ok {
		return billing.Order{}, notFound("order", id)
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	s.data.orders[id] = o
	return cloneOrder(o), nil
}

// InvoiceStore implementation -------------------------------------------------

func (s *Store) CreateInvoice(_ context.Context, inv billing.Invoice) (billing.Invoice, error) {
	defer s.lockWrite()()

	inv.ID = newID(inv.ID)
	for _, existing := range s.data.invoices {
		if existing.Number == inv.Number {
			return billing.Invoice{}, fmt.Errorf("invoice %s: %w", inv.Number, storage.ErrConflict)
		}
	}
	if _, ok := s.data.orders[inv.OrderID]; !ok {
		return billing.Invoice{}, notFound("order", inv.OrderID)
	}
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	s.data.invoices[inv.ID] = inv
	return inv, nil
}

func (s *Store) UpdateInvoice(_ context.Context, inv billing.Invoice) (billing.Invoice, error) {
	defer s.lockWrite()()

	original, ok := s.data.invoices[inv.ID]
	if !ok {
		return billing.Invoice{}, notFound("invoice", inv.ID)
	}
	inv.CreatedAt = original.CreatedAt
	inv.UpdatedAt = time.Now().UTC()
	s.data.invoices[inv.ID] = inv
	return inv, nil
}

func (s *Store) GetInvoice(_ context.Context, id string) (billing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.data.invoices[id]
	if !ok {
		return billing.Invoice{}, notFound("invoice", id)
	}
	return inv, nil
}

func (s *Store) GetInvoiceByNumber(_ context.Context, number string) (billing.Invoice, error) {
	return s.findInvoice(func(inv billing.Invoice) bool { return inv.Number == number }, number)
}

func (s *Store) GetInvoiceByOrder(_ context.Context, orderID string) (billing.Invoice, error) {
	return s.findInvoice(func(inv billing.Invoice) bool { return inv.OrderID == orderID }, orderID)
}

func (s *Store) findInvoice(match func(billing.Invoice) bool, key string) (billing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, inv := range s.data.invoices {
		if match(inv) {
			return inv, nil
		}
	}
	return billing.Invoice{}, notFound("invoice", key)
}

func (s *Store) ListInvoices(_ context.Context, userID string) ([]billing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []billing.Invoice
	for _, inv := range s.data.invoices {
		if userID == "" || inv.UserID == userID {
			result = append(result, inv)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

// DomainStore implementation --------------------------------------------------

func (s *Store) CreateDomain(_ context.Context, d provision.ClientDomain) (provision.ClientDomain, error) {
	defer s.lockWrite()()

	d.ID = newID(d.ID)
	d.Name = strings.ToLower(d.Name)
	if isLive(d.Status) {
		for _, existing := range s.data.domains {
			if existing.Name == d.Name && isLive(existing.Status) {
				return provision.ClientDomain{}, fmt.Errorf("domain %s: %w", d.Name, storage.ErrConflict)
			}
		}
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	s.data.domains[d.ID] = d
	return d, nil
}

func (s *Store) UpdateDomain(_ context.Context, d provision.ClientDomain) (provision.ClientDomain, error) {
	defer s.lockWrite()()

	original, ok := s.data.domains[d.ID]
	if !ok {
		return provision.ClientDomain{}, notFound("domain", d.ID)
	}
	d.CreatedAt = original.CreatedAt
	d.UpdatedAt = time.Now().UTC()
	s.data.domains[d.ID] = d
	return d, nil
}

func (s *Store) GetDomain(_ context.Context, id string) (provision.ClientDomain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.data.domains[id]
	if !ok {
		return provision.ClientDomain{}, notFound("domain", id)
	}
	return d, nil
}

func (s *Store) ListDomains(_ context.Context, userID string) ([]provision.ClientDomain, error) {
	return s.filterDomains(func(d provision.ClientDomain) bool { return userID == "" || d.UserID == userID }), nil
}

func (s *Store) ListDomainsByOrder(_ context.Context, orderID string) ([]provision.ClientDomain, error) {
	return s.filterDomains(func(d provision.ClientDomain) bool { return d.OrderID == orderID }), nil
}

func (s *Store) FindLiveDomain(_ context.Context, name string) (provision.ClientDomain, error) {
	name = strings.ToLower(name)
	found := s.filterDomains(func(d provision.ClientDomain) bool { return d.Name == name && isLive(d.Status) })
	if len(found) == 0 {
		return provision.ClientDomain{}, notFound("domain", name)
	}
	return found[0], nil
}

func (s *Store) filterDomains(match func(provision.ClientDomain) bool) []provision.ClientDomain {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []provision.ClientDomain
	for _, d := range s.data.domains {
		if match(d) {
			result = append(result, d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// ServiceStore implementation -------------------------------------------------

func (s *Store) CreateService(_ context.Context, svc provision.ClientService) (provision.ClientService, error) {
	defer s.lockWrite()()

	svc.ID = newID(svc.ID)
	now := time.Now().UTC()
	svc.CreatedAt = now
	svc.UpdatedAt = now
	s.data.services[svc.ID] = svc
	return svc, nil
}

func (s *Store) UpdateService(_ context.Context, svc provision.ClientService) (provision.ClientService, error) {
	defer s.lockWrite()()

	original, ok := s.data.services[svc.ID]
	if !ok {
		return provision.ClientService{}, notFound("service", svc.ID)
	}
	svc.CreatedAt = original.CreatedAt
	svc.UpdatedAt = time.Now().UTC()
	s.data.services[svc.ID] = svc
	return svc, nil
}

func (s *Store) GetService(_ context.Context, id string) (provision.ClientService, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	svc, ok := s.data.services[id]
	if !ok {
		return provision.ClientService{}, notFound("service", id)
	}
	return svc, nil
}

func (s *Store) ListServices(_ context.Context, userID string) ([]provision.ClientService, error) {
	return s.filterServices(func(svc provision.ClientService) bool { return userID == "" || svc.UserID == userID }), nil
}

func (s *Store) ListServicesByOrder(_ context.Context, orderID string) ([]provision.ClientService, error) {
	return s.filterServices(func(svc provision.ClientService) bool { return svc.OrderID == orderID }), nil
}

func (s *Store) filterServices(match func(provision.ClientService) bool) []provision.ClientService {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []provision.ClientService
	for _, svc := range s.data.services {
		if match(svc) {
			result = append(result, svc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

// SequenceStore implementation ------------------------------------------------

func (s *Store) NextSequence(_ context.Context, name string, year int) (int64, error) {
	defer s.lockWrite()()

	key := fmt.Sprintf("%s/%d", name, year)
	s.data.sequences[key]++
	return s.data.sequences[key], nil
}

// SweepStore implementation ---------------------------------------------------

func (s *Store) ExpireDomains(_ context.Context, now time.Time) (int64, error) {
	defer s.lockWrite()()

	var n int64
	for id, d := range s.data.domains {
		if d.Status == provision.StatusActive && d.ExpiryDate.Before(now) {
			d.Status = provision.StatusExpired
			d.UpdatedAt = now
			s.data.domains[id] = d
			n++
		}
	}
	return n, nil
}

func (s *Store) ExpireServices(_ context.Context, now time.Time) (int64, error) {
	defer s.lockWrite()()

	var n int64
	for id, svc := range s.data.services {
		if svc.Status == provision.StatusActive && svc.RenewalDate.Before(now) {
			svc.Status = provision.StatusExpired
			svc.UpdatedAt = now
			s.data.services[id] = svc
			n++
		}
	}
	return n, nil
}

func (s *Store) MarkOverdueInvoices(_ context.Context, now time.Time) (int64, error) {
	defer s.lockWrite()()

	var n int64
	for id, inv := range s.data.invoices {
		if inv.Status == billing.InvoiceUnpaid && inv.DueDate.Before(now) {
			inv.Status = billing.InvoiceOverdue
			inv.UpdatedAt = now
			s.data.invoices[id] = inv
			n++
		}
	}
	return n, nil
}

// StatsStore implementation ---------------------------------------------------

func (s *Store) Stats(_ context.Context) (billing.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st billing.Stats
	for _, o := range s.data.orders {
		st.Orders++
		if o.Status == billing.OrderPending {
			st.PendingOrders++
		}
	}
	for _, inv := range s.data.invoices {
		switch inv.Status {
		case billing.InvoicePaid:
			st.Revenue += inv.Amount
		case billing.InvoiceOverdue:
			st.OverdueInvoices++
		}
	}
	for _, p := range s.data.profiles {
		if p.Role == account.RoleClient {
			st.Clients++
		}
	}
	for _, svc := range s.data.services {
		if svc.Status == provision.StatusActive {
			st.ActiveServices++
		}
	}
	for _, d := range s.data.domains {
		if d.Status == provision.StatusActive {
			st.ActiveDomains++
		}
	}
	return st, nil
}

// helpers ---------------------------------------------------------------------

func isLive(s provision.Status) bool {
	return s == provision.StatusPending || s == provision.StatusActive
}

func cloneOrder(o billing.Order) billing.Order {
	if o.Items != nil {
		items := make(billing.OrderItems, len(o.Items))
		copy(items, o.Items)
		o.Items = items
	}
	return o
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
