// Package checkout turns a priced cart into an order, its invoice and the
// domain and service records the order provisions.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angohost/portal/internal/app/domain/billing"
	"github.com/angohost/portal/internal/app/domain/cart"
	"github.com/angohost/portal/internal/app/domain/provision"
	"github.com/angohost/portal/internal/app/metrics"
	"github.com/angohost/portal/internal/app/pricing"
	"github.com/angohost/portal/internal/app/realtime"
	billingsvc "github.com/angohost/portal/internal/app/services/billing"
	cartsvc "github.com/angohost/portal/internal/app/services/cart"
	catalogsvc "github.com/angohost/portal/internal/app/services/catalog"
	"github.com/angohost/portal/internal/app/storage"
	"github.com/angohost/portal/pkg/logger"
)

var (
	ErrUnauthorized    = errors.New("checkout requires an authenticated user")
	ErrContactRequired = errors.New("a contact profile is required to register domains")
	ErrPaymentRequired = errors.New("a payment method is required")
)

const defaultDueDays = 7

// Notifier delivers the order confirmation, usually through a Supabase edge
// function.
type Notifier interface {
	InvokeFunction(ctx context.Context, name string, payload interface{}) error
}

// Options tune checkout.
type Options struct {
	InvoiceDueDays     int
	OrderEmailFunction string
}

// Request is a checkout submission.
type Request struct {
	UserID           string `json:"-"`
	CartKey          string `json:"-"`
	PaymentMethodID  string `json:"payment_method_id"`
	ContactProfileID string `json:"contact_profile_id,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

// Result is everything a checkout created.
type Result struct {
	Order    billing.Order             `json:"order"`
	Invoice  billing.Invoice           `json:"invoice"`
	Domains  []provision.ClientDomain  `json:"domains"`
	Services []provision.ClientService `json:"services"`
}

// Service runs checkouts.
type Service struct {
	store    storage.Store
	carts    *cartsvc.Service
	catalog  *catalogsvc.Service
	billing  *billingsvc.Service
	pub      realtime.Publisher
	notifier Notifier
	opts     Options
	log      *logger.Logger
	now      func() time.Time
}

// New constructs a checkout service. pub and notifier may be nil.
func New(store storage.Store, carts *cartsvc.Service, catalog *catalogsvc.Service, billing *billingsvc.Service,
	pub realtime.Publisher, notifier Notifier, opts Options, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("checkout")
	}
	if pub == nil {
		pub = realtime.Discard{}
	}
	if opts.InvoiceDueDays <= 0 {
		opts.InvoiceDueDays = defaultDueDays
	}
	return &Service{
		store:    store,
		carts:    carts,
		catalog:  catalog,
		billing:  billing,
		pub:      pub,
		notifier: notifier,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// Checkout places the order for the cart under req.CartKey. Order, invoice,
// domains and services are written in one transaction; on any failure
// nothing is persisted and the cart is left untouched.
func (s *Service) Checkout(ctx context.Context, req Request) (res Result, err error) {
	started := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		metrics.RecordCheckout(outcome, res.Order.Total, time.Since(started))
	}()

	if strings.TrimSpace(req.UserID) == "" {
		return Result{}, ErrUnauthorized
	}
	if req.CartKey == "" {
		req.CartKey = req.UserID
	}
	c, err := s.carts.Load(ctx, req.CartKey)
	if err != nil {
		return Result{}, err
	}
	if c.IsEmpty() {
		return Result{}, cart.ErrEmptyCart
	}

	if req.PaymentMethodID == "" {
		return Result{}, ErrPaymentRequired
	}
	method, err := s.billing.ActivePaymentMethod(ctx, req.PaymentMethodID)
	if err != nil {
		return Result{}, err
	}

	if c.HasDomainRegistration() && req.ContactProfileID == "" {
		return Result{}, ErrContactRequired
	}
	if req.ContactProfileID != "" {
		contact, err := s.store.GetContact(ctx, req.ContactProfileID)
		if err != nil {
			return Result{}, err
		}
		if contact.UserID != req.UserID {
			return Result{}, fmt.Errorf("contact %s: %w", req.ContactProfileID, storage.ErrNotFound)
		}
	}

	quote, err := s.carts.Quote(c)
	if err != nil {
		return Result{}, err
	}

	now := s.now().UTC()
	err = s.store.WithTx(ctx, func(tx storage.Store) error {
		res, err = s.materialize(ctx, tx, req, method, quote, now)
		return err
	})
	if err != nil {
		s.log.WithError(err).WithField("user_id", req.UserID).Warn("checkout failed")
		return Result{}, err
	}

	if err := s.carts.Clear(ctx, req.CartKey); err != nil {
		s.log.WithError(err).WithField("order", res.Order.Number).Warn("clear cart after checkout")
	}
	s.pub.Publish(ctx, realtime.Event{
		Type:    realtime.EventOrderCreated,
		UserID:  res.Order.UserID,
		Payload: res.Order,
		At:      now,
	})
	s.notify(ctx, res, method)

	s.log.WithField("order", res.Order.Number).
		WithField("invoice", res.Invoice.Number).
		WithField("total", res.Order.Total).
		Info("order placed")
	return res, nil
}

func (s *Service) materialize(ctx context.Context, tx storage.Store, req Request, method billing.PaymentMethod, quote pricing.Quote, now time.Time) (Result, error) {
	year := now.Year()
	orderSeq, err := tx.NextSequence(ctx, "order", year)
	if err != nil {
		return Result{}, err
	}
	order, err := tx.CreateOrder(ctx, billing.Order{
		Number:           billing.FormatOrderNumber(year, orderSeq),
		UserID:           req.UserID,
		Status:           billing.OrderPending,
		Items:            orderItems(quote),
		Subtotal:         quote.Subtotal,
		Discount:         quote.Discount,
		Total:            quote.Total,
		PaymentMethodID:  method.ID,
		ContactProfileID: req.ContactProfileID,
		Notes:            strings.TrimSpace(req.Notes),
	})
	if err != nil {
		return Result{}, err
	}

	invoiceSeq, err := tx.NextSequence(ctx, "invoice", year)
	if err != nil {
		return Result{}, err
	}
	invoice, err := tx.CreateInvoice(ctx, billing.Invoice{
		Number:  billing.FormatInvoiceNumber(year, invoiceSeq),
		OrderID: order.ID,
		UserID:  req.UserID,
		Status:  billing.InvoiceUnpaid,
		Amount:  quote.Total,
		DueDate: now.AddDate(0, 0, s.opts.InvoiceDueDays),
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{Order: order, Invoice: invoice}
	seen := make(map[string]bool)
	for _, line := range domainLinesFirst(quote.Lines) {
		domains, services, err := s.records(line, order, req.ContactProfileID, now, seen)
		if err != nil {
			return Result{}, err
		}
		for _, d := range domains {
			created, err := tx.CreateDomain(ctx, d)
			if errors.Is(err, storage.ErrConflict) {
				return Result{}, fmt.Errorf("%s: %w", d.Name, catalogsvc.ErrDomainTaken)
			}
			if err != nil {
				return Result{}, err
			}
			res.Domains = append(res.Domains, created)
		}
		for _, svc := range services {
			created, err := tx.CreateService(ctx, svc)
			if err != nil {
				return Result{}, err
			}
			res.Services = append(res.Services, created)
		}
	}
	return res, nil
}

// domainLinesFirst orders explicit domain lines ahead of the rest so a paid
// registration wins over a domain bundled with a hosting plan.
func domainLinesFirst(lines []pricing.Line) []pricing.Line {
	out := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		if l.Item.Type == cart.TypeDomain {
			out = append(out, l)
		}
	}
	for _, l := range lines {
		if l.Item.Type != cart.TypeDomain {
			out = append(out, l)
		}
	}
	return out
}

// records maps a priced line to the rows it provisions. A hosting line
// marked for domain registration also yields the domain; its price is
// included in the hosting plan. seen keeps a domain from being created twice
// when the cart also holds a separate registration for it.
func (s *Service) records(line pricing.Line, order billing.Order, contactID string, now time.Time, seen map[string]bool) ([]provision.ClientDomain, []provision.ClientService, error) {
	item := line.Item
	var domains []provision.ClientDomain
	var services []provision.ClientService

	addDomain := func(name string, transfer bool) error {
		if seen[name] {
			return nil
		}
		_, tld, err := s.catalog.Catalog().SplitDomain(name)
		if err != nil {
			return err
		}
		seen[name] = true
		domains = append(domains, provision.ClientDomain{
			UserID:           order.UserID,
			OrderID:          order.ID,
			Name:             name,
			TLD:              tld,
			Status:           provision.StatusPending,
			Years:            item.Years,
			AutoRenew:        true,
			Transfer:         transfer,
			ContactProfileID: contactID,
			ExpiryDate:       now.AddDate(item.Years, 0, 0),
		})
		return nil
	}

	switch item.Type {
	case cart.TypeDomain:
		if err := addDomain(item.Domain, item.Details.Transfer); err != nil {
			return nil, nil, err
		}
	case cart.TypeHosting:
		if item.Details.RegisterDomain && item.Domain != "" {
			if err := addDomain(item.Domain, false); err != nil {
				return nil, nil, err
			}
		}
		for i := 0; i < item.Quantity; i++ {
			services = append(services, provision.ClientService{
				UserID:       order.UserID,
				OrderID:      order.ID,
				Type:         provision.ServiceHosting,
				PlanID:       item.PlanID,
				Name:         item.Name,
				Domain:       item.Domain,
				Status:       provision.StatusPending,
				BillingYears: item.Years,
				Seats:        1,
				Price:        line.UnitPrice,
				RenewalDate:  now.AddDate(item.Years, 0, 0),
			})
		}
	case cart.TypeEmail:
		services = append(services, provision.ClientService{
			UserID:       order.UserID,
			OrderID:      order.ID,
			Type:         provision.ServiceEmail,
			PlanID:       item.PlanID,
			Name:         item.Name,
			Domain:       item.Domain,
			Status:       provision.StatusPending,
			BillingYears: item.Years,
			Seats:        item.Quantity,
			Price:        line.UnitPrice,
			RenewalDate:  now.AddDate(item.Years, 0, 0),
		})
	default:
		return nil, nil, fmt.Errorf("item %s: unsupported type %q", item.ID, item.Type)
	}
	return domains, services, nil
}

func orderItems(q pricing.Quote) billing.OrderItems {
	items := make(billing.OrderItems, 0, len(q.Lines))
	for _, l := range q.Lines {
		items = append(items, billing.OrderItem{
			ItemID:       l.Item.ID,
			Type:         string(l.Item.Type),
			Name:         l.Item.Name,
			PlanID:       l.Item.PlanID,
			Domain:       l.Item.Domain,
			Quantity:     l.Item.Quantity,
			Years:        l.Item.Years,
			BasePrice:    l.Item.BasePrice,
			UnitPrice:    l.UnitPrice,
			DiscountRate: l.DiscountRate,
			Total:        l.Total,
		})
	}
	return items
}

func (s *Service) notify(ctx context.Context, res Result, method billing.PaymentMethod) {
	if s.notifier == nil || s.opts.OrderEmailFunction == "" {
		return
	}
	payload := map[string]interface{}{
		"order":          res.Order,
		"invoice":        res.Invoice,
		"payment_method": method.Public(),
	}
	if err := s.notifier.InvokeFunction(ctx, s.opts.OrderEmailFunction, payload); err != nil {
		s.log.WithError(err).WithField("order", res.Order.Number).Warn("order confirmation not sent")
	}
}
