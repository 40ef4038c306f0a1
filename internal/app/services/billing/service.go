// Package billing manages orders, invoices and payment confirmation.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/angohost/portal/internal/app/domain/billing"
	"github.com/angohost/portal/internal/app/domain/provision"
	"github.com/angohost/portal/internal/app/realtime"
	"github.com/angohost/portal/internal/app/storage"
	"github.com/angohost/portal/pkg/logger"
)

// ErrAlreadyPaid is returned when paying an invoice twice.
var ErrAlreadyPaid = fmt.Errorf("invoice already paid: %w", storage.ErrConflict)

// Service exposes order and invoice operations.
type Service struct {
	store storage.Store
	pub   realtime.Publisher
	log   *logger.Logger
	now   func() time.Time
}

// New constructs a billing service. A nil publisher drops events.
func New(store storage.Store, pub realtime.Publisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("billing")
	}
	if pub == nil {
		pub = realtime.Discard{}
	}
	return &Service{store: store, pub: pub, log: log, now: time.Now}
}

// ListOrders lists the orders of userID, newest first.
func (s *Service) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.store.ListOrders(ctx, domain.OrderFilter{UserID: userID})
}

// GetOrder returns an order owned by userID.
func (s *Service) GetOrder(ctx context.Context, userID, id string) (domain.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if o.UserID != userID {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, storage.ErrNotFound)
	}
	return o, nil
}

// ListAllOrders lists orders across users.
func (s *Service) ListAllOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("unknown order status %q: %w", filter.Status, domain.ErrInvalidTransition)
	}
	return s.store.ListOrders(ctx, filter)
}

// UpdateOrderStatus moves an order along its lifecycle. Paying an order pays
// its invoice; cancelling it cancels the invoice and any pending records.
func (s *Service) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, fmt.Errorf("unknown order status %q: %w", status, domain.ErrInvalidTransition)
	}

	var updated domain.Order
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		o, err := tx.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		if !o.Status.CanTransition(status) {
			return fmt.Errorf("order %s %s -> %s: %w", o.Number, o.Status, status, domain.ErrInvalidTransition)
		}

		switch status {
		case domain.OrderPaid:
			inv, err := tx.GetInvoiceByOrder(ctx, id)
			if err != nil {
				return err
			}
			if _, err := s.payTx(ctx, tx, inv, "admin"); err != nil {
				return err
			}
			updated, err = tx.GetOrder(ctx, id)
			return err
		case domain.OrderCancelled:
			updated, err = s.cancelTx(ctx, tx, o)
			return err
		default:
			updated, err = tx.UpdateOrderStatus(ctx, id, status)
			return err
		}
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.log.WithField("order", updated.Number).WithField("status", updated.Status).Info("order status changed")
	s.pub.Publish(ctx, realtime.Event{
		Type:    realtime.EventOrderStatus,
		UserID:  updated.UserID,
		Payload: updated,
		At:      s.now().UTC(),
	})
	return updated, nil
}

// ListInvoices lists the invoices of userID.
func (s *Service) ListInvoices(ctx context.Context, userID string) ([]domain.Invoice, error) {
	if userID == "" {
		return nil, fmt.Errorf("invoice owner: %w", storage.ErrNotFound)
	}
	return s.store.ListInvoices(ctx, userID)
}

// ListAllInvoices lists every invoice.
func (s *Service) ListAllInvoices(ctx context.Context) ([]domain.Invoice, error) {
	return s.store.ListInvoices(ctx, "")
}

// GetInvoice returns an invoice owned by userID.
func (s *Service) GetInvoice(ctx context.Context, userID, id string) (domain.Invoice, error) {
	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if inv.UserID != userID {
		return domain.Invoice{}, fmt.Errorf("invoice %s: %w", id, storage.ErrNotFound)
	}
	return inv, nil
}

// MarkPaid records the payment of an invoice, moves its order to paid and
// activates the order's domains and services.
func (s *Service) MarkPaid(ctx context.Context, id, reference string) (domain.Invoice, error) {
	var paid domain.Invoice
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		inv, err := tx.GetInvoice(ctx, id)
		if err != nil {
			return err
		}
		paid, err = s.payTx(ctx, tx, inv, reference)
		return err
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	s.paidEvent(ctx, paid)
	return paid, nil
}

// CancelInvoice cancels an unpaid invoice together with its pending order.
func (s *Service) CancelInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	var cancelled domain.Invoice
	var order domain.Order
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		inv, err := tx.GetInvoice(ctx, id)
		if err != nil {
			return err
		}
		if !inv.Status.Payable() {
			return fmt.Errorf("invoice %s is %s: %w", inv.Number, inv.Status, domain.ErrInvalidTransition)
		}
		o, err := tx.GetOrder(ctx, inv.OrderID)
		if err != nil {
			return err
		}
		if !o.Status.CanTransition(domain.OrderCancelled) {
			return fmt.Errorf("order %s is %s: %w", o.Number, o.Status, domain.ErrInvalidTransition)
		}
		if order, err = s.cancelTx(ctx, tx, o); err != nil {
			return err
		}
		cancelled, err = tx.GetInvoice(ctx, id)
		return err
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	s.pub.Publish(ctx, realtime.Event{
		Type:    realtime.EventOrderStatus,
		UserID:  order.UserID,
		Payload: order,
		At:      s.now().UTC(),
	})
	return cancelled, nil
}

func (s *Service) payTx(ctx context.Context, tx storage.Store, inv domain.Invoice, reference string) (domain.Invoice, error) {
	if inv.Status == domain.InvoicePaid {
		return domain.Invoice{}, fmt.Errorf("invoice %s: %w", inv.Number, ErrAlreadyPaid)
	}
	if !inv.Status.Payable() {
		return domain.Invoice{}, fmt.Errorf("invoice %s is %s: %w", inv.Number, inv.Status, domain.ErrInvalidTransition)
	}

	paidAt := s.now().UTC()
	inv.Status = domain.InvoicePaid
	inv.PaidAt = &paidAt
	inv.PaymentReference = reference
	inv, err := tx.UpdateInvoice(ctx, inv)
	if err != nil {
		return domain.Invoice{}, err
	}

	order, err := tx.GetOrder(ctx, inv.OrderID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if order.Status == domain.OrderPending {
		if _, err := tx.UpdateOrderStatus(ctx, order.ID, domain.OrderPaid); err != nil {
			return domain.Invoice{}, err
		}
	}

	domains, err := tx.ListDomainsByOrder(ctx, order.ID)
	if err != nil {
		return domain.Invoice{}, err
	}
	for _, d := range domains {
		if d.Status != provision.StatusPending {
			continue
		}
		registered := paidAt
		d.Status = provision.StatusActive
		d.RegisteredAt = &registered
		d.ExpiryDate = paidAt.AddDate(d.Years, 0, 0)
		if _, err := tx.UpdateDomain(ctx, d); err != nil {
			return domain.Invoice{}, err
		}
	}

	services, err := tx.ListServicesByOrder(ctx, order.ID)
	if err != nil {
		return domain.Invoice{}, err
	}
	for _, svc := range services {
		if svc.Status != provision.StatusPending {
			continue
		}
		svc.Status = provision.StatusActive
		svc.RenewalDate = paidAt.AddDate(svc.BillingYears, 0, 0)
		if _, err := tx.UpdateService(ctx, svc); err != nil {
			return domain.Invoice{}, err
		}
	}
	return inv, nil
}

func (s *Service) cancelTx(ctx context.Context, tx storage.Store, o domain.Order) (domain.Order, error) {
	updated, err := tx.UpdateOrderStatus(ctx, o.ID, domain.OrderCancelled)
	if err != nil {
		return domain.Order{}, err
	}

	inv, err := tx.GetInvoiceByOrder(ctx, o.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return domain.Order{}, err
	case inv.Status.Payable():
		inv.Status = domain.InvoiceCancelled
		if _, err := tx.UpdateInvoice(ctx, inv); err != nil {
			return domain.Order{}, err
		}
	}

	domains, err := tx.ListDomainsByOrder(ctx, o.ID)
	if err != nil {
		return domain.Order{}, err
	}
	for _, d := range domains {
		if d.Status == provision.StatusPending {
			d.Status = provision.StatusCancelled
			if _, err := tx.UpdateDomain(ctx, d); err != nil {
				return domain.Order{}, err
			}
		}
	}
	services, err := tx.ListServicesByOrder(ctx, o.ID)
	if err != nil {
		return domain.Order{}, err
	}
	for _, svc := range services {
		if svc.Status == provision.StatusPending {
			svc.Status = provision.StatusCancelled
			if _, err := tx.UpdateService(ctx, svc); err != nil {
				return domain.Order{}, err
			}
		}
	}
	return updated, nil
}

func (s *Service) paidEvent(ctx context.Context, inv domain.Invoice) {
	s.log.WithField("invoice", inv.Number).WithField("amount", inv.Amount).Info("invoice paid")
	s.pub.Publish(ctx, realtime.Event{
		Type:    realtime.EventInvoicePaid,
		UserID:  inv.UserID,
		Payload: inv,
		At:      s.now().UTC(),
	})
}
