// Package provisioning manages the domains and services clients own and the
// periodic expiry sweep.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angohost/portal/internal/app/domain/provision"
	"github.com/angohost/portal/internal/app/metrics"
	"github.com/angohost/portal/internal/app/storage"
	"github.com/angohost/portal/pkg/logger"
)

// ErrInvalidStatus reports an unknown domain or service status.
var ErrInvalidStatus = errors.New("invalid provisioning status")

// Store is the persistence the service needs.
type Store interface {
	storage.DomainStore
	storage.ServiceStore
	storage.SweepStore
}

// Service exposes client domains and services.
type Service struct {
	store Store
	log   *logger.Logger
}

// New constructs a provisioning service.
func New(store Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("provisioning")
	}
	return &Service{store: store, log: log}
}

// ListDomains lists the domains of userID. An empty userID lists all.
func (s *Service) ListDomains(ctx context.Context, userID string) ([]provision.ClientDomain, error) {
	return s.store.ListDomains(ctx, userID)
}

// ListServices lists the services of userID. An empty userID lists all.
func (s *Service) ListServices(ctx context.Context, userID string) ([]provision.ClientService, error) {
	return s.store.ListServices(ctx, userID)
}

// SetAutoRenew toggles auto-renewal on a domain owned by userID.
func (s *Service) SetAutoRenew(ctx context.Context, userID, id string, enabled bool) (provision.ClientDomain, error) {
	d, err := s.store.GetDomain(ctx, id)
	if err != nil {
		return provision.ClientDomain{}, err
	}
	if d.UserID != userID {
		return provision.ClientDomain{}, fmt.Errorf("domain %s: %w", id, storage.ErrNotFound)
	}
	d.AutoRenew = enabled
	return s.store.UpdateDomain(ctx, d)
}

// UpdateDomainStatus sets a domain's status.
func (s *Service) UpdateDomainStatus(ctx context.Context, id string, status provision.Status) (provision.ClientDomain, error) {
	if !status.Valid() {
		return provision.ClientDomain{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	d, err := s.store.GetDomain(ctx, id)
	if err != nil {
		return provision.ClientDomain{}, err
	}
	if status == provision.StatusActive && d.RegisteredAt == nil {
		now := time.Now().UTC()
		d.RegisteredAt = &now
	}
	d.Status = status
	updated, err := s.store.UpdateDomain(ctx, d)
	if err != nil {
		return provision.ClientDomain{}, err
	}
	s.log.WithField("domain", d.Name).WithField("status", status).Info("domain status changed")
	return updated, nil
}

// UpdateServiceStatus sets a service's status.
func (s *Service) UpdateServiceStatus(ctx context.Context, id string, status provision.Status) (provision.ClientService, error) {
	if !status.Valid() {
		return provision.ClientService{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	svc, err := s.store.GetService(ctx, id)
	if err != nil {
		return provision.ClientService{}, err
	}
	svc.Status = status
	updated, err := s.store.UpdateService(ctx, svc)
	if err != nil {
		return provision.ClientService{}, err
	}
	s.log.WithField("service_id", id).WithField("status", status).Info("service status changed")
	return updated, nil
}

// Sweep expires active domains and services past their dates and marks
// unpaid invoices past due as overdue.
func (s *Service) Sweep(ctx context.Context, now time.Time) (provision.SweepResult, error) {
	var res provision.SweepResult
	var err error
	if res.ExpiredDomains, err = s.store.ExpireDomains(ctx, now); err != nil {
		return res, fmt.Errorf("expire domains: %w", err)
	}
	if res.ExpiredServices, err = s.store.ExpireServices(ctx, now); err != nil {
		return res, fmt.Errorf("expire services: %w", err)
	}
	if res.OverdueInvoices, err = s.store.MarkOverdueInvoices(ctx, now); err != nil {
		return res, fmt.Errorf("mark overdue invoices: %w", err)
	}
	metrics.RecordSweep(res.ExpiredDomains, res.ExpiredServices, res.OverdueInvoices)
	if res != (provision.SweepResult{}) {
		s.log.WithField("domains", res.ExpiredDomains).
			WithField("services", res.ExpiredServices).
			WithField("invoices", res.OverdueInvoices).
			Info("expiry sweep applied")
	}
	return res, nil
}
