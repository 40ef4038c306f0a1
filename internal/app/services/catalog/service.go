// Package catalog serves the product catalog and turns client item requests
// into priced cart lines.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angohost/portal/internal/app/domain/cart"
	domain "github.com/angohost/portal/internal/app/domain/catalog"
	"github.com/angohost/portal/internal/app/pricing"
	"github.com/angohost/portal/internal/app/storage"
	"github.com/angohost/portal/pkg/logger"
)

var (
	// ErrInvalidItem reports an item request that does not match the catalog.
	ErrInvalidItem = errors.New("invalid item")
	// ErrDomainTaken reports a domain that already has a live registration.
	ErrDomainTaken = errors.New("domain is not available")
)

// ItemRequest is what a client sends to add a product to the cart. Prices
// are never taken from the request.
type ItemRequest struct {
	Type     string       `json:"type"`
	PlanID   string       `json:"plan_id,omitempty"`
	Domain   string       `json:"domain,omitempty"`
	Quantity int          `json:"quantity"`
	Years    int          `json:"years"`
	Details  cart.Details `json:"details"`
}

// Service exposes the catalog.
type Service struct {
	catalog *domain.Catalog
	domains storage.DomainStore
	log     *logger.Logger
}

// New constructs a catalog service. A nil catalog uses the built-in one.
func New(cat *domain.Catalog, domains storage.DomainStore, log *logger.Logger) *Service {
	if cat == nil {
		cat = domain.Default()
	}
	if log == nil {
		log = logger.NewDefault("catalog")
	}
	return &Service{catalog: cat, domains: domains, log: log}
}

// Catalog returns the loaded catalog.
func (s *Service) Catalog() *domain.Catalog {
	return s.catalog
}

// CheckAvailability reports whether name can be registered and at what price.
// A name is taken when a pending or active registration exists for it.
func (s *Service) CheckAvailability(ctx context.Context, name string) (domain.Availability, error) {
	label, tld, err := s.catalog.SplitDomain(name)
	if err != nil {
		return domain.Availability{}, err
	}
	fqdn := label + "." + tld
	price, err := s.catalog.TLD(fqdn)
	if err != nil {
		return domain.Availability{}, err
	}

	result := domain.Availability{Domain: fqdn, TLD: tld, Available: true, Price: price.Register}
	if s.domains == nil {
		return result, nil
	}
	_, err = s.domains.FindLiveDomain(ctx, fqdn)
	switch {
	case err == nil:
		result.Available = false
	case errors.Is(err, storage.ErrNotFound):
	default:
		return domain.Availability{}, fmt.Errorf("check availability: %w", err)
	}
	return result, nil
}

// Search checks label against every TLD in the catalog.
func (s *Service) Search(ctx context.Context, label string) ([]domain.Availability, error) {
	label = domain.NormalizeDomain(label)
	if i := strings.IndexByte(label, '.'); i >= 0 {
		label = label[:i]
	}
	results := make([]domain.Availability, 0, len(s.catalog.TLDs))
	for _, t := range s.catalog.TLDs {
		res, err := s.CheckAvailability(ctx, label+"."+t.TLD)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// ResolveItem validates req against the catalog and returns a cart line
// carrying the catalog base price.
func (s *Service) ResolveItem(ctx context.Context, req ItemRequest) (cart.Item, error) {
	t, err := pricing.NormalizeType(req.Type)
	if err != nil {
		return cart.Item{}, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Years == 0 {
		req.Years = 1
	}

	var item cart.Item
	switch t {
	case cart.TypeDomain:
		item, err = s.resolveDomain(ctx, req)
	case cart.TypeHosting:
		item, err = s.resolveHosting(req)
	case cart.TypeEmail:
		item, err = s.resolveEmail(req)
	}
	if err != nil {
		return cart.Item{}, err
	}
	item.Years = req.Years
	item.Price = item.BasePrice
	if err := item.Validate(); err != nil {
		return cart.Item{}, err
	}
	return item, nil
}

func (s *Service) resolveDomain(ctx context.Context, req ItemRequest) (cart.Item, error) {
	if req.Quantity != 1 {
		return cart.Item{}, fmt.Errorf("domain items: %w", cart.ErrInvalidQuantity)
	}
	avail, err := s.CheckAvailability(ctx, req.Domain)
	if err != nil {
		return cart.Item{}, err
	}
	price, err := s.catalog.TLD(avail.Domain)
	if err != nil {
		return cart.Item{}, err
	}

	base := price.Register
	name := "Registo de domínio " + avail.Domain
	if req.Details.Transfer {
		base = price.Transfer
		name = "Transferência de domínio " + avail.Domain
	} else if !avail.Available {
		return cart.Item{}, fmt.Errorf("%s: %w", avail.Domain, ErrDomainTaken)
	}

	return cart.Item{
		ID:        cart.ItemID(cart.TypeDomain, "", avail.Domain),
		Type:      cart.TypeDomain,
		Name:      name,
		Domain:    avail.Domain,
		BasePrice: base,
		Quantity:  1,
		Details:   cart.Details{Transfer: req.Details.Transfer, AuthCode: req.Details.AuthCode},
	}, nil
}

func (s *Service) resolveHosting(req ItemRequest) (cart.Item, error) {
	plan, err := s.catalog.HostingPlan(req.PlanID)
	if err != nil {
		return cart.Item{}, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}

	var name string
	if req.Domain != "" {
		label, tld, err := s.catalog.SplitDomain(req.Domain)
		if err != nil {
			return cart.Item{}, err
		}
		name = label + "." + tld
	}
	if req.Details.RegisterDomain && name == "" {
		return cart.Item{}, fmt.Errorf("%w: register_domain requires a domain", ErrInvalidItem)
	}

	return cart.Item{
		ID:        cart.ItemID(cart.TypeHosting, plan.ID, name),
		Type:      cart.TypeHosting,
		Name:      "Alojamento " + plan.Name,
		PlanID:    plan.ID,
		Domain:    name,
		BasePrice: plan.Price,
		Quantity:  req.Quantity,
		Details:   cart.Details{RegisterDomain: req.Details.RegisterDomain},
	}, nil
}

func (s *Service) resolveEmail(req ItemRequest) (cart.Item, error) {
	plan, err := s.catalog.EmailPlan(req.PlanID)
	if err != nil {
		return cart.Item{}, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	if req.Quantity < plan.MinSeats || (plan.MaxSeats > 0 && req.Quantity > plan.MaxSeats) {
		return cart.Item{}, fmt.Errorf("%w: %s allows %d to %d seats", ErrInvalidItem, plan.Name, plan.MinSeats, plan.MaxSeats)
	}

	var name string
	if req.Domain != "" {
		name = domain.NormalizeDomain(req.Domain)
	}

	return cart.Item{
		ID:        cart.ItemID(cart.TypeEmail, plan.ID, name),
		Type:      cart.TypeEmail,
		Name:      "Email " + plan.Name,
		PlanID:    plan.ID,
		Domain:    name,
		BasePrice: plan.PricePerSeat,
		Quantity:  req.Quantity,
	}, nil
}
