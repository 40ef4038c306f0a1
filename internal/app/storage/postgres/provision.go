package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angohost/portal/internal/app/domain/provision"
)

// --- DomainStore ------------------------------------------------------------

const domainColumns = `id, user_id, COALESCE(order_id::text, '') AS order_id, name, tld, status, years,
	auto_renew, transfer, COALESCE(contact_profile_id::text, '') AS contact_profile_id,
	registered_at, expiry_date, created_at, updated_at`

func (s *Store) CreateDomain(ctx context.Context, d provision.ClientDomain) (provision.ClientDomain, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.Name = strings.ToLower(d.Name)
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO client_domains (id, user_id, order_id, name, tld, status, years, auto_renew, transfer,
			contact_profile_id, registered_at, expiry_date, created_at, updated_at)
		VALUES ($1, $2, CAST(NULLIF($3, '') AS uuid), $4, $5, $6, $7, $8, $9,
			CAST(NULLIF($10, '') AS uuid), $11, $12, $13, $14)
	`, d.ID, d.UserID, d.OrderID, d.Name, d.TLD, d.Status, d.Years, d.AutoRenew, d.Transfer,
		d.ContactProfileID, d.RegisteredAt, d.ExpiryDate, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return provision.ClientDomain{}, mapErr("domain", d.Name, err)
	}
	return d, nil
}

func (s *Store) UpdateDomain(ctx context.Context, d provision.ClientDomain) (provision.ClientDomain, error) {
	var out provision.ClientDomain
	err := s.q.GetContext(ctx, &out, `
		UPDATE client_domains
		SET status = $2, years = $3, auto_renew = $4, contact_profile_id = CAST(NULLIF($5, '') AS uuid),
		    registered_at = $6, expiry_date = $7, updated_at = $8
		WHERE id = $1
		RETURNING `+domainColumns,
		d.ID, d.Status, d.Years, d.AutoRenew, d.ContactProfileID, d.RegisteredAt, d.ExpiryDate, time.Now().UTC())
	if err != nil {
		return provision.ClientDomain{}, mapErr("domain", d.ID, err)
	}
	return out, nil
}

func (s *Store) GetDomain(ctx context.Context, id string) (provision.ClientDomain, error) {
	var d provision.ClientDomain
	err := s.q.GetContext(ctx, &d, `SELECT `+domainColumns+` FROM client_domains WHERE id = $1`, id)
	if err != nil {
		return provision.ClientDomain{}, mapErr("domain", id, err)
	}
	return d, nil
}

func (s *Store) ListDomains(ctx context.Context, userID string) ([]provision.ClientDomain, error) {
	var result []provision.ClientDomain
	err := s.q.SelectContext(ctx, &result, `
		SELECT `+domainColumns+`
		FROM client_domains
		WHERE $1 = '' OR user_id::text = $1
		ORDER BY name
	`, userID)
	return result, err
}

func (s *Store) ListDomainsByOrder(ctx context.Context, orderID string) ([]provision.ClientDomain, error) {
	var result []provision.ClientDomain
	err := s.q.SelectContext(ctx, &result, `
		SELECT `+domainColumns+` FROM client_domains WHERE order_id = $1 ORDER BY name
	`, orderID)
	return result, err
}

func (s *Store) FindLiveDomain(ctx context.Context, name string) (provision.ClientDomain, error) {
	var d provision.ClientDomain
	err := s.q.GetContext(ctx, &d, `
		SELECT `+domainColumns+`
		FROM client_domains
		WHERE name = $1 AND status IN ('pending', 'active')
		LIMIT 1
	`, strings.ToLower(name))
	if err != nil {
		return provision.ClientDomain{}, mapErr("domain", name, err)
	}
	return d, nil
}

// --- ServiceStore -----------------------------------------------------------

const serviceColumns = `id, user_id, COALESCE(order_id::text, '') AS order_id, type, plan_id, name, domain,
	status, billing_years, seats, price, renewal_date, created_at, updated_at`

func (s *Store) CreateService(ctx context.Context, svc provision.ClientService) (provision.ClientService, error) {
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	svc.CreatedAt = now
	svc.UpdatedAt = now

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO client_services (id, user_id, order_id, type, plan_id, name, domain, status,
			billing_years, seats, price, renewal_date, created_at, updated_at)
		VALUES ($1, $2, CAST(NULLIF($3, '') AS uuid), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, svc.ID, svc.UserID, svc.OrderID, svc.Type, svc.PlanID, svc.Name, svc.Domain, svc.Status,
		svc.BillingYears, svc.Seats, svc.Price, svc.RenewalDate, svc.CreatedAt, svc.UpdatedAt)
	if err != nil {
		return provision.ClientService{}, mapErr("service", svc.ID, err)
	}
	return svc, nil
}

func (s *Store) UpdateService(ctx context.Context, svc provision.ClientService) (provision.ClientService, error) {
	var out provision.ClientService
	err := s.q.GetContext(ctx, &out, `
		UPDATE client_services
		SET status = $2, domain = $3, billing_years = $4, seats = $5, renewal_date = $6, updated_at = $7
		WHERE id = $1
		RETURNING `+serviceColumns,
		svc.ID, svc.Status, svc.Domain, svc.BillingYears, svc.Seats, svc.RenewalDate, time.Now().UTC())
	if err != nil {
		return provision.ClientService{}, mapErr("service", svc.ID, err)
	}
	return out, nil
}

func (s *Store) GetService(ctx context.Context, id string) (provision.ClientService, error) {
	var svc provision.ClientService
	err := s.q.GetContext(ctx, &svc, `SELECT `+serviceColumns+` FROM client_services WHERE id = $1`, id)
	if err != nil {
		return provision.ClientService{}, mapErr("service", id, err)
	}
	return svc, nil
}

func (s *Store) ListServices(ctx context.Context, userID string) ([]provision.ClientService, error) {
	var result []provision.ClientService
	err := s.q.SelectContext(ctx, &result, `
		SELECT `+serviceColumns+`
		FROM client_services
		WHERE $1 = '' OR user_id::text = $1
		ORDER BY created_at
	`, userID)
	return result, err
}

func (s *Store) ListServicesByOrder(ctx context.Context, orderID string) ([]provision.ClientService, error) {
	var result []provision.ClientService
	err := s.q.SelectContext(ctx, &result, `
		SELECT `+serviceColumns+` FROM client_services WHERE order_id = $1 ORDER BY created_at
	`, orderID)
	return result, err
}

// --- SweepStore -------------------------------------------------------------

func (s *Store) ExpireDomains(ctx context.Context, now time.Time) (int64, error) {
	return s.execCount(ctx, `
		UPDATE client_domains SET status = 'expired', updated_at = $1
		WHERE status = 'active' AND expiry_date < $1
	`, now)
}

func (s *Store) ExpireServices(ctx context.Context, now time.Time) (int64, error) {
	return s.execCount(ctx, `
		UPDATE client_services SET status = 'expired', updated_at = $1
		WHERE status = 'active' AND renewal_date < $1
	`, now)
}

func (s *Store) MarkOverdueInvoices(ctx context.Context, now time.Time) (int64, error) {
	return s.execCount(ctx, `
		UPDATE invoices SET status = 'overdue', updated_at = $1
		WHERE status = 'unpaid' AND due_date < $1
	`, now)
}

func (s *Store) execCount(ctx context.Context, query string, args ...interface{}) (int64, error) {
	result, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
