package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angohost/portal/internal/app/domain/billing"
)

// --- PaymentMethodStore -----------------------------------------------------

const paymentMethodColumns = `id, code, name, description, instructions, active, sort_order,
	reference_path, status_path, paid_value, webhook_secret, created_at, updated_at`

func (s *Store) CreatePaymentMethod(ctx context.Context, m billing.PaymentMethod) (billing.PaymentMethod, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO payment_methods (id, code, name, description, instructions, active, sort_order,
			reference_path, status_path, paid_value, webhook_secret, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, m.ID, m.Code, m.Name, m.Description, m.Instructions, m.Active, m.SortOrder,
		m.ReferencePath, m.StatusPath, m.PaidValue, m.WebhookSecret, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return billing.PaymentMethod{}, mapErr("payment method", m.Code, err)
	}
	return m, nil
}

func (s *Store) UpdatePaymentMethod(ctx context.Context, m billing.PaymentMethod) (billing.PaymentMethod, error) {
	var out billing.PaymentMethod
	err := s.q.GetContext(ctx, &out, `
		UPDATE payment_methods
		SET code = $2, name = $3, description = $4, instructions = $5, active = $6, sort_order = $7,
		    reference_path = $8, status_path = $9, paid_value = $10, webhook_secret = $11, updated_at = $12
		WHERE id = $1
		RETURNING `+paymentMethodColumns,
		m.ID, m.Code, m.Name, m.Description, m.Instructions, m.Active, m.SortOrder,
		m.ReferencePath, m.StatusPath, m.PaidValue, m.WebhookSecret, time.Now().UTC())
	if err != nil {
		return billing.PaymentMethod{}, mapErr("payment method", m.ID, err)
	}
	return out, nil
}

func (s *Store) GetPaymentMethod(ctx context.Context, id string) (billing.PaymentMethod, error) {
	var m billing.PaymentMethod
	err := s.q.GetContext(ctx, &m, `SELECT `+paymentMethodColumns+` FROM payment_methods WHERE id = $1`, id)
	if err != nil {
		return billing.PaymentMethod{}, mapErr("payment method", id, err)
	}
	return m, nil
}

func (s *Store) GetPaymentMethodByCode(ctx context.Context, code string) (billing.PaymentMethod, error) {
	var m billing.PaymentMethod
	err := s.q.GetContext(ctx, &m, `SELECT `+paymentMethodColumns+` FROM payment_methods WHERE code = $1`, code)
	if err != nil {
		return billing.PaymentMethod{}, mapErr("payment method", code, err)
	}
	return m, nil
}

func (s *Store) ListPaymentMethods(ctx context.Context, activeOnly bool) ([]billing.PaymentMethod, error) {
	var result []billing.PaymentMethod
	err := s.q.SelectContext(ctx, &result, `
		SELECT `+paymentMethodColumns+`
		FROM payment_methods
		WHERE active OR NOT $1
		ORDER BY sort_order, name
	`, activeOnly)
	return result, err
}

func (s *Store) DeletePaymentMethod(ctx context.Context, id string) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM payment_methods WHERE id = $1`, id)
	if err != nil {
		return mapErr("payment method", id, err)
	}
	return expectRows("payment method", id, result)
}

// --- OrderStore -------------------------------------------------------------

const orderColumns = `id, number, user_id, status, items, subtotal, discount, total, payment_method_id,
	COALESCE(contact_profile_id::text, '') AS contact_profile_id, notes, created_at, updated_at`

func (s *Store) CreateOrder(ctx context.Context, o billing.Order) (billing.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Items == nil {
		o.Items = billing.OrderItems{}
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO orders (id, number, user_id, status, items, subtotal, discount, total,
			payment_method_id, contact_profile_id, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, CAST(NULLIF($10, '') AS uuid), $11, $12, $13)
	`, o.ID, o.Number, o.UserID, o.Status, o.Items, o.Subtotal, o.Discount, o.Total,
		o.PaymentMethodID, o.ContactProfileID, o.Notes, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return billing.Order{}, mapErr("order", o.Number, err)
	}
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (billing.Order, error) {
	var o billing.Order
	err := s.q.GetContext(ctx, &o, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		return billing.Order{}, mapErr("order", id, err)
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, filter billing.OrderFilter) ([]billing.Order, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var result []billing.Order
	err := s.q.SelectContext(ctx, &result, query, args...)
	return result, err
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status billing.OrderStatus) (billing.Order, error) {
	var o billing.Order
	err := s.q.GetContext(ctx, &o, `
		UPDATE orders SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+orderColumns,
		id, status, time.Now().UTC())
	if err != nil {
		return billing.Order{}, mapErr("order", id, err)
	}
	return o, nil
}

// --- InvoiceStore -----------------------------------------------------------

const invoiceColumns = `id, number, order_id, user_id, status, amount, due_date, paid_at,
	payment_reference, created_at, updated_at`

func (s *Store) CreateInvoice(ctx context.Context, inv billing.Invoice) (billing.Invoice, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO invoices (id, number, order_id, user_id, status, amount, due_date, paid_at,
			payment_reference, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, inv.ID, inv.Number, inv.OrderID, inv.UserID, inv.Status, inv.Amount, inv.DueDate, inv.PaidAt,
		inv.PaymentReference, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return billing.Invoice{}, mapErr("invoice", inv.Number, err)
	}
	return inv, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, inv billing.Invoice) (billing.Invoice, error) {
	var out billing.Invoice
	err := s.q.GetContext(ctx, &out, `
		UPDATE invoices
		SET status = $2, amount = $3, due_date = $4, paid_at = $5, payment_reference = $6, updated_at = $7
		WHERE id = $1
		RETURNING `+invoiceColumns,
		inv.ID, inv.Status, inv.Amount, inv.DueDate, inv.PaidAt, inv.PaymentReference, time.Now().UTC())
	if err != nil {
		return billing.Invoice{}, mapErr("invoice", inv.ID, err)
	}
	return out, nil
}

func (s *Store) GetInvoice(ctx context.Context, id string) (billing.Invoice, error) {
	return s.getInvoice(ctx, "id", id)
}

func (s *Store) GetInvoiceByNumber(ctx context.Context, number string) (billing.Invoice, error) {
	return s.getInvoice(ctx, "number", number)
}

func (s *Store) GetInvoiceByOrder(ctx context.Context, orderID string) (billing.Invoice, error) {
	return s.getInvoice(ctx, "order_id", orderID)
}

// getInvoice looks an invoice up by a fixed column name.
func (s *Store) getInvoice(ctx context.Context, column, value string) (billing.Invoice, error) {
	var inv billing.Invoice
	err := s.q.GetContext(ctx, &inv, `SELECT `+invoiceColumns+` FROM invoices WHERE `+column+` = $1 LIMIT 1`, value)
	if err != nil {
		return billing.Invoice{}, mapErr("invoice", value, err)
	}
	return inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, userID string) ([]billing.Invoice, error) {
	var result []billing.Invoice
	err := s.q.SelectContext(ctx, &result, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE $1 = '' OR user_id::text = $1
		ORDER BY created_at DESC
	`, userID)
	return result, err
}

// --- SequenceStore ----------------------------------------------------------

func (s *Store) NextSequence(ctx context.Context, name string, year int) (int64, error) {
	var value int64
	err := s.q.GetContext(ctx, &value, `
		INSERT INTO number_sequences (name, year, value)
		VALUES ($1, $2, 1)
		ON CONFLICT (name, year) DO UPDATE SET value = number_sequences.value + 1
		RETURNING value
	`, name, year)
	if err != nil {
		return 0, fmt.Errorf("next %s sequence: %w", name, err)
	}
	return value, nil
}

// --- StatsStore -------------------------------------------------------------

func (s *Store) Stats(ctx context.Context) (billing.Stats, error) {
	var st billing.Stats
	err := s.q.GetContext(ctx, &st, `
		SELECT
			(SELECT COUNT(*) FROM orders) AS orders,
			(SELECT COUNT(*) FROM orders WHERE status = 'pending') AS pending_orders,
			(SELECT COALESCE(SUM(amount), 0)::bigint FROM invoices WHERE status = 'paid') AS revenue,
			(SELECT COUNT(*) FROM profiles WHERE role = 'client') AS clients,
			(SELECT COUNT(*) FROM client_services WHERE status = 'active') AS active_services,
			(SELECT COUNT(*) FROM client_domains WHERE status = 'active') AS active_domains,
			(SELECT COUNT(*) FROM invoices WHERE status = 'overdue') AS overdue_invoices
	`)
	if err != nil {
		return billing.Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}
