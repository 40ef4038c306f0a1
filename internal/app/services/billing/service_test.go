package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/angohost/portal/internal/app/domain/billing"
	"github.com/angohost/portal/internal/app/domain/provision"
	"github.com/angohost/portal/internal/app/realtime"
	"github.com/angohost/portal/internal/app/storage"
	"github.com/angohost/portal/internal/app/storage/memory"
	"github.com/angohost/portal/pkg/testutil"
)

var paidAt = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

type placed struct {
	order   domain.Order
	invoice domain.Invoice
	domain  provision.ClientDomain
	service provision.ClientService
}

func placeOrder(t *testing.T, store storage.Store, userID, number string) placed {
	t.Helper()
	ctx := context.Background()
	o, err := store.CreateOrder(ctx, domain.Order{Number: "ORD-2026-" + number, UserID: userID, Status: domain.OrderPending, Total: 2_500_000})
	require.NoError(t, err)
	inv, err := store.CreateInvoice(ctx, domain.Invoice{
		Number:  "FT 2026/" + number,
		OrderID: o.ID,
		UserID:  userID,
		Status:  domain.InvoiceUnpaid,
		Amount:  o.Total,
		DueDate: paidAt.AddDate(0, 0, 7),
	})
	require.NoError(t, err)
	d, err := store.CreateDomain(ctx, provision.ClientDomain{UserID: userID, OrderID: o.ID, Name: "loja" + number + ".ao", TLD: "ao", Status: provision.StatusPending, Years: 2})
	require.NoError(t, err)
	svc, err := store.CreateService(ctx, provision.ClientService{UserID: userID, OrderID: o.ID, Type: provision.ServiceHosting, PlanID: "starter", Status: provision.StatusPending, BillingYears: 1})
	require.NoError(t, err)
	return placed{order: o, invoice: inv, domain: d, service: svc}
}

func newService() (*Service, *memory.Store, *testutil.Publisher) {
	store := memory.New()
	pub := &testutil.Publisher{}
	svc := New(store, pub, nil)
	svc.now = testutil.NewClock(paidAt).Now
	return svc, store, pub
}

func TestMarkPaidActivatesOrder(t *testing.T) {
	svc, store, pub := newService()
	ctx := context.Background()
	p := placeOrder(t, store, "u1", "000001")

	inv, err := svc.MarkPaid(ctx, p.invoice.ID, "TRF-123")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, inv.Status)
	require.NotNil(t, inv.PaidAt)
	assert.Equal(t, paidAt, *inv.PaidAt)
	assert.Equal(t, "TRF-123", inv.PaymentReference)

	o, err := store.GetOrder(ctx, p.order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, o.Status)

	d, err := store.GetDomain(ctx, p.domain.ID)
	require.NoError(t, err)
	assert.Equal(t, provision.StatusActive, d.Status)
	assert.Equal(t, paidAt.AddDate(2, 0, 0), d.ExpiryDate)

	s, err := store.GetService(ctx, p.service.ID)
	require.NoError(t, err)
	assert.Equal(t, provision.StatusActive, s.Status)
	assert.Equal(t, paidAt.AddDate(1, 0, 0), s.RenewalDate)

	_, err = svc.MarkPaid(ctx, p.invoice.ID, "TRF-123")
	assert.ErrorIs(t, err, ErrAlreadyPaid)
	assert.ErrorIs(t, err, storage.ErrConflict)
	assert.Equal(t, []string{realtime.EventInvoicePaid}, pub.Types())
}

func TestUpdateOrderStatus(t *testing.T) {
	svc, store, pub := newService()
	ctx := context.Background()
	p := placeOrder(t, store, "u1", "000001")

	_, err := svc.UpdateOrderStatus(ctx, p.order.ID, domain.OrderCompleted)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	o, err := svc.UpdateOrderStatus(ctx, p.order.ID, domain.OrderCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, o.Status)

	inv, err := store.GetInvoice(ctx, p.invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceCancelled, inv.Status)
	d, err := store.GetDomain(ctx, p.domain.ID)
	require.NoError(t, err)
	assert.Equal(t, provision.StatusCancelled, d.Status)

	_, err = svc.UpdateOrderStatus(ctx, p.order.ID, domain.OrderPaid)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	q := placeOrder(t, store, "u1", "000002")
	o, err = svc.UpdateOrderStatus(ctx, q.order.ID, domain.OrderPaid)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, o.Status)
	inv, err = store.GetInvoice(ctx, q.invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, inv.Status)

	o, err = svc.UpdateOrderStatus(ctx, q.order.ID, domain.OrderCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCompleted, o.Status)
	assert.Equal(t, []string{realtime.EventOrderStatus, realtime.EventOrderStatus, realtime.EventOrderStatus}, pub.Types())
}

func TestOwnershipChecks(t *testing.T) {
	svc, store, _ := newService()
	ctx := context.Background()
	p := placeOrder(t, store, "u1", "000001")

	_, err := svc.GetOrder(ctx, "u2", p.order.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = svc.GetInvoice(ctx, "u2", p.invoice.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	orders, err := svc.ListOrders(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	orders, err = svc.ListOrders(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCancelInvoice(t *testing.T) {
	svc, store, _ := newService()
	ctx := context.Background()
	p := placeOrder(t, store, "u1", "000001")

	inv, err := svc.CancelInvoice(ctx, p.invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceCancelled, inv.Status)

	_, err = svc.CancelInvoice(ctx, p.invoice.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = svc.MarkPaid(ctx, p.invoice.ID, "late")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestPaymentMethods(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	added, err := svc.SeedPaymentMethods(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultPaymentMethods()), added)
	added, err = svc.SeedPaymentMethods(ctx)
	require.NoError(t, err)
	assert.Zero(t, added, "seeding is idempotent")

	m, err := svc.CreatePaymentMethod(ctx, domain.PaymentMethod{Code: " Unitel-Money ", Name: "Unitel Money", WebhookSecret: "s3cret", ReferencePath: "$.ref"})
	require.NoError(t, err)
	assert.Equal(t, "unitel-money", m.Code)

	_, err = svc.CreatePaymentMethod(ctx, domain.PaymentMethod{Code: "unitel-money", Name: "Dup"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	public, err := svc.ListPaymentMethods(ctx)
	require.NoError(t, err)
	for _, pm := range public {
		assert.Empty(t, pm.WebhookSecret)
		assert.NotEqual(t, "unitel-money", pm.Code, "inactive methods are hidden")
	}

	toggled, err := svc.TogglePaymentMethod(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Active)
	_, err = svc.ActivePaymentMethod(ctx, m.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeletePaymentMethod(ctx, m.ID))
	_, err = svc.ActivePaymentMethod(ctx, m.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
