package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angohost/portal/internal/app/domain/account"
	"github.com/angohost/portal/internal/app/domain/billing"
	"github.com/angohost/portal/internal/app/domain/cart"
	"github.com/angohost/portal/internal/app/domain/provision"
	"github.com/angohost/portal/internal/app/pricing"
	"github.com/angohost/portal/internal/app/realtime"
	billingsvc "github.com/angohost/portal/internal/app/services/billing"
	cartsvc "github.com/angohost/portal/internal/app/services/cart"
	catalogsvc "github.com/angohost/portal/internal/app/services/catalog"
	"github.com/angohost/portal/internal/app/storage"
	"github.com/angohost/portal/internal/app/storage/memory"
	"github.com/angohost/portal/pkg/testutil"
)

type fixture struct {
	store    *memory.Store
	carts    *cartsvc.Service
	svc      *Service
	notifier *testutil.Notifier
	pub      *testutil.Publisher
	method   billing.PaymentMethod
	contact  account.ContactProfile
}

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	catalog := catalogsvc.New(nil, store, nil)
	carts := cartsvc.New(catalog, memory.NewCartStore(time.Hour), pricing.DefaultRules(), nil)
	bill := billingsvc.New(store, nil, nil)

	method, err := store.CreatePaymentMethod(ctx, billing.PaymentMethod{Code: "transferencia", Name: "Transferência", Active: true})
	require.NoError(t, err)
	contact, err := store.CreateContact(ctx, account.ContactProfile{UserID: "u1", Name: "Empresa", Country: "AO", IsDefault: true})
	require.NoError(t, err)

	notifier := &testutil.Notifier{}
	pub := &testutil.Publisher{}
	svc := New(store, carts, catalog, bill, pub, notifier, Options{OrderEmailFunction: "send-order-email"}, nil)
	svc.now = func() time.Time { return fixedNow }
	return &fixture{store: store, carts: carts, svc: svc, notifier: notifier, pub: pub, method: method, contact: contact}
}

func TestCheckoutMaterializesOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.carts.Add(ctx, "u1", catalogsvc.ItemRequest{Type: "hosting", PlanID: "business", Years: 2})
	require.NoError(t, err)
	_, err = f.carts.Add(ctx, "u1", catalogsvc.ItemRequest{Type: "domain", Domain: "loja.ao"})
	require.NoError(t, err)
	_, err = f.carts.Add(ctx, "u1", catalogsvc.ItemRequest{Type: "email", PlanID: "email-basic", Quantity: 5, Years: 1})
	require.NoError(t, err)

	res, err := f.svc.Checkout(ctx, Request{
		UserID:           "u1",
		PaymentMethodID:  f.method.ID,
		ContactProfileID: f.contact.ID,
	})
	require.NoError(t, err)

	// 6 840 000 hosting + 2 500 000 domain + 1 800 000 email, 10% tier.
	assert.Equal(t, int64(11_140_000), res.Order.Subtotal)
	assert.Equal(t, int64(1_114_000), res.Order.Discount)
	assert.Equal(t, int64(10_026_000), res.Order.Total)
	assert.Equal(t, "ORD-2026-000001", res.Order.Number)
	assert.Equal(t, billing.OrderPending, res.Order.Status)
	require.Len(t, res.Order.Items, 3)

	assert.Equal(t, "FT 2026/000001", res.Invoice.Number)
	assert.Equal(t, res.Order.Total, res.Invoice.Amount)
	assert.Equal(t, fixedNow.AddDate(0, 0, 7), res.Invoice.DueDate)
	assert.Equal(t, billing.InvoiceUnpaid, res.Invoice.Status)

	require.Len(t, res.Domains, 1)
	assert.Equal(t, "loja.ao", res.Domains[0].Name)
	assert.Equal(t, "ao", res.Domains[0].TLD)
	assert.Equal(t, f.contact.ID, res.Domains[0].ContactProfileID)
	assert.Equal(t, fixedNow.AddDate(1, 0, 0), res.Domains[0].ExpiryDate)

	require.Len(t, res.Services, 2)
	assert.Equal(t, provision.ServiceHosting, res.Services[0].Type)
	assert.Equal(t, 2, res.Services[0].BillingYears)
	assert.Equal(t, provision.ServiceEmail, res.Services[1].Type)
	assert.Equal(t, 5, res.Services[1].Seats)

	c, err := f.carts.Load(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty(), "cart is cleared after checkout")
	assert.Equal(t, []string{realtime.EventOrderCreated}, f.pub.Types())
	assert.Equal(t, []string{"send-order-email"}, f.notifier.Names())
}

func TestCheckoutBundlesHostingDomain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.carts.Add(ctx, "u1", catalogsvc.ItemRequest{
		Type:    "wordpress",
		PlanID:  "starter",
		Domain:  "Empresa.co.ao",
		Years:   3,
		Details: cart.Details{RegisterDomain: true},
	})
	require.NoError(t, err)

	_, err = f.svc.Checkout(ctx, Request{UserID: "u1", PaymentMethodID: f.method.ID})
	require.ErrorIs(t, err, ErrContactRequired)

	res, err := f.svc.Checkout(ctx, Request{UserID: "u1", PaymentMethodID: f.method.ID, ContactProfileID: f.contact.ID})
	require.NoError(t, err)
	require.Len(t, res.Domains, 1)
	assert.Equal(t, "empresa.co.ao", res.Domains[0].Name)
	assert.Equal(t, "co.ao", res.Domains[0].TLD)
	assert.Equal(t, 3, res.Domains[0].Years)
	require.Len(t, res.Services, 1)
	assert.Equal(t, "empresa.co.ao", res.Services[0].Domain)
	assert.Len(t, res.Order.Items, 1, "the bundled domain is not charged separately")
}

func TestCheckoutPrefersDomainLineOverBundle(t *testing.T) {
	hosting := catalogsvc.ItemRequest{
		Type:    "hosting",
		PlanID:  "starter",
		Domain:  "loja.ao",
		Years:   1,
		Details: cart.Details{RegisterDomain: true},
	}
	domain := catalogsvc.ItemRequest{
		Type:    "domain",
		Domain:  "loja.ao",
		Years:   3,
		Details: cart.Details{Transfer: true, AuthCode: "EPP-123"},
	}

	cases := []struct {
		name  string
		items []catalogsvc.ItemRequest
	}{
		{"hosting first", []catalogsvc.ItemRequest{hosting, domain}},
		{"domain first", []catalogsvc.ItemRequest{domain, hosting}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			for _, item := range tc.items {
				_, err := f.carts.Add(ctx, "u1", item)
				require.NoError(t, err)
			}

			res, err := f.svc.Checkout(ctx, Request{UserID: "u1", PaymentMethodID: f.method.ID, ContactProfileID: f.contact.ID})
			require.NoError(t, err)
			require.Len(t, res.Order.Items, 2)
			require.Len(t, res.Domains, 1)
			assert.Equal(t, 3, res.Domains[0].Years)
			assert.True(t, res.Domains[0].Transfer)
			assert.Equal(t, fixedNow.AddDate(3, 0, 0), res.Domains[0].ExpiryDate)
			require.Len(t, res.Services, 1)
			assert.Equal(t, "loja.ao", res.Services[0].Domain)
		})
	}
}

func TestCheckoutRollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.carts.Add(ctx, "u1", catalogsvc.ItemRequest{Type: "hosting", PlanID: "starter"})
	require.NoError(t, err)
	_, err = f.carts.Add(ctx, "u1", catalogsvc.ItemRequest{Type: "domain", Domain: "loja.ao"})
	require.NoError(t, err)

	// Someone else registers the name between cart and checkout.
	_, err = f.store.CreateDomain(ctx, provision.ClientDomain{UserID: "u2", Name: "loja.ao", TLD: "ao", Status: provision.StatusActive})
	require.NoError(t, err)

	_, err = f.svc.Checkout(ctx, Request{UserID: "u1", PaymentMethodID: f.method.ID, ContactProfileID: f.contact.ID})
	require.ErrorIs(t, err, catalogsvc.ErrDomainTaken)

	orders, err := f.store.ListOrders(ctx, billing.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
	invoices, err := f.store.ListInvoices(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, invoices)
	services, err := f.store.ListServices(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, services)

	c, err := f.carts.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, c.Items, 2, "cart survives a failed checkout")
	assert.Empty(t, f.notifier.Names())
}

func TestCheckoutRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, Request{PaymentMethodID: f.method.ID})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.Checkout(ctx, Request{UserID: "u1", PaymentMethodID: f.method.ID})
	assert.ErrorIs(t, err, cart.ErrEmptyCart)

	_, err = f.carts.Add(ctx, "u1", catalogsvc.ItemRequest{Type: "hosting", PlanID: "starter"})
	require.NoError(t, err)

	_, err = f.svc.Checkout(ctx, Request{UserID: "u1"})
	assert.ErrorIs(t, err, ErrPaymentRequired)

	inactive, err := f.store.CreatePaymentMethod(ctx, billing.PaymentMethod{Code: "cheque", Name: "Cheque"})
	require.NoError(t, err)
	_, err = f.svc.Checkout(ctx, Request{UserID: "u1", PaymentMethodID: inactive.ID})
	assert.ErrorIs(t, err, billingsvc.ErrInactiveMethod)

	foreign, err := f.store.CreateContact(ctx, account.ContactProfile{UserID: "u2", Name: "Outra", Country: "AO"})
	require.NoError(t, err)
	_, err = f.svc.Checkout(ctx, Request{UserID: "u1", PaymentMethodID: f.method.ID, ContactProfileID: foreign.ID})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNotifierFailureDoesNotFailCheckout(t *testing.T) {
	f := newFixture(t)
	f.notifier.Err = errors.New("edge function down")
	ctx := context.Background()

	_, err := f.carts.Add(ctx, "u1", catalogsvc.ItemRequest{Type: "hosting", PlanID: "starter"})
	require.NoError(t, err)
	res, err := f.svc.Checkout(ctx, Request{UserID: "u1", PaymentMethodID: f.method.ID})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Order.ID)
}
