package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angohost/portal/internal/app/domain/account"
	"github.com/angohost/portal/internal/app/domain/billing"
	"github.com/angohost/portal/internal/app/domain/cart"
	"github.com/angohost/portal/internal/app/domain/provision"
	"github.com/angohost/portal/internal/app/storage"
)

func TestContactDefaultIsExclusive(t *testing.T) {
	s := New()
	ctx := context.Background()

	a, err := s.CreateContact(ctx, account.ContactProfile{UserID: "u1", Name: "A", IsDefault: true})
	if err != nil {
		t.Fatalf("create contact: %v", err)
	}
	b, err := s.CreateContact(ctx, account.ContactProfile{UserID: "u1", Name: "B", IsDefault: true})
	if err != nil {
		t.Fatalf("create contact: %v", err)
	}

	got, _ := s.GetContact(ctx, a.ID)
	if got.IsDefault {
		t.Fatal("first contact should have lost default")
	}

	if err := s.SetDefaultContact(ctx, "u1", a.ID); err != nil {
		t.Fatalf("set default: %v", err)
	}
	list, _ := s.ListContacts(ctx, "u1")
	if len(list) != 2 || list[0].ID != a.ID || !list[0].IsDefault || list[1].IsDefault {
		t.Fatalf("unexpected contacts: %+v", list)
	}

	if err := s.SetDefaultContact(ctx, "u2", b.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found for foreign contact, got %v", err)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx storage.Store) error {
		order, err := tx.CreateOrder(ctx, billing.Order{Number: "ORD-2026-000001", UserID: "u1"})
		if err != nil {
			return err
		}
		if _, err := tx.CreateInvoice(ctx, billing.Invoice{Number: "FT 2026/000001", OrderID: order.ID}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	orders, _ := s.ListOrders(ctx, billing.OrderFilter{})
	invoices, _ := s.ListInvoices(ctx, "")
	if len(orders) != 0 || len(invoices) != 0 {
		t.Fatalf("rollback left %d orders and %d invoices", len(orders), len(invoices))
	}

	err = s.WithTx(ctx, func(tx storage.Store) error {
		_, err := tx.CreateOrder(ctx, billing.Order{Number: "ORD-2026-000002", UserID: "u1"})
		return err
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}
	orders, _ = s.ListOrders(ctx, billing.OrderFilter{})
	if len(orders) != 1 {
		t.Fatalf("expected committed order, got %d", len(orders))
	}
}

func TestWritesDuringTxSurviveCommit(t *testing.T) {
	s := New()
	ctx := context.Background()

	inTx := make(chan struct{})
	release := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- s.WithTx(ctx, func(tx storage.Store) error {
			close(inTx)
			<-release
			_, err := tx.CreateOrder(ctx, billing.Order{Number: "ORD-2026-000001", UserID: "u1"})
			return err
		})
	}()
	<-inTx

	writeDone := make(chan error, 1)
	go func() {
		_, err := s.CreateProfile(ctx, account.Profile{ID: "u1", Email: "ana@example.ao"})
		writeDone <- err
	}()

	select {
	case err := <-writeDone:
		t.Fatalf("write finished while a transaction was open: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	if err := <-txDone; err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}
	if err := <-writeDone; err != nil {
		t.Fatalf("create profile: %v", err)
	}

	if _, err := s.GetProfile(ctx, "u1"); err != nil {
		t.Fatalf("profile lost after commit: %v", err)
	}
	orders, _ := s.ListOrders(ctx, billing.OrderFilter{})
	if len(orders) != 1 {
		t.Fatalf("expected committed order, got %d", len(orders))
	}
}

func TestLiveDomainIsUnique(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.CreateDomain(ctx, provision.ClientDomain{Name: "loja.ao", Status: provision.StatusPending}); err != nil {
		t.Fatalf("create domain: %v", err)
	}
	if _, err := s.CreateDomain(ctx, provision.ClientDomain{Name: "LOJA.ao", Status: provision.StatusActive}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := s.FindLiveDomain(ctx, "loja.ao"); err != nil {
		t.Fatalf("find live domain: %v", err)
	}
	if _, err := s.FindLiveDomain(ctx, "other.ao"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSequences(t *testing.T) {
	s := New()
	ctx := context.Background()
	for want := int64(1); want <= 3; want++ {
		got, _ := s.NextSequence(ctx, "invoice", 2026)
		if got != want {
			t.Fatalf("NextSequence() = %d, want %d", got, want)
		}
	}
	if got, _ := s.NextSequence(ctx, "invoice", 2027); got != 1 {
		t.Fatalf("sequence should restart per year, got %d", got)
	}
}

func TestSweepAndStats(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	_, _ = s.CreateProfile(ctx, account.Profile{ID: "u1", Role: account.RoleClient})
	_, _ = s.CreateProfile(ctx, account.Profile{ID: "admin", Role: account.RoleAdmin})
	_, _ = s.CreateDomain(ctx, provision.ClientDomain{Name: "old.ao", Status: provision.StatusActive, ExpiryDate: now.Add(-time.Hour)})
	_, _ = s.CreateDomain(ctx, provision.ClientDomain{Name: "new.ao", Status: provision.StatusActive, ExpiryDate: now.Add(time.Hour)})
	_, _ = s.CreateService(ctx, provision.ClientService{Status: provision.StatusActive, RenewalDate: now.Add(-time.Minute)})
	order, _ := s.CreateOrder(ctx, billing.Order{Number: "ORD-1", Status: billing.OrderPending})
	_, _ = s.CreateInvoice(ctx, billing.Invoice{Number: "FT-1", OrderID: order.ID, Status: billing.InvoiceUnpaid, DueDate: now.Add(-time.Hour), Amount: 100})

	if n, _ := s.ExpireDomains(ctx, now); n != 1 {
		t.Errorf("ExpireDomains() = %d, want 1", n)
	}
	if n, _ := s.ExpireServices(ctx, now); n != 1 {
		t.Errorf("ExpireServices() = %d, want 1", n)
	}
	if n, _ := s.MarkOverdueInvoices(ctx, now); n != 1 {
		t.Errorf("MarkOverdueInvoices() = %d, want 1", n)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := billing.Stats{Orders: 1, PendingOrders: 1, Clients: 1, ActiveDomains: 1, OverdueInvoices: 1}
	if st != want {
		t.Errorf("Stats() = %+v, want %+v", st, want)
	}
}

func TestListOrdersFilterAndPaging(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i, user := range []string{"a", "b", "a", "a"} {
		_, err := s.CreateOrder(ctx, billing.Order{Number: billing.FormatOrderNumber(2026, int64(i+1)), UserID: user, Status: billing.OrderPending})
		if err != nil {
			t.Fatalf("create order: %v", err)
		}
	}
	got, _ := s.ListOrders(ctx, billing.OrderFilter{UserID: "a", Limit: 2})
	if len(got) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(got))
	}
	got, _ = s.ListOrders(ctx, billing.OrderFilter{UserID: "a", Offset: 5})
	if len(got) != 0 {
		t.Fatalf("expected no orders past offset, got %d", len(got))
	}
}

func TestCartStoreTTL(t *testing.T) {
	s := NewCartStore(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	c := cart.New("guest-1")
	c.Upsert(cart.Item{ID: "domain:a.ao", Type: cart.TypeDomain, Quantity: 1, Years: 1})
	if err := s.SaveCart(ctx, c); err != nil {
		t.Fatalf("save cart: %v", err)
	}

	got, _ := s.GetCart(ctx, "guest-1")
	if len(got.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got.Items))
	}

	now = now.Add(2 * time.Minute)
	if n, _ := s.PurgeExpired(ctx); n != 1 {
		t.Fatalf("PurgeExpired() = %d, want 1", n)
	}
	got, _ = s.GetCart(ctx, "guest-1")
	if !got.IsEmpty() {
		t.Fatal("expected empty cart after purge")
	}
}
