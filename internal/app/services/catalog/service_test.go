package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angohost/portal/internal/app/domain/cart"
	domain "github.com/angohost/portal/internal/app/domain/catalog"
	"github.com/angohost/portal/internal/app/domain/provision"
	"github.com/angohost/portal/internal/app/storage/memory"
)

func TestCheckAvailability(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	_, err := store.CreateDomain(ctx, provision.ClientDomain{Name: "taken.co.ao", TLD: "co.ao", Status: provision.StatusActive, Years: 1, ExpiryDate: time.Now().AddDate(1, 0, 0)})
	if err != nil {
		t.Fatalf("seed domain: %v", err)
	}
	svc := New(nil, store, nil)

	got, err := svc.CheckAvailability(ctx, "TAKEN.co.ao")
	if err != nil {
		t.Fatalf("CheckAvailability() error = %v", err)
	}
	if got.Available || got.Price != 1500000 || got.TLD != "co.ao" {
		t.Errorf("unexpected availability: %+v", got)
	}

	got, err = svc.CheckAvailability(ctx, "free.ao")
	if err != nil {
		t.Fatalf("CheckAvailability() error = %v", err)
	}
	if !got.Available {
		t.Errorf("expected free.ao available")
	}

	if _, err := svc.CheckAvailability(ctx, "nope.xyz"); !errors.Is(err, domain.ErrUnsupportedTLD) {
		t.Errorf("expected unsupported tld, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	svc := New(nil, memory.New(), nil)
	results, err := svc.Search(context.Background(), "minhaloja.com")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != len(domain.Default().TLDs) {
		t.Fatalf("expected one result per tld, got %d", len(results))
	}
	if results[0].Domain != "minhaloja.ao" {
		t.Errorf("first result = %q", results[0].Domain)
	}
}

func TestResolveItem(t *testing.T) {
	svc := New(nil, memory.New(), nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     ItemRequest
		wantID  string
		wantPx  int64
		wantErr bool
	}{
		{"domain", ItemRequest{Type: "domain_registration", Domain: "Loja.co.ao", Years: 2}, "domain:loja.co.ao", 1500000, false},
		{"domain transfer", ItemRequest{Type: "domain", Domain: "loja.com", Details: cart.Details{Transfer: true}}, "domain:loja.com", 1200000, false},
		{"domain quantity", ItemRequest{Type: "domain", Domain: "loja.com", Quantity: 2}, "", 0, true},
		{"hosting", ItemRequest{Type: "cpanel", PlanID: "business", Domain: "loja.ao", Years: 3}, "hosting:business:loja.ao", 3600000, false},
		{"hosting register needs domain", ItemRequest{Type: "hosting", PlanID: "business", Details: cart.Details{RegisterDomain: true}}, "", 0, true},
		{"unknown plan", ItemRequest{Type: "hosting", PlanID: "ghost"}, "", 0, true},
		{"email seats", ItemRequest{Type: "exchange", PlanID: "email-pro", Quantity: 10}, "email:email-pro", 720000, false},
		{"email too many seats", ItemRequest{Type: "email", PlanID: "email-basic", Quantity: 51}, "", 0, true},
		{"unknown type", ItemRequest{Type: "ssl"}, "", 0, true},
		{"years out of range", ItemRequest{Type: "hosting", PlanID: "starter", Years: 11}, "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, err := svc.ResolveItem(ctx, tt.req)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", item)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveItem() error = %v", err)
			}
			if item.ID != tt.wantID || item.BasePrice != tt.wantPx {
				t.Errorf("ResolveItem() = %s/%d, want %s/%d", item.ID, item.BasePrice, tt.wantID, tt.wantPx)
			}
		})
	}
}

func TestResolveItemRejectsTakenDomain(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	_, _ = store.CreateDomain(ctx, provision.ClientDomain{Name: "taken.ao", Status: provision.StatusPending, ExpiryDate: time.Now()})
	svc := New(nil, store, nil)

	_, err := svc.ResolveItem(ctx, ItemRequest{Type: "domain", Domain: "taken.ao"})
	if !errors.Is(err, ErrDomainTaken) {
		t.Fatalf("expected ErrDomainTaken, got %v", err)
	}
}
