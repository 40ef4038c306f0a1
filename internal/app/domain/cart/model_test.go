package cart

import (
	"errors"
	"testing"
)

func TestItemValidate(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want error
	}{
		{"ok", Item{Type: TypeHosting, Quantity: 1, Years: 3}, nil},
		{"zero quantity", Item{Type: TypeEmail, Quantity: 0, Years: 1}, ErrInvalidQuantity},
		{"years too high", Item{Type: TypeHosting, Quantity: 1, Years: 11}, ErrInvalidYears},
		{"years zero", Item{Type: TypeHosting, Quantity: 1, Years: 0}, ErrInvalidYears},
		{"domain quantity", Item{Type: TypeDomain, Quantity: 2, Years: 1}, ErrInvalidQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.item.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCartUpsertAndRemove(t *testing.T) {
	c := New("k")
	c.Upsert(Item{ID: "a", Quantity: 1, Years: 1})
	c.Upsert(Item{ID: "b", Quantity: 1, Years: 1})
	c.Upsert(Item{ID: "a", Quantity: 3, Years: 2})

	if len(c.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(c.Items))
	}
	got, _ := c.Find("a")
	if got.Quantity != 3 || got.Years != 2 {
		t.Errorf("upsert did not replace: %+v", got)
	}
	if !c.Remove("a") || c.Remove("a") {
		t.Error("Remove() should succeed once")
	}
}

func TestCartMergeKeepsUserLines(t *testing.T) {
	user := New("user")
	user.Upsert(Item{ID: "hosting:business", Quantity: 1, Years: 2})

	guest := New("guest")
	guest.Upsert(Item{ID: "hosting:business", Quantity: 1, Years: 5})
	guest.Upsert(Item{ID: "domain:loja.ao", Type: TypeDomain, Quantity: 1, Years: 1})

	user.Merge(guest)

	if len(user.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(user.Items))
	}
	got, _ := user.Find("hosting:business")
	if got.Years != 2 {
		t.Errorf("user line overwritten: %+v", got)
	}
	if !user.HasDomainRegistration() {
		t.Error("expected domain registration")
	}
}

func TestItemID(t *testing.T) {
	if got := ItemID(TypeDomain, "", "Loja.AO"); got != "domain:loja.ao" {
		t.Errorf("ItemID() = %q", got)
	}
	if got := ItemID(TypeHosting, "business", ""); got != "hosting:business" {
		t.Errorf("ItemID() = %q", got)
	}
}
