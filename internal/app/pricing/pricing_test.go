package pricing

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/angohost/portal/internal/app/domain/cart"
)

func TestNormalizeType(t *testing.T) {
	tests := map[string]cart.ItemType{
		"domain":              cart.TypeDomain,
		"Domain_Registration": cart.TypeDomain,
		"domain-transfer":     cart.TypeDomain,
		"wordpress":           cart.TypeHosting,
		"VPS":                 cart.TypeHosting,
		"exchange":            cart.TypeEmail,
		"professional_email":  cart.TypeEmail,
	}
	for raw, want := range tests {
		got, err := NormalizeType(raw)
		if err != nil {
			t.Fatalf("NormalizeType(%q) error = %v", raw, err)
		}
		if got != want {
			t.Errorf("NormalizeType(%q) = %q, want %q", raw, got, want)
		}
	}
	if _, err := NormalizeType("ssl"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestYearDiscount(t *testing.T) {
	r := DefaultRules()
	tests := []struct {
		name  string
		typ   cart.ItemType
		years int
		want  float64
	}{
		{"hosting one year", cart.TypeHosting, 1, 0},
		{"hosting two years", cart.TypeHosting, 2, 0.05},
		{"hosting three years", cart.TypeHosting, 3, 0.0975},
		{"email one year", cart.TypeEmail, 1, 0},
		{"email five years", cart.TypeEmail, 5, 0.10},
		{"domain ten years", cart.TypeDomain, 10, 0},
		{"zero years", cart.TypeHosting, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.YearDiscount(tt.typ, tt.years)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("YearDiscount() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSubtotalDiscount(t *testing.T) {
	r := DefaultRules()
	tests := []struct {
		subtotal   int64
		wantRate   float64
		wantAmount int64
	}{
		{4_999_999, 0, 0},
		{5_000_000, 0.05, 250_000},
		{9_999_999, 0.05, 500_000},
		{10_000_000, 0.10, 1_000_000},
		{12_345_675, 0.10, 1_234_568},
	}
	for _, tt := range tests {
		rate, amount := r.SubtotalDiscount(tt.subtotal)
		if rate != tt.wantRate || amount != tt.wantAmount {
			t.Errorf("SubtotalDiscount(%d) = (%v, %d), want (%v, %d)", tt.subtotal, rate, amount, tt.wantRate, tt.wantAmount)
		}
	}
}

func TestRound(t *testing.T) {
	if Round(2.5) != 3 || Round(-2.5) != -3 || Round(2.49) != 2 {
		t.Error("Round() should round half away from zero")
	}
}

func TestQuote(t *testing.T) {
	r := DefaultRules()
	items := []cart.Item{
		{ID: "hosting:business", Type: "cpanel", BasePrice: 3_600_000, Quantity: 1, Years: 3},
		{ID: "email:email-basic", Type: "email_seat", BasePrice: 360_000, Quantity: 5, Years: 2},
		{ID: "domain:loja.co.ao", Type: "domain_registration", Domain: "loja.co.ao", BasePrice: 1_500_000, Quantity: 1, Years: 2},
	}

	got, err := r.Quote(items)
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}

	want := Quote{
		Lines: []Line{
			{
				Item:         cart.Item{ID: "hosting:business", Type: cart.TypeHosting, BasePrice: 3_600_000, Price: 3_249_000, Quantity: 1, Years: 3},
				DiscountRate: 0.0975,
				UnitPrice:    3_249_000,
				Total:        9_747_000,
			},
			{
				Item:         cart.Item{ID: "email:email-basic", Type: cart.TypeEmail, BasePrice: 360_000, Price: 324_000, Quantity: 5, Years: 2},
				DiscountRate: 0.10,
				UnitPrice:    324_000,
				Total:        3_240_000,
			},
			{
				Item:      cart.Item{ID: "domain:loja.co.ao", Type: cart.TypeDomain, Domain: "loja.co.ao", BasePrice: 1_500_000, Price: 1_500_000, Quantity: 1, Years: 2},
				UnitPrice: 1_500_000,
				Total:     3_000_000,
			},
		},
		Subtotal:     15_987_000,
		DiscountRate: 0.10,
		Discount:     1_598_700,
		Total:        14_388_300,
	}

	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Quote() mismatch (-want +got):\n%s", diff)
	}
}

func TestQuoteRejectsInvalidItems(t *testing.T) {
	r := DefaultRules()
	cases := [][]cart.Item{
		{{ID: "x", Type: "ssl", BasePrice: 1, Quantity: 1, Years: 1}},
		{{ID: "x", Type: "hosting", BasePrice: 1, Quantity: 0, Years: 1}},
		{{ID: "x", Type: "domain", BasePrice: 1, Quantity: 2, Years: 1}},
		{{ID: "x", Type: "hosting", BasePrice: -1, Quantity: 1, Years: 1}},
	}
	for i, items := range cases {
		if _, err := r.Quote(items); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestQuoteEmpty(t *testing.T) {
	q, err := DefaultRules().Quote(nil)
	if err != nil {
		t.Fatalf("Quote(nil) error = %v", err)
	}
	if q.Total != 0 || len(q.Lines) != 0 {
		t.Errorf("unexpected quote: %+v", q)
	}
}
