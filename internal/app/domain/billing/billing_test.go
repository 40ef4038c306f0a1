package billing

import "testing"

func TestOrderTransitions(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderPending, OrderPaid, true},
		{OrderPending, OrderCancelled, true},
		{OrderPending, OrderCompleted, false},
		{OrderPaid, OrderProcessing, true},
		{OrderPaid, OrderCompleted, true},
		{OrderPaid, OrderCancelled, false},
		{OrderProcessing, OrderCompleted, true},
		{OrderCompleted, OrderPending, false},
		{OrderCancelled, OrderPaid, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestNumbers(t *testing.T) {
	if got := FormatOrderNumber(2026, 42); got != "ORD-2026-000042" {
		t.Errorf("FormatOrderNumber() = %q", got)
	}
	if got := FormatInvoiceNumber(2026, 7); got != "FT 2026/000007" {
		t.Errorf("FormatInvoiceNumber() = %q", got)
	}
}

func TestOrderItemsScan(t *testing.T) {
	var items OrderItems
	if err := items.Scan([]byte(`[{"item_id":"a","quantity":2}]`)); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Errorf("unexpected items: %+v", items)
	}
	if err := items.Scan(nil); err != nil || len(items) != 0 {
		t.Errorf("Scan(nil) = %v, %+v", err, items)
	}
	if err := items.Scan(42); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func TestPaymentMethodPublic(t *testing.T) {
	m := PaymentMethod{Code: "mcx", ReferencePath: "$.ref", WebhookSecret: "s"}
	if !m.AcceptsWebhooks() {
		t.Error("expected webhooks accepted")
	}
	pub := m.Public()
	if pub.WebhookSecret != "" || pub.ReferencePath != "" {
		t.Errorf("Public() leaked webhook config: %+v", pub)
	}
}
