package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCanonicalPath(t *testing.T) {
	tests := map[string]string{
		"":  "/",
		"/": "/",
		"/api/orders/5f0c6a1e-6f43-4c0f-9d3e-2f3c4b5a6d7e/status": "/api/orders/:id/status",
		"/api/cart/items/hosting:business":                        "/api/cart/items/hosting:business",
		"/api/admin/invoices/42/pay":                              "/api/admin/invoices/:id/pay",
	}
	for in, want := range tests {
		if got := CanonicalPath(in); got != want {
			t.Errorf("CanonicalPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	RecordCheckout("success", 1_500_000, 20*time.Millisecond)
	RecordWebhook("mcx", "paid")
	RecordSweep(1, 2, 3)

	h := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/catalog", nil))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{
		"angohost_checkout_attempts_total",
		"angohost_payments_webhooks_total",
		"angohost_sweep_updates_total",
		`angohost_http_requests_total{method="GET",path="/api/catalog",status="418"}`,
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
