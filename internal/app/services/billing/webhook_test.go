package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/angohost/portal/internal/app/domain/billing"
)

const secret = "whsec-test"

func webhookMethod(t *testing.T, svc *Service) domain.PaymentMethod {
	t.Helper()
	m, err := svc.CreatePaymentMethod(context.Background(), domain.PaymentMethod{
		Code:          "multicaixa-express",
		Name:          "Multicaixa Express",
		Active:        true,
		ReferencePath: "$.data.merchant_reference",
		StatusPath:    "$.data.status",
		PaidValue:     "ACCEPTED",
		WebhookSecret: secret,
	})
	require.NoError(t, err)
	return m
}

func TestHandleWebhookPaysInvoice(t *testing.T) {
	svc, store, _ := newService()
	ctx := context.Background()
	webhookMethod(t, svc)
	p := placeOrder(t, store, "u1", "000001")

	body := []byte(`{"data":{"merchant_reference":"FT 2026/000001","status":"accepted","amount":25000}}`)
	res, err := svc.HandleWebhook(ctx, "Multicaixa-Express", body, "sha256="+Sign(secret, body))
	require.NoError(t, err)
	assert.Equal(t, WebhookPaid, res.Result)
	assert.Equal(t, p.invoice.ID, res.InvoiceID)

	inv, err := store.GetInvoice(ctx, p.invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, inv.Status)
	assert.Equal(t, "multicaixa-express:FT 2026/000001", inv.PaymentReference)

	res, err = svc.HandleWebhook(ctx, "multicaixa-express", body, Sign(secret, body))
	require.NoError(t, err)
	assert.Equal(t, WebhookDuplicate, res.Result)
}

func TestHandleWebhookRejections(t *testing.T) {
	svc, store, _ := newService()
	ctx := context.Background()
	webhookMethod(t, svc)
	placeOrder(t, store, "u1", "000001")

	pending := []byte(`{"data":{"merchant_reference":"FT 2026/000001","status":"PENDING"}}`)
	res, err := svc.HandleWebhook(ctx, "multicaixa-express", pending, Sign(secret, pending))
	require.NoError(t, err)
	assert.Equal(t, WebhookIgnored, res.Result)

	_, err = svc.HandleWebhook(ctx, "multicaixa-express", pending, Sign("wrong", pending))
	assert.ErrorIs(t, err, ErrInvalidSignature)
	_, err = svc.HandleWebhook(ctx, "multicaixa-express", pending, "not-hex")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	garbage := []byte(`{"data":`)
	_, err = svc.HandleWebhook(ctx, "multicaixa-express", garbage, Sign(secret, garbage))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	missing := []byte(`{"data":{"status":"ACCEPTED"}}`)
	_, err = svc.HandleWebhook(ctx, "multicaixa-express", missing, Sign(secret, missing))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = svc.CreatePaymentMethod(ctx, domain.PaymentMethod{Code: "transferencia", Name: "Transferência", Active: true})
	require.NoError(t, err)
	_, err = svc.HandleWebhook(ctx, "transferencia", pending, Sign(secret, pending))
	assert.ErrorIs(t, err, ErrWebhookDisabled)
}
