package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PaesslerAG/jsonpath"

	domain "github.com/angohost/portal/internal/app/domain/billing"
	"github.com/angohost/portal/internal/app/metrics"
)

var (
	ErrWebhookDisabled  = errors.New("payment method does not accept webhooks")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
)

// Webhook outcomes.
const (
	WebhookPaid      = "paid"
	WebhookIgnored   = "ignored"
	WebhookDuplicate = "duplicate"
)

// WebhookResult reports what a provider notification did.
type WebhookResult struct {
	Result    string `json:"result"`
	InvoiceID string `json:"invoice_id,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// HandleWebhook processes a provider payment notification for the method
// with the given code. The body must be signed with the method's secret
// (hex HMAC-SHA256, optionally prefixed "sha256="). The invoice number is
// read from ReferencePath; when StatusPath is set the notification only pays
// the invoice if the status equals PaidValue. Repeated notifications for a
// paid invoice are reported as duplicates.
func (s *Service) HandleWebhook(ctx context.Context, code string, body []byte, signature string) (res WebhookResult, err error) {
	code = domain.NormalizeCode(code)
	defer func() {
		outcome := res.Result
		if err != nil {
			outcome = "error"
		}
		metrics.RecordWebhook(code, outcome)
	}()

	m, err := s.store.GetPaymentMethodByCode(ctx, code)
	if err != nil {
		return WebhookResult{}, err
	}
	if !m.Active || !m.AcceptsWebhooks() {
		return WebhookResult{}, fmt.Errorf("%s: %w", code, ErrWebhookDisabled)
	}
	if !validSignature(m.WebhookSecret, body, signature) {
		s.log.WithField("method", code).Warn("webhook signature mismatch")
		return WebhookResult{}, ErrInvalidSignature
	}

	var payload interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookResult{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	reference, err := lookupString(m.ReferencePath, payload)
	if err != nil || reference == "" {
		return WebhookResult{}, fmt.Errorf("%w: reference at %s", ErrInvalidPayload, m.ReferencePath)
	}

	if m.StatusPath != "" {
		status, err := lookupString(m.StatusPath, payload)
		if err != nil {
			return WebhookResult{}, fmt.Errorf("%w: status at %s", ErrInvalidPayload, m.StatusPath)
		}
		want := m.PaidValue
		if want == "" {
			want = "paid"
		}
		if !strings.EqualFold(status, want) {
			s.log.WithField("method", code).WithField("reference", reference).
				WithField("status", status).Info("webhook ignored")
			return WebhookResult{Result: WebhookIgnored, Reference: reference}, nil
		}
	}

	inv, err := s.store.GetInvoiceByNumber(ctx, reference)
	if err != nil {
		return WebhookResult{}, err
	}
	paid, err := s.MarkPaid(ctx, inv.ID, code+":"+reference)
	if errors.Is(err, ErrAlreadyPaid) {
		return WebhookResult{Result: WebhookDuplicate, InvoiceID: inv.ID, Reference: reference}, nil
	}
	if err != nil {
		return WebhookResult{}, err
	}
	return WebhookResult{Result: WebhookPaid, InvoiceID: paid.ID, Reference: reference}, nil
}

// Sign returns the signature a provider sends for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validSignature(secret string, body []byte, signature string) bool {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	got, err := hex.DecodeString(signature)
	if err != nil || len(got) == 0 {
		return false
	}
	want, _ := hex.DecodeString(Sign(secret, body))
	return hmac.Equal(got, want)
}

func lookupString(path string, payload interface{}) (string, error) {
	v, err := jsonpath.Get(path, payload)
	if err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), nil
	case float64:
		return fmt.Sprintf("%.0f", t), nil
	case nil:
		return "", errors.New("empty value")
	default:
		return fmt.Sprint(t), nil
	}
}
