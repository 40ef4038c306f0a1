package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/angohost/portal/internal/app/realtime"
	"github.com/angohost/portal/internal/httputil"
	"github.com/angohost/portal/internal/middleware"
)

// SignatureHeader carries the provider's HMAC of the webhook body.
const SignatureHeader = "X-Signature"

const maxWebhookBody = 64 << 10

func (h *handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	body, err := httputil.ReadAllStrict(r.Body, maxWebhookBody)
	if err != nil {
		httputil.WriteErrorResponse(w, r, http.StatusRequestEntityTooLarge, "BAD_REQUEST", err.Error(), nil)
		return
	}

	res, err := h.app.Billing.HandleWebhook(r.Context(), code, body, r.Header.Get(SignatureHeader))
	if err != nil {
		se := mapError(err)
		fields := map[string]interface{}{"method": code, "status": se.HTTPStatus}
		if se.HTTPStatus == http.StatusUnauthorized {
			h.log.LogSecurityEvent(r.Context(), "webhook_signature_rejected", fields)
		} else {
			h.log.WithContext(r.Context()).WithError(err).WithFields(fields).Warn("payment webhook failed")
		}
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *handler) serveRealtime(w http.ResponseWriter, r *http.Request) {
	h.app.Hub.ServeWS(w, r, realtime.Subscriber{
		UserID: middleware.GetUserID(r.Context()),
		Admin:  middleware.IsAdmin(r.Context()),
	})
}
