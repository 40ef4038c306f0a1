package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/angohost/portal/internal/app/domain/account"
	"github.com/angohost/portal/internal/app/domain/billing"
	"github.com/angohost/portal/internal/app/domain/provision"
	"github.com/angohost/portal/internal/httputil"
	"github.com/angohost/portal/internal/middleware"
)

func (h *handler) registerAdmin(api *mux.Router, proxy http.Handler) {
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin, h.audit.middleware)

	admin.HandleFunc("/stats", h.adminStats).Methods(http.MethodGet)
	admin.HandleFunc("/dashboard", h.adminDashboard).Methods(http.MethodGet)
	admin.HandleFunc("/audit", h.adminAudit).Methods(http.MethodGet)

	admin.HandleFunc("/orders", h.adminListOrders).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{id}/status", h.adminUpdateOrderStatus).Methods(http.MethodPut)

	admin.HandleFunc("/invoices", h.adminListInvoices).Methods(http.MethodGet)
	admin.HandleFunc("/invoices/{id}/pay", h.adminPayInvoice).Methods(http.MethodPost)
	admin.HandleFunc("/invoices/{id}/cancel", h.adminCancelInvoice).Methods(http.MethodPost)

	admin.HandleFunc("/payment-methods", h.adminListPaymentMethods).Methods(http.MethodGet)
	admin.HandleFunc("/payment-methods", h.adminCreatePaymentMethod).Methods(http.MethodPost)
	admin.HandleFunc("/payment-methods/{id}", h.adminUpdatePaymentMethod).Methods(http.MethodPut)
	admin.HandleFunc("/payment-methods/{id}", h.adminDeletePaymentMethod).Methods(http.MethodDelete)
	admin.HandleFunc("/payment-methods/{id}/toggle", h.adminTogglePaymentMethod).Methods(http.MethodPost)

	admin.HandleFunc("/domains", h.adminListDomains).Methods(http.MethodGet)
	admin.HandleFunc("/domains/{id}/status", h.adminUpdateDomainStatus).Methods(http.MethodPut)
	admin.HandleFunc("/services", h.adminListServices).Methods(http.MethodGet)
	admin.HandleFunc("/services/{id}/status", h.adminUpdateServiceStatus).Methods(http.MethodPut)

	admin.HandleFunc("/profiles", h.adminListProfiles).Methods(http.MethodGet)
	admin.HandleFunc("/profiles/{id}/role", h.adminSetRole).Methods(http.MethodPut)

	admin.HandleFunc("/sweep", h.adminSweep).Methods(http.MethodPost)

	if proxy != nil {
		admin.PathPrefix("/sql").Handler(http.StripPrefix("/api/admin/sql", proxy))
	}
}

func (h *handler) adminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.Admin.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *handler) adminDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.app.Admin.Dashboard(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (h *handler) adminAudit(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.audit.listLimit(queryInt(r, "limit", 0)))
}

func (h *handler) adminListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orders, err := h.app.Billing.ListAllOrders(r.Context(), billing.OrderFilter{
		Status: billing.OrderStatus(q.Get("status")),
		UserID: q.Get("user_id"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, orders)
}

func (h *handler) adminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status billing.OrderStatus `json:"status"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	o, err := h.app.Billing.UpdateOrderStatus(r.Context(), mux.Vars(r)["id"], payload.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func (h *handler) adminListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.app.Billing.ListAllInvoices(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, invoices)
}

func (h *handler) adminPayInvoice(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Reference string `json:"reference"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	reference := payload.Reference
	if reference == "" {
		reference = "manual:" + middleware.GetUserID(r.Context())
	}
	inv, err := h.app.Billing.MarkPaid(r.Context(), mux.Vars(r)["id"], reference)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, inv)
}

func (h *handler) adminCancelInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.app.Billing.CancelInvoice(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, inv)
}

func (h *handler) adminListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.app.Billing.ListAllPaymentMethods(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, methods)
}

func (h *handler) adminCreatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	var m billing.PaymentMethod
	if !httputil.DecodeJSON(w, r, &m) {
		return
	}
	created, err := h.app.Billing.CreatePaymentMethod(r.Context(), m)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *handler) adminUpdatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	var m billing.PaymentMethod
	if !httputil.DecodeJSON(w, r, &m) {
		return
	}
	m.ID = mux.Vars(r)["id"]
	updated, err := h.app.Billing.UpdatePaymentMethod(r.Context(), m)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *handler) adminDeletePaymentMethod(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Billing.DeletePaymentMethod(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) adminTogglePaymentMethod(w http.ResponseWriter, r *http.Request) {
	m, err := h.app.Billing.TogglePaymentMethod(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *handler) adminListDomains(w http.ResponseWriter, r *http.Request) {
	domains, err := h.app.Provisioning.ListDomains(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, domains)
}

func (h *handler) adminListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.app.Provisioning.ListServices(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, services)
}

type statusPayload struct {
	Status provision.Status `json:"status"`
}

func (h *handler) adminUpdateDomainStatus(w http.ResponseWriter, r *http.Request) {
	var payload statusPayload
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	d, err := h.app.Provisioning.UpdateDomainStatus(r.Context(), mux.Vars(r)["id"], payload.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (h *handler) adminUpdateServiceStatus(w http.ResponseWriter, r *http.Request) {
	var payload statusPayload
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	s, err := h.app.Provisioning.UpdateServiceStatus(r.Context(), mux.Vars(r)["id"], payload.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s)
}

func (h *handler) adminListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.app.Accounts.ListProfiles(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profiles)
}

func (h *handler) adminSetRole(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Role account.Role `json:"role"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	p, err := h.app.Accounts.SetRole(r.Context(), mux.Vars(r)["id"], payload.Role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// adminSweep runs the expiry sweep immediately instead of waiting for cron.
func (h *handler) adminSweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.Provisioning.Sweep(r.Context(), time.Now().UTC())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
