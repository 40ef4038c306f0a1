package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/angohost/portal/internal/app/domain/account"
	"github.com/angohost/portal/internal/httputil"
	"github.com/angohost/portal/internal/middleware"
)

func (h *handler) registerAccount(api *mux.Router) {
	me := api.PathPrefix("/me").Subrouter()
	me.Use(middleware.RequireAuth)

	me.HandleFunc("/profile", h.getProfile).Methods(http.MethodGet)
	me.HandleFunc("/profile", h.updateProfile).Methods(http.MethodPut)

	me.HandleFunc("/contacts", h.listContacts).Methods(http.MethodGet)
	me.HandleFunc("/contacts", h.createContact).Methods(http.MethodPost)
	me.HandleFunc("/contacts/{id}", h.getContact).Methods(http.MethodGet)
	me.HandleFunc("/contacts/{id}", h.updateContact).Methods(http.MethodPut)
	me.HandleFunc("/contacts/{id}", h.deleteContact).Methods(http.MethodDelete)
	me.HandleFunc("/contacts/{id}/default", h.setDefaultContact).Methods(http.MethodPost)

	me.HandleFunc("/orders", h.listMyOrders).Methods(http.MethodGet)
	me.HandleFunc("/orders/{id}", h.getMyOrder).Methods(http.MethodGet)
	me.HandleFunc("/invoices", h.listMyInvoices).Methods(http.MethodGet)
	me.HandleFunc("/invoices/{id}", h.getMyInvoice).Methods(http.MethodGet)

	me.HandleFunc("/domains", h.listMyDomains).Methods(http.MethodGet)
	me.HandleFunc("/domains/{id}/auto-renew", h.setAutoRenew).Methods(http.MethodPut)
	me.HandleFunc("/services", h.listMyServices).Methods(http.MethodGet)
}

func (h *handler) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Accounts.GetProfile(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FullName string `json:"full_name"`
		Phone    string `json:"phone"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	p, err := h.app.Accounts.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), payload.FullName, payload.Phone)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) listContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.app.Accounts.ListContacts(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, contacts)
}

func (h *handler) getContact(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Accounts.GetContact(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *handler) createContact(w http.ResponseWriter, r *http.Request) {
	var c account.ContactProfile
	if !httputil.DecodeJSON(w, r, &c) {
		return
	}
	created, err := h.app.Accounts.CreateContact(r.Context(), middleware.GetUserID(r.Context()), c)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *handler) updateContact(w http.ResponseWriter, r *http.Request) {
	var c account.ContactProfile
	if !httputil.DecodeJSON(w, r, &c) {
		return
	}
	c.ID = mux.Vars(r)["id"]
	updated, err := h.app.Accounts.UpdateContact(r.Context(), middleware.GetUserID(r.Context()), c)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteContact(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Accounts.DeleteContact(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) setDefaultContact(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Accounts.SetDefaultContact(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.app.Billing.ListOrders(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, orders)
}

func (h *handler) getMyOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.app.Billing.GetOrder(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func (h *handler) listMyInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.app.Billing.ListInvoices(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, invoices)
}

func (h *handler) getMyInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.app.Billing.GetInvoice(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, inv)
}

func (h *handler) listMyDomains(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	domains, err := h.app.Provisioning.ListDomains(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, domains)
}

func (h *handler) setAutoRenew(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Enabled bool `json:"enabled"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	d, err := h.app.Provisioning.SetAutoRenew(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"], payload.Enabled)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (h *handler) listMyServices(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	services, err := h.app.Provisioning.ListServices(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, services)
}
