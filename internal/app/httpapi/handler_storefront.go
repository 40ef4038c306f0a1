package httpapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/angohost/portal/internal/app/domain/cart"
	catalogsvc "github.com/angohost/portal/internal/app/services/catalog"
	checkoutsvc "github.com/angohost/portal/internal/app/services/checkout"
	"github.com/angohost/portal/internal/httputil"
	"github.com/angohost/portal/internal/middleware"
)

// CartSessionHeader carries the anonymous cart id of guests.
const CartSessionHeader = "X-Cart-Session"

const guestKeyPrefix = "guest:"

func (h *handler) registerStorefront(api *mux.Router) {
	api.HandleFunc("/catalog", h.getCatalog).Methods(http.MethodGet)
	api.HandleFunc("/domains/check", h.checkDomain).Methods(http.MethodGet)
	api.HandleFunc("/domains/search", h.searchDomains).Methods(http.MethodGet)
	api.HandleFunc("/payment-methods", h.listPaymentMethods).Methods(http.MethodGet)

	api.HandleFunc("/cart", h.getCart).Methods(http.MethodGet)
	api.HandleFunc("/cart", h.clearCart).Methods(http.MethodDelete)
	api.HandleFunc("/cart/items", h.addCartItem).Methods(http.MethodPost)
	api.HandleFunc("/cart/items/{id}", h.updateCartItem).Methods(http.MethodPut, http.MethodPatch)
	api.HandleFunc("/cart/items/{id}", h.removeCartItem).Methods(http.MethodDelete)
	api.Handle("/cart/merge", middleware.RequireAuth(http.HandlerFunc(h.mergeCart))).Methods(http.MethodPost)

	api.Handle("/checkout", middleware.RequireAuth(http.HandlerFunc(h.checkout))).Methods(http.MethodPost)
}

// guestKey returns the cart key named by the session header, or "".
func guestKey(r *http.Request) (string, error) {
	session := strings.TrimSpace(r.Header.Get(CartSessionHeader))
	if session == "" {
		return "", nil
	}
	id, err := uuid.Parse(session)
	if err != nil {
		return "", cart.ErrInvalidKey
	}
	return guestKeyPrefix + id.String(), nil
}

// cartKey resolves the caller's cart: the user id once signed in, the guest
// session otherwise.
func cartKey(r *http.Request) (string, error) {
	if id := middleware.GetUserID(r.Context()); id != "" {
		return id, nil
	}
	key, err := guestKey(r)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", cart.ErrInvalidKey
	}
	return key, nil
}

func (h *handler) getCatalog(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.app.Catalog.Catalog())
}

func (h *handler) checkDomain(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if strings.TrimSpace(name) == "" {
		httputil.BadRequest(w, "name is required")
		return
	}
	avail, err := h.app.Catalog.CheckAvailability(r.Context(), name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, avail)
}

func (h *handler) searchDomains(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		httputil.BadRequest(w, "q is required")
		return
	}
	results, err := h.app.Catalog.Search(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, results)
}

func (h *handler) listPaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.app.Billing.ListPaymentMethods(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, methods)
}

func (h *handler) getCart(w http.ResponseWriter, r *http.Request) {
	key, err := cartKey(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.app.Carts.Get(r.Context(), key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	key, err := cartKey(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req catalogsvc.ItemRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	view, err := h.app.Carts.Add(r.Context(), key, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	key, err := cartKey(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var payload struct {
		Quantity int `json:"quantity"`
		Years    int `json:"years"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	view, err := h.app.Carts.Update(r.Context(), key, mux.Vars(r)["id"], payload.Quantity, payload.Years)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	key, err := cartKey(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.app.Carts.Remove(r.Context(), key, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *handler) clearCart(w http.ResponseWriter, r *http.Request) {
	key, err := cartKey(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.app.Carts.Clear(r.Context(), key); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// mergeCart folds the guest cart named by the session header into the
// signed-in user's cart.
func (h *handler) mergeCart(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	guest, err := guestKey(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if guest == "" {
		httputil.BadRequest(w, CartSessionHeader+" header is required")
		return
	}
	view, err := h.app.Carts.Merge(r.Context(), guest, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *handler) checkout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	var req checkoutsvc.Request
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	req.UserID = userID
	req.CartKey = userID

	// A guest cart still attached to the request is folded in first so that
	// nothing added before sign-in is lost.
	guest, err := guestKey(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if guest != "" {
		if _, err := h.app.Carts.Merge(r.Context(), guest, userID); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	res, err := h.app.Checkout.Checkout(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}
