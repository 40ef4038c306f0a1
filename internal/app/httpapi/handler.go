// Package httpapi exposes the portal over HTTP.
package httpapi

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	app "github.com/angohost/portal/internal/app"
	"github.com/angohost/portal/internal/app/metrics"
	"github.com/angohost/portal/internal/httputil"
	"github.com/angohost/portal/internal/middleware"
	"github.com/angohost/portal/pkg/logger"
)

// Options configure the HTTP surface. Nil middlewares are skipped, except
// Auth which defaults to an authenticator that accepts guests only.
type Options struct {
	Auth           *middleware.AuthMiddleware
	RateLimiter    *middleware.RateLimiter
	AllowedOrigins []string

	// Proxy is mounted at /api/admin/sql when set.
	Proxy http.Handler

	// AuditWriter receives admin writes as JSON lines.
	AuditWriter io.Writer
	AuditSize   int

	Log *logger.Logger
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	audit *auditLog
	log   *logger.Logger
}

// NewHandler returns the portal router wrapped in the request middlewares.
func NewHandler(application *app.Application, opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	var sink auditSink
	if opts.AuditWriter != nil {
		sink = &writerAuditSink{w: opts.AuditWriter}
	}
	h := &handler{app: application, audit: newAuditLog(opts.AuditSize, sink), log: log}

	auth := opts.Auth
	if auth == nil {
		auth = middleware.NewAuthMiddleware("", nil, application.Accounts, log)
	}

	r := mux.NewRouter()
	r.Use(auth.Handler)
	if opts.RateLimiter != nil {
		r.Use(opts.RateLimiter.Handler)
	}

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	h.registerStorefront(api)
	h.registerAccount(api)
	h.registerAdmin(api, opts.Proxy)
	api.HandleFunc("/webhooks/payments/{code}", h.paymentWebhook).Methods(http.MethodPost)
	api.Handle("/realtime", middleware.RequireAuth(http.HandlerFunc(h.serveRealtime))).Methods(http.MethodGet)

	var chain http.Handler = r
	chain = middleware.NewCORSMiddleware(opts.AllowedOrigins).Handler(chain)
	chain = metrics.InstrumentHandler(chain)
	chain = middleware.NewTracingMiddleware(log).Handler(chain)
	return chain
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"time":      time.Now().UTC(),
		"realtime":  h.app.Hub.Clients(),
		"scheduled": h.app.Scheduler != nil,
	})
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
