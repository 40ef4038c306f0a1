// Package sqlproxy executes ad-hoc read-only SQL for admins. It replaces the
// browser-facing query proxy with a token-guarded endpoint that can only run
// single statements inside READ ONLY transactions.
package sqlproxy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/angohost/portal/internal/config"
	"github.com/angohost/portal/internal/httputil"
	"github.com/angohost/portal/pkg/logger"
)

// TokenHeader carries the proxy token.
const TokenHeader = "X-Proxy-Token"

var (
	ErrDisabled       = errors.New("sql proxy is disabled")
	ErrEmptyQuery     = errors.New("query is required")
	ErrMultiStatement = errors.New("only a single statement is allowed")
)

// Request is a query submission.
type Request struct {
	Query string        `json:"query"`
	Args  []interface{} `json:"args,omitempty"`
}

// Result holds the returned rows as column-keyed objects.
type Result struct {
	Columns   []string                 `json:"columns"`
	Rows      []map[string]interface{} `json:"rows"`
	Truncated bool                     `json:"truncated,omitempty"`
	Duration  string                   `json:"duration"`
}

// Proxy runs read-only queries.
type Proxy struct {
	db        *sqlx.DB
	tokenHash []byte
	timeout   time.Duration
	maxRows   int
	log       *logger.Logger
}

// New builds a proxy over db. An empty token hash returns ErrDisabled.
func New(db *sql.DB, cfg config.ProxyConfig, log *logger.Logger) (*Proxy, error) {
	if strings.TrimSpace(cfg.TokenHash) == "" {
		return nil, ErrDisabled
	}
	if db == nil {
		return nil, errors.New("sql proxy requires a database")
	}
	if _, err := bcrypt.Cost([]byte(cfg.TokenHash)); err != nil {
		return nil, fmt.Errorf("sql proxy token hash: %w", err)
	}
	if log == nil {
		log = logger.NewDefault("sqlproxy")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 500
	}
	return &Proxy{
		db:        sqlx.NewDb(db, "postgres"),
		tokenHash: []byte(cfg.TokenHash),
		timeout:   cfg.Timeout,
		maxRows:   cfg.MaxRows,
		log:       log,
	}, nil
}

// HashToken returns the bcrypt hash to configure for token.
func HashToken(token string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Router returns the proxy's routes. Callers mount it behind admin auth.
func (p *Proxy) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(p.requireToken)
	r.Post("/", p.handleQuery)
	return r
}

func (p *Proxy) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(TokenHeader)
		if token == "" || bcrypt.CompareHashAndPassword(p.tokenHash, []byte(token)) != nil {
			p.log.LogSecurityEvent(r.Context(), "sql_proxy_token_rejected", map[string]interface{}{
				"remote_addr": r.RemoteAddr,
			})
			httputil.Unauthorized(w, "invalid proxy token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p *Proxy) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req Request
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	res, err := p.Query(r.Context(), req)
	switch {
	case errors.Is(err, ErrEmptyQuery), errors.Is(err, ErrMultiStatement):
		httputil.BadRequest(w, err.Error())
	case err != nil:
		p.log.WithContext(r.Context()).WithError(err).Warn("sql proxy query failed")
		httputil.WriteErrorResponse(w, r, http.StatusUnprocessableEntity, "QUERY_FAILED", err.Error(), nil)
	default:
		httputil.WriteJSON(w, http.StatusOK, res)
	}
}

// Query runs req in a READ ONLY transaction with a statement timeout. At
// most maxRows rows are returned; Truncated reports whether more existed.
func (p *Proxy) Query(ctx context.Context, req Request) (Result, error) {
	query := strings.TrimSpace(req.Query)
	query = strings.TrimRight(query, "; \n\t")
	if query == "" {
		return Result{}, ErrEmptyQuery
	}
	if strings.Contains(query, ";") {
		return Result{}, ErrMultiStatement
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout+time.Second)
	defer cancel()

	started := time.Now()
	tx, err := p.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return Result{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", p.timeout.Milliseconds())); err != nil {
		return Result{}, fmt.Errorf("statement timeout: %w", err)
	}

	rows, err := tx.QueryxContext(ctx, query, req.Args...)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Result{}, err
	}
	res := Result{Columns: cols, Rows: make([]map[string]interface{}, 0)}
	for rows.Next() {
		if len(res.Rows) == p.maxRows {
			res.Truncated = true
			break
		}
		row := make(map[string]interface{}, len(cols))
		if err := rows.MapScan(row); err != nil {
			return Result{}, err
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return Result{}, err
	}
	res.Duration = time.Since(started).String()

	p.log.WithContext(ctx).
		WithField("rows", len(res.Rows)).
		WithField("truncated", res.Truncated).
		Info("sql proxy query")
	return res, nil
}
