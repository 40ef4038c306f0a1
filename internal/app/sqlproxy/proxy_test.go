package sqlproxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/angohost/portal/internal/config"
	"github.com/angohost/portal/pkg/logger"
)

func newProxy(t *testing.T, maxRows int) (*Proxy, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("proxy-secret"), bcrypt.MinCost)
	require.NoError(t, err)
	p, err := New(db, config.ProxyConfig{TokenHash: string(hash), Timeout: 2 * time.Second, MaxRows: maxRows}, logger.NewNop())
	require.NoError(t, err)
	return p, mock
}

func TestQueryReadOnlyWithTimeout(t *testing.T) {
	p, mock := newProxy(t, 2)

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL statement_timeout = 2000").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT number, total FROM orders WHERE status = \\$1").
		WithArgs("paid").
		WillReturnRows(sqlmock.NewRows([]string{"number", "total"}).
			AddRow([]byte("ORD-2026-000001"), int64(1800000)).
			AddRow([]byte("ORD-2026-000002"), int64(3600000)).
			AddRow([]byte("ORD-2026-000003"), int64(4800000)))
	mock.ExpectRollback()

	res, err := p.Query(context.Background(), Request{Query: "SELECT number, total FROM orders WHERE status = $1;", Args: []interface{}{"paid"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"number", "total"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.True(t, res.Truncated)
	assert.Equal(t, "ORD-2026-000001", res.Rows[0]["number"])
	assert.Equal(t, int64(1800000), res.Rows[0]["total"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRejectsBadInput(t *testing.T) {
	p, mock := newProxy(t, 10)

	_, err := p.Query(context.Background(), Request{Query: "  ;"})
	assert.ErrorIs(t, err, ErrEmptyQuery)
	_, err = p.Query(context.Background(), Request{Query: "SELECT 1; DROP TABLE orders"})
	assert.ErrorIs(t, err, ErrMultiStatement)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRouterRequiresToken(t *testing.T) {
	p, mock := newProxy(t, 10)
	h := p.Router()

	body := `{"query":"SELECT 1 AS one"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(TokenHeader, "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL statement_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 AS one").WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(int64(1)))
	mock.ExpectRollback()

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(TokenHeader, "proxy-secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Rows, 1)
	assert.Equal(t, float64(1), res.Rows[0]["one"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewDisabledWithoutHash(t *testing.T) {
	_, err := New(nil, config.ProxyConfig{}, nil)
	assert.ErrorIs(t, err, ErrDisabled)
}
