package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angohost/portal/internal/config"
)

func TestGetUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":"7d3c","email":"ana@example.ao","phone":"+244923000000","user_metadata":{"full_name":"Ana Silva"}}`))
	}))
	defer srv.Close()

	c, err := New(config.SupabaseConfig{URL: srv.URL, AnonKey: "anon"}, time.Second)
	require.NoError(t, err)

	u, err := c.GetUser(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, User{ID: "7d3c", Email: "ana@example.ao", FullName: "Ana Silva", Phone: "+244923000000"}, u)

	_, err = c.GetUser(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestInvokeFunctionRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/functions/v1/send-order-confirmation", r.URL.Path)
		assert.Equal(t, "Bearer service", r.Header.Get("Authorization"))
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ORD-2026-000001", body["order"])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(config.SupabaseConfig{URL: srv.URL, AnonKey: "anon", ServiceKey: "service"}, time.Second)
	require.NoError(t, err)
	require.NoError(t, c.InvokeFunction(context.Background(), "send-order-confirmation", map[string]string{"order": "ORD-2026-000001"}))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(config.SupabaseConfig{}, time.Second)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
