// Package supabase talks to the Supabase auth and edge function endpoints.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/angohost/portal/internal/config"
	"github.com/angohost/portal/internal/httputil"
)

var (
	// ErrNotConfigured is returned when no project URL is set.
	ErrNotConfigured = errors.New("supabase is not configured")
	// ErrInvalidToken is returned when the auth endpoint rejects a token.
	ErrInvalidToken = errors.New("supabase rejected the access token")
)

// User is the subset of an auth user the portal needs.
type User struct {
	ID       string
	Email    string
	FullName string
	Phone    string
}

// Client is a Supabase REST client.
type Client struct {
	http       *httputil.Client
	anonKey    string
	serviceKey string
}

// New builds a client for the configured project.
func New(cfg config.SupabaseConfig, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, ErrNotConfigured
	}
	return &Client{
		http: httputil.NewClient(httputil.ClientConfig{
			BaseURL: cfg.URL,
			Timeout: timeout,
			Headers: map[string]string{"apikey": cfg.AnonKey},
		}),
		anonKey:    cfg.AnonKey,
		serviceKey: cfg.ServiceKey,
	}, nil
}

// GetUser resolves an access token through /auth/v1/user.
func (c *Client) GetUser(ctx context.Context, accessToken string) (User, error) {
	resp, err := c.http.Do(ctx, http.MethodGet, "/auth/v1/user", nil, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
	if err != nil {
		return User{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return User{}, ErrInvalidToken
	}
	body, err := httputil.ReadAllStrict(resp.Body, 1<<20)
	if err != nil {
		return User{}, fmt.Errorf("read auth user: %w", err)
	}
	if resp.StatusCode >= 400 {
		return User{}, &httputil.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if !gjson.ValidBytes(body) {
		return User{}, errors.New("auth user: invalid json")
	}

	doc := gjson.ParseBytes(body)
	u := User{
		ID:       doc.Get("id").String(),
		Email:    doc.Get("email").String(),
		FullName: doc.Get("user_metadata.full_name").String(),
		Phone:    doc.Get("phone").String(),
	}
	if u.FullName == "" {
		u.FullName = doc.Get("user_metadata.name").String()
	}
	if u.ID == "" {
		return User{}, ErrInvalidToken
	}
	return u, nil
}

// InvokeFunction calls the edge function name with payload as its JSON body.
func (c *Client) InvokeFunction(ctx context.Context, name string, payload interface{}) error {
	key := c.serviceKey
	if key == "" {
		key = c.anonKey
	}
	resp, err := c.http.Do(ctx, http.MethodPost, "/functions/v1/"+name, payload, map[string]string{
		"Authorization": "Bearer " + key,
	})
	if err != nil {
		return fmt.Errorf("invoke %s: %w", name, err)
	}
	if err := httputil.DecodeResponse(resp, nil); err != nil {
		return fmt.Errorf("invoke %s: %w", name, err)
	}
	return nil
}
