// Package middleware provides the portal's HTTP middleware.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angohost/portal/internal/app/domain/account"
	"github.com/angohost/portal/internal/app/services/accounts"
	apperrors "github.com/angohost/portal/internal/errors"
	"github.com/angohost/portal/internal/httputil"
	"github.com/angohost/portal/internal/supabase"
	"github.com/angohost/portal/pkg/logger"
)

// Claims are the Supabase access token claims the portal reads. The user id
// is the registered subject.
type Claims struct {
	Email        string                 `json:"email,omitempty"`
	Phone        string                 `json:"phone,omitempty"`
	Role         string                 `json:"role,omitempty"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// UserLookup resolves tokens remotely when no JWT secret is configured.
type UserLookup interface {
	GetUser(ctx context.Context, accessToken string) (supabase.User, error)
}

// ProfileEnsurer creates the portal profile on first sight of a user.
type ProfileEnsurer interface {
	EnsureProfile(ctx context.Context, id accounts.Identity) (account.Profile, error)
}

// AuthMiddleware authenticates Supabase access tokens.
type AuthMiddleware struct {
	secret   []byte
	lookup   UserLookup
	profiles ProfileEnsurer
	logger   *logger.Logger
}

// NewAuthMiddleware verifies HS256 tokens with jwtSecret. With an empty
// secret tokens are checked against the Supabase auth endpoint via lookup.
func NewAuthMiddleware(jwtSecret string, lookup UserLookup, profiles ProfileEnsurer, log *logger.Logger) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &AuthMiddleware{secret: []byte(jwtSecret), lookup: lookup, profiles: profiles, logger: log}
}

// Handler attaches the caller's identity when a token is present. Requests
// without a token continue as guests; invalid tokens are rejected.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			m.respondError(w, r, err)
			return
		}
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := m.identify(r.Context(), token)
		if err != nil {
			m.respondError(w, r, err)
			return
		}
		profile, err := m.profiles.EnsureProfile(r.Context(), id)
		if err != nil {
			m.respondError(w, r, apperrors.Internal("failed to load profile", err))
			return
		}

		ctx := logger.WithUserID(r.Context(), profile.ID)
		ctx = logger.WithRole(ctx, string(profile.Role))
		m.logger.WithContext(ctx).Debug("authenticated")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", apperrors.Unauthorized("Invalid Authorization header format")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	// Browsers cannot set headers on websocket upgrades.
	return r.URL.Query().Get("access_token"), nil
}

func (m *AuthMiddleware) identify(ctx context.Context, token string) (accounts.Identity, error) {
	if len(m.secret) == 0 {
		if m.lookup == nil {
			return accounts.Identity{}, apperrors.Unavailable("authentication is not configured")
		}
		u, err := m.lookup.GetUser(ctx, token)
		if errors.Is(err, supabase.ErrInvalidToken) {
			return accounts.Identity{}, apperrors.InvalidToken(err)
		}
		if err != nil {
			return accounts.Identity{}, apperrors.Unavailable("authentication provider unavailable")
		}
		return accounts.Identity{ID: u.ID, Email: u.Email, FullName: u.FullName, Phone: u.Phone}, nil
	}

	claims, err := m.validateToken(token)
	if err != nil {
		return accounts.Identity{}, err
	}
	id := accounts.Identity{ID: claims.Subject, Email: claims.Email, Phone: claims.Phone}
	if name, ok := claims.UserMetadata["full_name"].(string); ok {
		id.FullName = name
	}
	return id, nil
}

func (m *AuthMiddleware) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, apperrors.InvalidToken(err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperrors.InvalidToken(nil).WithDetails("reason", "invalid claims")
	}
	if claims.Subject == "" {
		return nil, apperrors.InvalidToken(nil).WithDetails("reason", "missing subject")
	}
	return claims, nil
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := apperrors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = apperrors.Internal("Authentication failed", err)
	}
	httputil.WriteErrorResponse(w, r, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)

	m.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": serviceErr.HTTPStatus,
	}).Warn("Authentication failed")
}

// GetUserID extracts the authenticated user id from ctx.
func GetUserID(ctx context.Context) string {
	return logger.GetUserID(ctx)
}

// IsAdmin reports whether the authenticated caller has the admin role.
func IsAdmin(ctx context.Context) bool {
	return logger.GetRole(ctx) == string(account.RoleAdmin)
}

// RequireAuth rejects guests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == "" {
			httputil.Unauthorized(w, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects callers without the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r.Context()) {
			httputil.Forbidden(w, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}
