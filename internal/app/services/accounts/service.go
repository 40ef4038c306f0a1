// Package accounts manages portal profiles and registrant contact profiles.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/angohost/portal/internal/app/domain/account"
	"github.com/angohost/portal/internal/app/storage"
	"github.com/angohost/portal/pkg/logger"
)

// Store is the persistence the service needs.
type Store interface {
	storage.ProfileStore
	storage.ContactStore
}

// ErrInvalidRole reports a role outside client and admin.
var ErrInvalidRole = errors.New("unknown role")

// Identity is what the auth layer knows about a caller.
type Identity struct {
	ID       string
	Email    string
	FullName string
	Phone    string
}

// Service manages profiles and contacts.
type Service struct {
	store    Store
	admins   map[string]bool
	validate *validator.Validate
	log      *logger.Logger
}

// New constructs an accounts service. Profiles created for an email in
// adminEmails get the admin role.
func New(store Store, adminEmails []string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("accounts")
	}
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = true
	}
	return &Service{
		store:    store,
		admins:   admins,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}
}

// EnsureProfile returns the profile for id, creating it on first sight.
func (s *Service) EnsureProfile(ctx context.Context, id Identity) (account.Profile, error) {
	if strings.TrimSpace(id.ID) == "" {
		return account.Profile{}, errors.New("identity id is required")
	}
	p, err := s.store.GetProfile(ctx, id.ID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return account.Profile{}, err
	}

	email := strings.ToLower(strings.TrimSpace(id.Email))
	role := account.RoleClient
	if s.admins[email] {
		role = account.RoleAdmin
	}
	p, err = s.store.CreateProfile(ctx, account.Profile{
		ID:       id.ID,
		Email:    email,
		FullName: strings.TrimSpace(id.FullName),
		Phone:    strings.TrimSpace(id.Phone),
		Role:     role,
	})
	if errors.Is(err, storage.ErrConflict) {
		// Concurrent first request for the same user.
		return s.store.GetProfile(ctx, id.ID)
	}
	if err != nil {
		return account.Profile{}, err
	}
	s.log.WithField("user_id", p.ID).WithField("role", p.Role).Info("profile created")
	return p, nil
}

// GetProfile returns a profile.
func (s *Service) GetProfile(ctx context.Context, id string) (account.Profile, error) {
	return s.store.GetProfile(ctx, id)
}

// UpdateProfile changes the editable profile fields.
func (s *Service) UpdateProfile(ctx context.Context, id, fullName, phone string) (account.Profile, error) {
	p, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return account.Profile{}, err
	}
	p.FullName = strings.TrimSpace(fullName)
	p.Phone = strings.TrimSpace(phone)
	return s.store.UpdateProfile(ctx, p)
}

// ListProfiles lists every profile.
func (s *Service) ListProfiles(ctx context.Context) ([]account.Profile, error) {
	return s.store.ListProfiles(ctx)
}

// SetRole changes a profile's role.
func (s *Service) SetRole(ctx context.Context, id string, role account.Role) (account.Profile, error) {
	if !role.Valid() {
		return account.Profile{}, fmt.Errorf("%w %q", ErrInvalidRole, role)
	}
	p, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return account.Profile{}, err
	}
	p.Role = role
	updated, err := s.store.UpdateProfile(ctx, p)
	if err != nil {
		return account.Profile{}, err
	}
	s.log.WithField("user_id", id).WithField("role", role).Info("profile role changed")
	return updated, nil
}
