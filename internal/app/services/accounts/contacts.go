package accounts

import (
	"context"
	"fmt"

	"github.com/angohost/portal/internal/app/domain/account"
	"github.com/angohost/portal/internal/app/storage"
)

// ListContacts lists the contacts of userID, default first.
func (s *Service) ListContacts(ctx context.Context, userID string) ([]account.ContactProfile, error) {
	return s.store.ListContacts(ctx, userID)
}

// GetContact returns a contact owned by userID. Contacts of other users are
// reported as not found.
func (s *Service) GetContact(ctx context.Context, userID, id string) (account.ContactProfile, error) {
	c, err := s.store.GetContact(ctx, id)
	if err != nil {
		return account.ContactProfile{}, err
	}
	if c.UserID != userID {
		return account.ContactProfile{}, fmt.Errorf("contact %s: %w", id, storage.ErrNotFound)
	}
	return c, nil
}

// CreateContact validates and stores a contact. A user's first contact
// becomes the default.
func (s *Service) CreateContact(ctx context.Context, userID string, c account.ContactProfile) (account.ContactProfile, error) {
	c.ID = ""
	c.UserID = userID
	c.Normalize()
	if err := s.validate.Struct(c); err != nil {
		return account.ContactProfile{}, err
	}

	existing, err := s.store.ListContacts(ctx, userID)
	if err != nil {
		return account.ContactProfile{}, err
	}
	if len(existing) == 0 {
		c.IsDefault = true
	}
	return s.store.CreateContact(ctx, c)
}

// UpdateContact replaces the fields of a contact owned by userID. Clearing
// IsDefault on the current default is ignored so a default always exists.
func (s *Service) UpdateContact(ctx context.Context, userID string, c account.ContactProfile) (account.ContactProfile, error) {
	current, err := s.GetContact(ctx, userID, c.ID)
	if err != nil {
		return account.ContactProfile{}, err
	}
	c.UserID = userID
	c.Normalize()
	if err := s.validate.Struct(c); err != nil {
		return account.ContactProfile{}, err
	}
	if current.IsDefault {
		c.IsDefault = true
	}
	return s.store.UpdateContact(ctx, c)
}

// DeleteContact removes a contact owned by userID. When the default is
// deleted the oldest remaining contact is promoted.
func (s *Service) DeleteContact(ctx context.Context, userID, id string) error {
	c, err := s.GetContact(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteContact(ctx, id); err != nil {
		return err
	}
	if !c.IsDefault {
		return nil
	}

	rest, err := s.store.ListContacts(ctx, userID)
	if err != nil || len(rest) == 0 {
		return err
	}
	oldest := rest[0]
	for _, r := range rest[1:] {
		if r.CreatedAt.Before(oldest.CreatedAt) {
			oldest = r
		}
	}
	return s.store.SetDefaultContact(ctx, userID, oldest.ID)
}

// SetDefaultContact makes id the only default contact of userID.
func (s *Service) SetDefaultContact(ctx context.Context, userID, id string) error {
	if _, err := s.GetContact(ctx, userID, id); err != nil {
		return err
	}
	return s.store.SetDefaultContact(ctx, userID, id)
}
