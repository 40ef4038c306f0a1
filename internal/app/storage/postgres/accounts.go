package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angohost/portal/internal/app/domain/account"
)

const profileColumns = `id, email, full_name, phone, role, created_at, updated_at`

func (s *Store) CreateProfile(ctx context.Context, p account.Profile) (account.Profile, error) {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO profiles (id, email, full_name, phone, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.Email, p.FullName, p.Phone, p.Role, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return account.Profile{}, mapErr("profile", p.ID, err)
	}
	return p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, p account.Profile) (account.Profile, error) {
	var out account.Profile
	err := s.q.GetContext(ctx, &out, `
		UPDATE profiles
		SET email = $2, full_name = $3, phone = $4, role = $5, updated_at = $6
		WHERE id = $1
		RETURNING `+profileColumns,
		p.ID, p.Email, p.FullName, p.Phone, p.Role, time.Now().UTC())
	if err != nil {
		return account.Profile{}, mapErr("profile", p.ID, err)
	}
	return out, nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (account.Profile, error) {
	var p account.Profile
	err := s.q.GetContext(ctx, &p, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	if err != nil {
		return account.Profile{}, mapErr("profile", id, err)
	}
	return p, nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]account.Profile, error) {
	var result []account.Profile
	err := s.q.SelectContext(ctx, &result, `SELECT `+profileColumns+` FROM profiles ORDER BY created_at`)
	return result, err
}

// --- ContactStore -----------------------------------------------------------

const contactColumns = `id, user_id, name, email, phone, nif, address, city, country, is_default, created_at, updated_at`

func (s *Store) CreateContact(ctx context.Context, c account.ContactProfile) (account.ContactProfile, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	err := s.inTx(ctx, func(q queryer) error {
		if c.IsDefault {
			if err := clearDefaultContact(ctx, q, c.UserID); err != nil {
				return err
			}
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO contact_profiles (id, user_id, name, email, phone, nif, address, city, country, is_default, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, c.ID, c.UserID, c.Name, c.Email, c.Phone, c.NIF, c.Address, c.City, c.Country, c.IsDefault, c.CreatedAt, c.UpdatedAt)
		return err
	})
	if err != nil {
		return account.ContactProfile{}, mapErr("contact", c.ID, err)
	}
	return c, nil
}

func (s *Store) UpdateContact(ctx context.Context, c account.ContactProfile) (account.ContactProfile, error) {
	var out account.ContactProfile
	err := s.inTx(ctx, func(q queryer) error {
		if c.IsDefault {
			if _, err := q.ExecContext(ctx, `
				UPDATE contact_profiles SET is_default = FALSE
				WHERE is_default AND id <> $1 AND user_id = (SELECT user_id FROM contact_profiles WHERE id = $1)
			`, c.ID); err != nil {
				return err
			}
		}
		return q.GetContext(ctx, &out, `
			UPDATE contact_profiles
			SET name = $2, email = $3, phone = $4, nif = $5, address = $6, city = $7, country = $8,
			    is_default = $9, updated_at = $10
			WHERE id = $1
			RETURNING `+contactColumns,
			c.ID, c.Name, c.Email, c.Phone, c.NIF, c.Address, c.City, c.Country, c.IsDefault, time.Now().UTC())
	})
	if err != nil {
		return account.ContactProfile{}, mapErr("contact", c.ID, err)
	}
	return out, nil
}

func (s *Store) GetContact(ctx context.Context, id string) (account.ContactProfile, error) {
	var c account.ContactProfile
	err := s.q.GetContext(ctx, &c, `SELECT `+contactColumns+` FROM contact_profiles WHERE id = $1`, id)
	if err != nil {
		return account.ContactProfile{}, mapErr("contact", id, err)
	}
	return c, nil
}

func (s *Store) ListContacts(ctx context.Context, userID string) ([]account.ContactProfile, error) {
	var result []account.ContactProfile
	err := s.q.SelectContext(ctx, &result, `
		SELECT `+contactColumns+`
		FROM contact_profiles
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at
	`, userID)
	return result, err
}

func (s *Store) DeleteContact(ctx context.Context, id string) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM contact_profiles WHERE id = $1`, id)
	if err != nil {
		return mapErr("contact", id, err)
	}
	return expectRows("contact", id, result)
}

func (s *Store) SetDefaultContact(ctx context.Context, userID, id string) error {
	return s.inTx(ctx, func(q queryer) error {
		if err := clearDefaultContact(ctx, q, userID); err != nil {
			return err
		}
		result, err := q.ExecContext(ctx, `
			UPDATE contact_profiles SET is_default = TRUE, updated_at = NOW()
			WHERE id = $1 AND user_id = $2
		`, id, userID)
		if err != nil {
			return mapErr("contact", id, err)
		}
		return expectRows("contact", id, result)
	})
}

func clearDefaultContact(ctx context.Context, q queryer, userID string) error {
	_, err := q.ExecContext(ctx, `
		UPDATE contact_profiles SET is_default = FALSE WHERE user_id = $1 AND is_default
	`, userID)
	return err
}
