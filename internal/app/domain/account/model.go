package account

import (
	"strings"
	"time"
)

// Role is the portal role of an authenticated user.
type Role string

const (
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleAdmin
}

// Profile is the portal-side record of a Supabase auth user.
type Profile struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FullName  string    `json:"full_name" db:"full_name"`
	Phone     string    `json:"phone" db:"phone"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the profile has the admin role.
func (p Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// ContactProfile is a saved registrant identity used as WHOIS owner data for
// domain registrations.
type ContactProfile struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name" validate:"required,max=120"`
	Email     string    `json:"email" db:"email" validate:"required,email"`
	Phone     string    `json:"phone" db:"phone" validate:"required,min=9,max=20"`
	NIF       string    `json:"nif" db:"nif" validate:"omitempty,alphanum,min=9,max=14"`
	Address   string    `json:"address" db:"address" validate:"required,max=200"`
	City      string    `json:"city" db:"city" validate:"required,max=80"`
	Country   string    `json:"country" db:"country" validate:"required,iso3166_1_alpha2"`
	IsDefault bool      `json:"is_default" db:"is_default"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Normalize trims text fields and upper-cases the country code.
func (c *ContactProfile) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Phone = strings.TrimSpace(c.Phone)
	c.NIF = strings.ToUpper(strings.TrimSpace(c.NIF))
	c.Address = strings.TrimSpace(c.Address)
	c.City = strings.TrimSpace(c.City)
	c.Country = strings.ToUpper(strings.TrimSpace(c.Country))
}
