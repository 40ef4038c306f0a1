package catalog

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrNotFound       = errors.New("catalog: not found")
	ErrInvalidDomain  = errors.New("catalog: invalid domain name")
	ErrUnsupportedTLD = errors.New("catalog: unsupported tld")
)

var labelPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// Catalog is the full product list.
type Catalog struct {
	Currency string        `json:"currency" yaml:"currency"`
	Hosting  []HostingPlan `json:"hosting" yaml:"hosting"`
	Email    []EmailPlan   `json:"email" yaml:"email"`
	TLDs     []TLDPrice    `json:"tlds" yaml:"tlds"`
}

// Load reads a catalog from a YAML file and validates it.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML catalog data.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	for i := range c.TLDs {
		c.TLDs[i].TLD = normalizeTLD(c.TLDs[i].TLD)
	}
	if c.Currency == "" {
		c.Currency = "AOA"
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects duplicate ids, empty names and non-positive prices.
func (c *Catalog) Validate() error {
	var errs []error

	seen := make(map[string]bool)
	for _, p := range c.Hosting {
		if p.ID == "" || p.Name == "" {
			errs = append(errs, fmt.Errorf("hosting plan %q: id and name are required", p.ID))
		}
		if p.Price <= 0 {
			errs = append(errs, fmt.Errorf("hosting plan %q: price must be positive", p.ID))
		}
		if seen["hosting:"+p.ID] {
			errs = append(errs, fmt.Errorf("hosting plan %q: duplicate id", p.ID))
		}
		seen["hosting:"+p.ID] = true
	}
	for _, p := range c.Email {
		if p.ID == "" || p.Name == "" {
			errs = append(errs, fmt.Errorf("email plan %q: id and name are required", p.ID))
		}
		if p.PricePerSeat <= 0 {
			errs = append(errs, fmt.Errorf("email plan %q: price must be positive", p.ID))
		}
		if p.MinSeats < 1 || (p.MaxSeats > 0 && p.MaxSeats < p.MinSeats) {
			errs = append(errs, fmt.Errorf("email plan %q: invalid seat bounds", p.ID))
		}
		if seen["email:"+p.ID] {
			errs = append(errs, fmt.Errorf("email plan %q: duplicate id", p.ID))
		}
		seen["email:"+p.ID] = true
	}
	for _, t := range c.TLDs {
		if t.TLD == "" {
			errs = append(errs, errors.New("tld: empty name"))
		}
		if t.Register <= 0 || t.Renew <= 0 {
			errs = append(errs, fmt.Errorf("tld %q: register and renew prices must be positive", t.TLD))
		}
		if seen["tld:"+t.TLD] {
			errs = append(errs, fmt.Errorf("tld %q: duplicate", t.TLD))
		}
		seen["tld:"+t.TLD] = true
	}
	return errors.Join(errs...)
}

// HostingPlan looks up a hosting plan by id.
func (c *Catalog) HostingPlan(id string) (HostingPlan, error) {
	for _, p := range c.Hosting {
		if p.ID == id {
			return p, nil
		}
	}
	return HostingPlan{}, fmt.Errorf("hosting plan %q: %w", id, ErrNotFound)
}

// EmailPlan looks up an email plan by id.
func (c *Catalog) EmailPlan(id string) (EmailPlan, error) {
	for _, p := range c.Email {
		if p.ID == id {
			return p, nil
		}
	}
	return EmailPlan{}, fmt.Errorf("email plan %q: %w", id, ErrNotFound)
}

// TLD returns the price entry for a domain's TLD.
func (c *Catalog) TLD(domain string) (TLDPrice, error) {
	_, tld, err := c.SplitDomain(domain)
	if err != nil {
		return TLDPrice{}, err
	}
	for _, t := range c.TLDs {
		if t.TLD == tld {
			return t, nil
		}
	}
	return TLDPrice{}, ErrUnsupportedTLD
}

// SplitDomain splits name into its label and the longest TLD known to the
// catalog, so "loja.co.ao" yields ("loja", "co.ao").
func (c *Catalog) SplitDomain(name string) (string, string, error) {
	name = NormalizeDomain(name)
	if name == "" || !strings.Contains(name, ".") {
		return "", "", ErrInvalidDomain
	}

	tlds := make([]string, 0, len(c.TLDs))
	for _, t := range c.TLDs {
		tlds = append(tlds, t.TLD)
	}
	sort.Slice(tlds, func(i, j int) bool { return len(tlds[i]) > len(tlds[j]) })

	for _, tld := range tlds {
		suffix := "." + tld
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		label := strings.TrimSuffix(name, suffix)
		if strings.Contains(label, ".") || !labelPattern.MatchString(label) {
			return "", "", ErrInvalidDomain
		}
		return label, tld, nil
	}
	return "", "", ErrUnsupportedTLD
}

// NormalizeDomain lower-cases and trims a domain name, dropping a scheme,
// a leading "www." and any trailing dot.
func NormalizeDomain(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "http://")
	name = strings.TrimPrefix(name, "https://")
	name = strings.TrimPrefix(name, "www.")
	name = strings.TrimSuffix(name, "/")
	return strings.TrimSuffix(name, ".")
}

func normalizeTLD(tld string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(tld)), ".")
}
