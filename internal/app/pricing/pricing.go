// Package pricing implements the storefront discount table.
//
// Amounts are int64 cêntimos. Fractional results are rounded half away from
// zero once per line and once for the subtotal discount.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/angohost/portal/internal/app/domain/cart"
)

// Rules is the configurable discount table.
type Rules struct {
	// HostingYearRate compounds per extra year: 3 years at 5% costs
	// base*(0.95^2) per year.
	HostingYearRate float64
	// EmailMultiYearRate applies flat once the period exceeds one year.
	EmailMultiYearRate float64

	Tier1Threshold int64
	Tier1Rate      float64
	Tier2Threshold int64
	Tier2Rate      float64
}

// DefaultRules returns the stock table: 5% compounding for hosting, 10% for
// multi-year email, 5% above 50 000 AOA and 10% above 100 000 AOA.
func DefaultRules() Rules {
	return Rules{
		HostingYearRate:    0.05,
		EmailMultiYearRate: 0.10,
		Tier1Threshold:     5_000_000,
		Tier1Rate:          0.05,
		Tier2Threshold:     10_000_000,
		Tier2Rate:          0.10,
	}
}

// ErrUnknownType reports an item type with no canonical mapping.
var ErrUnknownType = errors.New("unknown item type")

var typeAliases = map[string]cart.ItemType{
	"domain":              cart.TypeDomain,
	"domain_registration": cart.TypeDomain,
	"domain_transfer":     cart.TypeDomain,
	"registration":        cart.TypeDomain,
	"hosting":             cart.TypeHosting,
	"wordpress":           cart.TypeHosting,
	"cpanel":              cart.TypeHosting,
	"shared":              cart.TypeHosting,
	"reseller":            cart.TypeHosting,
	"vps":                 cart.TypeHosting,
	"email":               cart.TypeEmail,
	"exchange":            cart.TypeEmail,
	"email_seat":          cart.TypeEmail,
	"professional_email":  cart.TypeEmail,
}

// NormalizeType maps legacy item type names onto the canonical types.
func NormalizeType(raw string) (cart.ItemType, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "-", "_")
	if t, ok := typeAliases[key]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownType, raw)
}

// YearDiscount returns the fractional discount for holding a product of type t
// for the given number of years.
func (r Rules) YearDiscount(t cart.ItemType, years int) float64 {
	if years <= 1 {
		return 0
	}
	switch t {
	case cart.TypeHosting:
		return 1 - math.Pow(1-r.HostingYearRate, float64(years-1))
	case cart.TypeEmail:
		return r.EmailMultiYearRate
	default:
		return 0
	}
}

// Line is a priced cart line.
type Line struct {
	Item         cart.Item `json:"item"`
	DiscountRate float64   `json:"discount_rate"`
	UnitPrice    int64     `json:"unit_price"`
	Total        int64     `json:"total"`
}

// PriceLine prices a single item. Item.Price is overwritten with the
// discounted per-unit per-year price.
func (r Rules) PriceLine(item cart.Item) Line {
	rate := r.YearDiscount(item.Type, item.Years)
	factor := 1 - rate
	unit := Round(float64(item.BasePrice) * factor)
	total := Round(float64(item.BasePrice) * float64(item.Quantity) * float64(item.Years) * factor)
	item.Price = unit
	return Line{Item: item, DiscountRate: rate, UnitPrice: unit, Total: total}
}

// SubtotalDiscount returns the tier rate and the discount amount for subtotal.
func (r Rules) SubtotalDiscount(subtotal int64) (float64, int64) {
	var rate float64
	switch {
	case subtotal >= r.Tier2Threshold:
		rate = r.Tier2Rate
	case subtotal >= r.Tier1Threshold:
		rate = r.Tier1Rate
	}
	return rate, Round(float64(subtotal) * rate)
}

// Quote is the priced cart.
type Quote struct {
	Lines        []Line  `json:"lines"`
	Subtotal     int64   `json:"subtotal"`
	DiscountRate float64 `json:"discount_rate"`
	Discount     int64   `json:"discount"`
	Total        int64   `json:"total"`
}

// Quote prices every item and applies the subtotal tier. Item types are
// normalized and lines are validated first.
func (r Rules) Quote(items []cart.Item) (Quote, error) {
	q := Quote{Lines: make([]Line, 0, len(items))}
	for _, item := range items {
		t, err := NormalizeType(string(item.Type))
		if err != nil {
			return Quote{}, err
		}
		item.Type = t
		if err := item.Validate(); err != nil {
			return Quote{}, fmt.Errorf("item %s: %w", item.ID, err)
		}
		if item.BasePrice < 0 {
			return Quote{}, fmt.Errorf("item %s: negative price", item.ID)
		}
		line := r.PriceLine(item)
		q.Lines = append(q.Lines, line)
		q.Subtotal += line.Total
	}
	q.DiscountRate, q.Discount = r.SubtotalDiscount(q.Subtotal)
	q.Total = q.Subtotal - q.Discount
	return q, nil
}

// Round rounds half away from zero.
func Round(v float64) int64 {
	return int64(math.Round(v))
}
