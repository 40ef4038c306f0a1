// Package catalog describes the products sold by the storefront: hosting
// plans, email plans and domain registration prices per TLD.
//
// All amounts are int64 cêntimos of Kwanza (AOA).
package catalog

// HostingCategory groups hosting plans.
type HostingCategory string

const (
	CategoryShared    HostingCategory = "shared"
	CategoryWordPress HostingCategory = "wordpress"
	CategoryReseller  HostingCategory = "reseller"
	CategoryVPS       HostingCategory = "vps"
)

// HostingPlan is a hosting product priced per year.
type HostingPlan struct {
	ID          string          `json:"id" yaml:"id"`
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	Category    HostingCategory `json:"category" yaml:"category"`
	Price       int64           `json:"price" yaml:"price"`
	DiskGB      int             `json:"disk_gb" yaml:"disk_gb"`
	BandwidthGB int             `json:"bandwidth_gb" yaml:"bandwidth_gb"`
	Features    []string        `json:"features" yaml:"features"`
	Popular     bool            `json:"popular" yaml:"popular"`
}

// EmailPlan is an email product priced per seat per year.
type EmailPlan struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Description  string   `json:"description" yaml:"description"`
	PricePerSeat int64    `json:"price_per_seat" yaml:"price_per_seat"`
	StorageGB    int      `json:"storage_gb" yaml:"storage_gb"`
	MinSeats     int      `json:"min_seats" yaml:"min_seats"`
	MaxSeats     int      `json:"max_seats" yaml:"max_seats"`
	Features     []string `json:"features" yaml:"features"`
}

// TLDPrice holds yearly prices for a top-level domain. TLD is stored without
// the leading dot, e.g. "co.ao".
type TLDPrice struct {
	TLD      string `json:"tld" yaml:"tld"`
	Register int64  `json:"register" yaml:"register"`
	Renew    int64  `json:"renew" yaml:"renew"`
	Transfer int64  `json:"transfer" yaml:"transfer"`
}

// Availability is the result of a domain availability check.
type Availability struct {
	Domain    string `json:"domain"`
	TLD       string `json:"tld"`
	Available bool   `json:"available"`
	Price     int64  `json:"price"`
}
