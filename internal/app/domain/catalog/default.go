package catalog

// Default returns the built-in catalog used when CATALOG_PATH is not set.
func Default() *Catalog {
	return &Catalog{
		Currency: "AOA",
		Hosting: []HostingPlan{
			{
				ID: "starter", Name: "Starter", Category: CategoryShared,
				Description: "One website with SSL and daily backups",
				Price:       1800000, DiskGB: 10, BandwidthGB: 100,
				Features: []string{"1 website", "Free SSL", "5 email accounts", "Daily backups"},
			},
			{
				ID: "business", Name: "Business", Category: CategoryShared,
				Description: "For growing businesses with several sites",
				Price:       3600000, DiskGB: 50, BandwidthGB: 500, Popular: true,
				Features: []string{"10 websites", "Free SSL", "Unlimited email accounts", "Daily backups"},
			},
			{
				ID: "wordpress", Name: "WordPress Pro", Category: CategoryWordPress,
				Description: "Managed WordPress with staging",
				Price:       4800000, DiskGB: 40, BandwidthGB: 400,
				Features: []string{"Managed updates", "Staging", "Free SSL", "Malware scan"},
			},
			{
				ID: "reseller", Name: "Reseller", Category: CategoryReseller,
				Description: "WHM reseller with 25 cPanel accounts",
				Price:       12000000, DiskGB: 150, BandwidthGB: 1500,
				Features: []string{"25 cPanel accounts", "White label", "Free SSL"},
			},
		},
		Email: []EmailPlan{
			{
				ID: "email-basic", Name: "Email Basic", PricePerSeat: 360000, StorageGB: 10,
				MinSeats: 1, MaxSeats: 50,
				Features: []string{"Webmail", "IMAP/SMTP", "Anti-spam"},
			},
			{
				ID: "email-pro", Name: "Email Pro", PricePerSeat: 720000, StorageGB: 50,
				MinSeats: 1, MaxSeats: 300,
				Features: []string{"Webmail", "Calendar", "Shared contacts", "Anti-spam", "Archiving"},
			},
		},
		TLDs: []TLDPrice{
			{TLD: "ao", Register: 2500000, Renew: 2500000, Transfer: 2500000},
			{TLD: "co.ao", Register: 1500000, Renew: 1500000, Transfer: 1500000},
			{TLD: "it.ao", Register: 1500000, Renew: 1500000, Transfer: 1500000},
			{TLD: "com", Register: 1200000, Renew: 1350000, Transfer: 1200000},
			{TLD: "net", Register: 1400000, Renew: 1500000, Transfer: 1400000},
			{TLD: "org", Register: 1400000, Renew: 1500000, Transfer: 1400000},
		},
	}
}
