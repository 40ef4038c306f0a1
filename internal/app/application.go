// Package app wires the portal's services together.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/angohost/portal/internal/app/domain/catalog"
	"github.com/angohost/portal/internal/app/pricing"
	"github.com/angohost/portal/internal/app/realtime"
	"github.com/angohost/portal/internal/app/scheduler"
	"github.com/angohost/portal/internal/app/services/accounts"
	adminsvc "github.com/angohost/portal/internal/app/services/admin"
	billingsvc "github.com/angohost/portal/internal/app/services/billing"
	cartsvc "github.com/angohost/portal/internal/app/services/cart"
	catalogsvc "github.com/angohost/portal/internal/app/services/catalog"
	checkoutsvc "github.com/angohost/portal/internal/app/services/checkout"
	"github.com/angohost/portal/internal/app/services/provisioning"
	"github.com/angohost/portal/internal/app/storage"
	"github.com/angohost/portal/internal/app/storage/memory"
	"github.com/angohost/portal/internal/app/system"
	"github.com/angohost/portal/pkg/logger"
)

const defaultCartTTL = 7 * 24 * time.Hour

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Store storage.Store
	Carts storage.CartStore
}

// Options tune the services.
type Options struct {
	Catalog        *catalog.Catalog
	Pricing        *pricing.Rules
	AdminEmails    []string
	Checkout       checkoutsvc.Options
	Notifier       checkoutsvc.Notifier
	CartTTL        time.Duration
	AllowedOrigins []string

	// Cron specs; an empty SweepSpec disables the scheduler.
	SweepSpec     string
	CartPurgeSpec string
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Store     storage.Store
	Hub       *realtime.Hub
	Scheduler *scheduler.Scheduler

	Catalog      *catalogsvc.Service
	Carts        *cartsvc.Service
	Accounts     *accounts.Service
	Billing      *billingsvc.Service
	Checkout     *checkoutsvc.Service
	Provisioning *provisioning.Service
	Admin        *adminsvc.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if stores.Store == nil {
		stores.Store = memory.New()
	}
	if opts.CartTTL <= 0 {
		opts.CartTTL = defaultCartTTL
	}
	if stores.Carts == nil {
		stores.Carts = memory.NewCartStore(opts.CartTTL)
	}
	cat := opts.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	rules := pricing.DefaultRules()
	if opts.Pricing != nil {
		rules = *opts.Pricing
	}

	manager := system.NewManager()
	hub := realtime.NewHub(opts.AllowedOrigins, log.Named("realtime"))

	catalogService := catalogsvc.New(cat, stores.Store, log.Named("catalog"))
	cartService := cartsvc.New(catalogService, stores.Carts, rules, log.Named("cart"))
	accountService := accounts.New(stores.Store, opts.AdminEmails, log.Named("accounts"))
	billingService := billingsvc.New(stores.Store, hub, log.Named("billing"))
	checkoutService := checkoutsvc.New(stores.Store, cartService, catalogService, billingService,
		hub, opts.Notifier, opts.Checkout, log.Named("checkout"))
	provisioningService := provisioning.New(stores.Store, log.Named("provisioning"))
	adminService := adminsvc.New(stores.Store, "/", log.Named("admin"))

	services := []system.Service{hub}

	var sched *scheduler.Scheduler
	if opts.SweepSpec != "" {
		sched = scheduler.New(log.Named("scheduler"))
		if err := sched.Add(scheduler.ExpirySweepJob(provisioningService, opts.SweepSpec)); err != nil {
			return nil, err
		}
		if purger, ok := stores.Carts.(storage.CartPurger); ok && opts.CartPurgeSpec != "" {
			if err := sched.Add(scheduler.CartPurgeJob(purger, opts.CartPurgeSpec)); err != nil {
				return nil, err
			}
		}
		services = append(services, sched)
	}

	for _, svc := range services {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:      manager,
		log:          log,
		Store:        stores.Store,
		Hub:          hub,
		Scheduler:    sched,
		Catalog:      catalogService,
		Carts:        cartService,
		Accounts:     accountService,
		Billing:      billingService,
		Checkout:     checkoutService,
		Provisioning: provisioningService,
		Admin:        adminService,
	}, nil
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
