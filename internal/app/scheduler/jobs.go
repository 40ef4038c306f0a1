package scheduler

import (
	"context"
	"time"

	"github.com/angohost/portal/internal/app/services/provisioning"
	"github.com/angohost/portal/internal/app/storage"
)

// Job names.
const (
	JobExpirySweep = "expiry-sweep"
	JobCartPurge   = "cart-purge"
)

// ExpirySweepJob expires lapsed domains and services and flags overdue
// invoices.
func ExpirySweepJob(svc *provisioning.Service, spec string) Job {
	return Job{
		Name: JobExpirySweep,
		Spec: spec,
		Run: func(ctx context.Context) error {
			_, err := svc.Sweep(ctx, time.Now().UTC())
			return err
		},
	}
}

// CartPurgeJob drops expired carts from stores without native TTLs.
func CartPurgeJob(purger storage.CartPurger, spec string) Job {
	return Job{
		Name: JobCartPurge,
		Spec: spec,
		Run: func(ctx context.Context) error {
			_, err := purger.PurgeExpired(ctx)
			return err
		},
	}
}
