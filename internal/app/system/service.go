package system

import "context"

// Service is a lifecycle-managed component such as the scheduler or the
// realtime hub. The manager starts services in registration order and stops
// them in reverse.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
