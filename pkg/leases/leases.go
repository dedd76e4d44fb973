// pkg/leases/leases.go
package leases

import (
	"context"
	"errors"
	"time"
)

// ErrHeld means another holder currently owns the lease.
var ErrHeld = errors.New("lease already held")

// ErrLost means the lease expired or was taken over since acquisition;
// the holder must stop writing.
var ErrLost = errors.New("lease lost")

// Lease is a time-bounded exclusive hold. It expires on its own if the
// holder dies, so a crashed worker cannot block future syncs.
type Lease interface {
	Extend(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}

type Manager interface {
	// Acquire takes the lease or fails fast with ErrHeld.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}
