// pkg/attempts/attempts.go
package attempts

import (
	"context"
	"errors"
	"time"
)

// Attempt is a pending OAuth flow bound to the shop that started it.
type Attempt struct {
	Shop      string    `json:"shop"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrNotFound covers unknown, expired, and already-consumed nonces alike;
// callers cannot distinguish replay from expiry and must not try.
var ErrNotFound = errors.New("authorization attempt not found")

// Store holds attempts server-side so any instance can validate a callback.
// Client-held session state does not survive the OAuth redirect round-trip.
type Store interface {
	Create(ctx context.Context, nonce string, a Attempt, ttl time.Duration) error
	// Consume atomically removes and returns the attempt. A nonce is
	// single-use regardless of what the caller does with the result.
	Consume(ctx context.Context, nonce string) (Attempt, error)
}
