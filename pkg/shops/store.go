package shops

import (
	"context"
	"errors"
)

// ErrNotFound covers both an unknown domain and a deactivated install when
// a live credential is required.
var ErrNotFound = errors.New("shop not found")

type Store interface {
	// Upsert inserts or overwrites the credential for shop.Domain and marks
	// the shop active. Install timestamp is kept on overwrite; the refresh
	// timestamp is bumped.
	Upsert(ctx context.Context, shop Shop) error
	// Get returns the shop whether active or not.
	Get(ctx context.Context, domain string) (Shop, error)
	// GetActive returns the shop only when a live (active) credential exists.
	GetActive(ctx context.Context, domain string) (Shop, error)
	// Deactivate clears the active flag, keeping the row (app/uninstalled).
	Deactivate(ctx context.Context, domain string) error
	// Delete removes the credential row entirely (shop/redact). Deleting an
	// absent row is a no-op.
	Delete(ctx context.Context, domain string) error
}
