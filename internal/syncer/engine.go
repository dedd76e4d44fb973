// internal/syncer/engine.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"shopsync/internal/shopify"
	"shopsync/pkg/config"
	"shopsync/pkg/leases"
	"shopsync/pkg/metrics"
	"shopsync/pkg/shops"
	"shopsync/pkg/syncstore"
)

const (
	ResourceProducts  = "products"
	ResourceOrders    = "orders"
	ResourceInventory = "inventory"
)

var (
	ErrUnknownResource = errors.New("unknown sync resource")
	ErrShopNotFound    = errors.New("shop not installed")
	// ErrSyncInFlight means another run holds the (shop, resource) lease.
	ErrSyncInFlight = errors.New("sync already running for this shop and resource")
	// ErrSyncFailed wraps a run that exhausted its page retries. Not retried
	// automatically; the caller re-triggers.
	ErrSyncFailed = errors.New("sync failed")
)

func KnownResource(r string) bool {
	return r == ResourceProducts || r == ResourceOrders || r == ResourceInventory
}

// Summary is what one completed run did.
type Summary struct {
	Shop     string
	Resource string
	Pages    int
	Fetched  int
	Upserted int
	Duration time.Duration
}

// Engine pulls full collections from the platform into the local store. One
// run holds the (shop, resource) lease for its whole duration, extending it
// after every page; everything it writes is an idempotent upsert, so an
// interrupted run can simply be started again.
type Engine struct {
	cfg    config.Config
	client *shopify.Client
	shops  shops.Store
	store  syncstore.Store
	leases leases.Manager
	log    *zap.SugaredLogger
}

func NewEngine(cfg config.Config, client *shopify.Client, sh shops.Store, store syncstore.Store, lm leases.Manager, log *zap.SugaredLogger) *Engine {
	return &Engine{cfg: cfg, client: client, shops: sh, store: store, leases: lm, log: log}
}

// SyncResource runs one full pull. Concurrent calls for the same shop and
// resource: exactly one proceeds, the rest get ErrSyncInFlight.
func (e *Engine) SyncResource(ctx context.Context, shop, resource string) (Summary, error) {
	if !KnownResource(resource) {
		return Summary{}, fmt.Errorf("%w: %q", ErrUnknownResource, resource)
	}
	sh, err := e.shops.GetActive(ctx, shop)
	if err != nil {
		if errors.Is(err, shops.ErrNotFound) {
			return Summary{}, fmt.Errorf("%w: %s", ErrShopNotFound, shop)
		}
		return Summary{}, err
	}
	lease, err := e.leases.Acquire(ctx, leaseKey(shop, resource), e.cfg.LeaseTTL)
	if err != nil {
		if errors.Is(err, leases.ErrHeld) {
			metrics.SyncRuns.WithLabelValues(resource, "rejected").Inc()
			return Summary{}, fmt.Errorf("%w: %s %s", ErrSyncInFlight, shop, resource)
		}
		return Summary{}, fmt.Errorf("acquire lease: %w", err)
	}
	defer func() {
		// Release on a fresh context so a cancelled run still frees the lease.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if rerr := lease.Release(rctx); rerr != nil && !errors.Is(rerr, leases.ErrLost) {
			e.log.Warnw("lease release failed", "shop", shop, "resource", resource, "err", rerr)
		}
	}()

	start := time.Now()
	sum := Summary{Shop: shop, Resource: resource}
	err = e.pull(ctx, sh, resource, lease, &sum)
	sum.Duration = time.Since(start)
	metrics.SyncDuration.WithLabelValues(resource).Observe(sum.Duration.Seconds())
	if err != nil {
		metrics.SyncRuns.WithLabelValues(resource, "failed").Inc()
		e.log.Errorw("sync failed", "shop", shop, "resource", resource, "pages", sum.Pages, "err", err)
		return sum, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}
	metrics.SyncRuns.WithLabelValues(resource, "ok").Inc()
	e.log.Infow("sync complete", "shop", shop, "resource", resource,
		"pages", sum.Pages, "fetched", sum.Fetched, "upserted", sum.Upserted,
		"duration", sum.Duration.Round(time.Millisecond))
	return sum, nil
}

func leaseKey(shop, resource string) string {
	return "sync:" + shop + ":" + resource
}

func (e *Engine) pull(ctx context.Context, sh shops.Shop, resource string, lease leases.Lease, sum *Summary) error {
	switch resource {
	case ResourceProducts:
		return e.pullProducts(ctx, sh, lease, sum)
	case ResourceOrders:
		return e.pullOrders(ctx, sh, lease, sum)
	default:
		return e.pullInventory(ctx, sh, lease, sum)
	}
}

func (e *Engine) pullProducts(ctx context.Context, sh shops.Shop, lease leases.Lease, sum *Summary) error {
	pageInfo := ""
	for {
		items, next, err := e.client.Products(ctx, sh.Domain, sh.AccessToken, pageInfo)
		if err != nil {
			return fmt.Errorf("products page %d: %w", sum.Pages+1, err)
		}
		sum.Pages++
		for _, p := range items {
			if err := e.store.UpsertProduct(ctx, ToProductRecord(sh.Domain, p, nil)); err != nil {
				return fmt.Errorf("upsert product %d: %w", p.ID, err)
			}
			sum.Upserted++
		}
		sum.Fetched += len(items)
		metrics.EntitiesUpserted.WithLabelValues(ResourceProducts).Add(float64(len(items)))
		if next == "" {
			return nil
		}
		pageInfo = next
		if err := lease.Extend(ctx, e.cfg.LeaseTTL); err != nil {
			return fmt.Errorf("lease lost after page %d: %w", sum.Pages, err)
		}
	}
}

func (e *Engine) pullOrders(ctx context.Context, sh shops.Shop, lease leases.Lease, sum *Summary) error {
	pageInfo := ""
	for {
		items, next, err := e.client.Orders(ctx, sh.Domain, sh.AccessToken, pageInfo)
		if err != nil {
			return fmt.Errorf("orders page %d: %w", sum.Pages+1, err)
		}
		sum.Pages++
		for _, o := range items {
			if err := e.store.UpsertOrder(ctx, ToOrderRecord(sh.Domain, o, nil)); err != nil {
				return fmt.Errorf("upsert order %d: %w", o.ID, err)
			}
			sum.Upserted++
		}
		sum.Fetched += len(items)
		metrics.EntitiesUpserted.WithLabelValues(ResourceOrders).Add(float64(len(items)))
		if next == "" {
			return nil
		}
		pageInfo = next
		if err := lease.Extend(ctx, e.cfg.LeaseTTL); err != nil {
			return fmt.Errorf("lease lost after page %d: %w", sum.Pages, err)
		}
	}
}

// pullInventory resolves the shop's locations first; the levels endpoint
// requires a location filter. A shop with no locations syncs nothing.
func (e *Engine) pullInventory(ctx context.Context, sh shops.Shop, lease leases.Lease, sum *Summary) error {
	locs, err := e.client.Locations(ctx, sh.Domain, sh.AccessToken)
	if err != nil {
		return fmt.Errorf("locations: %w", err)
	}
	ids := make([]int64, 0, len(locs))
	for _, l := range locs {
		ids = append(ids, l.ID)
	}
	if len(ids) == 0 {
		e.log.Infow("no stock locations", "shop", sh.Domain)
		return nil
	}
	pageInfo := ""
	for {
		items, next, err := e.client.InventoryLevels(ctx, sh.Domain, sh.AccessToken, ids, pageInfo)
		if err != nil {
			return fmt.Errorf("inventory page %d: %w", sum.Pages+1, err)
		}
		sum.Pages++
		for _, lv := range items {
			if err := e.store.UpsertInventoryLevel(ctx, ToInventoryRecord(sh.Domain, lv)); err != nil {
				return fmt.Errorf("upsert inventory %d/%d: %w", lv.InventoryItemID, lv.LocationID, err)
			}
			sum.Upserted++
		}
		sum.Fetched += len(items)
		metrics.EntitiesUpserted.WithLabelValues(ResourceInventory).Add(float64(len(items)))
		if next == "" {
			return nil
		}
		pageInfo = next
		if err := lease.Extend(ctx, e.cfg.LeaseTTL); err != nil {
			return fmt.Errorf("lease lost after page %d: %w", sum.Pages, err)
		}
	}
}
