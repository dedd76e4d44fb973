package syncer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopsync/internal/shopify"
	"shopsync/pkg/config"
	"shopsync/pkg/leases"
	"shopsync/pkg/shops"
	"shopsync/pkg/syncstore"
)

func testConfig() config.Config {
	return config.Config{
		Env:              "test",
		APIVersion:       "2023-10",
		ShopDomainSuffix: ".example",
		PageLimit:        2,
		MaxAttempts:      2,
		LeaseTTL:         time.Minute,
	}
}

type fixture struct {
	engine *Engine
	store  syncstore.Store
	shops  shops.Store
	leases leases.Manager
}

func newEngineFixture(t *testing.T, handler http.Handler) *fixture {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	cfg := testConfig()
	log := zap.NewNop().Sugar()
	client := shopify.New(cfg, log)
	client.BaseURL = func(string) string { return ts.URL }

	f := &fixture{
		store:  syncstore.NewMemoryStore(),
		shops:  shops.NewMemoryStore(),
		leases: leases.NewMemoryManager(),
	}
	require.NoError(t, f.shops.Upsert(context.Background(), shops.Shop{Domain: "shop1.example", AccessToken: "tok"}))
	f.engine = NewEngine(cfg, client, f.shops, f.store, f.leases, log)
	return f
}

// pagedProducts serves two pages of products linked by a page_info cursor.
func pagedProducts(ts func() string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/api/2023-10/products.json", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page_info") {
		case "":
			w.Header().Set("Link", fmt.Sprintf(`<%s/admin/api/2023-10/products.json?limit=2&page_info=cursor2>; rel="next"`, ts()))
			fmt.Fprint(w, `{"products":[{"id":1,"title":"One"},{"id":2,"title":"Two"}]}`)
		case "cursor2":
			fmt.Fprint(w, `{"products":[{"id":3,"title":"Three"}]}`)
		default:
			http.Error(w, "bad cursor", http.StatusBadRequest)
		}
	})
	return mux
}

func TestSyncProducts(t *testing.T) {
	ctx := context.Background()
	var url string
	f := newEngineFixture(t, pagedProducts(func() string { return url }))
	url = f.engine.client.BaseURL("")

	sum, err := f.engine.SyncResource(ctx, "shop1.example", ResourceProducts)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Pages)
	assert.Equal(t, 3, sum.Fetched)
	assert.Equal(t, 3, sum.Upserted)

	got, err := f.store.GetProduct(ctx, "shop1.example", 3)
	require.NoError(t, err)
	assert.Equal(t, "Three", got.Title)

	t.Run("rerun is idempotent", func(t *testing.T) {
		before, err := f.store.GetProduct(ctx, "shop1.example", 1)
		require.NoError(t, err)
		sum, err := f.engine.SyncResource(ctx, "shop1.example", ResourceProducts)
		require.NoError(t, err)
		assert.Equal(t, 3, sum.Upserted)
		after, err := f.store.GetProduct(ctx, "shop1.example", 1)
		require.NoError(t, err)
		assert.Equal(t, before.Title, after.Title)
		assert.False(t, after.SyncedAt.Before(before.SyncedAt))
	})
}

func TestSyncOrdersLineItemReconciliation(t *testing.T) {
	ctx := context.Background()
	// First sync returns line items A and B, the second only A.
	var phase int32
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/api/2023-10/orders.json", func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&phase) == 0 {
			fmt.Fprint(w, `{"orders":[{"id":10,"total_price":"30.00","line_items":[{"id":100,"title":"A","price":"10.00"},{"id":101,"title":"B","price":"20.00"}]}]}`)
			return
		}
		fmt.Fprint(w, `{"orders":[{"id":10,"total_price":"10.00","line_items":[{"id":100,"title":"A","price":"10.00"}]}]}`)
	})
	f := newEngineFixture(t, mux)

	_, err := f.engine.SyncResource(ctx, "shop1.example", ResourceOrders)
	require.NoError(t, err)
	ord, err := f.store.GetOrder(ctx, "shop1.example", 10)
	require.NoError(t, err)
	require.Len(t, ord.LineItems, 2)

	atomic.StoreInt32(&phase, 1)
	_, err = f.engine.SyncResource(ctx, "shop1.example", ResourceOrders)
	require.NoError(t, err)
	ord, err = f.store.GetOrder(ctx, "shop1.example", 10)
	require.NoError(t, err)
	require.Len(t, ord.LineItems, 1)
	assert.EqualValues(t, 100, ord.LineItems[0].LineItemID)
}

func TestSyncInventory(t *testing.T) {
	ctx := context.Background()
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/api/2023-10/locations.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"locations":[{"id":7,"name":"Main","active":true}]}`)
	})
	mux.HandleFunc("/admin/api/2023-10/inventory_levels.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.URL.Query().Get("location_ids"))
		fmt.Fprint(w, `{"inventory_levels":[{"inventory_item_id":5,"location_id":7,"available":12}]}`)
	})
	f := newEngineFixture(t, mux)

	sum, err := f.engine.SyncResource(ctx, "shop1.example", ResourceInventory)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Upserted)
	levels, err := f.store.ListInventory(ctx, "shop1.example", 10)
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, 12, levels[0].Available)
}

func TestSyncPreconditions(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, http.NewServeMux())

	t.Run("unknown resource", func(t *testing.T) {
		_, err := f.engine.SyncResource(ctx, "shop1.example", "customers")
		assert.ErrorIs(t, err, ErrUnknownResource)
	})

	t.Run("shop not installed", func(t *testing.T) {
		_, err := f.engine.SyncResource(ctx, "ghost.example", ResourceProducts)
		assert.ErrorIs(t, err, ErrShopNotFound)
	})

	t.Run("deactivated shop rejected", func(t *testing.T) {
		require.NoError(t, f.shops.Deactivate(ctx, "shop1.example"))
		_, err := f.engine.SyncResource(ctx, "shop1.example", ResourceProducts)
		assert.ErrorIs(t, err, ErrShopNotFound)
	})
}

func TestSyncMutualExclusion(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, pagedProducts(func() string { return "" }))

	// A held lease simulates an in-flight run, worker-crash leases included.
	held, err := f.leases.Acquire(ctx, "sync:shop1.example:products", time.Minute)
	require.NoError(t, err)

	_, err = f.engine.SyncResource(ctx, "shop1.example", ResourceProducts)
	assert.ErrorIs(t, err, ErrSyncInFlight)

	// Orders are an independent resource and still runnable.
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/api/2023-10/orders.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"orders":[]}`)
	})
	f2 := newEngineFixture(t, mux)
	_, err = f2.leases.Acquire(ctx, "sync:shop1.example:products", time.Minute)
	require.NoError(t, err)
	_, err = f2.engine.SyncResource(ctx, "shop1.example", ResourceOrders)
	assert.NoError(t, err)

	require.NoError(t, held.Release(ctx))
	_, err = f.engine.SyncResource(ctx, "shop1.example", ResourceProducts)
	assert.NoError(t, err)
}

func TestSyncRetryAndFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("429 honors retry-after then succeeds", func(t *testing.T) {
		var calls int32
		mux := http.NewServeMux()
		mux.HandleFunc("/admin/api/2023-10/products.json", func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.Header().Set("Retry-After", "0.05")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			fmt.Fprint(w, `{"products":[{"id":1,"title":"One"}]}`)
		})
		f := newEngineFixture(t, mux)

		start := time.Now()
		sum, err := f.engine.SyncResource(ctx, "shop1.example", ResourceProducts)
		require.NoError(t, err)
		assert.Equal(t, 1, sum.Upserted)
		assert.EqualValues(t, 2, calls)
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("exhausted retries fail the run, partial progress kept", func(t *testing.T) {
		var page2 int32
		var url string
		mux := http.NewServeMux()
		mux.HandleFunc("/admin/api/2023-10/products.json", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("page_info") == "" {
				w.Header().Set("Link", fmt.Sprintf(`<%s/admin/api/2023-10/products.json?limit=2&page_info=cursor2>; rel="next"`, url))
				fmt.Fprint(w, `{"products":[{"id":1,"title":"One"}]}`)
				return
			}
			atomic.AddInt32(&page2, 1)
			w.Header().Set("Retry-After", "0.01")
			w.WriteHeader(http.StatusTooManyRequests)
		})
		f := newEngineFixture(t, mux)
		url = f.engine.client.BaseURL("")

		_, err := f.engine.SyncResource(ctx, "shop1.example", ResourceProducts)
		assert.ErrorIs(t, err, ErrSyncFailed)
		assert.EqualValues(t, 2, page2) // MaxAttempts bounds the page retries

		// The committed first page survives the failure.
		got, err := f.store.GetProduct(ctx, "shop1.example", 1)
		require.NoError(t, err)
		assert.Equal(t, "One", got.Title)

		// The lease is released, so a re-trigger can run immediately.
		_, err = f.engine.SyncResource(ctx, "shop1.example", ResourceProducts)
		assert.ErrorIs(t, err, ErrSyncFailed)
	})
}
