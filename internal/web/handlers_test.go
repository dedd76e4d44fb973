package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopsync/internal/compliance"
	"shopsync/internal/oauth"
	"shopsync/internal/shopify"
	"shopsync/internal/webhooks"
	"shopsync/pkg/attempts"
	"shopsync/pkg/config"
	"shopsync/pkg/queue"
	"shopsync/pkg/shops"
	"shopsync/pkg/syncstore"
	"shopsync/pkg/topics"
)

const webhookSecret = "whsec-test"

type fakeQueue struct {
	syncErr error
	syncs   []string
}

func (f *fakeQueue) EnqueueResourceSync(ctx context.Context, shop, resource, trigger string) error {
	if f.syncErr != nil {
		return f.syncErr
	}
	f.syncs = append(f.syncs, shop+"/"+resource)
	return nil
}
func (f *fakeQueue) EnqueueWebhookProcess(ctx context.Context, p queue.WebhookProcessPayload) error {
	return nil
}
func (f *fakeQueue) EnqueueDataExport(ctx context.Context, shop string, requestID int64) error {
	return nil
}

type appFixture struct {
	app   *App
	srv   http.Handler
	shops shops.Store
	store syncstore.Store
	queue *fakeQueue
}

func newAppFixture(t *testing.T) *appFixture {
	t.Helper()
	cfg := config.Config{
		Env:              "test",
		AppURL:           "https://app.example",
		PublicURL:        "https://app.example",
		APIKey:           "key123",
		APISecret:        "secret123",
		Scopes:           "read_products",
		RedirectURI:      "https://app.example/auth/callback",
		APIVersion:       "2023-10",
		ShopDomainSuffix: ".example",
		WebhookSecret:    webhookSecret,
		StateTTL:         10 * time.Minute,
		PageLimit:        250,
		MaxAttempts:      1,
	}
	log := zap.NewNop().Sugar()
	client := shopify.New(cfg, log)
	shopStore := shops.NewMemoryStore()
	store := syncstore.NewMemoryStore()
	q := &fakeQueue{}
	reg := topics.Defaults()

	comp := compliance.NewService(store, shopStore, q, log)
	oauthSvc := oauth.NewService(cfg, client, attempts.NewMemoryStore(), shopStore, reg, log)
	whSvc := webhooks.NewService(store, shopStore, q, reg, comp, log)

	app := New(cfg, log, Deps{
		OAuth:    oauthSvc,
		Webhooks: whSvc,
		Shops:    shopStore,
		Store:    store,
		Queue:    q,
		Client:   client,
	})
	return &appFixture{app: app, srv: app.Handler(), shops: shopStore, store: store, queue: q}
}

func (f *appFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.srv.ServeHTTP(rr, req)
	return rr
}

func signedWebhook(topicPath string, body []byte, shop string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+topicPath, bytes.NewReader(body))
	req.Header.Set("X-Shopify-Hmac-Sha256", webhooks.Sign(body, webhookSecret))
	req.Header.Set("X-Shopify-Shop-Domain", shop)
	req.Header.Set("X-Shopify-Topic", topicPath)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var m map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m))
	return m
}

func TestAuthEndpoints(t *testing.T) {
	f := newAppFixture(t)

	t.Run("redirects to the authorize page", func(t *testing.T) {
		rr := f.do(httptest.NewRequest(http.MethodGet, "/auth?shop=shop1.example", nil))
		require.Equal(t, http.StatusFound, rr.Code)
		loc := rr.Header().Get("Location")
		assert.Contains(t, loc, "https://shop1.example/admin/oauth/authorize")
		assert.Contains(t, loc, "state=")
	})

	t.Run("tenant accepted as alias", func(t *testing.T) {
		rr := f.do(httptest.NewRequest(http.MethodGet, "/auth?tenant=shop1.example", nil))
		assert.Equal(t, http.StatusFound, rr.Code)
	})

	t.Run("malformed domain rejected", func(t *testing.T) {
		rr := f.do(httptest.NewRequest(http.MethodGet, "/auth?shop=bad..domain", nil))
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "invalid_shop", decodeBody(t, rr)["code"])
	})

	t.Run("missing shop rejected", func(t *testing.T) {
		rr := f.do(httptest.NewRequest(http.MethodGet, "/auth", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("callback with bogus state rejected", func(t *testing.T) {
		rr := f.do(httptest.NewRequest(http.MethodGet, "/auth/callback?shop=shop1.example&code=c&state=bogus", nil))
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "invalid_state", decodeBody(t, rr)["code"])
	})
}

func TestWebhookEndpoint(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid signature gets 401 and the exact error body", func(t *testing.T) {
		f := newAppFixture(t)
		body := []byte(`{"shop_domain":"shop1.example"}`)
		req := signedWebhook("shop/redact", body, "shop1.example")
		req.Header.Set("X-Shopify-Hmac-Sha256", "not-a-signature")
		rr := f.do(req)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.JSONEq(t, `{"error":"Invalid signature"}`, rr.Body.String())
	})

	t.Run("missing signature header rejected", func(t *testing.T) {
		f := newAppFixture(t)
		body := []byte(`{}`)
		req := signedWebhook("orders/create", body, "shop1.example")
		req.Header.Del("X-Shopify-Hmac-Sha256")
		assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)
	})

	t.Run("empty body rejected", func(t *testing.T) {
		f := newAppFixture(t)
		req := signedWebhook("orders/create", nil, "shop1.example")
		assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)
	})

	t.Run("shop redact erases the tenant end to end", func(t *testing.T) {
		f := newAppFixture(t)
		require.NoError(t, f.shops.Upsert(ctx, shops.Shop{Domain: "shop1.example", AccessToken: "tok_abc"}))
		for i := int64(1); i <= 3; i++ {
			require.NoError(t, f.store.UpsertProduct(ctx, syncstore.ProductRecord{Shop: "shop1.example", ProductID: i}))
		}
		for i := int64(1); i <= 2; i++ {
			require.NoError(t, f.store.UpsertOrder(ctx, syncstore.OrderRecord{
				Shop: "shop1.example", OrderID: i,
				LineItems: []syncstore.LineItemRecord{{LineItemID: i * 10}},
			}))
		}

		body := []byte(`{"shop_domain":"shop1.example"}`)
		rr := f.do(signedWebhook("shop/redact", body, "shop1.example"))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "success", decodeBody(t, rr)["status"])

		counts, err := f.store.Counts(ctx, "shop1.example")
		require.NoError(t, err)
		assert.Zero(t, counts.Products)
		assert.Zero(t, counts.Orders)
		assert.Zero(t, counts.Receipts)
		_, err = f.shops.Get(ctx, "shop1.example")
		assert.ErrorIs(t, err, shops.ErrNotFound)

		// Redelivery of the erasure still acks.
		rr = f.do(signedWebhook("shop/redact", body, "shop1.example"))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("data request recorded and acked fast", func(t *testing.T) {
		f := newAppFixture(t)
		body := []byte(`{"data_request":{"id":55},"customer":{"id":9,"email":"a@b.example"}}`)
		rr := f.do(signedWebhook("customers/data_request", body, "shop1.example"))
		require.Equal(t, http.StatusOK, rr.Code)
		req, err := f.store.GetDataRequest(ctx, "shop1.example", 55)
		require.NoError(t, err)
		assert.Equal(t, syncstore.RequestReceived, req.Status)
	})

	t.Run("missing shop header rejected", func(t *testing.T) {
		f := newAppFixture(t)
		body := []byte(`{}`)
		req := signedWebhook("orders/create", body, "shop1.example")
		req.Header.Del("X-Shopify-Shop-Domain")
		assert.Equal(t, http.StatusBadRequest, f.do(req).Code)
	})
}

func TestSyncTrigger(t *testing.T) {
	ctx := context.Background()

	newInstalled := func(t *testing.T) *appFixture {
		f := newAppFixture(t)
		require.NoError(t, f.shops.Upsert(ctx, shops.Shop{Domain: "shop1.example", AccessToken: "tok"}))
		return f
	}

	post := func(resource, body string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/sync/"+resource, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return req
	}

	t.Run("queues and returns the task id", func(t *testing.T) {
		f := newInstalled(t)
		rr := f.do(post("orders", `{"shop":"shop1.example"}`))
		require.Equal(t, http.StatusAccepted, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, "queued", body["status"])
		assert.Equal(t, "sync:shop1.example:orders", body["task_id"])
		assert.Equal(t, []string{"shop1.example/orders"}, f.queue.syncs)
	})

	t.Run("tenant body key accepted", func(t *testing.T) {
		f := newInstalled(t)
		rr := f.do(post("products", `{"tenant":"shop1.example"}`))
		assert.Equal(t, http.StatusAccepted, rr.Code)
	})

	t.Run("conflict while in flight", func(t *testing.T) {
		f := newInstalled(t)
		f.queue.syncErr = queue.ErrDuplicate
		rr := f.do(post("orders", `{"shop":"shop1.example"}`))
		require.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "concurrent_sync_rejected", decodeBody(t, rr)["code"])
	})

	t.Run("uninstalled shop gets 404", func(t *testing.T) {
		f := newAppFixture(t)
		rr := f.do(post("orders", `{"shop":"ghost.example"}`))
		require.Equal(t, http.StatusNotFound, rr.Code)
		assert.JSONEq(t, `{"error":"Shop not found"}`, rr.Body.String())
	})

	t.Run("unknown resource rejected", func(t *testing.T) {
		f := newInstalled(t)
		rr := f.do(post("customers", `{"shop":"shop1.example"}`))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestAPIShopResolution(t *testing.T) {
	f := newAppFixture(t)
	rr := f.do(httptest.NewRequest(http.MethodGet, "/api/products?shop=ghost.example", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"Shop not found"}`, rr.Body.String())

	rr = f.do(httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAPIInventory(t *testing.T) {
	ctx := context.Background()
	f := newAppFixture(t)
	require.NoError(t, f.shops.Upsert(ctx, shops.Shop{Domain: "shop1.example", AccessToken: "tok"}))
	require.NoError(t, f.store.UpsertInventoryLevel(ctx, syncstore.InventoryRecord{
		Shop: "shop1.example", InventoryItemID: 5, LocationID: 7, Available: 12,
	}))

	rr := f.do(httptest.NewRequest(http.MethodGet, "/api/inventory?shop=shop1.example", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Count  int `json:"count"`
		Levels []struct {
			Available int `json:"Available"`
		} `json:"inventory_levels"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}
