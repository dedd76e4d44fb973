package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopsync/internal/shopify"
	"shopsync/pkg/attempts"
	"shopsync/pkg/config"
	"shopsync/pkg/shops"
	"shopsync/pkg/topics"
)

type exchangeStub struct {
	status    int
	token     string
	exchanges int32
	webhooks  int32
}

func (s *exchangeStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.exchanges, 1)
		if s.status != http.StatusOK {
			w.WriteHeader(s.status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": s.token, "scope": "read_products"})
	})
	mux.HandleFunc("/admin/api/2023-10/webhooks.json", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.webhooks, 1)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"webhook":{"id":1}}`))
	})
	return mux
}

func newTestService(t *testing.T, stub *exchangeStub) (*Service, shops.Store) {
	t.Helper()
	ts := httptest.NewServer(stub.handler())
	t.Cleanup(ts.Close)

	cfg := config.Config{
		Env:              "test",
		APIKey:           "key123",
		APISecret:        "secret123",
		Scopes:           "read_products,read_orders",
		RedirectURI:      "https://app.example/auth/callback",
		APIVersion:       "2023-10",
		ShopDomainSuffix: ".example",
		PublicURL:        "https://app.example",
		StateTTL:         10 * time.Minute,
		PageLimit:        250,
		MaxAttempts:      1,
	}
	log := zap.NewNop().Sugar()
	client := shopify.New(cfg, log)
	client.BaseURL = func(string) string { return ts.URL }
	st := shops.NewMemoryStore()
	return NewService(cfg, client, attempts.NewMemoryStore(), st, topics.Defaults(), log), st
}

func stateFrom(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestInitiate(t *testing.T) {
	svc, _ := newTestService(t, &exchangeStub{status: http.StatusOK, token: "tok_abc"})
	ctx := context.Background()

	authURL, err := svc.Initiate(ctx, "shop1.example")
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "/admin/oauth/authorize", u.Path)
	assert.Equal(t, "key123", q.Get("client_id"))
	assert.Equal(t, "read_products,read_orders", q.Get("scope"))
	assert.Equal(t, "https://app.example/auth/callback", q.Get("redirect_uri"))
	assert.Len(t, q.Get("state"), 32)

	t.Run("fresh nonce per attempt", func(t *testing.T) {
		second, err := svc.Initiate(ctx, "shop1.example")
		require.NoError(t, err)
		assert.NotEqual(t, stateFrom(t, authURL), stateFrom(t, second))
	})

	t.Run("rejects bad domain", func(t *testing.T) {
		_, err := svc.Initiate(ctx, "shop1.elsewhere")
		assert.ErrorIs(t, err, ErrInvalidShop)
	})
}

func TestCallback(t *testing.T) {
	ctx := context.Background()

	t.Run("install and single-use nonce", func(t *testing.T) {
		stub := &exchangeStub{status: http.StatusOK, token: "tok_abc"}
		svc, st := newTestService(t, stub)

		authURL, err := svc.Initiate(ctx, "shop1.example")
		require.NoError(t, err)
		state := stateFrom(t, authURL)

		rec, err := svc.Callback(ctx, CallbackParams{Shop: "shop1.example", Code: "code123", State: state, Query: url.Values{}})
		require.NoError(t, err)
		assert.Equal(t, "shop1.example", rec.Domain)
		assert.Equal(t, "tok_abc", rec.AccessToken)

		stored, err := st.GetActive(ctx, "shop1.example")
		require.NoError(t, err)
		assert.Equal(t, "tok_abc", stored.AccessToken)
		assert.True(t, stored.Active)

		// Compliance topics registered with the fresh token.
		assert.GreaterOrEqual(t, int(stub.webhooks), 3)

		_, err = svc.Callback(ctx, CallbackParams{Shop: "shop1.example", Code: "code123", State: state, Query: url.Values{}})
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("unknown state", func(t *testing.T) {
		svc, _ := newTestService(t, &exchangeStub{status: http.StatusOK, token: "tok_abc"})
		_, err := svc.Callback(ctx, CallbackParams{Shop: "shop1.example", Code: "c", State: "deadbeefdeadbeefdeadbeefdeadbeef", Query: url.Values{}})
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("shop mismatch burns the nonce", func(t *testing.T) {
		stub := &exchangeStub{status: http.StatusOK, token: "tok_abc"}
		svc, st := newTestService(t, stub)
		authURL, err := svc.Initiate(ctx, "shop1.example")
		require.NoError(t, err)
		state := stateFrom(t, authURL)

		_, err = svc.Callback(ctx, CallbackParams{Shop: "shop2.example", Code: "c", State: state, Query: url.Values{}})
		assert.ErrorIs(t, err, ErrInvalidState)

		// Consumed on the failed attempt: the right shop cannot reuse it.
		_, err = svc.Callback(ctx, CallbackParams{Shop: "shop1.example", Code: "c", State: state, Query: url.Values{}})
		assert.ErrorIs(t, err, ErrInvalidState)
		_, err = st.Get(ctx, "shop1.example")
		assert.ErrorIs(t, err, shops.ErrNotFound)
	})

	t.Run("missing code", func(t *testing.T) {
		svc, _ := newTestService(t, &exchangeStub{status: http.StatusOK, token: "tok_abc"})
		authURL, err := svc.Initiate(ctx, "shop1.example")
		require.NoError(t, err)
		_, err = svc.Callback(ctx, CallbackParams{Shop: "shop1.example", State: stateFrom(t, authURL), Query: url.Values{}})
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("exchange failure writes nothing", func(t *testing.T) {
		stub := &exchangeStub{status: http.StatusUnauthorized}
		svc, st := newTestService(t, stub)
		authURL, err := svc.Initiate(ctx, "shop1.example")
		require.NoError(t, err)

		_, err = svc.Callback(ctx, CallbackParams{Shop: "shop1.example", Code: "bad", State: stateFrom(t, authURL), Query: url.Values{}})
		assert.ErrorIs(t, err, ErrTokenExchangeFailed)
		_, err = st.Get(ctx, "shop1.example")
		assert.ErrorIs(t, err, shops.ErrNotFound)
		assert.Zero(t, stub.webhooks)
	})

	t.Run("callback hmac verified when present", func(t *testing.T) {
		svc, _ := newTestService(t, &exchangeStub{status: http.StatusOK, token: "tok_abc"})
		authURL, err := svc.Initiate(ctx, "shop1.example")
		require.NoError(t, err)
		state := stateFrom(t, authURL)

		q := url.Values{}
		q.Set("shop", "shop1.example")
		q.Set("code", "code123")
		q.Set("state", state)
		q.Set("hmac", "0000000000000000000000000000000000000000000000000000000000000000")
		_, err = svc.Callback(ctx, CallbackParams{Shop: "shop1.example", Code: "code123", State: state, Query: q})
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}
