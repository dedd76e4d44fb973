package shopify

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

	"shopsync/pkg/config"
	"shopsync/pkg/topics"
)

func newTestClient(t *testing.T, handler http.Handler, maxAttempts int) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	c := New(config.Config{
		APIKey:      "key123",
		APISecret:   "secret123",
		Scopes:      "read_products",
		APIVersion:  "2023-10",
		PageLimit:   250,
		MaxAttempts: maxAttempts,
	}, zap.NewNop().Sugar())
	c.BaseURL = func(string) string { return ts.URL }
	return c
}

func TestNextPageInfo(t *testing.T) {
	cases := []struct {
		name string
		link string
		want string
	}{
		{"next only", `<https://x.myshopify.com/admin/api/2023-10/products.json?limit=250&page_info=abc123>; rel="next"`, "abc123"},
		{"previous and next", `<https://x/p.json?page_info=prev1>; rel="previous", <https://x/p.json?page_info=next1>; rel="next"`, "next1"},
		{"previous only", `<https://x/p.json?page_info=prev1>; rel="previous"`, ""},
		{"no header", "", ""},
		{"malformed", `garbage`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := http.Header{}
			if tc.link != "" {
				h.Set("Link", tc.link)
			}
			assert.Equal(t, tc.want, nextPageInfo(h))
		})
	}
}

func TestRetryAfter(t *testing.T) {
	h := http.Header{}
	assert.Equal(t, time.Duration(0), retryAfter(h))
	h.Set("Retry-After", "2.0")
	assert.Equal(t, 2*time.Second, retryAfter(h))
	h.Set("Retry-After", "0.5")
	assert.Equal(t, 500*time.Millisecond, retryAfter(h))
	h.Set("Retry-After", "nonsense")
	assert.Equal(t, time.Duration(0), retryAfter(h))
}

func TestGetJSONRetries(t *testing.T) {
	ctx := context.Background()

	t.Run("5xx retried up to the bound", func(t *testing.T) {
		var calls int32
		mux := http.NewServeMux()
		mux.HandleFunc("/admin/api/2023-10/products.json", func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadGateway)
		})
		c := newTestClient(t, mux, 2)
		_, _, err := c.Products(ctx, "s1.example", "tok", "")
		require.Error(t, err)
		assert.EqualValues(t, 2, calls)
	})

	t.Run("4xx fails immediately", func(t *testing.T) {
		var calls int32
		mux := http.NewServeMux()
		mux.HandleFunc("/admin/api/2023-10/orders.json", func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusUnauthorized)
		})
		c := newTestClient(t, mux, 3)
		_, _, err := c.Orders(ctx, "s1.example", "tok", "")
		require.Error(t, err)
		assert.EqualValues(t, 1, calls)
	})

	t.Run("access token header set", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/admin/api/2023-10/products.json", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "tok_abc", r.Header.Get("X-Shopify-Access-Token"))
			fmt.Fprint(w, `{"products":[]}`)
		})
		c := newTestClient(t, mux, 1)
		_, _, err := c.Products(ctx, "s1.example", "tok_abc", "")
		require.NoError(t, err)
	})

	t.Run("cursor replaces filters on later pages", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/admin/api/2023-10/orders.json", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "cursor9", q.Get("page_info"))
			assert.Empty(t, q.Get("status"))
			fmt.Fprint(w, `{"orders":[]}`)
		})
		c := newTestClient(t, mux, 1)
		_, _, err := c.Orders(ctx, "s1.example", "tok", "cursor9")
		require.NoError(t, err)
	})
}

func TestExchangeToken(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/admin/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			fmt.Fprint(w, `{"access_token":"tok_abc","scope":"read_products"}`)
		})
		c := newTestClient(t, mux, 1)
		tok, err := c.ExchangeToken(ctx, "s1.example", "code123")
		require.NoError(t, err)
		assert.Equal(t, "tok_abc", tok.Token)
		assert.Equal(t, "read_products", tok.Scope)
	})

	t.Run("empty token rejected", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/admin/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"scope":"read_products"}`)
		})
		c := newTestClient(t, mux, 1)
		_, err := c.ExchangeToken(ctx, "s1.example", "code123")
		assert.Error(t, err)
	})

	t.Run("remote rejection is marked", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/admin/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad code", http.StatusBadRequest)
		})
		c := newTestClient(t, mux, 1)
		_, err := c.ExchangeToken(ctx, "s1.example", "bad")
		assert.ErrorIs(t, err, ErrCodeRejected)
	})

	t.Run("upstream failure is not a rejection", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/admin/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusBadGateway)
		})
		c := newTestClient(t, mux, 1)
		_, err := c.ExchangeToken(ctx, "s1.example", "code123")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCodeRejected)
	})
}

func TestRegisterWebhooksIdempotent(t *testing.T) {
	var created int32
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/api/2023-10/webhooks.json", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&created, 1)
		if n%2 == 0 {
			// Re-registration: the platform reports the address is taken.
			w.WriteHeader(http.StatusUnprocessableEntity)
			fmt.Fprint(w, `{"errors":{"address":["for this topic has already been taken"]}}`)
			return
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"webhook":{"id":1}}`)
	})
	c := newTestClient(t, mux, 1)

	reg := topics.Defaults()
	n := c.RegisterWebhooks(context.Background(), "s1.example", "tok", "https://app.example", reg)
	// Duplicate-address 422s count as registered.
	assert.Equal(t, len(reg.All()), n)
}
