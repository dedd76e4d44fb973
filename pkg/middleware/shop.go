// pkg/middleware/shop.go
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"shopsync/pkg/shops"
)

type ctxShopKey struct{}

// WithShop resolves the merchant for API requests. A shop pinned by a verified
// session token wins; otherwise the shop query parameter is used (tenant is
// accepted as a legacy alias). Unknown or uninstalled shops get a 404.
func WithShop(store shops.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			domain := SessionShopFrom(r.Context())
			if domain == "" {
				domain = r.URL.Query().Get("shop")
			}
			if domain == "" {
				domain = r.URL.Query().Get("tenant")
			}
			domain = strings.ToLower(strings.TrimSpace(domain))
			if domain == "" {
				jsonError(w, http.StatusNotFound, "Shop not found")
				return
			}
			s, err := store.GetActive(r.Context(), domain)
			if err != nil {
				jsonError(w, http.StatusNotFound, "Shop not found")
				return
			}
			ctx := context.WithValue(r.Context(), ctxShopKey{}, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ShopFrom returns the shop resolved by WithShop. Zero value when absent.
func ShopFrom(ctx context.Context) shops.Shop {
	if v := ctx.Value(ctxShopKey{}); v != nil {
		return v.(shops.Shop)
	}
	return shops.Shop{}
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
