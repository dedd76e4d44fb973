// internal/web/handlers_api.go
package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"shopsync/internal/syncer"
	mw "shopsync/pkg/middleware"
	"shopsync/pkg/queue"
	"shopsync/pkg/syncstore"
)

func (a *App) handleAPIProducts(w http.ResponseWriter, r *http.Request) {
	sh := mw.ShopFrom(r.Context())
	items, _, err := a.client.Products(r.Context(), sh.Domain, sh.AccessToken, "")
	if err != nil {
		a.log.Errorw("fetch products", "shop", sh.Domain, "err", err)
		writeError(w, http.StatusBadGateway, "upstream_error", "Failed to fetch products")
		return
	}
	writeJSON(w, map[string]any{"products": items, "count": len(items)}, http.StatusOK)
}

func (a *App) handleAPIOrders(w http.ResponseWriter, r *http.Request) {
	sh := mw.ShopFrom(r.Context())
	items, _, err := a.client.Orders(r.Context(), sh.Domain, sh.AccessToken, "")
	if err != nil {
		a.log.Errorw("fetch orders", "shop", sh.Domain, "err", err)
		writeError(w, http.StatusBadGateway, "upstream_error", "Failed to fetch orders")
		return
	}
	writeJSON(w, map[string]any{"orders": items, "count": len(items)}, http.StatusOK)
}

// handleAPIInventory reads the local store: levels arrive continuously via
// webhooks and syncs, and the platform has no cheap cross-location endpoint.
func (a *App) handleAPIInventory(w http.ResponseWriter, r *http.Request) {
	sh := mw.ShopFrom(r.Context())
	levels, err := a.store.ListInventory(r.Context(), sh.Domain, 50)
	if err != nil {
		a.log.Errorw("list inventory", "shop", sh.Domain, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list inventory")
		return
	}
	if levels == nil {
		levels = []syncstore.InventoryRecord{}
	}
	writeJSON(w, map[string]any{"inventory_levels": levels, "count": len(levels)}, http.StatusOK)
}

// handleSyncTrigger queues a full pull of one resource. The shop comes from a
// verified session token when present, else the JSON body (tenant accepted as
// alias), else the query string.
func (a *App) handleSyncTrigger(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	if !syncer.KnownResource(resource) {
		writeError(w, http.StatusBadRequest, "unknown_resource", "no such sync resource")
		return
	}
	var body struct {
		Shop   string `json:"shop"`
		Tenant string `json:"tenant"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&body)
	}
	shop := mw.SessionShopFrom(r.Context())
	if shop == "" {
		shop = body.Shop
	}
	if shop == "" {
		shop = body.Tenant
	}
	if shop == "" {
		shop = shopParam(r.URL.Query())
	}
	shop = strings.ToLower(strings.TrimSpace(shop))
	if shop == "" {
		writeError(w, http.StatusBadRequest, "invalid_shop", "Shop parameter is required")
		return
	}
	if _, err := a.shops.GetActive(r.Context(), shop); err != nil {
		writeJSON(w, map[string]string{"error": "Shop not found"}, http.StatusNotFound)
		return
	}
	if err := a.queue.EnqueueResourceSync(r.Context(), shop, resource, "api"); err != nil {
		if errors.Is(err, queue.ErrDuplicate) {
			writeError(w, http.StatusConflict, "concurrent_sync_rejected", "a sync for this shop and resource is already running")
			return
		}
		a.log.Errorw("enqueue sync", "shop", shop, "resource", resource, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not queue sync")
		return
	}
	writeJSON(w, map[string]string{"status": "queued", "task_id": queue.SyncTaskID(shop, resource)}, http.StatusAccepted)
}
