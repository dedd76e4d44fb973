// internal/web/handlers_webhooks.go
package web

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"shopsync/internal/webhooks"
	"shopsync/pkg/metrics"
)

// The platform caps webhook payloads well below this.
const maxWebhookBody = 1 << 20

// handleWebhook is the single entry point for all webhook deliveries,
// compliance topics included. Signature verification runs on the raw bytes
// before anything is parsed or touched.
func (a *App) handleWebhook(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "resource") + "/" + chi.URLParam(r, "event")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "could not read body")
		return
	}
	if len(body) > maxWebhookBody {
		writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "webhook payload too large")
		return
	}
	sig := r.Header.Get("X-Shopify-Hmac-Sha256")
	if !webhooks.Verify(body, sig, a.cfg.WebhookSecret) {
		metrics.WebhooksReceived.WithLabelValues(topic, "rejected").Inc()
		a.log.Warnw("webhook signature rejected", "topic", topic,
			"shop", r.Header.Get("X-Shopify-Shop-Domain"), "has_signature", sig != "")
		writeJSON(w, map[string]string{"error": "Invalid signature"}, http.StatusUnauthorized)
		return
	}
	if h := r.Header.Get("X-Shopify-Topic"); h != "" {
		topic = h
	}
	shop := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Shopify-Shop-Domain")))
	if shop == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing shop domain header")
		return
	}
	d := webhooks.Delivery{
		Topic:      topic,
		Shop:       shop,
		DeliveryID: r.Header.Get("X-Shopify-Webhook-Id"),
		Body:       body,
	}
	if err := a.webhooks.Handle(r.Context(), d); err != nil {
		a.log.Errorw("webhook handling failed", "topic", topic, "shop", shop, "err", err)
		writeError(w, http.StatusInternalServerError, "processing_failed", "delivery not processed")
		return
	}
	writeJSON(w, map[string]string{"status": "success"}, http.StatusOK)
}
