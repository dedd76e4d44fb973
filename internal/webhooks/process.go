// internal/webhooks/process.go
package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"shopsync/internal/shopify"
	"shopsync/internal/syncer"
	"shopsync/pkg/metrics"
	"shopsync/pkg/queue"
	"shopsync/pkg/syncstore"
	"shopsync/pkg/topics"
)

// ErrBadPayload marks deliveries whose body does not decode into the topic's
// entity. Retrying cannot fix those.
var ErrBadPayload = errors.New("webhook payload does not decode")

// Processor applies resource webhook payloads to the entity store. Runs on
// the worker; errors bubble to the queue for retry.
type Processor struct {
	store syncstore.Store
	log   *zap.SugaredLogger
}

func NewProcessor(store syncstore.Store, log *zap.SugaredLogger) *Processor {
	return &Processor{store: store, log: log}
}

// Process applies the payload and closes the receipt either way.
func (p *Processor) Process(ctx context.Context, t queue.WebhookProcessPayload) error {
	err := p.apply(ctx, t)
	outcome, msg := syncstore.OutcomeProcessed, ""
	if err != nil {
		outcome, msg = syncstore.OutcomeFailed, err.Error()
	}
	if ferr := p.store.FinishReceipt(ctx, t.Shop, t.DeliveryID, outcome, msg); ferr != nil {
		p.log.Errorw("finish receipt", "shop", t.Shop, "delivery_id", t.DeliveryID, "err", ferr)
	}
	return err
}

func (p *Processor) apply(ctx context.Context, t queue.WebhookProcessPayload) error {
	switch t.Topic {
	case topics.ProductsCreate, topics.ProductsUpdate:
		var prod shopify.Product
		if err := json.Unmarshal(t.Body, &prod); err != nil {
			return fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		if prod.ID == 0 {
			return fmt.Errorf("%w: product id missing", ErrBadPayload)
		}
		if err := p.store.UpsertProduct(ctx, syncer.ToProductRecord(t.Shop, prod, t.Body)); err != nil {
			return err
		}
		metrics.EntitiesUpserted.WithLabelValues("products").Inc()
		p.log.Infow("product upserted from webhook", "shop", t.Shop, "product_id", prod.ID)
		return nil

	case topics.ProductsDelete:
		var ref struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(t.Body, &ref); err != nil {
			return fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		if ref.ID == 0 {
			return fmt.Errorf("%w: product id missing", ErrBadPayload)
		}
		if err := p.store.DeleteProduct(ctx, t.Shop, ref.ID); err != nil {
			return err
		}
		p.log.Infow("product deleted from webhook", "shop", t.Shop, "product_id", ref.ID)
		return nil

	case topics.OrdersCreate, topics.OrdersUpdated:
		var ord shopify.Order
		if err := json.Unmarshal(t.Body, &ord); err != nil {
			return fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		if ord.ID == 0 {
			return fmt.Errorf("%w: order id missing", ErrBadPayload)
		}
		if err := p.store.UpsertOrder(ctx, syncer.ToOrderRecord(t.Shop, ord, t.Body)); err != nil {
			return err
		}
		metrics.EntitiesUpserted.WithLabelValues("orders").Inc()
		p.log.Infow("order upserted from webhook", "shop", t.Shop, "order_id", ord.ID)
		return nil

	case topics.InventoryUpdate:
		var lv shopify.InventoryLevel
		if err := json.Unmarshal(t.Body, &lv); err != nil {
			return fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		if lv.InventoryItemID == 0 || lv.LocationID == 0 {
			return fmt.Errorf("%w: inventory keys missing", ErrBadPayload)
		}
		if err := p.store.UpsertInventoryLevel(ctx, syncer.ToInventoryRecord(t.Shop, lv)); err != nil {
			return err
		}
		metrics.EntitiesUpserted.WithLabelValues("inventory").Inc()
		return nil

	default:
		p.log.Warnw("no processor for topic", "topic", t.Topic, "shop", t.Shop)
		return nil
	}
}
