// internal/webhooks/service.go
package webhooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"shopsync/pkg/metrics"
	"shopsync/pkg/queue"
	"shopsync/pkg/shops"
	"shopsync/pkg/syncstore"
	"shopsync/pkg/topics"
)

// Delivery is one verified inbound webhook.
type Delivery struct {
	Topic      string
	Shop       string
	DeliveryID string
	Body       []byte
}

// ComplianceHandler is the privacy-topic sink (see internal/compliance).
type ComplianceHandler interface {
	HandleDataRequest(ctx context.Context, shop string, body []byte) error
	HandleCustomerRedact(ctx context.Context, shop string, body []byte) error
	HandleShopRedact(ctx context.Context, shop string, body []byte) error
}

// Service accepts verified deliveries, filters duplicates through the receipt
// log, and routes each topic: compliance and uninstalls inline, resource
// topics to the worker.
type Service struct {
	store      syncstore.Store
	shops      shops.Store
	queue      queue.Enqueuer
	topics     *topics.Registry
	compliance ComplianceHandler
	log        *zap.SugaredLogger
}

func NewService(store syncstore.Store, sh shops.Store, q queue.Enqueuer, reg *topics.Registry, comp ComplianceHandler, log *zap.SugaredLogger) *Service {
	return &Service{store: store, shops: sh, queue: q, topics: reg, compliance: comp, log: log}
}

// Handle routes an already-verified delivery. A nil return means acknowledge;
// the platform redelivers on non-2xx, and a failed receipt is re-claimable so
// that redelivery gets processed instead of filtered.
func (s *Service) Handle(ctx context.Context, d Delivery) error {
	id := d.DeliveryID
	if id == "" {
		id = derivedDeliveryID(d)
	}
	if !s.topics.Contains(d.Topic) {
		metrics.WebhooksReceived.WithLabelValues(d.Topic, "unknown").Inc()
		s.log.Warnw("unregistered webhook topic", "topic", d.Topic, "shop", d.Shop)
		_, err := s.store.ClaimReceipt(ctx, syncstore.Receipt{
			Shop:       d.Shop,
			DeliveryID: id,
			Topic:      d.Topic,
			Outcome:    syncstore.OutcomeSkipped,
			ReceivedAt: time.Now().UTC(),
		})
		return err
	}
	first, err := s.store.ClaimReceipt(ctx, syncstore.Receipt{
		Shop:       d.Shop,
		DeliveryID: id,
		Topic:      d.Topic,
		Outcome:    syncstore.OutcomePending,
		ReceivedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("claim receipt: %w", err)
	}
	if !first {
		metrics.WebhooksReceived.WithLabelValues(d.Topic, "duplicate").Inc()
		s.log.Infow("duplicate webhook delivery", "topic", d.Topic, "shop", d.Shop, "delivery_id", id)
		return nil
	}
	metrics.WebhooksReceived.WithLabelValues(d.Topic, "accepted").Inc()

	switch d.Topic {
	case topics.DataRequest:
		return s.finish(ctx, d.Shop, id, s.compliance.HandleDataRequest(ctx, d.Shop, d.Body))
	case topics.CustomersRedact:
		return s.finish(ctx, d.Shop, id, s.compliance.HandleCustomerRedact(ctx, d.Shop, d.Body))
	case topics.ShopRedact:
		return s.finish(ctx, d.Shop, id, s.compliance.HandleShopRedact(ctx, d.Shop, d.Body))
	case topics.AppUninstalled:
		err := s.shops.Deactivate(ctx, d.Shop)
		if err == nil {
			s.log.Infow("shop uninstalled", "shop", d.Shop)
		}
		return s.finish(ctx, d.Shop, id, err)
	default:
		// Resource topics carry entity payloads; persistence happens on the
		// worker so the ack stays fast.
		err := s.queue.EnqueueWebhookProcess(ctx, queue.WebhookProcessPayload{
			Shop: d.Shop, Topic: d.Topic, DeliveryID: id, Body: d.Body,
		})
		if err != nil {
			_ = s.store.FinishReceipt(ctx, d.Shop, id, syncstore.OutcomeFailed, err.Error())
			return fmt.Errorf("enqueue webhook processing: %w", err)
		}
		return nil
	}
}

func (s *Service) finish(ctx context.Context, shop, id string, err error) error {
	if err != nil {
		_ = s.store.FinishReceipt(ctx, shop, id, syncstore.OutcomeFailed, err.Error())
		return err
	}
	return s.store.FinishReceipt(ctx, shop, id, syncstore.OutcomeProcessed, "")
}

// derivedDeliveryID keys deliveries that arrive without a webhook id header.
// Identical retransmissions dedupe; distinct events differ in payload.
func derivedDeliveryID(d Delivery) string {
	h := sha256.New()
	h.Write([]byte(d.Topic))
	h.Write([]byte{0})
	h.Write([]byte(d.Shop))
	h.Write([]byte{0})
	h.Write(d.Body)
	return hex.EncodeToString(h.Sum(nil))
}
