// internal/compliance/service.go
package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"shopsync/pkg/queue"
	"shopsync/pkg/shops"
	"shopsync/pkg/syncstore"
)

// Privacy webhook payloads. The shop always comes from the verified delivery
// header, never from the body.
type payloadCustomer struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type dataRequestPayload struct {
	OrdersRequested []int64         `json:"orders_requested"`
	Customer        payloadCustomer `json:"customer"`
	DataRequest     struct {
		ID int64 `json:"id"`
	} `json:"data_request"`
}

type customerRedactPayload struct {
	Customer       payloadCustomer `json:"customer"`
	OrdersToRedact []int64         `json:"orders_to_redact"`
}

// Service implements the mandatory privacy topics. Every operation here is
// idempotent: the platform redelivers until it sees a 2xx.
type Service struct {
	store syncstore.Store
	shops shops.Store
	queue queue.Enqueuer
	log   *zap.SugaredLogger
}

func NewService(store syncstore.Store, sh shops.Store, q queue.Enqueuer, log *zap.SugaredLogger) *Service {
	return &Service{store: store, shops: sh, queue: q, log: log}
}

// HandleDataRequest durably records the request before anything else, then
// schedules export assembly on the worker. A redelivery re-enqueues at most;
// the record cannot regress from exported back to received.
func (s *Service) HandleDataRequest(ctx context.Context, shop string, body []byte) error {
	var p dataRequestPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return fmt.Errorf("decode data_request: %w", err)
	}
	if p.DataRequest.ID == 0 {
		return errors.New("data_request id missing")
	}
	if err := s.store.RecordDataRequest(ctx, syncstore.DataRequest{
		Shop:       shop,
		RequestID:  p.DataRequest.ID,
		CustomerID: p.Customer.ID,
		Payload:    body,
		Status:     syncstore.RequestReceived,
	}); err != nil {
		return fmt.Errorf("record data request: %w", err)
	}
	s.log.Infow("data request recorded", "shop", shop, "request_id", p.DataRequest.ID, "customer_id", p.Customer.ID)
	if err := s.queue.EnqueueDataExport(ctx, shop, p.DataRequest.ID); err != nil {
		// The record survives; a manual export pass can pick it up.
		s.log.Errorw("enqueue data export", "shop", shop, "request_id", p.DataRequest.ID, "err", err)
	}
	return nil
}

// HandleCustomerRedact deletes the orders the platform names, then strips
// contact fields and payload PII from whatever else the customer has in this
// shop. Aggregates (totals, currency, line items) stay for bookkeeping.
func (s *Service) HandleCustomerRedact(ctx context.Context, shop string, body []byte) error {
	var p customerRedactPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return fmt.Errorf("decode customers/redact: %w", err)
	}
	var deleted int64
	if len(p.OrdersToRedact) > 0 {
		n, err := s.store.DeleteOrders(ctx, shop, p.OrdersToRedact)
		if err != nil {
			return fmt.Errorf("delete redacted orders: %w", err)
		}
		deleted = n
	}
	anonymized, err := s.store.AnonymizeCustomerOrders(ctx, shop, p.Customer.ID, p.Customer.Email)
	if err != nil {
		return fmt.Errorf("anonymize customer orders: %w", err)
	}
	s.log.Infow("customer redacted", "shop", shop, "customer_id", p.Customer.ID,
		"orders_deleted", deleted, "orders_anonymized", anonymized)
	return nil
}

// HandleShopRedact erases everything held for the shop: synchronized
// entities and data requests first, then the delivery log, then the
// credential. Rerunning against an already-erased shop is a no-op.
func (s *Service) HandleShopRedact(ctx context.Context, shop string, body []byte) error {
	counts, err := s.store.EraseEntities(ctx, shop)
	if err != nil {
		return fmt.Errorf("erase entities: %w", err)
	}
	receipts, err := s.store.DeleteReceipts(ctx, shop)
	if err != nil {
		return fmt.Errorf("delete receipts: %w", err)
	}
	if err := s.shops.Delete(ctx, shop); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	s.log.Infow("shop redacted", "shop", shop,
		"products", counts.Products, "orders", counts.Orders, "inventory", counts.Inventory,
		"data_requests", counts.DataRequests, "receipts", receipts)
	return nil
}
