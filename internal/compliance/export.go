// internal/compliance/export.go
package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmespath/go-jmespath"

	"shopsync/pkg/syncstore"
)

// ErrExportUnbuildable marks a request whose export can never succeed
// (unknown request, undecodable payload). Not retryable.
var ErrExportUnbuildable = errors.New("data request export cannot be built")

// Selectors pulling the customer-facing slices out of raw order snapshots.
// A snapshot missing a path yields null and the field is dropped.
var exportSelectors = map[string]*jmespath.JMESPath{
	"email":            jmespath.MustCompile("customer.email || email"),
	"phone":            jmespath.MustCompile("customer.phone || phone"),
	"created_at":       jmespath.MustCompile("created_at"),
	"shipping_address": jmespath.MustCompile("shipping_address"),
	"billing_address":  jmespath.MustCompile("billing_address"),
	"line_items":       jmespath.MustCompile("line_items[].{title: title, quantity: quantity, price: price, sku: sku}"),
}

// BuildExport assembles the disclosure document for a recorded request: the
// customer identity from the request plus the orders it names, or all of the
// customer's orders when none are listed. The document lands on the request
// row; already-exported requests are left alone.
func (s *Service) BuildExport(ctx context.Context, shop string, requestID int64) error {
	req, err := s.store.GetDataRequest(ctx, shop, requestID)
	if err != nil {
		if errors.Is(err, syncstore.ErrRequestNotFound) {
			return fmt.Errorf("%w: request %d unknown", ErrExportUnbuildable, requestID)
		}
		return err
	}
	if req.Status == syncstore.RequestExported {
		return nil
	}
	var p dataRequestPayload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		_ = s.store.FailDataRequest(ctx, shop, requestID)
		return fmt.Errorf("%w: payload does not decode: %v", ErrExportUnbuildable, err)
	}

	orders, err := s.store.OrdersByCustomer(ctx, shop, p.Customer.ID, p.Customer.Email)
	if err != nil {
		return fmt.Errorf("load customer orders: %w", err)
	}
	if len(p.OrdersRequested) > 0 {
		want := make(map[int64]bool, len(p.OrdersRequested))
		for _, id := range p.OrdersRequested {
			want[id] = true
		}
		kept := orders[:0]
		for _, o := range orders {
			if want[o.OrderID] {
				kept = append(kept, o)
			}
		}
		orders = kept
	}

	doc, err := json.Marshal(map[string]any{
		"shop":         shop,
		"request_id":   requestID,
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"customer": map[string]any{
			"id":    p.Customer.ID,
			"email": p.Customer.Email,
			"phone": p.Customer.Phone,
		},
		"orders": exportOrders(orders),
	})
	if err != nil {
		return fmt.Errorf("marshal export: %w", err)
	}
	if err := s.store.CompleteDataRequest(ctx, shop, requestID, doc); err != nil {
		return fmt.Errorf("store export: %w", err)
	}
	s.log.Infow("data request exported", "shop", shop, "request_id", requestID, "orders", len(orders))
	return nil
}

func exportOrders(orders []syncstore.OrderRecord) []map[string]any {
	out := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		entry := map[string]any{
			"order_id":         o.OrderID,
			"order_number":     o.OrderNumber,
			"financial_status": o.FinancialStatus,
			"total_price":      o.TotalPrice.String(),
			"currency":         o.Currency,
		}
		// Contact and address detail comes from the raw snapshot.
		var snap any
		if len(o.Payload) > 0 && json.Unmarshal(o.Payload, &snap) == nil {
			for field, sel := range exportSelectors {
				if v, serr := sel.Search(snap); serr == nil && v != nil {
					entry[field] = v
				}
			}
		}
		out = append(out, entry)
	}
	return out
}
