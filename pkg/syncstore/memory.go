// pkg/syncstore/memory.go
package syncstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type invKey struct {
	item     int64
	location int64
}

// memStore backs dev without a database and the test suite. Semantics track
// the PostgreSQL implementation, including child-set reconciliation.
type memStore struct {
	mu        sync.RWMutex
	products  map[string]map[int64]ProductRecord
	orders    map[string]map[int64]OrderRecord
	inventory map[string]map[invKey]InventoryRecord
	receipts  map[string]map[string]Receipt
	requests  map[string]map[int64]DataRequest
}

func NewMemoryStore() Store {
	return &memStore{
		products:  map[string]map[int64]ProductRecord{},
		orders:    map[string]map[int64]OrderRecord{},
		inventory: map[string]map[invKey]InventoryRecord{},
		receipts:  map[string]map[string]Receipt{},
		requests:  map[string]map[int64]DataRequest{},
	}
}

func (m *memStore) UpsertProduct(ctx context.Context, p ProductRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.products[p.Shop] == nil {
		m.products[p.Shop] = map[int64]ProductRecord{}
	}
	p.SyncedAt = time.Now()
	m.products[p.Shop][p.ProductID] = p
	return nil
}

func (m *memStore) GetProduct(ctx context.Context, shop string, productID int64) (ProductRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.products[shop][productID]; ok {
		return p, nil
	}
	return ProductRecord{}, ErrEntityNotFound
}

func (m *memStore) DeleteProduct(ctx context.Context, shop string, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products[shop], productID)
	return nil
}

func (m *memStore) UpsertOrder(ctx context.Context, o OrderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.orders[o.Shop] == nil {
		m.orders[o.Shop] = map[int64]OrderRecord{}
	}
	o.SyncedAt = time.Now()
	m.orders[o.Shop][o.OrderID] = o
	return nil
}

func (m *memStore) GetOrder(ctx context.Context, shop string, orderID int64) (OrderRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if o, ok := m.orders[shop][orderID]; ok {
		return o, nil
	}
	return OrderRecord{}, ErrEntityNotFound
}

func (m *memStore) DeleteOrder(ctx context.Context, shop string, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.orders[shop], orderID)
	return nil
}

func (m *memStore) DeleteOrders(ctx context.Context, shop string, orderIDs []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range orderIDs {
		if _, ok := m.orders[shop][id]; ok {
			delete(m.orders[shop], id)
			n++
		}
	}
	return n, nil
}

func matchesCustomer(o OrderRecord, customerID int64, email string) bool {
	if customerID != 0 && o.CustomerID == customerID {
		return true
	}
	return email != "" && o.CustomerEmail == email
}

func (m *memStore) OrdersByCustomer(ctx context.Context, shop string, customerID int64, email string) ([]OrderRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []OrderRecord
	for _, o := range m.orders[shop] {
		if matchesCustomer(o, customerID, email) {
			out = append(out, o)
		}
	}
	return out, nil
}

var piiPayloadKeys = []string{"customer", "email", "contact_email", "phone", "shipping_address", "billing_address"}

func (m *memStore) AnonymizeCustomerOrders(ctx context.Context, shop string, customerID int64, email string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, o := range m.orders[shop] {
		if !matchesCustomer(o, customerID, email) {
			continue
		}
		o.CustomerEmail = ""
		o.CustomerPhone = ""
		o.ShippingAddress = nil
		o.BillingAddress = nil
		if len(o.Payload) > 0 {
			var doc map[string]any
			if err := json.Unmarshal(o.Payload, &doc); err == nil {
				for _, k := range piiPayloadKeys {
					delete(doc, k)
				}
				if b, err := json.Marshal(doc); err == nil {
					o.Payload = b
				}
			}
		}
		m.orders[shop][id] = o
		n++
	}
	return n, nil
}

func (m *memStore) UpsertInventoryLevel(ctx context.Context, lv InventoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inventory[lv.Shop] == nil {
		m.inventory[lv.Shop] = map[invKey]InventoryRecord{}
	}
	lv.SyncedAt = time.Now()
	m.inventory[lv.Shop][invKey{lv.InventoryItemID, lv.LocationID}] = lv
	return nil
}

func (m *memStore) ListInventory(ctx context.Context, shop string, limit int) ([]InventoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	var out []InventoryRecord
	for _, lv := range m.inventory[shop] {
		out = append(out, lv)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) EraseEntities(ctx context.Context, shop string) (ErasureCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := ErasureCounts{
		Products:     int64(len(m.products[shop])),
		Orders:       int64(len(m.orders[shop])),
		Inventory:    int64(len(m.inventory[shop])),
		DataRequests: int64(len(m.requests[shop])),
	}
	delete(m.products, shop)
	delete(m.orders, shop)
	delete(m.inventory, shop)
	delete(m.requests, shop)
	return counts, nil
}

func (m *memStore) Counts(ctx context.Context, shop string) (ErasureCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ErasureCounts{
		Products:     int64(len(m.products[shop])),
		Orders:       int64(len(m.orders[shop])),
		Inventory:    int64(len(m.inventory[shop])),
		DataRequests: int64(len(m.requests[shop])),
		Receipts:     int64(len(m.receipts[shop])),
	}, nil
}

func (m *memStore) ClaimReceipt(ctx context.Context, r Receipt) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.receipts[r.Shop] == nil {
		m.receipts[r.Shop] = map[string]Receipt{}
	}
	if prev, seen := m.receipts[r.Shop][r.DeliveryID]; seen && prev.Outcome != OutcomeFailed {
		return false, nil
	}
	r.ReceivedAt = time.Now()
	m.receipts[r.Shop][r.DeliveryID] = r
	return true, nil
}

func (m *memStore) FinishReceipt(ctx context.Context, shop, deliveryID, outcome, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.receipts[shop][deliveryID]; ok {
		r.Outcome = outcome
		r.Error = errMsg
		m.receipts[shop][deliveryID] = r
	}
	return nil
}

func (m *memStore) DeleteReceipts(ctx context.Context, shop string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.receipts[shop]))
	delete(m.receipts, shop)
	return n, nil
}

func (m *memStore) RecordDataRequest(ctx context.Context, d DataRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.requests[d.Shop] == nil {
		m.requests[d.Shop] = map[int64]DataRequest{}
	}
	if _, seen := m.requests[d.Shop][d.RequestID]; seen {
		return nil
	}
	d.Status = RequestReceived
	d.RequestedAt = time.Now()
	m.requests[d.Shop][d.RequestID] = d
	return nil
}

func (m *memStore) GetDataRequest(ctx context.Context, shop string, requestID int64) (DataRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.requests[shop][requestID]; ok {
		return d, nil
	}
	return DataRequest{}, ErrRequestNotFound
}

func (m *memStore) CompleteDataRequest(ctx context.Context, shop string, requestID int64, export json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.requests[shop][requestID]; ok {
		now := time.Now()
		d.Status = RequestExported
		d.Export = export
		d.CompletedAt = &now
		m.requests[shop][requestID] = d
	}
	return nil
}

func (m *memStore) FailDataRequest(ctx context.Context, shop string, requestID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.requests[shop][requestID]; ok {
		d.Status = RequestFailed
		m.requests[shop][requestID] = d
	}
	return nil
}
