// pkg/syncstore/model.go
package syncstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrRequestNotFound marks a data request that was never recorded.
var ErrRequestNotFound = errors.New("data request not found")

// ErrEntityNotFound covers lookups of entities never synced or since erased.
var ErrEntityNotFound = errors.New("entity not found")

// ProductRecord is a synchronized product keyed by (shop, remote product ID).
// Payload keeps the raw platform snapshot; extracted columns serve queries.
type ProductRecord struct {
	Shop            string
	ProductID       int64
	Title           string
	Handle          string
	Status          string
	ProductType     string
	Vendor          string
	Tags            string
	RemoteCreatedAt *time.Time
	RemoteUpdatedAt *time.Time
	Payload         json.RawMessage
	SyncedAt        time.Time
	Variants        []VariantRecord
}

type VariantRecord struct {
	VariantID           int64
	Title               string
	Price               decimal.Decimal
	SKU                 string
	Barcode             string
	InventoryQuantity   int
	InventoryManagement string
	InventoryPolicy     string
	Weight              decimal.Decimal
	WeightUnit          string
}

type OrderRecord struct {
	Shop              string
	OrderID           int64
	OrderNumber       int64
	FinancialStatus   string
	FulfillmentStatus string
	TotalPrice        decimal.Decimal
	SubtotalPrice     decimal.Decimal
	TotalTax          decimal.Decimal
	Currency          string
	CustomerID        int64
	CustomerEmail     string
	CustomerPhone     string
	ShippingAddress   json.RawMessage
	BillingAddress    json.RawMessage
	RemoteCreatedAt   *time.Time
	RemoteUpdatedAt   *time.Time
	Payload           json.RawMessage
	SyncedAt          time.Time
	LineItems         []LineItemRecord
}

type LineItemRecord struct {
	LineItemID    int64
	ProductID     int64
	VariantID     int64
	Title         string
	VariantTitle  string
	Quantity      int
	Price         decimal.Decimal
	TotalDiscount decimal.Decimal
	SKU           string
	Vendor        string
}

// InventoryRecord is keyed by (shop, inventory item, location).
type InventoryRecord struct {
	Shop            string
	InventoryItemID int64
	LocationID      int64
	Available       int
	RemoteUpdatedAt *time.Time
	SyncedAt        time.Time
}

// Receipt logs one inbound webhook delivery attempt.
type Receipt struct {
	Shop       string
	DeliveryID string
	Topic      string
	Outcome    string // pending | processed | skipped | failed
	Error      string
	ReceivedAt time.Time
}

const (
	OutcomePending   = "pending"
	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// DataRequest is a durably recorded customers/data_request delivery.
type DataRequest struct {
	Shop        string
	RequestID   int64
	CustomerID  int64
	Payload     json.RawMessage
	Status      string // received | exported | failed
	Export      json.RawMessage
	RequestedAt time.Time
	CompletedAt *time.Time
}

const (
	RequestReceived = "received"
	RequestExported = "exported"
	RequestFailed   = "failed"
)

// ErasureCounts reports what a shop-level erasure removed.
type ErasureCounts struct {
	Products     int64
	Orders       int64
	Inventory    int64
	DataRequests int64
	Receipts     int64
}

// EntityStore holds synchronized entities. Upserts are idempotent by
// (shop, remote ID); child sets (variants, line items) are reconciled
// against the latest payload in the same operation.
type EntityStore interface {
	UpsertProduct(ctx context.Context, p ProductRecord) error
	GetProduct(ctx context.Context, shop string, productID int64) (ProductRecord, error)
	DeleteProduct(ctx context.Context, shop string, productID int64) error
	UpsertOrder(ctx context.Context, o OrderRecord) error
	GetOrder(ctx context.Context, shop string, orderID int64) (OrderRecord, error)
	DeleteOrder(ctx context.Context, shop string, orderID int64) error
	DeleteOrders(ctx context.Context, shop string, orderIDs []int64) (int64, error)
	// OrdersByCustomer matches on remote customer ID, falling back to email.
	OrdersByCustomer(ctx context.Context, shop string, customerID int64, email string) ([]OrderRecord, error)
	// AnonymizeCustomerOrders strips contact fields and payload PII from the
	// customer's remaining orders. Returns affected row count.
	AnonymizeCustomerOrders(ctx context.Context, shop string, customerID int64, email string) (int64, error)
	UpsertInventoryLevel(ctx context.Context, lv InventoryRecord) error
	ListInventory(ctx context.Context, shop string, limit int) ([]InventoryRecord, error)
	// EraseEntities removes every synchronized entity and data request for
	// the shop. Safe to re-run; absent rows are a no-op.
	EraseEntities(ctx context.Context, shop string) (ErasureCounts, error)
	// Counts reports remaining rows per table for the shop.
	Counts(ctx context.Context, shop string) (ErasureCounts, error)
}

// ReceiptStore is the webhook delivery log and duplicate filter.
type ReceiptStore interface {
	// ClaimReceipt records the delivery and reports whether this is the
	// first time the (shop, delivery ID) pair was seen.
	ClaimReceipt(ctx context.Context, r Receipt) (bool, error)
	FinishReceipt(ctx context.Context, shop, deliveryID, outcome, errMsg string) error
	DeleteReceipts(ctx context.Context, shop string) (int64, error)
}

// RequestStore persists data-access requests and their export snapshots.
type RequestStore interface {
	RecordDataRequest(ctx context.Context, d DataRequest) error
	GetDataRequest(ctx context.Context, shop string, requestID int64) (DataRequest, error)
	CompleteDataRequest(ctx context.Context, shop string, requestID int64, export json.RawMessage) error
	FailDataRequest(ctx context.Context, shop string, requestID int64) error
}

type Store interface {
	EntityStore
	ReceiptStore
	RequestStore
}
