// internal/syncer/convert.go
package syncer

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"shopsync/internal/shopify"
	"shopsync/pkg/syncstore"
)

// ToProductRecord maps a platform product onto the stored shape. payload is
// the raw JSON snapshot kept alongside the extracted columns; nil re-marshals
// from the struct (sync path).
func ToProductRecord(shop string, p shopify.Product, payload []byte) syncstore.ProductRecord {
	if payload == nil {
		payload, _ = json.Marshal(p)
	}
	rec := syncstore.ProductRecord{
		Shop:            shop,
		ProductID:       p.ID,
		Title:           p.Title,
		Handle:          p.Handle,
		Status:          p.Status,
		ProductType:     p.ProductType,
		Vendor:          p.Vendor,
		Tags:            p.Tags,
		RemoteCreatedAt: timePtr(p.CreatedAt),
		RemoteUpdatedAt: timePtr(p.UpdatedAt),
		Payload:         payload,
		SyncedAt:        time.Now().UTC(),
	}
	for _, v := range p.Variants {
		rec.Variants = append(rec.Variants, syncstore.VariantRecord{
			VariantID:           v.ID,
			Title:               v.Title,
			Price:               v.Price,
			SKU:                 v.SKU,
			Barcode:             v.Barcode,
			InventoryQuantity:   v.InventoryQuantity,
			InventoryManagement: v.InventoryManagement,
			InventoryPolicy:     v.InventoryPolicy,
			Weight:              decimal.NewFromFloat(v.Weight),
			WeightUnit:          v.WeightUnit,
		})
	}
	return rec
}

// ToOrderRecord flattens customer contact and addresses into columns next to
// the raw payload. Top-level email/phone fill in when the customer object is
// absent.
func ToOrderRecord(shop string, o shopify.Order, payload []byte) syncstore.OrderRecord {
	if payload == nil {
		payload, _ = json.Marshal(o)
	}
	rec := syncstore.OrderRecord{
		Shop:              shop,
		OrderID:           o.ID,
		OrderNumber:       o.OrderNumber,
		FinancialStatus:   o.FinancialStatus,
		FulfillmentStatus: o.FulfillmentStatus,
		TotalPrice:        o.TotalPrice,
		SubtotalPrice:     o.SubtotalPrice,
		TotalTax:          o.TotalTax,
		Currency:          o.Currency,
		RemoteCreatedAt:   timePtr(o.CreatedAt),
		RemoteUpdatedAt:   timePtr(o.UpdatedAt),
		Payload:           payload,
		SyncedAt:          time.Now().UTC(),
	}
	if o.Customer != nil {
		rec.CustomerID = o.Customer.ID
		rec.CustomerEmail = o.Customer.Email
		rec.CustomerPhone = o.Customer.Phone
	}
	if rec.CustomerEmail == "" {
		rec.CustomerEmail = o.Email
	}
	if rec.CustomerPhone == "" {
		rec.CustomerPhone = o.Phone
	}
	if o.ShippingAddress != nil {
		rec.ShippingAddress, _ = json.Marshal(o.ShippingAddress)
	}
	if o.BillingAddress != nil {
		rec.BillingAddress, _ = json.Marshal(o.BillingAddress)
	}
	for _, li := range o.LineItems {
		rec.LineItems = append(rec.LineItems, syncstore.LineItemRecord{
			LineItemID:    li.ID,
			ProductID:     li.ProductID,
			VariantID:     li.VariantID,
			Title:         li.Title,
			VariantTitle:  li.VariantTitle,
			Quantity:      li.Quantity,
			Price:         li.Price,
			TotalDiscount: li.TotalDiscount,
			SKU:           li.SKU,
			Vendor:        li.Vendor,
		})
	}
	return rec
}

func ToInventoryRecord(shop string, lv shopify.InventoryLevel) syncstore.InventoryRecord {
	return syncstore.InventoryRecord{
		Shop:            shop,
		InventoryItemID: lv.InventoryItemID,
		LocationID:      lv.LocationID,
		Available:       int(lv.Available),
		RemoteUpdatedAt: timePtr(lv.UpdatedAt),
		SyncedAt:        time.Now().UTC(),
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
