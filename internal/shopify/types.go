// internal/shopify/types.go
package shopify

import (
	"time"

	"github.com/shopspring/decimal"
)

// REST Admin API resources, trimmed to the fields this service consumes.
// Money fields arrive as JSON strings ("19.99") and decode via decimal.

type Product struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Handle      string    `json:"handle"`
	Status      string    `json:"status"`
	ProductType string    `json:"product_type"`
	Vendor      string    `json:"vendor"`
	Tags        string    `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Variants    []Variant `json:"variants"`
}

type Variant struct {
	ID                  int64           `json:"id"`
	ProductID           int64           `json:"product_id"`
	Title               string          `json:"title"`
	Price               decimal.Decimal `json:"price"`
	SKU                 string          `json:"sku"`
	Barcode             string          `json:"barcode"`
	InventoryItemID     int64           `json:"inventory_item_id"`
	InventoryQuantity   int             `json:"inventory_quantity"`
	InventoryManagement string          `json:"inventory_management"`
	InventoryPolicy     string          `json:"inventory_policy"`
	Weight              float64         `json:"weight"`
	WeightUnit          string          `json:"weight_unit"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

type Order struct {
	ID                int64           `json:"id"`
	OrderNumber       int64           `json:"order_number"`
	Name              string          `json:"name"`
	FinancialStatus   string          `json:"financial_status"`
	FulfillmentStatus string          `json:"fulfillment_status"`
	TotalPrice        decimal.Decimal `json:"total_price"`
	SubtotalPrice     decimal.Decimal `json:"subtotal_price"`
	TotalTax          decimal.Decimal `json:"total_tax"`
	Currency          string          `json:"currency"`
	Email             string          `json:"email"`
	Phone             string          `json:"phone"`
	Customer          *Customer       `json:"customer"`
	ShippingAddress   *Address        `json:"shipping_address"`
	BillingAddress    *Address        `json:"billing_address"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	LineItems         []LineItem      `json:"line_items"`
}

type Customer struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2"`
	City      string `json:"city"`
	Province  string `json:"province"`
	Country   string `json:"country"`
	Zip       string `json:"zip"`
	Phone     string `json:"phone"`
}

type LineItem struct {
	ID            int64           `json:"id"`
	ProductID     int64           `json:"product_id"`
	VariantID     int64           `json:"variant_id"`
	Title         string          `json:"title"`
	VariantTitle  string          `json:"variant_title"`
	Quantity      int             `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	SKU           string          `json:"sku"`
	Vendor        string          `json:"vendor"`
}

// InventoryLevel.Available stays zero when the platform reports null
// (untracked items).
type InventoryLevel struct {
	InventoryItemID int64     `json:"inventory_item_id"`
	LocationID      int64     `json:"location_id"`
	Available       int64     `json:"available"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Location struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type Webhook struct {
	ID      int64  `json:"id"`
	Topic   string `json:"topic"`
	Address string `json:"address"`
	Format  string `json:"format"`
}

// AccessToken is the authorization-code exchange result.
type AccessToken struct {
	Token string `json:"access_token"`
	Scope string `json:"scope"`
}
