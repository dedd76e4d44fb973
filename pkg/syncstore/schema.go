// pkg/syncstore/schema.go
package syncstore

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the sync tables if they do not already exist.
// Safe to call repeatedly (idempotent). Children cascade from their parent
// so shop-level erasure cannot leave orphans.
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS products (
  shop_domain text NOT NULL,
  product_id bigint NOT NULL,
  title text NOT NULL DEFAULT '',
  handle text NOT NULL DEFAULT '',
  status text NOT NULL DEFAULT '',
  product_type text NOT NULL DEFAULT '',
  vendor text NOT NULL DEFAULT '',
  tags text NOT NULL DEFAULT '',
  remote_created_at timestamptz,
  remote_updated_at timestamptz,
  payload jsonb,
  synced_at timestamptz NOT NULL DEFAULT NOW(),
  PRIMARY KEY (shop_domain, product_id)
);
CREATE TABLE IF NOT EXISTS product_variants (
  shop_domain text NOT NULL,
  product_id bigint NOT NULL,
  variant_id bigint NOT NULL,
  title text NOT NULL DEFAULT '',
  price numeric(10,2) NOT NULL DEFAULT 0,
  sku text NOT NULL DEFAULT '',
  barcode text NOT NULL DEFAULT '',
  inventory_quantity int NOT NULL DEFAULT 0,
  inventory_management text NOT NULL DEFAULT '',
  inventory_policy text NOT NULL DEFAULT '',
  weight numeric(10,2) NOT NULL DEFAULT 0,
  weight_unit text NOT NULL DEFAULT '',
  synced_at timestamptz NOT NULL DEFAULT NOW(),
  PRIMARY KEY (shop_domain, product_id, variant_id),
  FOREIGN KEY (shop_domain, product_id) REFERENCES products(shop_domain, product_id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS orders (
  shop_domain text NOT NULL,
  order_id bigint NOT NULL,
  order_number bigint NOT NULL DEFAULT 0,
  financial_status text NOT NULL DEFAULT '',
  fulfillment_status text NOT NULL DEFAULT '',
  total_price numeric(10,2) NOT NULL DEFAULT 0,
  subtotal_price numeric(10,2) NOT NULL DEFAULT 0,
  total_tax numeric(10,2) NOT NULL DEFAULT 0,
  currency text NOT NULL DEFAULT '',
  customer_id bigint NOT NULL DEFAULT 0,
  customer_email text,
  customer_phone text,
  shipping_address jsonb,
  billing_address jsonb,
  remote_created_at timestamptz,
  remote_updated_at timestamptz,
  payload jsonb,
  synced_at timestamptz NOT NULL DEFAULT NOW(),
  PRIMARY KEY (shop_domain, order_id)
);
CREATE INDEX IF NOT EXISTS orders_customer_idx ON orders(shop_domain, customer_id);
CREATE TABLE IF NOT EXISTS order_line_items (
  shop_domain text NOT NULL,
  order_id bigint NOT NULL,
  line_item_id bigint NOT NULL,
  product_id bigint NOT NULL DEFAULT 0,
  variant_id bigint NOT NULL DEFAULT 0,
  title text NOT NULL DEFAULT '',
  variant_title text NOT NULL DEFAULT '',
  quantity int NOT NULL DEFAULT 0,
  price numeric(10,2) NOT NULL DEFAULT 0,
  total_discount numeric(10,2) NOT NULL DEFAULT 0,
  sku text NOT NULL DEFAULT '',
  vendor text NOT NULL DEFAULT '',
  PRIMARY KEY (shop_domain, order_id, line_item_id),
  FOREIGN KEY (shop_domain, order_id) REFERENCES orders(shop_domain, order_id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS inventory_levels (
  shop_domain text NOT NULL,
  inventory_item_id bigint NOT NULL,
  location_id bigint NOT NULL,
  available int NOT NULL DEFAULT 0,
  remote_updated_at timestamptz,
  synced_at timestamptz NOT NULL DEFAULT NOW(),
  PRIMARY KEY (shop_domain, inventory_item_id, location_id)
);
CREATE TABLE IF NOT EXISTS webhook_receipts (
  shop_domain text NOT NULL,
  delivery_id text NOT NULL,
  topic text NOT NULL,
  outcome text NOT NULL DEFAULT 'pending',
  error text NOT NULL DEFAULT '',
  received_at timestamptz NOT NULL DEFAULT NOW(),
  PRIMARY KEY (shop_domain, delivery_id)
);
CREATE TABLE IF NOT EXISTS data_requests (
  shop_domain text NOT NULL,
  request_id bigint NOT NULL,
  customer_id bigint NOT NULL DEFAULT 0,
  payload jsonb,
  status text NOT NULL DEFAULT 'received',
  export jsonb,
  requested_at timestamptz NOT NULL DEFAULT NOW(),
  completed_at timestamptz,
  PRIMARY KEY (shop_domain, request_id)
);
`)
	return err
}
