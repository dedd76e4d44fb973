// pkg/syncstore/postgres.go
package syncstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"shopsync/pkg/db"
)

// pgStore implements Store backed by PostgreSQL.
type pgStore struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, log: log}
}

func (s *pgStore) UpsertProduct(ctx context.Context, p ProductRecord) error {
	return db.WithTx(ctx, s.dbPool, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO products(shop_domain, product_id, title, handle, status, product_type, vendor, tags, remote_created_at, remote_updated_at, payload, synced_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW())
		 ON CONFLICT (shop_domain, product_id) DO UPDATE SET
		   title=EXCLUDED.title, handle=EXCLUDED.handle, status=EXCLUDED.status,
		   product_type=EXCLUDED.product_type, vendor=EXCLUDED.vendor, tags=EXCLUDED.tags,
		   remote_created_at=EXCLUDED.remote_created_at, remote_updated_at=EXCLUDED.remote_updated_at,
		   payload=EXCLUDED.payload, synced_at=NOW()`,
			p.Shop, p.ProductID, p.Title, p.Handle, p.Status, p.ProductType, p.Vendor, p.Tags,
			p.RemoteCreatedAt, p.RemoteUpdatedAt, []byte(p.Payload))
		if err != nil {
			return err
		}
		keep := make([]int64, 0, len(p.Variants))
		for _, v := range p.Variants {
			keep = append(keep, v.VariantID)
			if _, err := tx.Exec(ctx, `INSERT INTO product_variants(shop_domain, product_id, variant_id, title, price, sku, barcode, inventory_quantity, inventory_management, inventory_policy, weight, weight_unit, synced_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW())
			 ON CONFLICT (shop_domain, product_id, variant_id) DO UPDATE SET
			   title=EXCLUDED.title, price=EXCLUDED.price, sku=EXCLUDED.sku, barcode=EXCLUDED.barcode,
			   inventory_quantity=EXCLUDED.inventory_quantity, inventory_management=EXCLUDED.inventory_management,
			   inventory_policy=EXCLUDED.inventory_policy, weight=EXCLUDED.weight, weight_unit=EXCLUDED.weight_unit,
			   synced_at=NOW()`,
				p.Shop, p.ProductID, v.VariantID, v.Title, v.Price, v.SKU, v.Barcode,
				v.InventoryQuantity, v.InventoryManagement, v.InventoryPolicy, v.Weight, v.WeightUnit); err != nil {
				return err
			}
		}
		// Variants absent from the latest payload are gone upstream.
		_, err = tx.Exec(ctx, `DELETE FROM product_variants WHERE shop_domain=$1 AND product_id=$2 AND NOT (variant_id = ANY($3))`,
			p.Shop, p.ProductID, keep)
		return err
	})
}

func (s *pgStore) GetProduct(ctx context.Context, shop string, productID int64) (ProductRecord, error) {
	row := s.dbPool.QueryRow(ctx, `SELECT shop_domain, product_id, title, handle, status, product_type, vendor, tags, remote_created_at, remote_updated_at, payload, synced_at
	 FROM products WHERE shop_domain=$1 AND product_id=$2`, shop, productID)
	var p ProductRecord
	if err := row.Scan(&p.Shop, &p.ProductID, &p.Title, &p.Handle, &p.Status, &p.ProductType, &p.Vendor, &p.Tags,
		&p.RemoteCreatedAt, &p.RemoteUpdatedAt, &p.Payload, &p.SyncedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductRecord{}, ErrEntityNotFound
		}
		return ProductRecord{}, err
	}
	rows, err := s.dbPool.Query(ctx, `SELECT variant_id, title, price, sku, barcode, inventory_quantity, inventory_management, inventory_policy, weight, weight_unit
	 FROM product_variants WHERE shop_domain=$1 AND product_id=$2 ORDER BY variant_id`, shop, productID)
	if err != nil {
		return ProductRecord{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var v VariantRecord
		if err := rows.Scan(&v.VariantID, &v.Title, &v.Price, &v.SKU, &v.Barcode, &v.InventoryQuantity,
			&v.InventoryManagement, &v.InventoryPolicy, &v.Weight, &v.WeightUnit); err != nil {
			return ProductRecord{}, err
		}
		p.Variants = append(p.Variants, v)
	}
	return p, rows.Err()
}

func (s *pgStore) DeleteProduct(ctx context.Context, shop string, productID int64) error {
	_, err := s.dbPool.Exec(ctx, `DELETE FROM products WHERE shop_domain=$1 AND product_id=$2`, shop, productID)
	return err
}

func (s *pgStore) UpsertOrder(ctx context.Context, o OrderRecord) error {
	return db.WithTx(ctx, s.dbPool, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO orders(shop_domain, order_id, order_number, financial_status, fulfillment_status, total_price, subtotal_price, total_tax, currency, customer_id, customer_email, customer_phone, shipping_address, billing_address, remote_created_at, remote_updated_at, payload, synced_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,NOW())
		 ON CONFLICT (shop_domain, order_id) DO UPDATE SET
		   order_number=EXCLUDED.order_number, financial_status=EXCLUDED.financial_status,
		   fulfillment_status=EXCLUDED.fulfillment_status, total_price=EXCLUDED.total_price,
		   subtotal_price=EXCLUDED.subtotal_price, total_tax=EXCLUDED.total_tax, currency=EXCLUDED.currency,
		   customer_id=EXCLUDED.customer_id, customer_email=EXCLUDED.customer_email, customer_phone=EXCLUDED.customer_phone,
		   shipping_address=EXCLUDED.shipping_address, billing_address=EXCLUDED.billing_address,
		   remote_created_at=EXCLUDED.remote_created_at, remote_updated_at=EXCLUDED.remote_updated_at,
		   payload=EXCLUDED.payload, synced_at=NOW()`,
			o.Shop, o.OrderID, o.OrderNumber, o.FinancialStatus, o.FulfillmentStatus,
			o.TotalPrice, o.SubtotalPrice, o.TotalTax, o.Currency, o.CustomerID,
			nullIfEmpty(o.CustomerEmail), nullIfEmpty(o.CustomerPhone),
			[]byte(o.ShippingAddress), []byte(o.BillingAddress),
			o.RemoteCreatedAt, o.RemoteUpdatedAt, []byte(o.Payload))
		if err != nil {
			return err
		}
		keep := make([]int64, 0, len(o.LineItems))
		for _, li := range o.LineItems {
			keep = append(keep, li.LineItemID)
			if _, err := tx.Exec(ctx, `INSERT INTO order_line_items(shop_domain, order_id, line_item_id, product_id, variant_id, title, variant_title, quantity, price, total_discount, sku, vendor)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			 ON CONFLICT (shop_domain, order_id, line_item_id) DO UPDATE SET
			   product_id=EXCLUDED.product_id, variant_id=EXCLUDED.variant_id, title=EXCLUDED.title,
			   variant_title=EXCLUDED.variant_title, quantity=EXCLUDED.quantity, price=EXCLUDED.price,
			   total_discount=EXCLUDED.total_discount, sku=EXCLUDED.sku, vendor=EXCLUDED.vendor`,
				o.Shop, o.OrderID, li.LineItemID, li.ProductID, li.VariantID, li.Title, li.VariantTitle,
				li.Quantity, li.Price, li.TotalDiscount, li.SKU, li.Vendor); err != nil {
				return err
			}
		}
		// Set reconciliation: line items missing from the latest payload are
		// removed in the same transaction as the upsert.
		_, err = tx.Exec(ctx, `DELETE FROM order_line_items WHERE shop_domain=$1 AND order_id=$2 AND NOT (line_item_id = ANY($3))`,
			o.Shop, o.OrderID, keep)
		return err
	})
}

func (s *pgStore) GetOrder(ctx context.Context, shop string, orderID int64) (OrderRecord, error) {
	row := s.dbPool.QueryRow(ctx, `SELECT shop_domain, order_id, order_number, financial_status, fulfillment_status, total_price, subtotal_price, total_tax, currency, customer_id, COALESCE(customer_email,''), COALESCE(customer_phone,''), shipping_address, billing_address, remote_created_at, remote_updated_at, payload, synced_at
	 FROM orders WHERE shop_domain=$1 AND order_id=$2`, shop, orderID)
	var o OrderRecord
	if err := row.Scan(&o.Shop, &o.OrderID, &o.OrderNumber, &o.FinancialStatus, &o.FulfillmentStatus,
		&o.TotalPrice, &o.SubtotalPrice, &o.TotalTax, &o.Currency, &o.CustomerID,
		&o.CustomerEmail, &o.CustomerPhone, &o.ShippingAddress, &o.BillingAddress,
		&o.RemoteCreatedAt, &o.RemoteUpdatedAt, &o.Payload, &o.SyncedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderRecord{}, ErrEntityNotFound
		}
		return OrderRecord{}, err
	}
	items, err := s.lineItemsForOrders(ctx, shop, []int64{orderID})
	if err != nil {
		return OrderRecord{}, err
	}
	o.LineItems = items[orderID]
	return o, nil
}

func (s *pgStore) DeleteOrder(ctx context.Context, shop string, orderID int64) error {
	_, err := s.dbPool.Exec(ctx, `DELETE FROM orders WHERE shop_domain=$1 AND order_id=$2`, shop, orderID)
	return err
}

func (s *pgStore) DeleteOrders(ctx context.Context, shop string, orderIDs []int64) (int64, error) {
	if len(orderIDs) == 0 {
		return 0, nil
	}
	tag, err := s.dbPool.Exec(ctx, `DELETE FROM orders WHERE shop_domain=$1 AND order_id = ANY($2)`, shop, orderIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *pgStore) OrdersByCustomer(ctx context.Context, shop string, customerID int64, email string) ([]OrderRecord, error) {
	rows, err := s.dbPool.Query(ctx, `SELECT shop_domain, order_id, order_number, financial_status, fulfillment_status, total_price, subtotal_price, total_tax, currency, customer_id, COALESCE(customer_email,''), COALESCE(customer_phone,''), shipping_address, billing_address, remote_created_at, remote_updated_at, payload, synced_at
	 FROM orders WHERE shop_domain=$1 AND (($2::bigint <> 0 AND customer_id=$2) OR ($3 <> '' AND customer_email=$3))
	 ORDER BY order_id`, shop, customerID, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderRecord
	ids := make([]int64, 0, 8)
	for rows.Next() {
		var o OrderRecord
		if err := rows.Scan(&o.Shop, &o.OrderID, &o.OrderNumber, &o.FinancialStatus, &o.FulfillmentStatus,
			&o.TotalPrice, &o.SubtotalPrice, &o.TotalTax, &o.Currency, &o.CustomerID,
			&o.CustomerEmail, &o.CustomerPhone, &o.ShippingAddress, &o.BillingAddress,
			&o.RemoteCreatedAt, &o.RemoteUpdatedAt, &o.Payload, &o.SyncedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
		ids = append(ids, o.OrderID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	items, err := s.lineItemsForOrders(ctx, shop, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].LineItems = items[out[i].OrderID]
	}
	return out, nil
}

func (s *pgStore) lineItemsForOrders(ctx context.Context, shop string, orderIDs []int64) (map[int64][]LineItemRecord, error) {
	rows, err := s.dbPool.Query(ctx, `SELECT order_id, line_item_id, product_id, variant_id, title, variant_title, quantity, price, total_discount, sku, vendor
	 FROM order_line_items WHERE shop_domain=$1 AND order_id = ANY($2) ORDER BY order_id, line_item_id`, shop, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int64][]LineItemRecord{}
	for rows.Next() {
		var orderID int64
		var li LineItemRecord
		if err := rows.Scan(&orderID, &li.LineItemID, &li.ProductID, &li.VariantID, &li.Title, &li.VariantTitle,
			&li.Quantity, &li.Price, &li.TotalDiscount, &li.SKU, &li.Vendor); err != nil {
			return nil, err
		}
		out[orderID] = append(out[orderID], li)
	}
	return out, rows.Err()
}

func (s *pgStore) AnonymizeCustomerOrders(ctx context.Context, shop string, customerID int64, email string) (int64, error) {
	tag, err := s.dbPool.Exec(ctx, `UPDATE orders SET
	   customer_email=NULL, customer_phone=NULL, shipping_address=NULL, billing_address=NULL,
	   payload = CASE WHEN payload IS NULL THEN NULL
	     ELSE payload - 'customer' - 'email' - 'contact_email' - 'phone' - 'shipping_address' - 'billing_address' END
	 WHERE shop_domain=$1 AND (($2::bigint <> 0 AND customer_id=$2) OR ($3 <> '' AND customer_email=$3))`,
		shop, customerID, email)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *pgStore) UpsertInventoryLevel(ctx context.Context, lv InventoryRecord) error {
	_, err := s.dbPool.Exec(ctx, `INSERT INTO inventory_levels(shop_domain, inventory_item_id, location_id, available, remote_updated_at, synced_at)
	 VALUES ($1,$2,$3,$4,$5,NOW())
	 ON CONFLICT (shop_domain, inventory_item_id, location_id) DO UPDATE SET
	   available=EXCLUDED.available, remote_updated_at=EXCLUDED.remote_updated_at, synced_at=NOW()`,
		lv.Shop, lv.InventoryItemID, lv.LocationID, lv.Available, lv.RemoteUpdatedAt)
	return err
}

func (s *pgStore) ListInventory(ctx context.Context, shop string, limit int) ([]InventoryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.dbPool.Query(ctx, `SELECT shop_domain, inventory_item_id, location_id, available, remote_updated_at, synced_at
	 FROM inventory_levels WHERE shop_domain=$1 ORDER BY inventory_item_id, location_id LIMIT $2`, shop, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []InventoryRecord
	for rows.Next() {
		var lv InventoryRecord
		if err := rows.Scan(&lv.Shop, &lv.InventoryItemID, &lv.LocationID, &lv.Available, &lv.RemoteUpdatedAt, &lv.SyncedAt); err != nil {
			return nil, err
		}
		out = append(out, lv)
	}
	return out, rows.Err()
}

// EraseEntities deletes children via cascade; receipts are handled
// separately so the caller controls erase ordering.
func (s *pgStore) EraseEntities(ctx context.Context, shop string) (ErasureCounts, error) {
	var counts ErasureCounts
	for _, step := range []struct {
		table string
		dst   *int64
	}{
		{"products", &counts.Products},
		{"orders", &counts.Orders},
		{"inventory_levels", &counts.Inventory},
		{"data_requests", &counts.DataRequests},
	} {
		tag, err := s.dbPool.Exec(ctx, `DELETE FROM `+step.table+` WHERE shop_domain=$1`, shop)
		if err != nil {
			return counts, err
		}
		*step.dst = tag.RowsAffected()
	}
	return counts, nil
}

func (s *pgStore) Counts(ctx context.Context, shop string) (ErasureCounts, error) {
	var counts ErasureCounts
	for _, step := range []struct {
		table string
		dst   *int64
	}{
		{"products", &counts.Products},
		{"orders", &counts.Orders},
		{"inventory_levels", &counts.Inventory},
		{"data_requests", &counts.DataRequests},
		{"webhook_receipts", &counts.Receipts},
	} {
		if err := s.dbPool.QueryRow(ctx, `SELECT COUNT(*) FROM `+step.table+` WHERE shop_domain=$1`, shop).Scan(step.dst); err != nil {
			return counts, err
		}
	}
	return counts, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
