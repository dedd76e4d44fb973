// pkg/syncstore/postgres_receipts.go
package syncstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
)

// ClaimReceipt inserts the delivery record; a conflict means the platform
// redelivered something we already saw. Failed receipts are re-claimable so
// a redelivery after a processing error runs again instead of being filtered.
func (s *pgStore) ClaimReceipt(ctx context.Context, r Receipt) (bool, error) {
	tag, err := s.dbPool.Exec(ctx, `INSERT INTO webhook_receipts(shop_domain, delivery_id, topic, outcome)
	 VALUES ($1,$2,$3,$4) ON CONFLICT (shop_domain, delivery_id) DO UPDATE
	 SET outcome=EXCLUDED.outcome, error='', received_at=NOW()
	 WHERE webhook_receipts.outcome='failed'`,
		r.Shop, r.DeliveryID, r.Topic, r.Outcome)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *pgStore) FinishReceipt(ctx context.Context, shop, deliveryID, outcome, errMsg string) error {
	_, err := s.dbPool.Exec(ctx, `UPDATE webhook_receipts SET outcome=$3, error=$4 WHERE shop_domain=$1 AND delivery_id=$2`,
		shop, deliveryID, outcome, errMsg)
	return err
}

func (s *pgStore) DeleteReceipts(ctx context.Context, shop string) (int64, error) {
	tag, err := s.dbPool.Exec(ctx, `DELETE FROM webhook_receipts WHERE shop_domain=$1`, shop)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RecordDataRequest keeps the first delivery; redeliveries are no-ops so a
// request cannot regress from exported back to received.
func (s *pgStore) RecordDataRequest(ctx context.Context, d DataRequest) error {
	_, err := s.dbPool.Exec(ctx, `INSERT INTO data_requests(shop_domain, request_id, customer_id, payload, status)
	 VALUES ($1,$2,$3,$4,$5) ON CONFLICT (shop_domain, request_id) DO NOTHING`,
		d.Shop, d.RequestID, d.CustomerID, []byte(d.Payload), RequestReceived)
	return err
}

func (s *pgStore) GetDataRequest(ctx context.Context, shop string, requestID int64) (DataRequest, error) {
	row := s.dbPool.QueryRow(ctx, `SELECT shop_domain, request_id, customer_id, payload, status, export, requested_at, completed_at
	 FROM data_requests WHERE shop_domain=$1 AND request_id=$2`, shop, requestID)
	var d DataRequest
	if err := row.Scan(&d.Shop, &d.RequestID, &d.CustomerID, &d.Payload, &d.Status, &d.Export, &d.RequestedAt, &d.CompletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DataRequest{}, ErrRequestNotFound
		}
		return DataRequest{}, err
	}
	return d, nil
}

func (s *pgStore) CompleteDataRequest(ctx context.Context, shop string, requestID int64, export json.RawMessage) error {
	_, err := s.dbPool.Exec(ctx, `UPDATE data_requests SET status=$3, export=$4, completed_at=NOW() WHERE shop_domain=$1 AND request_id=$2`,
		shop, requestID, RequestExported, []byte(export))
	return err
}

func (s *pgStore) FailDataRequest(ctx context.Context, shop string, requestID int64) error {
	_, err := s.dbPool.Exec(ctx, `UPDATE data_requests SET status=$3 WHERE shop_domain=$1 AND request_id=$2`,
		shop, requestID, RequestFailed)
	return err
}
