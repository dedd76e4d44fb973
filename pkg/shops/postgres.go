// pkg/shops/postgres.go
package shops

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"shopsync/pkg/secrets"
)

// pgStore implements Store backed by PostgreSQL. Access tokens are run
// through the cipher on the way in and out; a nil cipher stores plaintext.
type pgStore struct {
	dbPool *pgxpool.Pool
	cipher *secrets.Cipher
	log    *zap.SugaredLogger
}

func NewPostgresStore(dbPool *pgxpool.Pool, cipher *secrets.Cipher, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, cipher: cipher, log: log}
}

// EnsureSchema creates the shops table if it does not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS shops (
  shop_domain text PRIMARY KEY,
  access_token text NOT NULL,
  scope text NOT NULL DEFAULT '',
  active boolean NOT NULL DEFAULT true,
  installed_at timestamptz NOT NULL DEFAULT NOW(),
  token_refreshed_at timestamptz NOT NULL DEFAULT NOW()
);
`)
	return err
}

func (s *pgStore) Upsert(ctx context.Context, shop Shop) error {
	tok, err := s.cipher.Encrypt(shop.AccessToken)
	if err != nil {
		return err
	}
	_, err = s.dbPool.Exec(ctx, `INSERT INTO shops(shop_domain, access_token, scope, active)
	 VALUES ($1,$2,$3,true)
	 ON CONFLICT (shop_domain) DO UPDATE SET access_token=EXCLUDED.access_token, scope=EXCLUDED.scope, active=true, token_refreshed_at=NOW()`,
		shop.Domain, tok, shop.Scope)
	return err
}

func (s *pgStore) Get(ctx context.Context, domain string) (Shop, error) {
	return s.get(ctx, domain, false)
}

func (s *pgStore) GetActive(ctx context.Context, domain string) (Shop, error) {
	return s.get(ctx, domain, true)
}

func (s *pgStore) get(ctx context.Context, domain string, liveOnly bool) (Shop, error) {
	q := `SELECT shop_domain, access_token, scope, active, installed_at, token_refreshed_at FROM shops WHERE shop_domain=$1`
	if liveOnly {
		q += ` AND active`
	}
	row := s.dbPool.QueryRow(ctx, q, domain)
	var sh Shop
	if err := row.Scan(&sh.Domain, &sh.AccessToken, &sh.Scope, &sh.Active, &sh.InstalledAt, &sh.TokenRefreshedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Shop{}, ErrNotFound
		}
		return Shop{}, err
	}
	tok, err := s.cipher.Decrypt(sh.AccessToken)
	if err != nil {
		s.log.Errorw("token decrypt", "shop", domain, "err", err)
		return Shop{}, err
	}
	sh.AccessToken = tok
	return sh, nil
}

func (s *pgStore) Deactivate(ctx context.Context, domain string) error {
	_, err := s.dbPool.Exec(ctx, `UPDATE shops SET active=false WHERE shop_domain=$1`, domain)
	return err
}

func (s *pgStore) Delete(ctx context.Context, domain string) error {
	_, err := s.dbPool.Exec(ctx, `DELETE FROM shops WHERE shop_domain=$1`, domain)
	return err
}
