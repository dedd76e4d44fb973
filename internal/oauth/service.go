// internal/oauth/service.go
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"shopsync/internal/shopify"
	"shopsync/pkg/attempts"
	"shopsync/pkg/config"
	"shopsync/pkg/logger"
	"shopsync/pkg/metrics"
	"shopsync/pkg/shops"
	"shopsync/pkg/topics"
)

var (
	ErrInvalidShop = errors.New("invalid shop domain")
	// ErrInvalidState covers missing, expired, replayed, and wrong-shop
	// nonces, plus callbacks with no code; the merchant restarts the flow
	// either way.
	ErrInvalidState        = errors.New("invalid state parameter")
	ErrTokenExchangeFailed = errors.New("token exchange failed")
)

// Service drives the install flow: authorize redirect out, callback in.
type Service struct {
	cfg      config.Config
	client   *shopify.Client
	attempts attempts.Store
	shops    shops.Store
	topics   *topics.Registry
	log      *zap.SugaredLogger
}

func NewService(cfg config.Config, client *shopify.Client, att attempts.Store, st shops.Store, reg *topics.Registry, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, client: client, attempts: att, shops: st, topics: reg, log: log}
}

// Initiate validates the shop domain, parks a single-use state nonce bound to
// it, and returns the authorize URL to redirect the merchant to.
func (s *Service) Initiate(ctx context.Context, shop string) (string, error) {
	domain, err := NormalizeShopDomain(shop, s.cfg.ShopDomainSuffix)
	if err != nil {
		return "", err
	}
	state, err := newState()
	if err != nil {
		return "", fmt.Errorf("mint state: %w", err)
	}
	if err := s.attempts.Create(ctx, state, attempts.Attempt{Shop: domain, CreatedAt: time.Now().UTC()}, s.cfg.StateTTL); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}
	s.log.Infow("oauth initiated", "shop", domain, "state", state[:8]+"...")
	return s.client.AuthorizeURL(domain, state, s.cfg.RedirectURI), nil
}

// CallbackParams is everything the authorize redirect hands back. Query holds
// the full callback query string for signature verification.
type CallbackParams struct {
	Shop  string
	Code  string
	State string
	Query url.Values
}

// Callback completes an install. The nonce is consumed before any check that
// can fail, so a replayed or tampered callback burns it and the next attempt
// starts clean. Binding to the initiating shop is checked after the consume.
func (s *Service) Callback(ctx context.Context, p CallbackParams) (shops.Shop, error) {
	domain, err := NormalizeShopDomain(p.Shop, s.cfg.ShopDomainSuffix)
	if err != nil {
		return shops.Shop{}, err
	}
	if p.State == "" {
		return shops.Shop{}, fmt.Errorf("%w: missing", ErrInvalidState)
	}
	att, err := s.attempts.Consume(ctx, p.State)
	if err != nil {
		if errors.Is(err, attempts.ErrNotFound) {
			s.log.Warnw("oauth state rejected", "shop", domain, "reason", "unknown, expired, or already used")
			return shops.Shop{}, fmt.Errorf("%w: unknown, expired, or already used", ErrInvalidState)
		}
		return shops.Shop{}, fmt.Errorf("consume oauth state: %w", err)
	}
	if att.Shop != domain {
		s.log.Warnw("oauth state bound to different shop", "expected", att.Shop, "got", domain)
		return shops.Shop{}, fmt.Errorf("%w: shop mismatch", ErrInvalidState)
	}
	if p.Query.Get("hmac") != "" && !VerifyCallbackHMAC(p.Query, s.cfg.APISecret) {
		s.log.Warnw("oauth callback signature mismatch", "shop", domain)
		return shops.Shop{}, fmt.Errorf("%w: query signature mismatch", ErrInvalidState)
	}
	if p.Code == "" {
		return shops.Shop{}, fmt.Errorf("%w: missing authorization code", ErrInvalidState)
	}

	tok, err := s.client.ExchangeToken(ctx, domain, p.Code)
	if err != nil {
		s.log.Errorw("token exchange failed", "shop", domain, "err", err)
		return shops.Shop{}, fmt.Errorf("%w: %w", ErrTokenExchangeFailed, err)
	}

	rec := shops.Shop{Domain: domain, AccessToken: tok.Token, Scope: tok.Scope}
	if err := s.shops.Upsert(ctx, rec); err != nil {
		return shops.Shop{}, fmt.Errorf("persist shop credential: %w", err)
	}
	metrics.Installs.Inc()
	s.log.Infow("shop installed", "shop", domain, "scope", tok.Scope, "token", logger.Redact(tok.Token))

	// Topic registration must not fail the install; missing topics are
	// re-registered on the next install pass.
	s.client.RegisterWebhooks(ctx, domain, tok.Token, s.cfg.PublicURL, s.topics)
	return rec, nil
}
