// internal/web/app.go
package web

import (
	"go.uber.org/zap"

	"shopsync/internal/oauth"
	"shopsync/internal/shopify"
	"shopsync/internal/webhooks"
	"shopsync/pkg/config"
	"shopsync/pkg/queue"
	"shopsync/pkg/shops"
	"shopsync/pkg/syncstore"
)

// App is the web-service container.
//
// Keep it lean: shared deps and config only.
// Request-scoped work should use context.
type App struct {
	cfg      config.Config
	log      *zap.SugaredLogger
	oauth    *oauth.Service
	webhooks *webhooks.Service
	shops    shops.Store
	store    syncstore.Store
	queue    queue.Enqueuer
	client   *shopify.Client
}

// Deps are the wired services the handlers delegate to.
type Deps struct {
	OAuth    *oauth.Service
	Webhooks *webhooks.Service
	Shops    shops.Store
	Store    syncstore.Store
	Queue    queue.Enqueuer
	Client   *shopify.Client
}

func New(cfg config.Config, log *zap.SugaredLogger, d Deps) *App {
	return &App{
		cfg:      cfg,
		log:      log,
		oauth:    d.OAuth,
		webhooks: d.Webhooks,
		shops:    d.Shops,
		store:    d.Store,
		queue:    d.Queue,
		client:   d.Client,
	}
}
