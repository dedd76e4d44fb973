// cmd/web-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopsync/internal/compliance"
	"shopsync/internal/oauth"
	"shopsync/internal/shopify"
	"shopsync/internal/syncer"
	"shopsync/internal/web"
	"shopsync/internal/webhooks"
	"shopsync/pkg/attempts"
	"shopsync/pkg/config"
	"shopsync/pkg/db"
	"shopsync/pkg/leases"
	"shopsync/pkg/logger"
	"shopsync/pkg/queue"
	"shopsync/pkg/secrets"
	"shopsync/pkg/shops"
	"shopsync/pkg/syncstore"
	"shopsync/pkg/topics"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

	cipher, err := secrets.NewCipher(cfg.TokenEncKey)
	if err != nil {
		log.Fatalw("token cipher", "err", err)
	}

	var shopStore shops.Store
	var store syncstore.Store
	if pool != nil {
		if err := shops.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("shops schema", "err", err)
		}
		if err := syncstore.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("syncstore schema", "err", err)
		}
		shopStore = shops.NewPostgresStore(pool, cipher, log)
		store = syncstore.NewPostgresStore(pool, log)
	} else {
		shopStore = shops.NewMemoryStore()
		store = syncstore.NewMemoryStore()
	}

	var att attempts.Store
	var lm leases.Manager
	if rdb != nil {
		att = attempts.NewRedisStore(rdb)
		lm = leases.NewRedisManager(rdb)
	} else {
		log.Warnw("REDIS_URL not set — oauth state and sync leases are in-process only")
		att = attempts.NewMemoryStore()
		lm = leases.NewMemoryManager()
	}

	reg, err := topics.Load(cfg.TopicsFile)
	if err != nil {
		log.Fatalw("topic registry", "file", cfg.TopicsFile, "err", err)
	}

	client := shopify.New(cfg, log)
	engine := syncer.NewEngine(cfg, client, shopStore, store, lm, log)
	processor := webhooks.NewProcessor(store, log)

	// With Redis the web service only enqueues; the sync-worker binary
	// executes. Without it, tasks run in-process so dev still works.
	var q queue.Enqueuer
	var closeQueue func() error
	var comp *compliance.Service
	if rdb != nil {
		qc, err := queue.NewClient(cfg)
		if err != nil {
			log.Fatalw("queue client", "err", err)
		}
		q = qc
		closeQueue = qc.Close
		comp = compliance.NewService(store, shopStore, q, log)
	} else {
		inline := &queue.Inline{Log: log, Timeout: cfg.TaskTimeout}
		comp = compliance.NewService(store, shopStore, inline, log)
		inline.SyncFn = func(ctx context.Context, p queue.ResourceSyncPayload) error {
			_, err := engine.SyncResource(ctx, p.Shop, p.Resource)
			return err
		}
		inline.WebhookFn = processor.Process
		inline.ExportFn = func(ctx context.Context, p queue.DataExportPayload) error {
			return comp.BuildExport(ctx, p.Shop, p.RequestID)
		}
		q = inline
	}

	oauthSvc := oauth.NewService(cfg, client, att, shopStore, reg, log)
	whSvc := webhooks.NewService(store, shopStore, q, reg, comp, log)

	app := web.New(cfg, log, web.Deps{
		OAuth:    oauthSvc,
		Webhooks: whSvc,
		Shops:    shopStore,
		Store:    store,
		Queue:    q,
		Client:   client,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: app.Handler()}
	go func() {
		log.Infow("web-service listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	if closeQueue != nil {
		_ = closeQueue()
	}
	fmt.Println("web-service stopped")
}
