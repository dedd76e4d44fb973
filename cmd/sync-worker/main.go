// cmd/sync-worker/main.go
package main

import (
	"context"

	"github.com/hibiken/asynq"

	"shopsync/internal/compliance"
	"shopsync/internal/shopify"
	"shopsync/internal/syncer"
	"shopsync/internal/webhooks"
	"shopsync/internal/worker"
	"shopsync/pkg/config"
	"shopsync/pkg/db"
	"shopsync/pkg/leases"
	"shopsync/pkg/logger"
	"shopsync/pkg/queue"
	"shopsync/pkg/secrets"
	"shopsync/pkg/shops"
	"shopsync/pkg/syncstore"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	if cfg.RedisURL == "" {
		log.Fatalw("sync-worker requires REDIS_URL (queue backend)")
	}
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
		log.Warnw("DATABASE_URL not set — synced data will not survive a restart")
		shopStore = shops.NewMemoryStore()
		store = syncstore.NewMemoryStore()
	}

	qc, err := queue.NewClient(cfg)
	if err != nil {
		log.Fatalw("queue client", "err", err)
	}
	defer qc.Close()

	client := shopify.New(cfg, log)
	engine := syncer.NewEngine(cfg, client, shopStore, store, leases.NewRedisManager(rdb), log)
	processor := webhooks.NewProcessor(store, log)
	comp := compliance.NewService(store, shopStore, qc, log)

	srv, err := queue.NewServer(cfg, log)
	if err != nil {
		log.Fatalw("queue server", "err", err)
	}
	mux := asynq.NewServeMux()
	h := &worker.Handlers{Engine: engine, Processor: processor, Compliance: comp, Log: log}
	h.Register(mux)

	log.Infow("sync-worker starting", "concurrency", cfg.WorkerConcurrency, "env", cfg.Env)
	// Run blocks until SIGTERM/SIGINT and drains in-flight tasks.
	if err := srv.Run(mux); err != nil {
		log.Fatalw("worker run", "err", err)
	}
}
