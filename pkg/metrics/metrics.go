// pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopsync_webhooks_received_total",
		Help: "Inbound webhook deliveries by topic and outcome.",
	}, []string{"topic", "outcome"})

	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopsync_sync_runs_total",
		Help: "Sync runs by resource and status.",
	}, []string{"resource", "status"})

	SyncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shopsync_sync_duration_seconds",
		Help:    "Wall time of completed sync runs.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
	}, []string{"resource"})

	EntitiesUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopsync_entities_upserted_total",
		Help: "Entities written by sync and webhook ingestion, by resource.",
	}, []string{"resource"})

	Installs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopsync_oauth_installs_total",
		Help: "Completed OAuth installs, re-auth included.",
	})
)
