// pkg/queue/tasks.go
package queue

import (
	"encoding/json"
	"fmt"
)

// Task types routed through the broker. The worker binary registers a handler
// per type; the web service only enqueues.
const (
	TypeResourceSync   = "sync:resource"
	TypeWebhookProcess = "webhook:process"
	TypeDataExport     = "compliance:data_export"
)

// Queue names. Webhook and compliance work preempts bulk syncs.
const (
	QueueEvents = "events"
	QueueSync   = "sync"
)

// ResourceSyncPayload asks the worker to pull one resource collection for one
// shop. Resource is products, orders, or inventory.
type ResourceSyncPayload struct {
	Shop     string `json:"shop"`
	Resource string `json:"resource"`
	Trigger  string `json:"trigger,omitempty"`
}

// WebhookProcessPayload carries a verified webhook delivery to the worker.
// Body is the raw payload as received; verification already happened at the
// HTTP edge.
type WebhookProcessPayload struct {
	Shop       string          `json:"shop"`
	Topic      string          `json:"topic"`
	DeliveryID string          `json:"delivery_id"`
	Body       json.RawMessage `json:"body"`
}

// DataExportPayload points the worker at a recorded customer data request.
type DataExportPayload struct {
	Shop      string `json:"shop"`
	RequestID int64  `json:"request_id"`
}

// SyncTaskID is the broker-side dedupe key: one queued or running sync per
// shop and resource.
func SyncTaskID(shop, resource string) string {
	return fmt.Sprintf("sync:%s:%s", shop, resource)
}
